package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/gestion-pyme/internal/application/alerts"
	appanalytics "github.com/jhoicas/gestion-pyme/internal/application/analytics"
	"github.com/jhoicas/gestion-pyme/internal/application/auth"
	"github.com/jhoicas/gestion-pyme/internal/application/sales"
	"github.com/jhoicas/gestion-pyme/internal/application/usecase"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CompanyUC   *usecase.CompanyUseCase
	ProductUC   *usecase.ProductUseCase
	CustomerUC  *usecase.CustomerUseCase
	SalesUC     *sales.UseCase
	DashboardUC *appanalytics.DashboardUseCase
	AuthUC      *auth.AuthUseCase
	AlertsHub   *alerts.Hub
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Alta de empresa (público, previo al registro del primer usuario)
	companyHandler := NewCompanyHandler(deps.CompanyUC)
	api.Post("/companies", companyHandler.Create)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	protected.Get("/auth/me", authHandler.Me)
	protected.Get("/companies/me", companyHandler.Current)

	writers := RequireRole(entity.RoleAdmin, entity.RoleBodeguero)

	// Products
	products := protected.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)
	products.Post("/", writers, productHandler.Create)
	products.Put("/:id", writers, productHandler.Update)
	products.Patch("/:id/stock", writers, productHandler.SetStock)
	products.Delete("/:id", writers, productHandler.Delete)

	// Sales
	salesGroup := protected.Group("/sales")
	saleHandler := NewSaleHandler(deps.SalesUC)
	salesGroup.Post("/", saleHandler.Create)
	salesGroup.Get("/", saleHandler.List)
	salesGroup.Get("/:id", saleHandler.Get)
	salesGroup.Get("/:id/receipt", saleHandler.Receipt)
	salesGroup.Put("/:id", saleHandler.Update)
	salesGroup.Delete("/:id", RequireRole(entity.RoleAdmin), saleHandler.Delete)

	// Customers
	customerHandler := NewCustomerHandler(deps.CustomerUC)
	protected.Get("/customers", customerHandler.List)

	// Dashboard
	dashboardHandler := NewDashboardHandler(deps.DashboardUC)
	protected.Get("/dashboard/summary", dashboardHandler.GetSummary)

	// Notifications
	if deps.AlertsHub != nil {
		notifications := protected.Group("/notifications")
		notificationHandler := NewNotificationHandler(deps.AlertsHub)
		notifications.Get("/", notificationHandler.List)
		notifications.Get("/stream", notificationHandler.Stream)
		notifications.Post("/read-all", notificationHandler.MarkAllRead)
		notifications.Post("/:id/read", notificationHandler.MarkRead)
	}
}
