package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/gestion-pyme/docs"
	"github.com/jhoicas/gestion-pyme/internal/application/alerts"
	appanalytics "github.com/jhoicas/gestion-pyme/internal/application/analytics"
	"github.com/jhoicas/gestion-pyme/internal/application/auth"
	"github.com/jhoicas/gestion-pyme/internal/application/sales"
	"github.com/jhoicas/gestion-pyme/internal/application/usecase"
	infrmail "github.com/jhoicas/gestion-pyme/internal/infrastructure/mail"
	infrapdf "github.com/jhoicas/gestion-pyme/internal/infrastructure/pdf"
	"github.com/jhoicas/gestion-pyme/internal/infrastructure/postgres"
	"github.com/jhoicas/gestion-pyme/internal/infrastructure/realtime"
	httpRouter "github.com/jhoicas/gestion-pyme/internal/interfaces/http"
	"github.com/jhoicas/gestion-pyme/pkg/config"
	"github.com/jhoicas/gestion-pyme/pkg/logger"
)

// @title                       Gestión PyME API
// @version                     1.0
// @description                 Ventas, inventario y alertas de stock para pequeñas empresas.
// @BasePath                    /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Bus de cambios: Redis si hay varias instancias, memoria si no.
	var bus realtime.Bus
	if cfg.Redis.URL != "" {
		rdb, err := realtime.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		bus = realtime.NewRedisBus(rdb, log.Component("realtime"))
	} else {
		bus = realtime.NewMemoryBus()
	}
	defer bus.Close()

	listener := postgres.NewChangeListener(pool, bus, log.Component("listener"))
	go listener.Run(ctx)

	companyRepo := postgres.NewCompanyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)
	alertRepo := postgres.NewAlertRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// El correo es opcional: sin SMTP_HOST las ventas no envían confirmación.
	var sender sales.NotificationSender
	if smtp := infrmail.NewSMTPSender(cfg.SMTP); smtp != nil {
		sender = smtp
	} else {
		log.Warn().Msg("SMTP_HOST vacío: confirmaciones por correo desactivadas")
	}

	salesUC := sales.NewUseCase(
		txRunner, saleRepo, productRepo, customerRepo, companyRepo,
		sender, infrapdf.NewReceiptGenerator(),
		sales.RetryPolicy{Attempts: cfg.Notify.Attempts, Backoff: cfg.Notify.Backoff, Timeout: cfg.Notify.Timeout},
		log.Component("sales"),
	)
	companyUC := usecase.NewCompanyUseCase(companyRepo)
	productUC := usecase.NewProductUseCase(productRepo, log.Component("products"))
	customerUC := usecase.NewCustomerUseCase(customerRepo)
	dashboardUC := appanalytics.NewDashboardUseCase(saleRepo, productRepo)
	authUC := auth.NewAuthUseCase(userRepo, companyRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	hub := alerts.NewHub(ctx, alertRepo, productRepo, bus, alerts.Config{
		PollInterval: cfg.Alerts.PollInterval,
		FetchLimit:   cfg.Alerts.FetchLimit,
		ToastWindow:  cfg.Alerts.ToastWindow,
	}, log.Component("alerts"))

	app := fiber.New(fiber.Config{
		AppName:     cfg.App.Name,
		ReadTimeout: time.Second * 10,
		// Sin WriteTimeout: /api/notifications/stream mantiene la respuesta abierta.
		IdleTimeout: time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Gestión PyME API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		CompanyUC:   companyUC,
		ProductUC:   productUC,
		CustomerUC:  customerUC,
		SalesUC:     salesUC,
		DashboardUC: dashboardUC,
		AuthUC:      authUC,
		AlertsHub:   hub,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	// Cerrar los centros primero libera los streams SSE abiertos.
	hub.Close()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
