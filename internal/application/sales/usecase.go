// Package sales contiene los casos de uso del punto de venta: crear, editar y
// revertir ventas manteniendo el stock de los productos conciliado.
package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/inventory"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// Mensajes de advertencia devueltos al operador cuando falla un paso best-effort.
const (
	WarnCustomerNotSaved = "La venta se registró, pero no se pudo actualizar el cliente"
	WarnEmailNotSent     = "La venta se registró, pero no se pudo enviar el correo de confirmación"
)

// UseCase casos de uso de ventas.
type UseCase struct {
	txRunner     TxRunner
	saleRepo     repository.SaleRepository
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	companyRepo  repository.CompanyRepository
	sender       NotificationSender // opcional
	renderer     ReceiptRenderer    // opcional
	retry        RetryPolicy
	log          zerolog.Logger
	now          func() time.Time
}

// NewUseCase construye el caso de uso. sender y renderer pueden ser nil.
func NewUseCase(
	txRunner TxRunner,
	saleRepo repository.SaleRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	companyRepo repository.CompanyRepository,
	sender NotificationSender,
	renderer ReceiptRenderer,
	retry RetryPolicy,
	log zerolog.Logger,
) *UseCase {
	return &UseCase{
		txRunner:     txRunner,
		saleRepo:     saleRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		companyRepo:  companyRepo,
		sender:       sender,
		renderer:     renderer,
		retry:        retry,
		log:          log,
		now:          time.Now,
	}
}

// CreateSale registra la venta, descuenta el stock y luego, sin bloquear el
// resultado, actualiza el cliente y envía la confirmación por correo.
func (uc *UseCase) CreateSale(ctx context.Context, sess domain.Session, in dto.SaleRequest) (*dto.SaleResponse, error) {
	const op = "sales.CreateSale"
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	lines := toLines(in.Items)
	requested := inventory.AggregateQuantities(lines)
	products, err := uc.snapshot(ctx, op, sess.CompanyID, keys(requested))
	if err != nil {
		return nil, err
	}
	if err := inventory.CheckAvailability(requested, stockOf(products)); err != nil {
		return nil, domain.E(domain.KindConflict, op, err)
	}

	now := uc.now()
	sale := &entity.Sale{
		ID:              uuid.New().String(),
		CompanyID:       sess.CompanyID,
		CustomerName:    in.CustomerName,
		CustomerEmail:   in.CustomerEmail,
		CustomerAddress: in.CustomerAddress,
		PaymentMethod:   in.PaymentMethod,
		CreatedBy:       sess.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	items := buildItems(sale.ID, in.Items)
	sale.Total = totalOf(items)

	err = uc.txRunner.RunSale(ctx, func(saleRepo repository.SaleRepository, productRepo repository.ProductRepository) error {
		if err := saleRepo.Create(ctx, sale); err != nil {
			return err
		}
		for _, it := range items {
			if err := saleRepo.CreateItem(ctx, it); err != nil {
				return err
			}
		}
		// Una sola actualización por producto distinto, protegida contra cambios concurrentes.
		for _, id := range sortedKeys(requested) {
			if err := productRepo.AdjustStock(ctx, sess.CompanyID, id, products[id].Stock, -requested[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	resp := toResponse(sale, items)
	if err := uc.adjustCustomer(ctx, sale.CompanyID, sale.CustomerName, sale.CustomerEmail, sale.CustomerAddress, 1, sale.Total); err != nil {
		uc.log.Warn().Err(err).Str("sale_id", sale.ID).Msg("ventas: no se pudo actualizar el cliente")
		resp.Warnings = append(resp.Warnings, WarnCustomerNotSaved)
	}
	if w := uc.sendConfirmation(ctx, sale, items, products); w != "" {
		resp.Warnings = append(resp.Warnings, w)
	}
	return resp, nil
}

// EditSale reemplaza cabecera e ítems de una venta y concilia el stock solo por
// la diferencia entre las líneas anteriores y las nuevas.
func (uc *UseCase) EditSale(ctx context.Context, sess domain.Session, saleID string, in dto.SaleRequest) (*dto.SaleResponse, error) {
	const op = "sales.EditSale"
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	sale, err := uc.saleRepo.GetByID(ctx, sess.CompanyID, saleID)
	if err != nil {
		return nil, wrap(op, err)
	}
	if sale == nil {
		return nil, domain.E(domain.KindNotFound, op, nil)
	}
	oldItems, err := uc.saleRepo.GetItems(ctx, sale.ID)
	if err != nil {
		return nil, wrap(op, err)
	}
	oldLines := make([]inventory.Line, 0, len(oldItems))
	for _, it := range oldItems {
		oldLines = append(oldLines, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	newLines := toLines(in.Items)
	deltas := inventory.EditDeltas(oldLines, newLines)

	// Snapshot de todo producto nuevo o con stock afectado.
	ids := keys(inventory.AggregateQuantities(newLines))
	for id := range deltas {
		ids = append(ids, id)
	}
	products, err := uc.snapshot(ctx, op, sess.CompanyID, ids)
	if err != nil {
		return nil, err
	}
	if err := inventory.CheckAvailability(deltas, stockOf(products)); err != nil {
		return nil, domain.E(domain.KindConflict, op, err)
	}

	prev := *sale
	sale.CustomerName = in.CustomerName
	sale.CustomerEmail = in.CustomerEmail
	sale.CustomerAddress = in.CustomerAddress
	sale.PaymentMethod = in.PaymentMethod
	sale.UpdatedAt = uc.now()
	items := buildItems(sale.ID, in.Items)
	sale.Total = totalOf(items)

	err = uc.txRunner.RunSale(ctx, func(saleRepo repository.SaleRepository, productRepo repository.ProductRepository) error {
		if err := saleRepo.Update(ctx, sale); err != nil {
			return err
		}
		if err := saleRepo.DeleteItems(ctx, sale.ID); err != nil {
			return err
		}
		for _, it := range items {
			if err := saleRepo.CreateItem(ctx, it); err != nil {
				return err
			}
		}
		for _, id := range sortedKeys(deltas) {
			if err := productRepo.AdjustStock(ctx, sess.CompanyID, id, products[id].Stock, -deltas[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	resp := toResponse(sale, items)
	if err := uc.moveCustomerTotals(ctx, &prev, sale); err != nil {
		uc.log.Warn().Err(err).Str("sale_id", sale.ID).Msg("ventas: no se pudo actualizar el cliente")
		resp.Warnings = append(resp.Warnings, WarnCustomerNotSaved)
	}
	return resp, nil
}

// ReverseSale deshace una venta completa en el servidor (stock, ítems, venta y cliente).
// Solo un administrador puede revertir.
func (uc *UseCase) ReverseSale(ctx context.Context, sess domain.Session, saleID string) (*dto.ReverseSaleResponse, error) {
	const op = "sales.ReverseSale"
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if !sess.HasRole(entity.RoleAdmin) {
		return nil, domain.E(domain.KindPermissionDenied, op, nil)
	}
	if saleID == "" {
		return nil, domain.NewValidation("id", "es requerido")
	}
	res, err := uc.saleRepo.Reverse(ctx, sess.CompanyID, saleID)
	if err != nil {
		return nil, wrap(op, err)
	}
	if res == nil {
		return nil, domain.E(domain.KindNotFound, op, nil)
	}
	uc.log.Info().Str("sale_id", res.SaleID).Bool("customer_deleted", res.CustomerDeleted).Msg("venta revertida")
	return &dto.ReverseSaleResponse{SaleID: res.SaleID, CustomerDeleted: res.CustomerDeleted}, nil
}

// GetSale devuelve la venta con sus ítems.
func (uc *UseCase) GetSale(ctx context.Context, sess domain.Session, saleID string) (*dto.SaleResponse, error) {
	const op = "sales.GetSale"
	sale, items, err := uc.load(ctx, op, sess, saleID)
	if err != nil {
		return nil, err
	}
	return toResponse(sale, items), nil
}

// ListSales lista las ventas de la empresa, más recientes primero.
func (uc *UseCase) ListSales(ctx context.Context, sess domain.Session, page dto.PageRequest) (*dto.SaleListResponse, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, err := uc.saleRepo.ListByCompany(ctx, sess.CompanyID, page.Limit, page.Offset)
	if err != nil {
		return nil, wrap("sales.ListSales", err)
	}
	out := &dto.SaleListResponse{
		Items: make([]dto.SaleResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, s := range list {
		out.Items = append(out.Items, *toResponse(s, nil))
	}
	return out, nil
}

// ReceiptPDF genera el comprobante PDF de una venta.
func (uc *UseCase) ReceiptPDF(ctx context.Context, sess domain.Session, saleID string) ([]byte, string, error) {
	const op = "sales.ReceiptPDF"
	if uc.renderer == nil {
		return nil, "", domain.E(domain.KindUnavailable, op, nil)
	}
	sale, items, err := uc.load(ctx, op, sess, saleID)
	if err != nil {
		return nil, "", err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := uc.productRepo.GetByIDs(ctx, sess.CompanyID, ids)
	if err != nil {
		return nil, "", wrap(op, err)
	}
	receipt := uc.buildReceipt(ctx, sale, items, products)
	pdf, err := uc.renderer.RenderReceipt(receipt)
	if err != nil {
		return nil, "", fmt.Errorf("%s: generar PDF: %w", op, err)
	}
	return pdf, fmt.Sprintf("venta-%s.pdf", shortID(sale.ID)), nil
}

func (uc *UseCase) load(ctx context.Context, op string, sess domain.Session, saleID string) (*entity.Sale, []*entity.SaleItem, error) {
	if err := sess.Validate(); err != nil {
		return nil, nil, err
	}
	sale, err := uc.saleRepo.GetByID(ctx, sess.CompanyID, saleID)
	if err != nil {
		return nil, nil, wrap(op, err)
	}
	if sale == nil {
		return nil, nil, domain.E(domain.KindNotFound, op, nil)
	}
	if sale.CompanyID != sess.CompanyID {
		return nil, nil, domain.E(domain.KindPermissionDenied, op, nil)
	}
	items, err := uc.saleRepo.GetItems(ctx, sale.ID)
	if err != nil {
		return nil, nil, wrap(op, err)
	}
	return sale, items, nil
}

// snapshot lee los productos indicados y exige que todos existan y sean de la empresa.
func (uc *UseCase) snapshot(ctx context.Context, op, companyID string, ids []string) (map[string]*entity.Product, error) {
	products, err := uc.productRepo.GetByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, wrap(op, err)
	}
	for _, id := range ids {
		p, ok := products[id]
		if !ok || p == nil {
			return nil, domain.E(domain.KindNotFound, op, fmt.Errorf("%w: producto %s", domain.ErrNotFound, id))
		}
		if p.CompanyID != companyID {
			return nil, domain.E(domain.KindPermissionDenied, op, nil)
		}
	}
	return products, nil
}

// adjustCustomer suma count y total al cliente (CompanyID, name), creándolo si no existe.
// El repositorio lo resuelve en una sola sentencia atómica.
func (uc *UseCase) adjustCustomer(ctx context.Context, companyID, name, email, address string, count int, total decimal.Decimal) error {
	return uc.customerRepo.Accumulate(ctx, &entity.Customer{
		ID:             uuid.New().String(),
		CompanyID:      companyID,
		Name:           name,
		Email:          email,
		Address:        address,
		TotalPurchased: total,
		PurchaseCount:  count,
		UpdatedAt:      uc.now(),
	})
}

// moveCustomerTotals traslada el efecto de la venta editada al cliente correspondiente.
func (uc *UseCase) moveCustomerTotals(ctx context.Context, prev, cur *entity.Sale) error {
	if prev.CustomerName == cur.CustomerName {
		return uc.adjustCustomer(ctx, cur.CompanyID, cur.CustomerName, cur.CustomerEmail, cur.CustomerAddress, 0, cur.Total.Sub(prev.Total))
	}
	if err := uc.adjustCustomer(ctx, prev.CompanyID, prev.CustomerName, "", "", -1, prev.Total.Neg()); err != nil {
		return err
	}
	return uc.adjustCustomer(ctx, cur.CompanyID, cur.CustomerName, cur.CustomerEmail, cur.CustomerAddress, 1, cur.Total)
}

// sendConfirmation envía el correo con reintentos. Devuelve la advertencia o "".
func (uc *UseCase) sendConfirmation(ctx context.Context, sale *entity.Sale, items []*entity.SaleItem, products map[string]*entity.Product) string {
	if uc.sender == nil {
		return ""
	}
	data := ConfirmationData{Receipt: *uc.buildReceipt(ctx, sale, items, products)}
	if uc.renderer != nil {
		pdf, err := uc.renderer.RenderReceipt(&data.Receipt)
		if err != nil {
			uc.log.Warn().Err(err).Str("sale_id", sale.ID).Msg("ventas: no se pudo generar el comprobante PDF")
		} else {
			data.PDF = pdf
		}
	}
	if err := SendWithRetry(ctx, uc.sender, sale.CustomerEmail, data, uc.retry); err != nil {
		uc.log.Warn().Err(err).Str("sale_id", sale.ID).Str("to", sale.CustomerEmail).Msg("ventas: falló el envío de confirmación")
		return WarnEmailNotSent
	}
	return ""
}

func (uc *UseCase) buildReceipt(ctx context.Context, sale *entity.Sale, items []*entity.SaleItem, products map[string]*entity.Product) *Receipt {
	r := &Receipt{
		SaleID:          sale.ID,
		CustomerName:    sale.CustomerName,
		CustomerEmail:   sale.CustomerEmail,
		CustomerAddress: sale.CustomerAddress,
		PaymentMethod:   sale.PaymentMethod,
		Date:            sale.CreatedAt,
		Total:           sale.Total,
		Lines:           make([]ReceiptLine, 0, len(items)),
	}
	if company, err := uc.companyRepo.GetByID(ctx, sale.CompanyID); err == nil && company != nil {
		r.CompanyName = company.Name
		r.CompanyNIT = company.NIT
	}
	for _, it := range items {
		line := ReceiptLine{Quantity: it.Quantity, UnitPrice: it.UnitPrice, Subtotal: it.Subtotal, Name: it.ProductID}
		if p := products[it.ProductID]; p != nil {
			line.Code = p.Code
			line.Name = p.Name
		}
		r.Lines = append(r.Lines, line)
	}
	return r
}

func toLines(items []dto.SaleItemRequest) []inventory.Line {
	out := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		out = append(out, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func buildItems(saleID string, in []dto.SaleItemRequest) []*entity.SaleItem {
	out := make([]*entity.SaleItem, 0, len(in))
	for _, it := range in {
		out = append(out, &entity.SaleItem{
			ID:        uuid.New().String(),
			SaleID:    saleID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  inventory.LineSubtotal(it.Quantity, it.UnitPrice),
		})
	}
	return out
}

func totalOf(items []*entity.SaleItem) decimal.Decimal {
	subtotals := make([]decimal.Decimal, 0, len(items))
	for _, it := range items {
		subtotals = append(subtotals, it.Subtotal)
	}
	return inventory.SaleTotal(subtotals)
}

func stockOf(products map[string]*entity.Product) map[string]int {
	out := make(map[string]int, len(products))
	for id, p := range products {
		out[id] = p.Stock
	}
	return out
}

func keys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	out := keys(m)
	sort.Strings(out)
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// wrap conserva el Kind de errores ya clasificados y anota la operación.
func wrap(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.E(domain.KindOf(err), op, err)
}

func toResponse(s *entity.Sale, items []*entity.SaleItem) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:              s.ID,
		CompanyID:       s.CompanyID,
		CustomerName:    s.CustomerName,
		CustomerEmail:   s.CustomerEmail,
		CustomerAddress: s.CustomerAddress,
		PaymentMethod:   s.PaymentMethod,
		Total:           s.Total,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		Items:           make([]dto.SaleItemResponse, 0, len(items)),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, dto.SaleItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return resp
}
