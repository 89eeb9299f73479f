package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/facturador-sri/internal/application/dto"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/domain/repository"
	domainsri "github.com/tu-usuario/facturador-sri/internal/domain/sri"
	"github.com/tu-usuario/facturador-sri/pkg/logger"
)

// CreateInvoiceUseCase emite una factura: reserva el secuencial, genera la
// clave de acceso y persiste cabecera, líneas y pagos en una sola transacción.
// La factura nace en PENDING; la firma y el envío al SRI corren aparte
// (SRIOrchestrator).
type CreateInvoiceUseCase struct {
	txRunner     TxRunner
	invoiceRepo  repository.InvoiceRepository
	customerRepo repository.CustomerRepository
	companyRepo  repository.CompanyRepository
	claveSvc     *domainsri.ClaveAccesoService
	orchestrator *SRIOrchestrator // nil = solo emitir, no procesar
	log          *logger.Logger
}

// NewCreateInvoiceUseCase construye el caso de uso.
func NewCreateInvoiceUseCase(
	txRunner TxRunner,
	invoiceRepo repository.InvoiceRepository,
	customerRepo repository.CustomerRepository,
	companyRepo repository.CompanyRepository,
	claveSvc *domainsri.ClaveAccesoService,
	orchestrator *SRIOrchestrator,
	log *logger.Logger,
) *CreateInvoiceUseCase {
	return &CreateInvoiceUseCase{
		txRunner:     txRunner,
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		companyRepo:  companyRepo,
		claveSvc:     claveSvc,
		orchestrator: orchestrator,
		log:          log,
	}
}

// CreateInvoice valida los datos, arma la factura y la persiste en PENDING.
// La reserva del secuencial ocurre dentro de la transacción: dos emisiones
// concurrentes nunca comparten secuencial ni clave de acceso.
func (uc *CreateInvoiceUseCase) CreateInvoice(ctx context.Context, companyID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if in.CustomerID == "" || len(in.Items) == 0 || len(in.Payments) == 0 {
		return nil, domain.ErrInvalidInput
	}

	customer, err := uc.customerRepo.GetByID(in.CustomerID)
	if err != nil || customer == nil {
		return nil, domain.ErrNotFound
	}
	if customer.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	company, err := uc.companyRepo.GetByID(companyID)
	if err != nil || company == nil {
		return nil, domain.ErrNotFound
	}

	now := time.Now()

	// Armar líneas con montos derivados.
	details := make([]*entity.InvoiceDetail, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Descripcion == "" || !item.Cantidad.IsPositive() || item.PrecioUnitario.IsNegative() {
			return nil, domain.ErrInvalidInput
		}
		d := &entity.InvoiceDetail{
			ID:              uuid.New().String(),
			CodigoPrincipal: item.CodigoPrincipal,
			Descripcion:     item.Descripcion,
			Cantidad:        item.Cantidad,
			PrecioUnitario:  item.PrecioUnitario,
			Descuento:       item.Descuento,
			TarifaIVA:       item.TarifaIVA,
			TarifaICE:       item.TarifaICE,
		}
		d.RecomputeLineAmounts()
		details = append(details, d)
	}

	payments := make([]*entity.InvoicePayment, 0, len(in.Payments))
	for _, p := range in.Payments {
		payments = append(payments, &entity.InvoicePayment{
			ID:           uuid.New().String(),
			FormaPago:    p.FormaPago,
			Total:        p.Total,
			Plazo:        p.Plazo,
			UnidadTiempo: p.UnidadTiempo,
		})
	}

	inv := &entity.Invoice{
		ID:              uuid.New().String(),
		CompanyID:       companyID,
		CustomerID:      customer.ID,
		Establecimiento: company.Establecimiento,
		PuntoEmision:    company.PuntoEmision,
		FechaEmision:    now,
		Propina:         in.Propina,
		Status:          entity.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inv.RecomputeTotals(details)

	// Validación de dominio completa antes de tocar la DB.
	if err := domainsri.ValidateInvoice(inv, details, payments, customer); err != nil {
		return nil, err
	}
	// Pagos que no igualan el total se aceptan pero quedan registrados.
	if sumPagos := domainsri.SumPayments(payments); !sumPagos.Equal(inv.ImporteTotal) {
		uc.log.Warn().
			Str("company_id", companyID).
			Str("suma_pagos", sumPagos.String()).
			Str("importe_total", inv.ImporteTotal.String()).
			Msg("los pagos declarados no igualan el importe total de la factura")
	}

	err = uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.CustomerRepository,
		_ repository.CompanyRepository,
	) error {
		// 1) Secuencial reservado en la tx: se pierde con el rollback si algo falla.
		secuencial, err := invoiceRepo.NextSecuencial(companyID, inv.Establecimiento, inv.PuntoEmision)
		if err != nil {
			return err
		}
		inv.Secuencial = secuencial

		// 2) Clave de acceso (49 dígitos, inmutable desde aquí).
		clave, err := uc.claveSvc.Generate(&domainsri.ClaveAccesoParams{
			FechaEmision:    inv.FechaEmision,
			RUC:             company.RUC,
			Ambiente:        company.Ambiente,
			Establecimiento: inv.Establecimiento,
			PuntoEmision:    inv.PuntoEmision,
			Secuencial:      inv.Secuencial,
		})
		if err != nil {
			return err
		}
		inv.ClaveAcceso = clave

		// 3) Persistencia de cabecera, líneas y pagos.
		if err := invoiceRepo.Create(inv); err != nil {
			return err
		}
		for _, d := range details {
			d.InvoiceID = inv.ID
			if err := invoiceRepo.CreateDetail(d); err != nil {
				return err
			}
		}
		for _, p := range payments {
			p.InvoiceID = inv.ID
			if err := invoiceRepo.CreatePayment(p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("invoice_id", inv.ID).
		Str("serie", inv.Serie()).
		Str("clave_acceso", inv.ClaveAcceso).
		Msg("factura emitida en PENDING")

	if in.Process && uc.orchestrator != nil {
		uc.orchestrator.ProcessAsync(inv.ID)
	}

	return toInvoiceResponse(inv, customer.RazonSocial, details, payments), nil
}

// GetInvoice obtiene una factura por ID con su detalle completo.
func (uc *CreateInvoiceUseCase) GetInvoice(ctx context.Context, companyID, id string) (*dto.InvoiceResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(id)
	if err != nil || inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	details, err := uc.invoiceRepo.GetDetailsByInvoiceID(id)
	if err != nil {
		return nil, err
	}
	payments, err := uc.invoiceRepo.GetPaymentsByInvoiceID(id)
	if err != nil {
		return nil, err
	}
	customerName := ""
	if customer, _ := uc.customerRepo.GetByID(inv.CustomerID); customer != nil {
		customerName = customer.RazonSocial
	}
	return toInvoiceResponse(inv, customerName, details, payments), nil
}

// GetInvoiceByClaveAcceso obtiene una factura a partir de su clave de acceso.
// La clave es pública (viaja en el comprobante impreso), así que la búsqueda
// exige además que la factura pertenezca al emisor del token.
func (uc *CreateInvoiceUseCase) GetInvoiceByClaveAcceso(ctx context.Context, companyID, claveAcceso string) (*dto.InvoiceResponse, error) {
	if err := domainsri.Validate(claveAcceso); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	inv, err := uc.invoiceRepo.GetByClaveAcceso(claveAcceso)
	if err != nil || inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return uc.GetInvoice(ctx, companyID, inv.ID)
}

// ListInvoices lista las facturas del emisor.
func (uc *CreateInvoiceUseCase) ListInvoices(ctx context.Context, companyID string, limit, offset int) ([]*dto.InvoiceResponse, error) {
	invoices, err := uc.invoiceRepo.ListByCompany(companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv, "", nil, nil))
	}
	return out, nil
}

func toInvoiceResponse(inv *entity.Invoice, customerName string, details []*entity.InvoiceDetail, payments []*entity.InvoicePayment) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:                 inv.ID,
		CompanyID:          inv.CompanyID,
		CustomerID:         inv.CustomerID,
		CustomerName:       customerName,
		Serie:              inv.Serie(),
		FechaEmision:       inv.FechaEmision.Format("02/01/2006"),
		ClaveAcceso:        inv.ClaveAcceso,
		Subtotal:           inv.SubtotalSinImpuestos,
		TotalDescuento:     inv.TotalDescuento,
		ValorIVA:           inv.ValorIVA,
		ValorICE:           inv.ValorICE,
		Propina:            inv.Propina,
		ImporteTotal:       inv.ImporteTotal,
		Status:             inv.Status,
		NumeroAutorizacion: inv.NumeroAutorizacion,
		Details:            make([]dto.InvoiceDetailResponse, 0, len(details)),
	}
	if inv.FechaAutorizacion != nil {
		resp.FechaAutorizacion = inv.FechaAutorizacion.Format(time.RFC3339)
	}
	for _, d := range details {
		resp.Details = append(resp.Details, dto.InvoiceDetailResponse{
			ID:              d.ID,
			CodigoPrincipal: d.CodigoPrincipal,
			Descripcion:     d.Descripcion,
			Cantidad:        d.Cantidad,
			PrecioUnitario:  d.PrecioUnitario,
			Descuento:       d.Descuento,
			Subtotal:        d.Subtotal,
			TarifaIVA:       d.TarifaIVA,
			ValorIVA:        d.ValorIVA,
		})
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, dto.InvoicePaymentInput{
			FormaPago:    p.FormaPago,
			Total:        p.Total,
			Plazo:        p.Plazo,
			UnidadTiempo: p.UnidadTiempo,
		})
	}
	return resp
}
