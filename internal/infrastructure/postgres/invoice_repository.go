package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, company_id, customer_id, establecimiento, punto_emision, secuencial,
	fecha_emision, clave_acceso,
	subtotal_sin_impuestos, subtotal_0, subtotal_iva, total_descuento,
	valor_iva, valor_ice, propina, importe_total,
	status, numero_autorizacion, fecha_autorizacion, xml_autorizado, xml_firmado,
	created_at, updated_at`

// Create persiste la cabecera de la factura. La terna estab+ptoEmi+secuencial
// y la clave de acceso llevan constraint único en DB.
func (r *InvoiceRepo) Create(invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`
	_, err := r.q.Exec(context.Background(), query,
		invoice.ID, invoice.CompanyID, invoice.CustomerID,
		invoice.Establecimiento, invoice.PuntoEmision, invoice.Secuencial,
		invoice.FechaEmision, invoice.ClaveAcceso,
		invoice.SubtotalSinImpuestos, invoice.Subtotal0, invoice.SubtotalIVA, invoice.TotalDescuento,
		invoice.ValorIVA, invoice.ValorICE, invoice.Propina, invoice.ImporteTotal,
		invoice.Status, nullIfEmpty(invoice.NumeroAutorizacion), invoice.FechaAutorizacion,
		nullIfEmpty(invoice.XMLAutorizado), nullIfEmpty(invoice.XMLFirmado),
		invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("secuencial o clave de acceso ya registrados: %w", err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateDetail persiste una línea de detalle.
func (r *InvoiceRepo) CreateDetail(detail *entity.InvoiceDetail) error {
	if detail.ID == "" {
		detail.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_details (id, invoice_id, codigo_principal, descripcion, cantidad, precio_unitario, descuento, subtotal, tarifa_iva, valor_iva, tarifa_ice, valor_ice)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(context.Background(), query,
		detail.ID, detail.InvoiceID, detail.CodigoPrincipal, detail.Descripcion,
		detail.Cantidad, detail.PrecioUnitario, detail.Descuento, detail.Subtotal,
		detail.TarifaIVA, detail.ValorIVA, detail.TarifaICE, detail.ValorICE,
	)
	if err != nil {
		return fmt.Errorf("insert invoice detail: %w", err)
	}
	return nil
}

// CreatePayment persiste una forma de pago de la factura.
func (r *InvoiceRepo) CreatePayment(payment *entity.InvoicePayment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_payments (id, invoice_id, forma_pago, total, plazo, unidad_tiempo)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(context.Background(), query,
		payment.ID, payment.InvoiceID, payment.FormaPago, payment.Total,
		payment.Plazo, nullIfEmpty(payment.UnidadTiempo),
	)
	if err != nil {
		return fmt.Errorf("insert invoice payment: %w", err)
	}
	return nil
}

// GetByID obtiene una factura completa por ID. Devuelve nil sin error si no existe.
func (r *InvoiceRepo) GetByID(id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, id))
}

// GetByClaveAcceso obtiene una factura por su clave de acceso (única global).
func (r *InvoiceRepo) GetByClaveAcceso(claveAcceso string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE clave_acceso = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, claveAcceso))
}

func (r *InvoiceRepo) scanOne(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var numeroAut, xmlAut, xmlFirmado *string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.CustomerID,
		&inv.Establecimiento, &inv.PuntoEmision, &inv.Secuencial,
		&inv.FechaEmision, &inv.ClaveAcceso,
		&inv.SubtotalSinImpuestos, &inv.Subtotal0, &inv.SubtotalIVA, &inv.TotalDescuento,
		&inv.ValorIVA, &inv.ValorICE, &inv.Propina, &inv.ImporteTotal,
		&inv.Status, &numeroAut, &inv.FechaAutorizacion, &xmlAut, &xmlFirmado,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv.NumeroAutorizacion = derefStr(numeroAut)
	inv.XMLAutorizado = derefStr(xmlAut)
	inv.XMLFirmado = derefStr(xmlFirmado)
	return &inv, nil
}

// GetDetailsByInvoiceID obtiene todas las líneas de una factura.
func (r *InvoiceRepo) GetDetailsByInvoiceID(invoiceID string) ([]*entity.InvoiceDetail, error) {
	query := `
		SELECT id, invoice_id, codigo_principal, descripcion, cantidad, precio_unitario, descuento, subtotal, tarifa_iva, valor_iva, tarifa_ice, valor_ice
		FROM invoice_details WHERE invoice_id = $1 ORDER BY id`
	rows, err := r.q.Query(context.Background(), query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice details: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceDetail
	for rows.Next() {
		var d entity.InvoiceDetail
		if err := rows.Scan(&d.ID, &d.InvoiceID, &d.CodigoPrincipal, &d.Descripcion,
			&d.Cantidad, &d.PrecioUnitario, &d.Descuento, &d.Subtotal,
			&d.TarifaIVA, &d.ValorIVA, &d.TarifaICE, &d.ValorICE); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}

// GetPaymentsByInvoiceID obtiene las formas de pago de una factura.
func (r *InvoiceRepo) GetPaymentsByInvoiceID(invoiceID string) ([]*entity.InvoicePayment, error) {
	query := `
		SELECT id, invoice_id, forma_pago, total, plazo, COALESCE(unidad_tiempo, '')
		FROM invoice_payments WHERE invoice_id = $1 ORDER BY id`
	rows, err := r.q.Query(context.Background(), query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice payments: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoicePayment
	for rows.Next() {
		var p entity.InvoicePayment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.FormaPago, &p.Total, &p.Plazo, &p.UnidadTiempo); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// UpdateIfStatus actualiza los campos SRI solo si el estado actual en DB es
// expectedStatus (compare-and-set). RowsAffected == 0 significa que otro
// proceso ya movió el estado: el caller decide si es conflicto.
func (r *InvoiceRepo) UpdateIfStatus(invoice *entity.Invoice, expectedStatus string) (bool, error) {
	query := `
		UPDATE invoices
		SET status              = $3,
		    numero_autorizacion = COALESCE($4, numero_autorizacion),
		    fecha_autorizacion  = COALESCE($5, fecha_autorizacion),
		    xml_autorizado      = COALESCE($6, xml_autorizado),
		    xml_firmado         = COALESCE($7, xml_firmado),
		    updated_at          = $8
		WHERE id = $1 AND status = $2`
	tag, err := r.q.Exec(context.Background(), query,
		invoice.ID, expectedStatus, invoice.Status,
		nullIfEmpty(invoice.NumeroAutorizacion), invoice.FechaAutorizacion,
		nullIfEmpty(invoice.XMLAutorizado), nullIfEmpty(invoice.XMLFirmado),
		invoice.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update invoice: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// NextSecuencial reserva el siguiente secuencial de la terna con un upsert
// atómico sobre invoice_sequences. Seguro ante emisión concurrente.
func (r *InvoiceRepo) NextSecuencial(companyID, establecimiento, puntoEmision string) (string, error) {
	query := `
		INSERT INTO invoice_sequences (company_id, establecimiento, punto_emision, last_value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (company_id, establecimiento, punto_emision)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`
	var next int64
	err := r.q.QueryRow(context.Background(), query, companyID, establecimiento, puntoEmision).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("next secuencial: %w", err)
	}
	if next > 999999999 {
		return "", fmt.Errorf("secuencial agotado para %s-%s", establecimiento, puntoEmision)
	}
	return fmt.Sprintf("%09d", next), nil
}

// ListByCompany lista facturas del emisor, más recientes primero.
func (r *InvoiceRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices WHERE company_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(context.Background(), query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		var inv entity.Invoice
		var numeroAut, xmlAut, xmlFirmado *string
		if err := rows.Scan(
			&inv.ID, &inv.CompanyID, &inv.CustomerID,
			&inv.Establecimiento, &inv.PuntoEmision, &inv.Secuencial,
			&inv.FechaEmision, &inv.ClaveAcceso,
			&inv.SubtotalSinImpuestos, &inv.Subtotal0, &inv.SubtotalIVA, &inv.TotalDescuento,
			&inv.ValorIVA, &inv.ValorICE, &inv.Propina, &inv.ImporteTotal,
			&inv.Status, &numeroAut, &inv.FechaAutorizacion, &xmlAut, &xmlFirmado,
			&inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.NumeroAutorizacion = derefStr(numeroAut)
		inv.XMLAutorizado = derefStr(xmlAut)
		inv.XMLFirmado = derefStr(xmlFirmado)
		list = append(list, &inv)
	}
	return list, rows.Err()
}
