package repository

import "github.com/tu-usuario/facturador-sri/internal/domain/entity"

// InvoiceRepository define el puerto de persistencia para Invoice, detalles y pagos.
type InvoiceRepository interface {
	Create(invoice *entity.Invoice) error
	CreateDetail(detail *entity.InvoiceDetail) error
	CreatePayment(payment *entity.InvoicePayment) error
	GetByID(id string) (*entity.Invoice, error)
	GetByClaveAcceso(claveAcceso string) (*entity.Invoice, error)
	GetDetailsByInvoiceID(invoiceID string) ([]*entity.InvoiceDetail, error)
	GetPaymentsByInvoiceID(invoiceID string) ([]*entity.InvoicePayment, error)
	// UpdateIfStatus actualiza los campos SRI de la factura solo si su estado
	// actual en DB es expectedStatus (compare-and-set). Devuelve false si el
	// estado ya cambió: el caller lo trata como conflicto de estado, no como crash.
	UpdateIfStatus(invoice *entity.Invoice, expectedStatus string) (bool, error)
	// NextSecuencial reserva y devuelve el siguiente secuencial (9 dígitos) para
	// la terna emisor+establecimiento+punto de emisión. Debe ser seguro ante
	// concurrencia (se apoya en la secuencia de la DB).
	NextSecuencial(companyID, establecimiento, puntoEmision string) (string, error)
	ListByCompany(companyID string, limit, offset int) ([]*entity.Invoice, error)
}
