package billing

import (
	"context"
	"time"

	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/domain/repository"
)

// TxRunner puerto para ejecutar casos de uso dentro de una transacción con
// repos atados a la tx. La implementación vive en infrastructure/postgres.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		customerRepo repository.CustomerRepository,
		companyRepo repository.CompanyRepository,
	) error) error
}

// Notifier puerto de notificación al comprador cuando su comprobante queda
// autorizado. Un fallo de notificación se registra en bitácora pero nunca
// altera el estado de la factura.
type Notifier interface {
	SendAuthorized(ctx context.Context, company *entity.Company, customer *entity.Customer, invoice *entity.Invoice, xmlAutorizado []byte) error
}

// TaskScheduler puerto para diferir trabajo (reintentos y polling de
// autorización). La implementación vive en application/scheduler.
type TaskScheduler interface {
	Schedule(delay time.Duration, task func(ctx context.Context))
}
