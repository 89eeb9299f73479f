package repository

import "github.com/tu-usuario/facturador-sri/internal/domain/entity"

// SubmissionLogRepository define el puerto para la bitácora de interacciones
// con el SRI. Es append-only: solo inserción y lectura, nunca update ni delete.
type SubmissionLogRepository interface {
	Append(log *entity.SubmissionLog) error
	ListByInvoice(invoiceID string, limit, offset int) ([]*entity.SubmissionLog, error)
	ListByCompany(companyID string, limit, offset int) ([]*entity.SubmissionLog, error)
}
