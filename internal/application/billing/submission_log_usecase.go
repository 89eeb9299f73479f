package billing

import (
	"time"

	"github.com/tu-usuario/facturador-sri/internal/application/dto"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/domain/repository"
)

// SubmissionLogUseCase consulta la bitácora de interacciones con el SRI.
// La bitácora es de solo lectura desde la API: los registros los crea el
// orquestador y nunca se modifican ni borran.
type SubmissionLogUseCase struct {
	invoiceRepo repository.InvoiceRepository
	logRepo     repository.SubmissionLogRepository
}

// NewSubmissionLogUseCase construye el caso de uso.
func NewSubmissionLogUseCase(invoiceRepo repository.InvoiceRepository, logRepo repository.SubmissionLogRepository) *SubmissionLogUseCase {
	return &SubmissionLogUseCase{invoiceRepo: invoiceRepo, logRepo: logRepo}
}

// ListByInvoice lista la pista de auditoría de una factura en orden
// cronológico, comprobando que la factura pertenezca al emisor del token.
func (uc *SubmissionLogUseCase) ListByInvoice(companyID, invoiceID string, limit, offset int) ([]*dto.SubmissionLogResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := uc.logRepo.ListByInvoice(invoiceID, limit, offset)
	if err != nil {
		return nil, err
	}
	return logsToResponse(logs), nil
}

// ListByCompany lista los registros más recientes del emisor.
func (uc *SubmissionLogUseCase) ListByCompany(companyID string, limit, offset int) ([]*dto.SubmissionLogResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := uc.logRepo.ListByCompany(companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	return logsToResponse(logs), nil
}

func logsToResponse(logs []*entity.SubmissionLog) []*dto.SubmissionLogResponse {
	out := make([]*dto.SubmissionLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, &dto.SubmissionLogResponse{
			ID:        l.ID,
			InvoiceID: l.InvoiceID,
			Process:   l.Process,
			Outcome:   l.Outcome,
			Detail:    l.Detail,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
