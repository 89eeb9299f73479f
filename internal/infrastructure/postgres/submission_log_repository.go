package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/domain/repository"
)

var _ repository.SubmissionLogRepository = (*SubmissionLogRepo)(nil)

// SubmissionLogRepo implementación del puerto SubmissionLogRepository.
// La tabla es append-only: este adaptador no expone UPDATE ni DELETE.
type SubmissionLogRepo struct {
	q Querier
}

// NewSubmissionLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSubmissionLogRepository(q Querier) *SubmissionLogRepo {
	return &SubmissionLogRepo{q: q}
}

// Append inserta un registro de la bitácora.
func (r *SubmissionLogRepo) Append(log *entity.SubmissionLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	query := `
		INSERT INTO submission_logs (id, company_id, invoice_id, process, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(context.Background(), query,
		log.ID, log.CompanyID, nullIfEmpty(log.InvoiceID),
		log.Process, log.Outcome, log.Detail, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission log: %w", err)
	}
	return nil
}

// ListByInvoice devuelve la pista de auditoría de una factura en orden cronológico.
func (r *SubmissionLogRepo) ListByInvoice(invoiceID string, limit, offset int) ([]*entity.SubmissionLog, error) {
	query := `
		SELECT id, company_id, COALESCE(invoice_id, ''), process, outcome, detail, created_at
		FROM submission_logs WHERE invoice_id = $1
		ORDER BY created_at LIMIT $2 OFFSET $3`
	return r.list(query, invoiceID, limit, offset)
}

// ListByCompany devuelve la bitácora del emisor, más recientes primero.
func (r *SubmissionLogRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.SubmissionLog, error) {
	query := `
		SELECT id, company_id, COALESCE(invoice_id, ''), process, outcome, detail, created_at
		FROM submission_logs WHERE company_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(query, companyID, limit, offset)
}

func (r *SubmissionLogRepo) list(query, key string, limit, offset int) ([]*entity.SubmissionLog, error) {
	rows, err := r.q.Query(context.Background(), query, key, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list submission logs: %w", err)
	}
	defer rows.Close()
	var list []*entity.SubmissionLog
	for rows.Next() {
		var l entity.SubmissionLog
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.InvoiceID, &l.Process, &l.Outcome, &l.Detail, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission log: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
