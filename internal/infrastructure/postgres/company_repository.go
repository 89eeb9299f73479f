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

// Asegura que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementación del puerto CompanyRepository sobre PostgreSQL.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador de persistencia para emisores.
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

const companyColumns = `
	id, razon_social, nombre_comercial, ruc, dir_matriz, dir_establecimiento,
	obligado_contabilidad, contribuyente_especial, ambiente,
	establecimiento, punto_emision, cert_path, cert_password,
	email, status, created_at, updated_at`

// Create persiste un nuevo emisor. El RUC lleva constraint único.
func (r *CompanyRepo) Create(company *entity.Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(context.Background(), query,
		company.ID, company.RazonSocial, nullIfEmpty(company.NombreComercial),
		company.RUC, company.DirMatriz, nullIfEmpty(company.DirEstablecimiento),
		company.ObligadoContabilidad, nullIfEmpty(company.ContribuyenteEspecial), company.Ambiente,
		company.Establecimiento, company.PuntoEmision,
		nullIfEmpty(company.CertPath), nullIfEmpty(company.CertPassword),
		nullIfEmpty(company.Email), company.Status,
		company.CreatedAt, company.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("RUC ya registrado: %w", err)
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// GetByID obtiene un emisor por ID. Devuelve nil sin error si no existe.
func (r *CompanyRepo) GetByID(id string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, id))
}

// GetByRUC obtiene un emisor por RUC.
func (r *CompanyRepo) GetByRUC(ruc string) (*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE ruc = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, ruc))
}

func (r *CompanyRepo) scanOne(row pgx.Row) (*entity.Company, error) {
	var c entity.Company
	var nombreComercial, dirEstab, contribEspecial, certPath, certPassword, email *string
	err := row.Scan(
		&c.ID, &c.RazonSocial, &nombreComercial, &c.RUC, &c.DirMatriz, &dirEstab,
		&c.ObligadoContabilidad, &contribEspecial, &c.Ambiente,
		&c.Establecimiento, &c.PuntoEmision, &certPath, &certPassword,
		&email, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	c.NombreComercial = derefStr(nombreComercial)
	c.DirEstablecimiento = derefStr(dirEstab)
	c.ContribuyenteEspecial = derefStr(contribEspecial)
	c.CertPath = derefStr(certPath)
	c.CertPassword = derefStr(certPassword)
	c.Email = derefStr(email)
	return &c, nil
}

// Update actualiza los datos del emisor.
func (r *CompanyRepo) Update(company *entity.Company) error {
	query := `
		UPDATE companies
		SET razon_social = $2, nombre_comercial = $3, dir_matriz = $4,
		    dir_establecimiento = $5, obligado_contabilidad = $6,
		    contribuyente_especial = $7, ambiente = $8,
		    establecimiento = $9, punto_emision = $10,
		    cert_path = $11, cert_password = $12,
		    email = $13, status = $14, updated_at = $15
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		company.ID, company.RazonSocial, nullIfEmpty(company.NombreComercial), company.DirMatriz,
		nullIfEmpty(company.DirEstablecimiento), company.ObligadoContabilidad,
		nullIfEmpty(company.ContribuyenteEspecial), company.Ambiente,
		company.Establecimiento, company.PuntoEmision,
		nullIfEmpty(company.CertPath), nullIfEmpty(company.CertPassword),
		nullIfEmpty(company.Email), company.Status, company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

// List lista emisores paginados.
func (r *CompanyRepo) List(limit, offset int) ([]*entity.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(context.Background(), query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()
	var list []*entity.Company
	for rows.Next() {
		var c entity.Company
		var nombreComercial, dirEstab, contribEspecial, certPath, certPassword, email *string
		if err := rows.Scan(
			&c.ID, &c.RazonSocial, &nombreComercial, &c.RUC, &c.DirMatriz, &dirEstab,
			&c.ObligadoContabilidad, &contribEspecial, &c.Ambiente,
			&c.Establecimiento, &c.PuntoEmision, &certPath, &certPassword,
			&email, &c.Status, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		c.NombreComercial = derefStr(nombreComercial)
		c.DirEstablecimiento = derefStr(dirEstab)
		c.ContribuyenteEspecial = derefStr(contribEspecial)
		c.CertPath = derefStr(certPath)
		c.CertPassword = derefStr(certPassword)
		c.Email = derefStr(email)
		list = append(list, &c)
	}
	return list, rows.Err()
}
