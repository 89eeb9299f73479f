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

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo implementación del puerto CustomerRepository sobre PostgreSQL.
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

const customerColumns = `
	id, company_id, razon_social, identificacion, tipo_identificacion,
	email, telefono, direccion, created_at, updated_at`

// Create persiste un comprador. La pareja (company_id, identificacion) es única.
func (r *CustomerRepo) Create(customer *entity.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(context.Background(), query,
		customer.ID, customer.CompanyID, customer.RazonSocial,
		customer.Identificacion, customer.TipoIdentificacion,
		nullIfEmpty(customer.Email), nullIfEmpty(customer.Telefono), nullIfEmpty(customer.Direccion),
		customer.CreatedAt, customer.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("identificación ya registrada para el emisor: %w", err)
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// GetByID obtiene un comprador por ID. Devuelve nil sin error si no existe.
func (r *CustomerRepo) GetByID(id string) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, id))
}

// GetByCompanyAndIdentificacion busca el comprador por identificación dentro del emisor.
func (r *CustomerRepo) GetByCompanyAndIdentificacion(companyID, identificacion string) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE company_id = $1 AND identificacion = $2`
	return r.scanOne(r.q.QueryRow(context.Background(), query, companyID, identificacion))
}

func (r *CustomerRepo) scanOne(row pgx.Row) (*entity.Customer, error) {
	var c entity.Customer
	var email, telefono, direccion *string
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.RazonSocial, &c.Identificacion, &c.TipoIdentificacion,
		&email, &telefono, &direccion, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.Email = derefStr(email)
	c.Telefono = derefStr(telefono)
	c.Direccion = derefStr(direccion)
	return &c, nil
}

// ListByCompany lista compradores del emisor, paginados.
func (r *CustomerRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.Customer, error) {
	query := `SELECT ` + customerColumns + `
		FROM customers WHERE company_id = $1
		ORDER BY razon_social LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(context.Background(), query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	var list []*entity.Customer
	for rows.Next() {
		var c entity.Customer
		var email, telefono, direccion *string
		if err := rows.Scan(
			&c.ID, &c.CompanyID, &c.RazonSocial, &c.Identificacion, &c.TipoIdentificacion,
			&email, &telefono, &direccion, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		c.Email = derefStr(email)
		c.Telefono = derefStr(telefono)
		c.Direccion = derefStr(direccion)
		list = append(list, &c)
	}
	return list, rows.Err()
}

// Update actualiza los datos del comprador.
func (r *CustomerRepo) Update(customer *entity.Customer) error {
	query := `
		UPDATE customers
		SET razon_social = $2, identificacion = $3, tipo_identificacion = $4,
		    email = $5, telefono = $6, direccion = $7, updated_at = $8
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		customer.ID, customer.RazonSocial, customer.Identificacion, customer.TipoIdentificacion,
		nullIfEmpty(customer.Email), nullIfEmpty(customer.Telefono), nullIfEmpty(customer.Direccion),
		customer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// Delete elimina un comprador (no borra facturas ya emitidas).
func (r *CustomerRepo) Delete(id string) error {
	_, err := r.q.Exec(context.Background(), `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}
