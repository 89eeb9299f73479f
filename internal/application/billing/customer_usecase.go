package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/facturador-sri/internal/application/dto"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/domain/repository"
	pkgsri "github.com/tu-usuario/facturador-sri/pkg/sri"
)

// CustomerUseCase casos de uso para compradores (receptores de comprobantes).
type CustomerUseCase struct {
	repo repository.CustomerRepository
}

// NewCustomerUseCase construye el caso de uso.
func NewCustomerUseCase(repo repository.CustomerRepository) *CustomerUseCase {
	return &CustomerUseCase{repo: repo}
}

// Create registra un comprador. La identificación se valida según su tipo
// (tabla 6 SRI) antes de persistir: un comprador mal identificado produciría
// facturas DEVUELTA en recepción.
func (uc *CustomerUseCase) Create(companyID string, in dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	if in.RazonSocial == "" || in.Identificacion == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := validateIdentificacion(in.TipoIdentificacion, in.Identificacion); err != nil {
		return nil, err
	}
	existing, _ := uc.repo.GetByCompanyAndIdentificacion(companyID, in.Identificacion)
	if existing != nil {
		return nil, domain.ErrDuplicate
	}
	now := time.Now()
	customer := &entity.Customer{
		ID:                 uuid.New().String(),
		CompanyID:          companyID,
		RazonSocial:        in.RazonSocial,
		Identificacion:     in.Identificacion,
		TipoIdentificacion: in.TipoIdentificacion,
		Email:              in.Email,
		Telefono:           in.Telefono,
		Direccion:          in.Direccion,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := uc.repo.Create(customer); err != nil {
		return nil, err
	}
	return customerToResponse(customer), nil
}

// GetByID obtiene un comprador de la empresa.
func (uc *CustomerUseCase) GetByID(companyID, id string) (*dto.CustomerResponse, error) {
	customer, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	if customer.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return customerToResponse(customer), nil
}

// List lista compradores de la empresa.
func (uc *CustomerUseCase) List(companyID string, limit, offset int) ([]*dto.CustomerResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := uc.repo.ListByCompany(companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.CustomerResponse, 0, len(list))
	for _, c := range list {
		out = append(out, customerToResponse(c))
	}
	return out, nil
}

// Update actualiza los datos de contacto y la identificación del comprador.
func (uc *CustomerUseCase) Update(companyID, id string, in dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	customer, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	if customer.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	if in.RazonSocial == "" || in.Identificacion == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := validateIdentificacion(in.TipoIdentificacion, in.Identificacion); err != nil {
		return nil, err
	}
	customer.RazonSocial = in.RazonSocial
	customer.Identificacion = in.Identificacion
	customer.TipoIdentificacion = in.TipoIdentificacion
	customer.Email = in.Email
	customer.Telefono = in.Telefono
	customer.Direccion = in.Direccion
	customer.UpdatedAt = time.Now()
	if err := uc.repo.Update(customer); err != nil {
		return nil, err
	}
	return customerToResponse(customer), nil
}

// Delete elimina un comprador de la empresa.
func (uc *CustomerUseCase) Delete(companyID, id string) error {
	customer, err := uc.repo.GetByID(id)
	if err != nil {
		return err
	}
	if customer == nil {
		return domain.ErrNotFound
	}
	if customer.CompanyID != companyID {
		return domain.ErrForbidden
	}
	return uc.repo.Delete(id)
}

func validateIdentificacion(tipo, identificacion string) error {
	switch tipo {
	case pkgsri.IdentificationTypeRUC:
		if err := pkgsri.ValidateRUC(identificacion); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	case pkgsri.IdentificationTypeCedula:
		if err := pkgsri.ValidateCedula(identificacion); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	case pkgsri.IdentificationTypePasaporte:
		// Pasaportes extranjeros no tienen dígito verificador.
	case pkgsri.IdentificationTypeConsumidorFinal:
		if identificacion != pkgsri.ConsumidorFinalID {
			return fmt.Errorf("%w: consumidor final debe identificarse como %s", domain.ErrValidation, pkgsri.ConsumidorFinalID)
		}
	default:
		return fmt.Errorf("%w: tipo de identificación desconocido %q", domain.ErrValidation, tipo)
	}
	return nil
}

func customerToResponse(c *entity.Customer) *dto.CustomerResponse {
	return &dto.CustomerResponse{
		ID:                 c.ID,
		CompanyID:          c.CompanyID,
		RazonSocial:        c.RazonSocial,
		Identificacion:     c.Identificacion,
		TipoIdentificacion: c.TipoIdentificacion,
		Email:              c.Email,
		Telefono:           c.Telefono,
		Direccion:          c.Direccion,
	}
}
