// Package usecase contiene los casos de uso administrativos (emisores).
package usecase

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

// CompanyUseCase aplica reglas de negocio para emisores.
type CompanyUseCase struct {
	repo repository.CompanyRepository
}

// NewCompanyUseCase construye el caso de uso con el puerto de persistencia.
func NewCompanyUseCase(repo repository.CompanyRepository) *CompanyUseCase {
	return &CompanyUseCase{repo: repo}
}

// Create registra un emisor. Valida el RUC con su dígito verificador y aplica
// los valores por defecto de emisión (ambiente pruebas, serie 001-001).
// Devuelve domain.ErrDuplicate si el RUC ya está registrado.
func (uc *CompanyUseCase) Create(in dto.CreateCompanyRequest) (*dto.CompanyResponse, error) {
	if in.RazonSocial == "" || in.RUC == "" || in.DirMatriz == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := pkgsri.ValidateRUC(in.RUC); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if in.Ambiente != "" && in.Ambiente != pkgsri.AmbientePruebas && in.Ambiente != pkgsri.AmbienteProduccion {
		return nil, fmt.Errorf("%w: ambiente %q desconocido", domain.ErrValidation, in.Ambiente)
	}
	existing, _ := uc.repo.GetByRUC(in.RUC)
	if existing != nil {
		return nil, domain.ErrDuplicate
	}

	now := time.Now()
	company := &entity.Company{
		ID:                    uuid.New().String(),
		RazonSocial:           in.RazonSocial,
		NombreComercial:       in.NombreComercial,
		RUC:                   in.RUC,
		DirMatriz:             in.DirMatriz,
		DirEstablecimiento:    in.DirEstablecimiento,
		ObligadoContabilidad:  in.ObligadoContabilidad,
		ContribuyenteEspecial: in.ContribuyenteEspecial,
		Ambiente:              defaultStr(in.Ambiente, pkgsri.AmbientePruebas),
		Establecimiento:       defaultStr(in.Establecimiento, "001"),
		PuntoEmision:          defaultStr(in.PuntoEmision, "001"),
		CertPath:              in.CertPath,
		CertPassword:          in.CertPassword,
		Email:                 in.Email,
		Status:                "active",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := uc.repo.Create(company); err != nil {
		return nil, err
	}
	return companyToResponse(company), nil
}

// GetByID obtiene un emisor por ID.
func (uc *CompanyUseCase) GetByID(id string) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	return companyToResponse(company), nil
}

// Update actualiza los datos del emisor (incluido el certificado de firma).
func (uc *CompanyUseCase) Update(id string, in dto.CreateCompanyRequest) (*dto.CompanyResponse, error) {
	company, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	if in.RazonSocial != "" {
		company.RazonSocial = in.RazonSocial
	}
	if in.NombreComercial != "" {
		company.NombreComercial = in.NombreComercial
	}
	if in.DirMatriz != "" {
		company.DirMatriz = in.DirMatriz
	}
	if in.DirEstablecimiento != "" {
		company.DirEstablecimiento = in.DirEstablecimiento
	}
	if in.Ambiente != "" {
		if in.Ambiente != pkgsri.AmbientePruebas && in.Ambiente != pkgsri.AmbienteProduccion {
			return nil, fmt.Errorf("%w: ambiente %q desconocido", domain.ErrValidation, in.Ambiente)
		}
		company.Ambiente = in.Ambiente
	}
	if in.Establecimiento != "" {
		company.Establecimiento = in.Establecimiento
	}
	if in.PuntoEmision != "" {
		company.PuntoEmision = in.PuntoEmision
	}
	if in.CertPath != "" {
		company.CertPath = in.CertPath
		company.CertPassword = in.CertPassword
	}
	if in.Email != "" {
		company.Email = in.Email
	}
	company.ObligadoContabilidad = in.ObligadoContabilidad
	company.ContribuyenteEspecial = in.ContribuyenteEspecial
	company.UpdatedAt = time.Now()
	if err := uc.repo.Update(company); err != nil {
		return nil, err
	}
	return companyToResponse(company), nil
}

// List lista emisores con paginación.
func (uc *CompanyUseCase) List(limit, offset int) (*dto.CompanyListResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := uc.repo.List(limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.CompanyResponse, 0, len(list))
	for _, c := range list {
		items = append(items, *companyToResponse(c))
	}
	return &dto.CompanyListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func companyToResponse(c *entity.Company) *dto.CompanyResponse {
	return &dto.CompanyResponse{
		ID:                    c.ID,
		RazonSocial:           c.RazonSocial,
		NombreComercial:       c.NombreComercial,
		RUC:                   c.RUC,
		DirMatriz:             c.DirMatriz,
		DirEstablecimiento:    c.DirEstablecimiento,
		ObligadoContabilidad:  c.ObligadoContabilidad,
		ContribuyenteEspecial: c.ContribuyenteEspecial,
		Ambiente:              c.Ambiente,
		Establecimiento:       c.Establecimiento,
		PuntoEmision:          c.PuntoEmision,
		Email:                 c.Email,
		Status:                c.Status,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}
