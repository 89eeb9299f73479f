package billing

import (
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/repository"
	"github.com/tu-usuario/facturador-sri/internal/infrastructure/sri/signer"
)

// CertificateUseCase expone la inspección del certificado de firma del emisor
// para chequeos operativos (vigencia, días por vencer) sin firmar nada.
type CertificateUseCase struct {
	companyRepo repository.CompanyRepository
	cfg         SRIConfig
}

// NewCertificateUseCase construye el caso de uso.
func NewCertificateUseCase(companyRepo repository.CompanyRepository, cfg SRIConfig) *CertificateUseCase {
	return &CertificateUseCase{companyRepo: companyRepo, cfg: cfg}
}

// Inspect carga el certificado del emisor (o el global de la aplicación) y
// devuelve su resumen. Los fallos de carga son domain.ErrCertificate.
func (uc *CertificateUseCase) Inspect(companyID string) (*signer.CertInfo, error) {
	company, err := uc.companyRepo.GetByID(companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	cert, err := loadCompanyCertificate(company, uc.cfg)
	if err != nil {
		return nil, err
	}
	return signer.Inspect(cert)
}
