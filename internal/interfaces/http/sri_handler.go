package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturador-sri/internal/application/billing"
	"github.com/tu-usuario/facturador-sri/internal/application/dto"
	"github.com/tu-usuario/facturador-sri/internal/domain"
)

// SRIHandler expone diagnósticos operativos del canal SRI: estado del
// certificado de firma y la bitácora global del emisor.
type SRIHandler struct {
	certUC *billing.CertificateUseCase
	logsUC *billing.SubmissionLogUseCase
}

// NewSRIHandler construye el handler.
func NewSRIHandler(certUC *billing.CertificateUseCase, logsUC *billing.SubmissionLogUseCase) *SRIHandler {
	return &SRIHandler{certUC: certUC, logsUC: logsUC}
}

// Certificado inspecciona el certificado de firma del emisor del token:
// vigencia, emisor, días por vencer. No firma nada.
// GET /api/sri/certificado
func (h *SRIHandler) Certificado(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	info, err := h.certUC.Inspect(companyID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "emisor no encontrado"})
		case errors.Is(err, domain.ErrCertificate):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CERTIFICATE", Message: err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
	}
	return c.JSON(info)
}

// Bitacora lista los registros SRI más recientes del emisor del token.
// GET /api/sri/bitacora?limit=50&offset=0
func (h *SRIHandler) Bitacora(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	logs, err := h.logsUC.ListByCompany(companyID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(logs)
}
