package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturador-sri/internal/application/billing"
	"github.com/tu-usuario/facturador-sri/internal/application/usecase"
)

// Roles de la API. "consulta" solo lee; "facturador" además emite y reprocesa;
// "admin" también administra emisores.
const (
	RoleAdmin      = "admin"
	RoleFacturador = "facturador"
	RoleConsulta   = "consulta"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CompanyUC     *usecase.CompanyUseCase
	CustomerUC    *billing.CustomerUseCase
	CreateInvoice *billing.CreateInvoiceUseCase
	Orchestrator  *billing.SRIOrchestrator
	LogsUC        *billing.SubmissionLogUseCase
	CertUC        *billing.CertificateUseCase
	JWTSecret     string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	anyRole := RequireRole(RoleAdmin, RoleFacturador, RoleConsulta)
	facturacion := RequireRole(RoleAdmin, RoleFacturador)
	admin := RequireRole(RoleAdmin)

	// Companies (emisores)
	companies := protected.Group("/companies")
	companyHandler := NewCompanyHandler(deps.CompanyUC)
	companies.Get("/", anyRole, companyHandler.List)
	companies.Post("/", admin, companyHandler.Create)
	companies.Get("/:id", anyRole, companyHandler.GetByID)
	companies.Put("/:id", admin, companyHandler.Update)

	// Customers (compradores)
	customers := protected.Group("/customers")
	customerHandler := NewCustomerHandler(deps.CustomerUC)
	customers.Post("/", facturacion, customerHandler.Create)
	customers.Get("/", anyRole, customerHandler.List)
	customers.Get("/:id", anyRole, customerHandler.GetByID)
	customers.Put("/:id", facturacion, customerHandler.Update)
	customers.Delete("/:id", admin, customerHandler.Delete)

	// Invoices (ciclo de vida SRI)
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.CreateInvoice, deps.Orchestrator, deps.LogsUC)
	invoices.Post("/", facturacion, invoiceHandler.Create)
	invoices.Get("/", anyRole, invoiceHandler.List)
	invoices.Get("/clave/:clave", anyRole, invoiceHandler.GetByClaveAcceso)
	invoices.Get("/:id", anyRole, invoiceHandler.GetByID)
	invoices.Get("/:id/status", anyRole, invoiceHandler.Status)
	invoices.Get("/:id/logs", anyRole, invoiceHandler.Logs)
	invoices.Post("/:id/reprocess", facturacion, invoiceHandler.Reprocess)

	// Diagnóstico del canal SRI
	sriGroup := protected.Group("/sri")
	sriHandler := NewSRIHandler(deps.CertUC, deps.LogsUC)
	sriGroup.Get("/certificado", anyRole, sriHandler.Certificado)
	sriGroup.Get("/bitacora", anyRole, sriHandler.Bitacora)
}
