package billing

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/domain/repository"
	domainsri "github.com/tu-usuario/facturador-sri/internal/domain/sri"
	infrasri "github.com/tu-usuario/facturador-sri/internal/infrastructure/sri"
	"github.com/tu-usuario/facturador-sri/internal/infrastructure/sri/signer"
	"github.com/tu-usuario/facturador-sri/pkg/logger"
	pkgsri "github.com/tu-usuario/facturador-sri/pkg/sri"
)

// SRIConfig parámetros del ciclo SRI para los casos de uso.
type SRIConfig struct {
	Ambiente     string // default cuando el emisor no define el suyo
	CertPath     string // fallback si el emisor no tiene certificado propio
	CertPassword string

	SubmitPolicy RetryPolicy // reintentos de envío a recepción ante ErrTransport
	AuthPolicy   RetryPolicy // consultas de autorización (backoff lineal)
}

// SRIOrchestrator orquesta el ciclo completo del comprobante:
//
//	PENDING → validar → XML → firmar → recepción → SUBMITTED → autorización → AUTHORIZED | REJECTED
//
// Cada interacción con el SRI (exitosa o no) agrega un registro a la bitácora
// append-only. Las transiciones de estado son compare-and-set contra la DB:
// dos procesos concurrentes sobre la misma factura no pueden pisarse, el que
// pierde la carrera registra el conflicto y no hace nada.
type SRIOrchestrator struct {
	invoiceRepo  repository.InvoiceRepository
	companyRepo  repository.CompanyRepository
	customerRepo repository.CustomerRepository
	logRepo      repository.SubmissionLogRepository
	xmlBuilder   *infrasri.XMLBuilderService
	signer       pkgsri.Signer
	client       infrasri.Client
	notifier     Notifier      // nil = sin notificación por correo
	scheduler    TaskScheduler // nil = polling de autorización síncrono
	cfg          SRIConfig
	log          *logger.Logger
}

// NewSRIOrchestrator construye el orquestador con todas sus dependencias.
func NewSRIOrchestrator(
	invoiceRepo repository.InvoiceRepository,
	companyRepo repository.CompanyRepository,
	customerRepo repository.CustomerRepository,
	logRepo repository.SubmissionLogRepository,
	xmlBuilder *infrasri.XMLBuilderService,
	sig pkgsri.Signer,
	client infrasri.Client,
	notifier Notifier,
	scheduler TaskScheduler,
	cfg SRIConfig,
	log *logger.Logger,
) *SRIOrchestrator {
	return &SRIOrchestrator{
		invoiceRepo:  invoiceRepo,
		companyRepo:  companyRepo,
		customerRepo: customerRepo,
		logRepo:      logRepo,
		xmlBuilder:   xmlBuilder,
		signer:       sig,
		client:       client,
		notifier:     notifier,
		scheduler:    scheduler,
		cfg:          cfg,
		log:          log,
	}
}

// ProcessAsync encola el procesamiento de la factura para ejecución inmediata
// fuera del ciclo HTTP. Sin scheduler cae a una goroutine simple.
func (o *SRIOrchestrator) ProcessAsync(invoiceID string) {
	run := func(ctx context.Context) {
		if err := o.ProcessInvoice(ctx, invoiceID); err != nil {
			o.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("procesamiento SRI fallido")
		}
	}
	if o.scheduler != nil {
		o.scheduler.Schedule(0, run)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		run(ctx)
	}()
}

// ProcessInvoice toma una factura PENDING, la valida, construye y firma el
// XML y lo entrega al WS de recepción. Con RECIBIDA la factura pasa a
// SUBMITTED y se programa la consulta de autorización; con DEVUELTA pasa a
// REJECTED (terminal). Los errores de transporte se reintentan según
// SubmitPolicy; agotados los reintentos la factura pasa a REJECTED.
//
// Llamarlo sobre una factura que no está en PENDING es un conflicto de
// estado: se registra y se devuelve ErrStateConflict sin tocar nada.
func (o *SRIOrchestrator) ProcessInvoice(ctx context.Context, invoiceID string) error {
	inv, err := o.invoiceRepo.GetByID(invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return domain.ErrNotFound
	}
	if inv.Status != entity.StatusPending {
		o.logConflict(inv, entity.ProcessSubmit, entity.StatusPending)
		return fmt.Errorf("%w: submit requiere PENDING, estado actual %s", domain.ErrStateConflict, inv.Status)
	}

	company, err := o.companyRepo.GetByID(inv.CompanyID)
	if err != nil || company == nil {
		return fmt.Errorf("emisor %s no encontrado: %w", inv.CompanyID, domain.ErrNotFound)
	}
	customer, err := o.customerRepo.GetByID(inv.CustomerID)
	if err != nil || customer == nil {
		return fmt.Errorf("comprador %s no encontrado: %w", inv.CustomerID, domain.ErrNotFound)
	}
	details, err := o.invoiceRepo.GetDetailsByInvoiceID(invoiceID)
	if err != nil {
		return err
	}
	payments, err := o.invoiceRepo.GetPaymentsByInvoiceID(invoiceID)
	if err != nil {
		return err
	}

	// Validación previa: un dato inválido no llega nunca al WS.
	if err := domainsri.ValidateInvoice(inv, details, payments, customer); err != nil {
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessSubmit, entity.OutcomeError, err.Error())
		return err
	}

	xmlBytes, err := o.xmlBuilder.Build(&infrasri.InvoiceBuildContext{
		Invoice:       inv,
		Company:       company,
		Customer:      customer,
		Details:       details,
		Payments:      payments,
		InfoAdicional: buyerContactFields(customer),
	})
	if err != nil {
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessSubmit, entity.OutcomeError, err.Error())
		return err
	}

	// Firma XAdES. Sin certificado utilizable no hay envío: la factura se
	// queda en PENDING hasta que el operador lo resuelva.
	cert, err := o.loadCertificate(company)
	if err != nil {
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessSubmit, entity.OutcomeError, err.Error())
		return err
	}
	signedXML, err := o.signer.Sign(xmlBytes, cert)
	if err != nil {
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessSubmit, entity.OutcomeError, err.Error())
		return err
	}

	ambiente := o.ambienteFor(company)
	result, err := o.submitWithRetry(ctx, inv, signedXML, ambiente)
	if err != nil {
		if errors.Is(err, domain.ErrTransport) {
			// Reintentos agotados: terminal por agotamiento.
			o.transition(inv, entity.StatusPending, entity.StatusRejected, func(i *entity.Invoice) {
				i.XMLFirmado = string(signedXML)
			})
		}
		return err
	}

	if !result.Received {
		// DEVUELTA: rechazo explícito del protocolo, terminal.
		o.transition(inv, entity.StatusPending, entity.StatusRejected, func(i *entity.Invoice) {
			i.XMLFirmado = string(signedXML)
		})
		return fmt.Errorf("%w: %s", domain.ErrProtocolRejection, result.Messages)
	}

	moved := o.transition(inv, entity.StatusPending, entity.StatusSubmitted, func(i *entity.Invoice) {
		i.XMLFirmado = string(signedXML)
	})
	if !moved {
		return fmt.Errorf("%w: otro proceso movió la factura durante el envío", domain.ErrStateConflict)
	}
	o.log.Info().Str("invoice_id", inv.ID).Str("clave_acceso", inv.ClaveAcceso).Msg("comprobante RECIBIDA, autorización pendiente")

	// Consulta de autorización: diferida si hay scheduler, síncrona si no.
	if o.scheduler != nil {
		o.scheduleAuthorization(inv.ID, 1)
		return nil
	}
	return o.authorizeWithRetry(ctx, inv.ID)
}

// submitWithRetry entrega el comprobante a recepción reintentando solo ante
// ErrTransport. Cada intento, bueno o malo, queda en la bitácora.
func (o *SRIOrchestrator) submitWithRetry(ctx context.Context, inv *entity.Invoice, signedXML []byte, ambiente string) (*infrasri.SubmitResult, error) {
	policy := o.cfg.SubmitPolicy
	if policy.MaxAttempts <= 0 {
		policy = FixedDelay(1, 0)
	}
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrTransport, ctx.Err())
			case <-time.After(policy.Delay(attempt)):
			}
		}
		result, err := o.client.Submit(ctx, signedXML, ambiente)
		if err != nil {
			lastErr = err
			o.appendLog(inv.CompanyID, inv.ID, entity.ProcessSubmit, entity.OutcomeError, err.Error())
			if !errors.Is(err, domain.ErrTransport) {
				return nil, err
			}
			o.log.Warn().Err(err).Str("invoice_id", inv.ID).Int("attempt", attempt).Msg("recepción SRI fallida, reintentando")
			continue
		}
		outcome := entity.OutcomeSuccess
		if !result.Received {
			outcome = entity.OutcomeError
		}
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessSubmit, outcome, submitDetail(result))
		return result, nil
	}
	return nil, fmt.Errorf("%w: reintentos de recepción agotados: %v", domain.ErrTransport, lastErr)
}

// RequestAuthorization consulta una vez el WS de autorización para una
// factura SUBMITTED y aplica el resultado. Devuelve (pending=true) cuando el
// SRI sigue procesando y conviene volver a consultar.
//
// Consultar una factura que no está en SUBMITTED es un conflicto de estado:
// se registra en bitácora y no se toca nada. Repetir la consulta sobre una
// factura ya terminal produce exactamente eso: dos registros de conflicto y
// cero cambios de estado.
func (o *SRIOrchestrator) RequestAuthorization(ctx context.Context, invoiceID string) (pending bool, err error) {
	inv, err := o.invoiceRepo.GetByID(invoiceID)
	if err != nil {
		return false, err
	}
	if inv == nil {
		return false, domain.ErrNotFound
	}
	if inv.Status != entity.StatusSubmitted {
		o.logConflict(inv, entity.ProcessAuthorize, entity.StatusSubmitted)
		return false, fmt.Errorf("%w: autorización requiere SUBMITTED, estado actual %s", domain.ErrStateConflict, inv.Status)
	}

	company, err := o.companyRepo.GetByID(inv.CompanyID)
	if err != nil || company == nil {
		return false, fmt.Errorf("emisor %s no encontrado: %w", inv.CompanyID, domain.ErrNotFound)
	}

	result, err := o.client.QueryAuthorization(ctx, inv.ClaveAcceso, o.ambienteFor(company))
	if err != nil {
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessAuthorize, entity.OutcomeError, err.Error())
		if errors.Is(err, domain.ErrTransport) {
			return true, err // transitorio: la siguiente consulta puede salir bien
		}
		return false, err
	}

	switch {
	case result.Authorized:
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessAuthorize, entity.OutcomeSuccess, authDetail(result))
		fecha := result.FechaAutorizacion
		if fecha.IsZero() {
			fecha = time.Now()
		}
		moved := o.transition(inv, entity.StatusSubmitted, entity.StatusAuthorized, func(i *entity.Invoice) {
			i.NumeroAutorizacion = result.NumeroAutorizacion
			i.FechaAutorizacion = &fecha
			i.XMLAutorizado = result.ComprobanteXML
		})
		if moved {
			o.log.Info().Str("invoice_id", inv.ID).Str("numero_autorizacion", result.NumeroAutorizacion).Msg("comprobante AUTORIZADO")
			o.notifyAuthorized(ctx, company, inv)
		}
		return false, nil

	case result.Estado == infrasri.EstadoEnProceso:
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessAuthorize, entity.OutcomeError, "EN PROCESO: sin resultado aún")
		return true, nil

	default:
		// NO AUTORIZADO (o AUTORIZADO sin número, que vale lo mismo): terminal.
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessAuthorize, entity.OutcomeError, authDetail(result))
		o.transition(inv, entity.StatusSubmitted, entity.StatusRejected, nil)
		return false, fmt.Errorf("%w: %s", domain.ErrProtocolRejection, result.Messages)
	}
}

// authorizeWithRetry consulta autorización en línea con backoff lineal hasta
// agotar AuthPolicy. Si el SRI sigue EN PROCESO al agotar los intentos, la
// factura permanece SUBMITTED: el endpoint de reproceso permite retomar.
func (o *SRIOrchestrator) authorizeWithRetry(ctx context.Context, invoiceID string) error {
	policy := o.authPolicy()
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Delay(attempt)):
		}
		pending, err := o.RequestAuthorization(ctx, invoiceID)
		if !pending {
			return err
		}
		lastErr = err
	}
	o.log.Warn().Str("invoice_id", invoiceID).Msg("consultas de autorización agotadas, la factura sigue SUBMITTED")
	return lastErr
}

// scheduleAuthorization programa la consulta número attempt con el backoff de
// AuthPolicy y se reprograma a sí misma mientras el resultado siga pendiente.
func (o *SRIOrchestrator) scheduleAuthorization(invoiceID string, attempt int) {
	policy := o.authPolicy()
	o.scheduler.Schedule(policy.Delay(attempt), func(ctx context.Context) {
		pending, err := o.RequestAuthorization(ctx, invoiceID)
		if err != nil && !pending {
			o.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("autorización SRI fallida")
			return
		}
		if !pending {
			return
		}
		if policy.Exhausted(attempt) {
			o.log.Warn().Str("invoice_id", invoiceID).Msg("consultas de autorización agotadas, la factura sigue SUBMITTED")
			return
		}
		o.scheduleAuthorization(invoiceID, attempt+1)
	})
}

// Reprocess retoma el ciclo donde quedó: una factura PENDING se vuelve a
// enviar, una SUBMITTED se vuelve a consultar. Estados terminales no se
// reprocesan.
func (o *SRIOrchestrator) Reprocess(ctx context.Context, companyID, invoiceID string) error {
	inv, err := o.invoiceRepo.GetByID(invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return domain.ErrForbidden
	}
	switch inv.Status {
	case entity.StatusPending:
		return o.ProcessInvoice(ctx, invoiceID)
	case entity.StatusSubmitted:
		pending, err := o.RequestAuthorization(ctx, invoiceID)
		if pending && err == nil && o.scheduler != nil {
			o.scheduleAuthorization(invoiceID, 1)
		}
		return err
	default:
		return fmt.Errorf("%w: %s es terminal, no se reprocesa", domain.ErrStateConflict, inv.Status)
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (o *SRIOrchestrator) authPolicy() RetryPolicy {
	if o.cfg.AuthPolicy.MaxAttempts > 0 {
		return o.cfg.AuthPolicy
	}
	return LinearBackoff(5, 3*time.Second, 5*time.Second)
}

// transition aplica un compare-and-set de estado. Devuelve false (y registra
// el conflicto) si otro proceso ganó la carrera.
func (o *SRIOrchestrator) transition(inv *entity.Invoice, from, to string, mutate func(*entity.Invoice)) bool {
	inv.Status = to
	if mutate != nil {
		mutate(inv)
	}
	inv.UpdatedAt = time.Now()
	moved, err := o.invoiceRepo.UpdateIfStatus(inv, from)
	if err != nil {
		o.log.Error().Err(err).Str("invoice_id", inv.ID).Msgf("no se pudo persistir %s→%s", from, to)
		return false
	}
	if !moved {
		inv.Status = from
		o.log.Warn().Str("invoice_id", inv.ID).Msgf("transición %s→%s perdió la carrera, estado ya cambió", from, to)
	}
	return moved
}

func (o *SRIOrchestrator) notifyAuthorized(ctx context.Context, company *entity.Company, inv *entity.Invoice) {
	if o.notifier == nil {
		return
	}
	customer, err := o.customerRepo.GetByID(inv.CustomerID)
	if err != nil || customer == nil || customer.Email == "" {
		return
	}
	if err := o.notifier.SendAuthorized(ctx, company, customer, inv, []byte(inv.XMLAutorizado)); err != nil {
		o.appendLog(inv.CompanyID, inv.ID, entity.ProcessEmail, entity.OutcomeError, err.Error())
		o.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo notificar al comprador")
		return
	}
	o.appendLog(inv.CompanyID, inv.ID, entity.ProcessEmail, entity.OutcomeSuccess, "comprobante autorizado enviado a "+customer.Email)
}

// appendLog agrega a la bitácora. Un fallo al escribirla se loguea y no
// interrumpe el ciclo: la bitácora es auditoría, no control de flujo.
func (o *SRIOrchestrator) appendLog(companyID, invoiceID, process, outcome, detail string) {
	entry := &entity.SubmissionLog{
		CompanyID: companyID,
		InvoiceID: invoiceID,
		Process:   process,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := o.logRepo.Append(entry); err != nil {
		o.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("no se pudo escribir la bitácora SRI")
	}
}

func (o *SRIOrchestrator) logConflict(inv *entity.Invoice, process, required string) {
	o.appendLog(inv.CompanyID, inv.ID, process, entity.OutcomeError,
		fmt.Sprintf("conflicto de estado: se requiere %s, actual %s", required, inv.Status))
	o.log.Warn().Str("invoice_id", inv.ID).Str("status", inv.Status).Str("process", process).Msg("operación fuera de estado, ignorada")
}

func (o *SRIOrchestrator) ambienteFor(company *entity.Company) string {
	if company.Ambiente != "" {
		return company.Ambiente
	}
	if o.cfg.Ambiente != "" {
		return o.cfg.Ambiente
	}
	return pkgsri.AmbientePruebas
}

// loadCertificate usa el certificado del emisor y cae al global de la app.
func (o *SRIOrchestrator) loadCertificate(company *entity.Company) (tls.Certificate, error) {
	return loadCompanyCertificate(company, o.cfg)
}

func loadCompanyCertificate(company *entity.Company, cfg SRIConfig) (tls.Certificate, error) {
	path, password := company.CertPath, company.CertPassword
	if path == "" {
		path, password = cfg.CertPath, cfg.CertPassword
	}
	if path == "" {
		return tls.Certificate{}, fmt.Errorf("%w: SRI_CERT_PATH no configurado y el emisor no tiene certificado", domain.ErrCertificate)
	}
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".p12") || strings.HasSuffix(lower, ".pfx") {
		return signer.LoadFromP12(path, password)
	}
	return signer.LoadFromPEM(path, "")
}

func submitDetail(r *infrasri.SubmitResult) string {
	if r.Messages == "" {
		return r.Estado
	}
	return r.Estado + ": " + r.Messages
}

func authDetail(r *infrasri.AuthorizationResult) string {
	parts := []string{r.Estado}
	if r.NumeroAutorizacion != "" {
		parts = append(parts, "numeroAutorizacion="+r.NumeroAutorizacion)
	}
	if r.Messages != "" {
		parts = append(parts, r.Messages)
	}
	return strings.Join(parts, " ")
}

// buyerContactFields arma infoAdicional con los datos de contacto disponibles.
func buyerContactFields(c *entity.Customer) []infrasri.CampoAdicional {
	var fields []infrasri.CampoAdicional
	if c.Email != "" {
		fields = append(fields, infrasri.CampoAdicional{Nombre: "email", Valor: c.Email})
	}
	if c.Telefono != "" {
		fields = append(fields, infrasri.CampoAdicional{Nombre: "telefono", Valor: c.Telefono})
	}
	if c.Direccion != "" {
		fields = append(fields, infrasri.CampoAdicional{Nombre: "direccion", Valor: c.Direccion})
	}
	return fields
}
