package billing_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturador-sri/internal/application/billing"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	infrasri "github.com/tu-usuario/facturador-sri/internal/infrastructure/sri"
	"github.com/tu-usuario/facturador-sri/pkg/logger"
)

// ── fakes en memoria ──────────────────────────────────────────────────────────

type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]*entity.Invoice
	details  map[string][]*entity.InvoiceDetail
	payments map[string][]*entity.InvoicePayment
	seq      map[string]int64
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		invoices: map[string]*entity.Invoice{},
		details:  map[string][]*entity.InvoiceDetail{},
		payments: map[string][]*entity.InvoicePayment{},
		seq:      map[string]int64{},
	}
}

func (r *memInvoiceRepo) Create(inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *memInvoiceRepo) CreateDetail(d *entity.InvoiceDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details[d.InvoiceID] = append(r.details[d.InvoiceID], d)
	return nil
}

func (r *memInvoiceRepo) CreatePayment(p *entity.InvoicePayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.InvoiceID] = append(r.payments[p.InvoiceID], p)
	return nil
}

func (r *memInvoiceRepo) GetByID(id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvoiceRepo) GetByClaveAcceso(clave string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.ClaveAcceso == clave {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memInvoiceRepo) GetDetailsByInvoiceID(id string) ([]*entity.InvoiceDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.details[id], nil
}

func (r *memInvoiceRepo) GetPaymentsByInvoiceID(id string) ([]*entity.InvoicePayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[id], nil
}

func (r *memInvoiceRepo) UpdateIfStatus(inv *entity.Invoice, expected string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	cp := *inv
	r.invoices[inv.ID] = &cp
	return true, nil
}

func (r *memInvoiceRepo) NextSecuencial(companyID, estab, ptoEmi string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := companyID + estab + ptoEmi
	r.seq[key]++
	return fmt.Sprintf("%09d", r.seq[key]), nil
}

func (r *memInvoiceRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.Invoice, error) {
	return nil, nil
}

type memCompanyRepo struct{ company *entity.Company }

func (r *memCompanyRepo) Create(*entity.Company) error          { return nil }
func (r *memCompanyRepo) Update(*entity.Company) error          { return nil }
func (r *memCompanyRepo) List(int, int) ([]*entity.Company, error) { return nil, nil }
func (r *memCompanyRepo) GetByID(id string) (*entity.Company, error) {
	if r.company != nil && r.company.ID == id {
		return r.company, nil
	}
	return nil, nil
}
func (r *memCompanyRepo) GetByRUC(ruc string) (*entity.Company, error) {
	if r.company != nil && r.company.RUC == ruc {
		return r.company, nil
	}
	return nil, nil
}

type memCustomerRepo struct{ customer *entity.Customer }

func (r *memCustomerRepo) Create(*entity.Customer) error { return nil }
func (r *memCustomerRepo) Update(*entity.Customer) error { return nil }
func (r *memCustomerRepo) Delete(string) error           { return nil }
func (r *memCustomerRepo) GetByID(id string) (*entity.Customer, error) {
	if r.customer != nil && r.customer.ID == id {
		return r.customer, nil
	}
	return nil, nil
}
func (r *memCustomerRepo) GetByCompanyAndIdentificacion(companyID, ident string) (*entity.Customer, error) {
	return r.customer, nil
}
func (r *memCustomerRepo) ListByCompany(string, int, int) ([]*entity.Customer, error) {
	return nil, nil
}

type memLogRepo struct {
	mu      sync.Mutex
	entries []*entity.SubmissionLog
}

func (r *memLogRepo) Append(l *entity.SubmissionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.entries = append(r.entries, &cp)
	return nil
}
func (r *memLogRepo) ListByInvoice(id string, limit, offset int) ([]*entity.SubmissionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.SubmissionLog
	for _, e := range r.entries {
		if e.InvoiceID == id {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r *memLogRepo) ListByCompany(string, int, int) ([]*entity.SubmissionLog, error) {
	return nil, nil
}

func (r *memLogRepo) byProcess(process string) []*entity.SubmissionLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.SubmissionLog
	for _, e := range r.entries {
		if e.Process == process {
			out = append(out, e)
		}
	}
	return out
}

// fakeClient devuelve respuestas guionadas en orden.
type fakeClient struct {
	mu          sync.Mutex
	submits     []scriptStep[*infrasri.SubmitResult]
	auths       []scriptStep[*infrasri.AuthorizationResult]
	submitCalls int
	authCalls   int
}

type scriptStep[T any] struct {
	res T
	err error
}

func (c *fakeClient) Submit(ctx context.Context, xml []byte, ambiente string) (*infrasri.SubmitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.submits[min(c.submitCalls, len(c.submits)-1)]
	c.submitCalls++
	return step.res, step.err
}

func (c *fakeClient) QueryAuthorization(ctx context.Context, clave, ambiente string) (*infrasri.AuthorizationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.auths[min(c.authCalls, len(c.auths)-1)]
	c.authCalls++
	return step.res, step.err
}

// fakeSigner pasa el documento sin tocarlo (la firma real se prueba en su paquete).
type fakeSigner struct{}

func (fakeSigner) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	return xmlBytes, nil
}

// ── armado del escenario ──────────────────────────────────────────────────────

// writePEMCert escribe un certificado autofirmado con su llave en un solo PEM.
func writePEMCert(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "FIRMA PRUEBAS"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "firma.pem")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, pem.Encode(f, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	return path
}

type scenario struct {
	orch    *billing.SRIOrchestrator
	repo    *memInvoiceRepo
	logs    *memLogRepo
	client  *fakeClient
	invoice *entity.Invoice
	company *entity.Company
}

func newScenario(t *testing.T, client *fakeClient) *scenario {
	t.Helper()
	repo := newMemInvoiceRepo()
	logs := &memLogRepo{}

	company := &entity.Company{
		ID: "co-1", RUC: "1790011674001", RazonSocial: "Comercial Andina S.A.",
		DirMatriz: "Av. Amazonas N34-120, Quito", Ambiente: "1",
		Establecimiento: "001", PuntoEmision: "001",
		CertPath: writePEMCert(t),
	}
	customer := &entity.Customer{
		ID: "cu-1", CompanyID: "co-1", RazonSocial: "Juan Pérez",
		Identificacion: "1710034065", TipoIdentificacion: "05",
	}

	d := &entity.InvoiceDetail{
		InvoiceID: "inv-1", CodigoPrincipal: "SKU-1", Descripcion: "Producto",
		Cantidad: decimal.NewFromInt(2), PrecioUnitario: decimal.RequireFromString("10.00"),
		TarifaIVA: decimal.NewFromInt(12),
	}
	d.RecomputeLineAmounts()

	inv := &entity.Invoice{
		ID: "inv-1", CompanyID: "co-1", CustomerID: "cu-1",
		Establecimiento: "001", PuntoEmision: "001", Secuencial: "000000001",
		FechaEmision: time.Now(),
		ClaveAcceso:  "1003202601179001167400110010010000000011234567818",
		Status:       entity.StatusPending,
	}
	inv.RecomputeTotals([]*entity.InvoiceDetail{d})

	require.NoError(t, repo.Create(inv))
	require.NoError(t, repo.CreateDetail(d))
	require.NoError(t, repo.CreatePayment(&entity.InvoicePayment{
		InvoiceID: "inv-1", FormaPago: "01", Total: inv.ImporteTotal,
	}))

	log := logger.New(logger.Config{Env: "development", Level: "error"})
	orch := billing.NewSRIOrchestrator(
		repo, &memCompanyRepo{company: company}, &memCustomerRepo{customer: customer}, logs,
		infrasri.NewXMLBuilderService(), fakeSigner{}, client, nil, nil,
		billing.SRIConfig{
			Ambiente:     "1",
			SubmitPolicy: billing.FixedDelay(3, time.Millisecond),
			AuthPolicy:   billing.LinearBackoff(2, time.Millisecond, time.Millisecond),
		},
		log,
	)
	return &scenario{orch: orch, repo: repo, logs: logs, client: client, invoice: inv, company: company}
}

func recibida() scriptStep[*infrasri.SubmitResult] {
	return scriptStep[*infrasri.SubmitResult]{res: &infrasri.SubmitResult{Estado: infrasri.EstadoRecibida, Received: true}}
}

func autorizado() scriptStep[*infrasri.AuthorizationResult] {
	return scriptStep[*infrasri.AuthorizationResult]{res: &infrasri.AuthorizationResult{
		Estado:             infrasri.EstadoAutorizado,
		Authorized:         true,
		NumeroAutorizacion: "1003202601179001167400110010010000000011234567818",
		FechaAutorizacion:  time.Now(),
		ComprobanteXML:     "<factura/>",
	}}
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestProcessInvoice_CicloCompleto(t *testing.T) {
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{recibida()},
		auths:   []scriptStep[*infrasri.AuthorizationResult]{autorizado()},
	})

	err := sc.orch.ProcessInvoice(context.Background(), "inv-1")
	require.NoError(t, err)

	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.NotEmpty(t, inv.NumeroAutorizacion)
	assert.NotNil(t, inv.FechaAutorizacion)
	assert.NotEmpty(t, inv.XMLFirmado)
	assert.Equal(t, "<factura/>", inv.XMLAutorizado)

	// Bitácora: un SUBMIT SUCCESS y un AUTHORIZE SUCCESS.
	submits := sc.logs.byProcess(entity.ProcessSubmit)
	require.Len(t, submits, 1)
	assert.Equal(t, entity.OutcomeSuccess, submits[0].Outcome)
	auths := sc.logs.byProcess(entity.ProcessAuthorize)
	require.Len(t, auths, 1)
	assert.Equal(t, entity.OutcomeSuccess, auths[0].Outcome)
}

func TestProcessInvoice_Devuelta(t *testing.T) {
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{{
			res: &infrasri.SubmitResult{Estado: infrasri.EstadoDevuelta, Messages: "35 ARCHIVO NO CUMPLE ESTRUCTURA XML"},
		}},
	})

	err := sc.orch.ProcessInvoice(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrProtocolRejection)

	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusRejected, inv.Status)

	submits := sc.logs.byProcess(entity.ProcessSubmit)
	require.Len(t, submits, 1)
	assert.Equal(t, entity.OutcomeError, submits[0].Outcome)
	assert.Contains(t, submits[0].Detail, "ARCHIVO NO CUMPLE")
}

func TestProcessInvoice_TransporteReintentaYLogra(t *testing.T) {
	transportErr := fmt.Errorf("%w: connection refused", domain.ErrTransport)
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{
			{err: transportErr},
			{err: transportErr},
			recibida(),
		},
		auths: []scriptStep[*infrasri.AuthorizationResult]{autorizado()},
	})

	err := sc.orch.ProcessInvoice(context.Background(), "inv-1")
	require.NoError(t, err)

	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
	assert.Equal(t, 3, sc.client.submitCalls)

	// Cada intento fallido también queda en la bitácora.
	submits := sc.logs.byProcess(entity.ProcessSubmit)
	require.Len(t, submits, 3)
	assert.Equal(t, entity.OutcomeError, submits[0].Outcome)
	assert.Equal(t, entity.OutcomeError, submits[1].Outcome)
	assert.Equal(t, entity.OutcomeSuccess, submits[2].Outcome)
}

func TestProcessInvoice_TransporteAgotado(t *testing.T) {
	transportErr := fmt.Errorf("%w: connection refused", domain.ErrTransport)
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{{err: transportErr}},
	})

	err := sc.orch.ProcessInvoice(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, 3, sc.client.submitCalls)

	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusRejected, inv.Status)
}

func TestProcessInvoice_EstadoNoPendiente(t *testing.T) {
	sc := newScenario(t, &fakeClient{submits: []scriptStep[*infrasri.SubmitResult]{recibida()}})
	sc.invoice.Status = entity.StatusAuthorized
	_, err := sc.repo.UpdateIfStatus(sc.invoice, entity.StatusPending)
	require.NoError(t, err)

	err = sc.orch.ProcessInvoice(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrStateConflict)
	assert.Equal(t, 0, sc.client.submitCalls)
}

func TestProcessInvoice_CertificadoInvalido(t *testing.T) {
	sc := newScenario(t, &fakeClient{submits: []scriptStep[*infrasri.SubmitResult]{recibida()}})
	sc.company.CertPath = "/no/existe/firma.p12"

	err := sc.orch.ProcessInvoice(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrCertificate)
	assert.Equal(t, 0, sc.client.submitCalls, "sin certificado no debe haber envío")

	// La factura se queda en PENDING esperando al operador.
	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusPending, inv.Status)

	submits := sc.logs.byProcess(entity.ProcessSubmit)
	require.Len(t, submits, 1)
	assert.Equal(t, entity.OutcomeError, submits[0].Outcome)
}

func TestRequestAuthorization_SobreFacturaPendiente(t *testing.T) {
	sc := newScenario(t, &fakeClient{
		auths: []scriptStep[*infrasri.AuthorizationResult]{autorizado()},
	})

	// La factura sigue PENDING: consultar autorización es conflicto de estado.
	_, err := sc.orch.RequestAuthorization(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrStateConflict)
	assert.Equal(t, 0, sc.client.authCalls)

	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusPending, inv.Status)

	auths := sc.logs.byProcess(entity.ProcessAuthorize)
	require.Len(t, auths, 1)
	assert.Equal(t, entity.OutcomeError, auths[0].Outcome)
}

// Consultar dos veces una factura ya terminal: dos registros ERROR en la
// bitácora y cero cambios de estado.
func TestRequestAuthorization_IdempotenteEnTerminal(t *testing.T) {
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{recibida()},
		auths:   []scriptStep[*infrasri.AuthorizationResult]{autorizado()},
	})
	require.NoError(t, sc.orch.ProcessInvoice(context.Background(), "inv-1"))

	for i := 0; i < 2; i++ {
		_, err := sc.orch.RequestAuthorization(context.Background(), "inv-1")
		assert.ErrorIs(t, err, domain.ErrStateConflict)
	}

	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusAuthorized, inv.Status)

	auths := sc.logs.byProcess(entity.ProcessAuthorize)
	// 1 SUCCESS del ciclo + 2 ERROR de los conflictos.
	require.Len(t, auths, 3)
	assert.Equal(t, entity.OutcomeError, auths[1].Outcome)
	assert.Equal(t, entity.OutcomeError, auths[2].Outcome)
}

func TestRequestAuthorization_NoAutorizado(t *testing.T) {
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{recibida()},
		auths: []scriptStep[*infrasri.AuthorizationResult]{{
			res: &infrasri.AuthorizationResult{Estado: infrasri.EstadoNoAutorizado, Messages: "58 CLAVE ACCESO REGISTRADA"},
		}},
	})

	err := sc.orch.ProcessInvoice(context.Background(), "inv-1")
	assert.ErrorIs(t, err, domain.ErrProtocolRejection)

	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusRejected, inv.Status)
}

func TestRequestAuthorization_EnProcesoMantieneSubmitted(t *testing.T) {
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{recibida()},
		auths: []scriptStep[*infrasri.AuthorizationResult]{{
			res: &infrasri.AuthorizationResult{Estado: infrasri.EstadoEnProceso},
		}},
	})

	// El guion nunca autoriza: se agotan las consultas y queda SUBMITTED.
	err := sc.orch.ProcessInvoice(context.Background(), "inv-1")
	require.NoError(t, err)

	inv, _ := sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusSubmitted, inv.Status)
	assert.Equal(t, 2, sc.client.authCalls) // AuthPolicy.MaxAttempts

	// Cada consulta sin resultado deja su propia entrada ERROR en la bitácora.
	auths := sc.logs.byProcess(entity.ProcessAuthorize)
	require.Len(t, auths, 2)
	for _, l := range auths {
		assert.Equal(t, entity.OutcomeError, l.Outcome)
	}
}

func TestReprocess_RetomaSubmitted(t *testing.T) {
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{recibida()},
		auths: []scriptStep[*infrasri.AuthorizationResult]{
			{res: &infrasri.AuthorizationResult{Estado: infrasri.EstadoEnProceso}},
			{res: &infrasri.AuthorizationResult{Estado: infrasri.EstadoEnProceso}},
			autorizado(),
		},
	})
	require.NoError(t, sc.orch.ProcessInvoice(context.Background(), "inv-1"))

	inv, _ := sc.repo.GetByID("inv-1")
	require.Equal(t, entity.StatusSubmitted, inv.Status)

	// El reproceso consulta de nuevo y esta vez el SRI ya autorizó.
	require.NoError(t, sc.orch.Reprocess(context.Background(), "co-1", "inv-1"))
	inv, _ = sc.repo.GetByID("inv-1")
	assert.Equal(t, entity.StatusAuthorized, inv.Status)
}

func TestReprocess_TerminalEsConflicto(t *testing.T) {
	sc := newScenario(t, &fakeClient{
		submits: []scriptStep[*infrasri.SubmitResult]{recibida()},
		auths:   []scriptStep[*infrasri.AuthorizationResult]{autorizado()},
	})
	require.NoError(t, sc.orch.ProcessInvoice(context.Background(), "inv-1"))

	err := sc.orch.Reprocess(context.Background(), "co-1", "inv-1")
	assert.ErrorIs(t, err, domain.ErrStateConflict)
}
