package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tu-usuario/facturador-sri/internal/domain"
	pkgsri "github.com/tu-usuario/facturador-sri/pkg/sri"
)

// ── Endpoints de los WS del SRI ───────────────────────────────────────────────

const (
	recepcionURLPruebas    = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	recepcionURLProduccion = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"

	autorizacionURLPruebas    = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"
	autorizacionURLProduccion = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"

	soapNS             = "http://schemas.xmlsoap.org/soap/envelope/"
	nsRecepcion        = "http://ec.gob.sri.ws.recepcion"
	nsAutorizacion     = "http://ec.gob.sri.ws.autorizacion"

	// Estados devueltos por los WS.
	EstadoRecibida     = "RECIBIDA"
	EstadoDevuelta     = "DEVUELTA"
	EstadoAutorizado   = "AUTORIZADO"
	EstadoNoAutorizado = "NO AUTORIZADO"
	EstadoEnProceso    = "EN PROCESO"
)

// ── Puerto (interfaz) ─────────────────────────────────────────────────────────

// SubmitResult resultado de la entrega al WS de recepción.
type SubmitResult struct {
	Estado   string // RECIBIDA | DEVUELTA
	Received bool   // true solo con estado RECIBIDA
	Messages string // mensajes de rechazo del SRI (puede ser vacío)
	Raw      string // payload crudo de la respuesta, para la bitácora
}

// AuthorizationResult resultado de la consulta al WS de autorización.
type AuthorizationResult struct {
	Estado             string // AUTORIZADO | NO AUTORIZADO | EN PROCESO | ""
	Authorized         bool   // true solo si hay número de autorización
	NumeroAutorizacion string
	FechaAutorizacion  time.Time
	ComprobanteXML     string // comprobante autorizado devuelto por el SRI
	Messages           string
	Raw                string
}

// Client define el puerto de salida hacia los dos WS del SRI. Ambas
// operaciones son idempotentes respecto a la clave de acceso: el servidor es
// la autoridad para la detección de duplicados.
type Client interface {
	// Submit envía el XML firmado (Base64) al WS de recepción.
	Submit(ctx context.Context, signedXML []byte, ambiente string) (*SubmitResult, error)
	// QueryAuthorization consulta el WS de autorización por clave de acceso.
	QueryAuthorization(ctx context.Context, claveAcceso, ambiente string) (*AuthorizationResult, error)
}

// ── Implementación SOAP ───────────────────────────────────────────────────────

// Endpoints permite redirigir los WS (tests, proxies). Campos vacíos usan las
// URL oficiales según ambiente.
type Endpoints struct {
	Recepcion    string
	Autorizacion string
}

// SOAPClient implementa Client usando los WS SOAP del SRI con net/http.
type SOAPClient struct {
	httpClient *http.Client
	endpoints  Endpoints
}

// NewSOAPClient construye el cliente con un timeout de red generoso (60 s):
// el WS del SRI puede tardar varios segundos en responder.
func NewSOAPClient(endpoints Endpoints) *SOAPClient {
	return &SOAPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		endpoints:  endpoints,
	}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name   `xml:"soapenv:Envelope"`
	XmlnsS  string     `xml:"xmlns:soapenv,attr"`
	XmlnsEc string     `xml:"xmlns:ec,attr"`
	Header  soapHeader `xml:"soapenv:Header"`
	Body    soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// validarComprobanteBody cuerpo para la operación validarComprobante (recepción).
type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"` // comprobante firmado en Base64
}

// autorizacionComprobanteBody cuerpo para autorizacionComprobante (autorización).
type autorizacionComprobanteBody struct {
	XMLName     xml.Name `xml:"ec:autorizacionComprobante"`
	ClaveAcceso string   `xml:"claveAccesoComprobante"`
}

// ── Estructuras de respuesta ──────────────────────────────────────────────────

type recepcionResponseEnvelope struct {
	Body struct {
		Response *struct {
			Respuesta respuestaRecepcion `xml:"RespuestaRecepcionComprobante"`
		} `xml:"validarComprobanteResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

type respuestaRecepcion struct {
	Estado       string `xml:"estado"`
	Comprobantes []struct {
		ClaveAcceso string        `xml:"claveAcceso"`
		Mensajes    []mensajeSRI  `xml:"mensajes>mensaje"`
	} `xml:"comprobantes>comprobante"`
}

type autorizacionResponseEnvelope struct {
	Body struct {
		Response *struct {
			Respuesta respuestaAutorizacion `xml:"RespuestaAutorizacionComprobante"`
		} `xml:"autorizacionComprobanteResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

type respuestaAutorizacion struct {
	ClaveAccesoConsultada string `xml:"claveAccesoConsultada"`
	NumeroComprobantes    string `xml:"numeroComprobantes"`
	Autorizaciones        []struct {
		Estado             string       `xml:"estado"`
		NumeroAutorizacion string       `xml:"numeroAutorizacion"`
		FechaAutorizacion  string       `xml:"fechaAutorizacion"`
		Ambiente           string       `xml:"ambiente"`
		Comprobante        string       `xml:"comprobante"`
		Mensajes           []mensajeSRI `xml:"mensajes>mensaje"`
	} `xml:"autorizaciones>autorizacion"`
}

type mensajeSRI struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit envía el comprobante firmado al WS de recepción. Éxito es exactamente
// el estado RECIBIDA; DEVUELTA se devuelve como resultado (no como error de
// transporte) con los mensajes del SRI.
func (c *SOAPClient) Submit(ctx context.Context, signedXML []byte, ambiente string) (*SubmitResult, error) {
	url := c.endpoints.Recepcion
	if url == "" {
		url = recepcionURLPruebas
		if ambiente == pkgsri.AmbienteProduccion {
			url = recepcionURLProduccion
		}
	}
	body := &validarComprobanteBody{XML: base64.StdEncoding.EncodeToString(signedXML)}
	raw, err := c.call(ctx, url, nsRecepcion, body)
	if err != nil {
		return nil, err
	}

	var envResp recepcionResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return nil, fmt.Errorf("%w: respuesta de recepción no parseable: %s", domain.ErrTransport, truncate(raw))
	}
	if envResp.Body.Fault != nil {
		return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s", domain.ErrTransport,
			envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString)
	}
	if envResp.Body.Response == nil {
		return nil, fmt.Errorf("%w: respuesta de recepción vacía: %s", domain.ErrTransport, truncate(raw))
	}

	resp := envResp.Body.Response.Respuesta
	result := &SubmitResult{
		Estado:   resp.Estado,
		Received: resp.Estado == EstadoRecibida,
		Raw:      string(raw),
	}
	var msgs []string
	for _, comp := range resp.Comprobantes {
		for _, m := range comp.Mensajes {
			msgs = append(msgs, formatMensaje(m))
		}
	}
	result.Messages = strings.Join(msgs, "; ")
	return result, nil
}

// ── QueryAuthorization ────────────────────────────────────────────────────────

// QueryAuthorization consulta la autorización por clave de acceso. Éxito es la
// presencia de numeroAutorizacion; EN PROCESO o sin autorizaciones se devuelve
// como resultado no autorizado sin error (el SRI puede seguir procesando).
func (c *SOAPClient) QueryAuthorization(ctx context.Context, claveAcceso, ambiente string) (*AuthorizationResult, error) {
	url := c.endpoints.Autorizacion
	if url == "" {
		url = autorizacionURLPruebas
		if ambiente == pkgsri.AmbienteProduccion {
			url = autorizacionURLProduccion
		}
	}
	body := &autorizacionComprobanteBody{ClaveAcceso: claveAcceso}
	raw, err := c.call(ctx, url, nsAutorizacion, body)
	if err != nil {
		return nil, err
	}

	var envResp autorizacionResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return nil, fmt.Errorf("%w: respuesta de autorización no parseable: %s", domain.ErrTransport, truncate(raw))
	}
	if envResp.Body.Fault != nil {
		return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s", domain.ErrTransport,
			envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString)
	}
	if envResp.Body.Response == nil {
		return nil, fmt.Errorf("%w: respuesta de autorización vacía: %s", domain.ErrTransport, truncate(raw))
	}

	result := &AuthorizationResult{Raw: string(raw)}
	resp := envResp.Body.Response.Respuesta
	if len(resp.Autorizaciones) == 0 {
		// El SRI aún no produce resultado para esta clave.
		result.Estado = EstadoEnProceso
		return result, nil
	}

	auth := resp.Autorizaciones[0]
	result.Estado = auth.Estado
	result.NumeroAutorizacion = auth.NumeroAutorizacion
	result.ComprobanteXML = auth.Comprobante
	result.Authorized = auth.NumeroAutorizacion != "" && auth.Estado == EstadoAutorizado
	if auth.FechaAutorizacion != "" {
		result.FechaAutorizacion = parseFechaAutorizacion(auth.FechaAutorizacion)
	}
	var msgs []string
	for _, m := range auth.Mensajes {
		msgs = append(msgs, formatMensaje(m))
	}
	result.Messages = strings.Join(msgs, "; ")
	return result, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// call serializa el envelope, hace el POST y devuelve el body crudo.
func (c *SOAPClient) call(ctx context.Context, url, ns string, content interface{}) ([]byte, error) {
	envelope := soapEnvelope{
		XmlnsS:  soapNS,
		XmlnsEc: ns,
		Body:    soapBody{Content: content},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: timeout o cancelación: %v", domain.ErrTransport, ctx.Err())
		}
		return nil, fmt.Errorf("%w: llamada HTTP fallida: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB (el comprobante autorizado viene embebido)
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d del WS SRI: %s", domain.ErrTransport, resp.StatusCode, truncate(raw))
	}
	return raw, nil
}

func formatMensaje(m mensajeSRI) string {
	s := m.Identificador + " " + m.Mensaje
	if m.InformacionAdicional != "" {
		s += " (" + m.InformacionAdicional + ")"
	}
	return strings.TrimSpace(s)
}

// parseFechaAutorizacion tolera los dos formatos que emite el SRI.
func parseFechaAutorizacion(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-07:00", "02/01/2006 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func truncate(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

var _ Client = (*SOAPClient)(nil)
