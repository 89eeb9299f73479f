package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de la factura electrónica (SRI Ecuador).
//
//	PENDING   → creada y persistida, aún sin firmar ni enviar
//	SUBMITTED → recibida por el WS de recepción del SRI, autorización pendiente
//	AUTHORIZED→ autorizada (terminal)
//	REJECTED  → devuelta o no autorizada por el SRI, o reintentos agotados (terminal)
const (
	StatusPending    = "PENDING"
	StatusSubmitted  = "SUBMITTED"
	StatusAuthorized = "AUTHORIZED"
	StatusRejected   = "REJECTED"
)

// IsTerminalStatus indica si el estado no admite más transiciones.
func IsTerminalStatus(status string) bool {
	return status == StatusAuthorized || status == StatusRejected
}

// Invoice representa la cabecera de una factura electrónica.
// La terna (Establecimiento, PuntoEmision, Secuencial) es única por emisor;
// la clave de acceso es única global e inmutable una vez asignada.
type Invoice struct {
	ID              string
	CompanyID       string
	CustomerID      string
	Establecimiento string // 3 dígitos, ej: "001"
	PuntoEmision    string // 3 dígitos, ej: "001"
	Secuencial      string // 9 dígitos con ceros a la izquierda
	FechaEmision    time.Time
	ClaveAcceso     string // 49 dígitos (ver internal/domain/sri)

	// Totales: siempre decimal de punto fijo, nunca float.
	SubtotalSinImpuestos decimal.Decimal // base imponible total (suma de líneas)
	Subtotal0            decimal.Decimal // base gravada con tarifa 0%
	SubtotalIVA          decimal.Decimal // base gravada con tarifa estándar
	TotalDescuento       decimal.Decimal
	ValorIVA             decimal.Decimal
	ValorICE             decimal.Decimal
	Propina              decimal.Decimal
	ImporteTotal         decimal.Decimal // SubtotalSinImpuestos + IVA + ICE + Propina

	Status             string
	NumeroAutorizacion string     // asignado por el SRI al autorizar
	FechaAutorizacion  *time.Time // nil hasta AUTHORIZED
	XMLAutorizado      string     // comprobante autorizado devuelto por el SRI
	XMLFirmado         string     // XML firmado enviado a recepción

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecomputeTotals recalcula todos los totales de la cabecera a partir de las
// líneas. Toda mutación de líneas debe pasar por aquí: los totales derivados
// nunca se editan por separado.
func (inv *Invoice) RecomputeTotals(details []*InvoiceDetail) {
	var subtotal, subtotal0, subtotalIVA, descuento, iva, ice decimal.Decimal
	for _, d := range details {
		subtotal = subtotal.Add(d.Subtotal)
		descuento = descuento.Add(d.Descuento)
		iva = iva.Add(d.ValorIVA)
		ice = ice.Add(d.ValorICE)
		if d.TarifaIVA.IsZero() {
			subtotal0 = subtotal0.Add(d.Subtotal)
		} else {
			subtotalIVA = subtotalIVA.Add(d.Subtotal)
		}
	}
	inv.SubtotalSinImpuestos = subtotal.Round(2)
	inv.Subtotal0 = subtotal0.Round(2)
	inv.SubtotalIVA = subtotalIVA.Round(2)
	inv.TotalDescuento = descuento.Round(2)
	inv.ValorIVA = iva.Round(2)
	inv.ValorICE = ice.Round(2)
	inv.ImporteTotal = inv.SubtotalSinImpuestos.Add(inv.ValorIVA).Add(inv.ValorICE).Add(inv.Propina).Round(2)
}

// Serie devuelve estab-ptoEmi-secuencial con el formato impreso (001-001-000000123).
func (inv *Invoice) Serie() string {
	return inv.Establecimiento + "-" + inv.PuntoEmision + "-" + inv.Secuencial
}
