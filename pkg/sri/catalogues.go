// Package sri contiene catálogos y validaciones alineados a la ficha técnica
// de Comprobantes Electrónicos del SRI (Ecuador), esquema factura v1.1.0.
package sri

// =============================================================================
// Tabla 3 - Tipo de comprobante (ficha técnica SRI, campo codDoc)
// =============================================================================

const (
	DocTypeFactura            = "01" // Factura
	DocTypeNotaCredito        = "04" // Nota de crédito
	DocTypeNotaDebito         = "05" // Nota de débito
	DocTypeGuiaRemision       = "06" // Guía de remisión
	DocTypeComprobanteRetencion = "07" // Comprobante de retención
)

// =============================================================================
// Tabla 4 - Ambiente y tipo de emisión (campos ambiente y tipoEmision)
// =============================================================================

const (
	AmbientePruebas    = "1" // Pruebas (celcer.sri.gob.ec)
	AmbienteProduccion = "2" // Producción (cel.sri.gob.ec)

	// EmisionNormal es el único tipo de emisión vigente (la emisión por
	// indisponibilidad fue derogada por el SRI).
	EmisionNormal = "1"
)

// =============================================================================
// Tabla 16/17 - Impuestos y tarifas (campos codigo y codigoPorcentaje)
// =============================================================================

const (
	TaxCodeIVA = "2" // IVA
	TaxCodeICE = "3" // ICE
	TaxCodeIRBPNR = "5" // Impuesto redimible botellas plásticas
)

// Códigos de porcentaje IVA (codigoPorcentaje dentro de totalImpuesto/impuesto).
const (
	IVABracketCero       = "0" // Tarifa 0%
	IVABracketDoce       = "2" // Tarifa estándar (12% histórico; el código cubre la tarifa vigente)
	IVABracketCatorce    = "3" // Tarifa 14%
	IVABracketNoObjeto   = "6" // No objeto de impuesto
	IVABracketExento     = "7" // Exento de IVA
)

// =============================================================================
// Tabla 24 - Formas de pago
// =============================================================================

const (
	PaymentCash          = "01" // Sin utilización del sistema financiero (efectivo)
	PaymentDebitoBancario = "20" // Otros con utilización del sistema financiero
	PaymentTarjetaCredito = "19" // Tarjeta de crédito
	PaymentDineroElectronico = "17" // Dinero electrónico
)

// ValidPaymentCodes formas de pago de uso común en facturación.
var ValidPaymentCodes = map[string]bool{
	PaymentCash: true, PaymentDebitoBancario: true,
	PaymentTarjetaCredito: true, PaymentDineroElectronico: true,
	"16": true, "18": true, "21": true,
}

// =============================================================================
// Tabla 6 - Tipos de identificación del comprador
// =============================================================================

const (
	IdentificationTypeRUC          = "04" // RUC
	IdentificationTypeCedula       = "05" // Cédula
	IdentificationTypePasaporte    = "06" // Pasaporte
	IdentificationTypeConsumidorFinal = "07" // Consumidor final (9999999999999)
)

// ConsumidorFinalID identificación genérica para ventas a consumidor final.
const ConsumidorFinalID = "9999999999999"
