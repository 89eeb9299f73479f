// Package sri implementa la generación del XML de factura (esquema SRI v1.1.0)
// y el cliente SOAP de los WS de recepción y autorización de comprobantes.
package sri

import (
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
)

// CampoAdicional par clave/valor libre para el bloque infoAdicional
// (email, teléfono, observaciones). El orden de emisión es el del slice.
type CampoAdicional struct {
	Nombre string
	Valor  string
}

// InvoiceBuildContext contexto con todos los datos necesarios para construir
// el XML de la factura.
type InvoiceBuildContext struct {
	Invoice  *entity.Invoice
	Company  *entity.Company  // emisor (infoTributaria)
	Customer *entity.Customer // comprador (infoFactura)
	Details  []*entity.InvoiceDetail
	Payments []*entity.InvoicePayment

	// Opcionales
	InfoAdicional []CampoAdicional // se omite el bloque si está vacío
}
