package dto

import "github.com/shopspring/decimal"

// CreateCustomerRequest body para POST /api/customers.
type CreateCustomerRequest struct {
	RazonSocial        string `json:"razon_social"`
	Identificacion     string `json:"identificacion"`
	TipoIdentificacion string `json:"tipo_identificacion"` // tabla 6 SRI: "04" RUC, "05" cédula, "06" pasaporte, "07" consumidor final
	Email              string `json:"email,omitempty"`
	Telefono           string `json:"telefono,omitempty"`
	Direccion          string `json:"direccion,omitempty"`
}

// CustomerResponse comprador en respuestas.
type CustomerResponse struct {
	ID                 string `json:"id"`
	CompanyID          string `json:"company_id"`
	RazonSocial        string `json:"razon_social"`
	Identificacion     string `json:"identificacion"`
	TipoIdentificacion string `json:"tipo_identificacion"`
	Email              string `json:"email,omitempty"`
	Telefono           string `json:"telefono,omitempty"`
	Direccion          string `json:"direccion,omitempty"`
}

// CreateInvoiceRequest body para POST /api/invoices.
// El secuencial NO se acepta del cliente: lo reserva el servidor dentro de la
// transacción de emisión.
type CreateInvoiceRequest struct {
	CustomerID string                `json:"customer_id"`
	Items      []InvoiceItemRequest  `json:"items"`
	Payments   []InvoicePaymentInput `json:"payments"`
	Propina    decimal.Decimal       `json:"propina,omitempty"`
	Process    bool                  `json:"process"` // true = disparar firma y envío al SRI al crear
}

// InvoiceItemRequest línea de factura.
type InvoiceItemRequest struct {
	CodigoPrincipal string          `json:"codigo_principal"`
	Descripcion     string          `json:"descripcion"`
	Cantidad        decimal.Decimal `json:"cantidad"`
	PrecioUnitario  decimal.Decimal `json:"precio_unitario"`
	Descuento       decimal.Decimal `json:"descuento,omitempty"`
	TarifaIVA       decimal.Decimal `json:"tarifa_iva"`           // porcentaje: 0, 12, 14
	TarifaICE       decimal.Decimal `json:"tarifa_ice,omitempty"` // porcentaje; 0 = no aplica
}

// InvoicePaymentInput forma de pago declarada (tabla 24 SRI).
type InvoicePaymentInput struct {
	FormaPago    string          `json:"forma_pago"`
	Total        decimal.Decimal `json:"total"`
	Plazo        int             `json:"plazo,omitempty"`
	UnidadTiempo string          `json:"unidad_tiempo,omitempty"`
}

// InvoiceResponse factura con detalle para GET /api/invoices/:id.
type InvoiceResponse struct {
	ID                 string                  `json:"id"`
	CompanyID          string                  `json:"company_id"`
	CustomerID         string                  `json:"customer_id"`
	CustomerName       string                  `json:"customer_name,omitempty"`
	Serie              string                  `json:"serie"` // estab-ptoEmi-secuencial
	FechaEmision       string                  `json:"fecha_emision"`
	ClaveAcceso        string                  `json:"clave_acceso"`
	Subtotal           decimal.Decimal         `json:"subtotal_sin_impuestos"`
	TotalDescuento     decimal.Decimal         `json:"total_descuento"`
	ValorIVA           decimal.Decimal         `json:"valor_iva"`
	ValorICE           decimal.Decimal         `json:"valor_ice,omitempty"`
	Propina            decimal.Decimal         `json:"propina,omitempty"`
	ImporteTotal       decimal.Decimal         `json:"importe_total"`
	Status             string                  `json:"status"`
	NumeroAutorizacion string                  `json:"numero_autorizacion,omitempty"`
	FechaAutorizacion  string                  `json:"fecha_autorizacion,omitempty"`
	Details            []InvoiceDetailResponse `json:"details"`
	Payments           []InvoicePaymentInput   `json:"payments,omitempty"`
}

// InvoiceDetailResponse línea de detalle en la respuesta.
type InvoiceDetailResponse struct {
	ID              string          `json:"id"`
	CodigoPrincipal string          `json:"codigo_principal"`
	Descripcion     string          `json:"descripcion"`
	Cantidad        decimal.Decimal `json:"cantidad"`
	PrecioUnitario  decimal.Decimal `json:"precio_unitario"`
	Descuento       decimal.Decimal `json:"descuento,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TarifaIVA       decimal.Decimal `json:"tarifa_iva"`
	ValorIVA        decimal.Decimal `json:"valor_iva"`
}

// SubmissionLogResponse registro de la bitácora SRI.
type SubmissionLogResponse struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Process   string `json:"process"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail"`
	CreatedAt string `json:"created_at"`
}
