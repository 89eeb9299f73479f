package entity

import "github.com/shopspring/decimal"

// InvoiceDetail representa una línea de detalle de una factura.
// Subtotal = Cantidad×PrecioUnitario − Descuento; ValorIVA = Subtotal×TarifaIVA/100,
// redondeado a 2 decimales (ver RecomputeLineAmounts).
type InvoiceDetail struct {
	ID             string
	InvoiceID      string
	CodigoPrincipal string // SKU o código del producto
	Descripcion    string
	Cantidad       decimal.Decimal
	PrecioUnitario decimal.Decimal
	Descuento      decimal.Decimal
	Subtotal       decimal.Decimal // precioTotalSinImpuesto
	TarifaIVA      decimal.Decimal // porcentaje, ej: 12
	ValorIVA       decimal.Decimal
	TarifaICE      decimal.Decimal // porcentaje; 0 si no aplica
	ValorICE       decimal.Decimal
}

// RecomputeLineAmounts deriva subtotal e impuestos de la línea a partir de
// cantidad, precio, descuento y tarifas.
func (d *InvoiceDetail) RecomputeLineAmounts() {
	cien := decimal.NewFromInt(100)
	d.Subtotal = d.Cantidad.Mul(d.PrecioUnitario).Sub(d.Descuento).Round(2)
	d.ValorIVA = d.Subtotal.Mul(d.TarifaIVA).Div(cien).Round(2)
	if d.TarifaICE.IsPositive() {
		d.ValorICE = d.Subtotal.Mul(d.TarifaICE).Div(cien).Round(2)
	} else {
		d.ValorICE = decimal.Zero
	}
}

// InvoicePayment representa una forma de pago declarada en la factura.
// La suma de pagos se espera igual al importe total, pero no se exige.
type InvoicePayment struct {
	ID        string
	InvoiceID string
	FormaPago string // código tabla 24 SRI (ej: "01" efectivo)
	Total     decimal.Decimal
	Plazo     int    // días; 0 = contado
	UnidadTiempo string // "dias" cuando Plazo > 0
}
