package sri_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/domain/sri"
)

// buildValidInvoice arma una factura coherente: una línea 2 × 10.00 al 12% y
// un pago en efectivo por el total.
func buildValidInvoice() (*entity.Invoice, []*entity.InvoiceDetail, []*entity.InvoicePayment, *entity.Customer) {
	d := &entity.InvoiceDetail{
		CodigoPrincipal: "SKU-1",
		Descripcion:     "Producto de prueba",
		Cantidad:        decimal.NewFromInt(2),
		PrecioUnitario:  decimal.RequireFromString("10.00"),
		TarifaIVA:       decimal.NewFromInt(12),
	}
	d.RecomputeLineAmounts()
	details := []*entity.InvoiceDetail{d}

	inv := &entity.Invoice{
		Establecimiento: "001",
		PuntoEmision:    "001",
		Secuencial:      "000000001",
		FechaEmision:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	inv.RecomputeTotals(details)

	payments := []*entity.InvoicePayment{{
		FormaPago: "01",
		Total:     inv.ImporteTotal,
	}}
	customer := &entity.Customer{
		RazonSocial:        "Juan Pérez",
		Identificacion:     "1710034065",
		TipoIdentificacion: "05",
	}
	return inv, details, payments, customer
}

func TestValidateInvoice_OK(t *testing.T) {
	inv, details, payments, customer := buildValidInvoice()
	assert.NoError(t, sri.ValidateInvoice(inv, details, payments, customer))
}

// TestRecomputeTotals_Invariante: importe_total == subtotal_sin_impuestos +
// valor_iva + valor_ice + propina para conjuntos arbitrarios de líneas.
func TestRecomputeTotals_Invariante(t *testing.T) {
	cases := [][]*entity.InvoiceDetail{
		{
			{Cantidad: decimal.NewFromInt(1), PrecioUnitario: decimal.RequireFromString("99.99"), TarifaIVA: decimal.NewFromInt(12)},
		},
		{
			{Cantidad: decimal.NewFromInt(3), PrecioUnitario: decimal.RequireFromString("5.25"), TarifaIVA: decimal.Zero},
			{Cantidad: decimal.NewFromInt(2), PrecioUnitario: decimal.RequireFromString("10.10"), TarifaIVA: decimal.NewFromInt(12), Descuento: decimal.RequireFromString("1.00")},
			{Cantidad: decimal.NewFromInt(1), PrecioUnitario: decimal.RequireFromString("40.00"), TarifaIVA: decimal.NewFromInt(12), TarifaICE: decimal.NewFromInt(50)},
		},
	}
	for _, details := range cases {
		for _, d := range details {
			d.RecomputeLineAmounts()
		}
		inv := &entity.Invoice{Propina: decimal.RequireFromString("1.50")}
		inv.RecomputeTotals(details)

		expected := inv.SubtotalSinImpuestos.Add(inv.ValorIVA).Add(inv.ValorICE).Add(inv.Propina).Round(2)
		assert.True(t, inv.ImporteTotal.Equal(expected),
			"importe total %s != subtotal+IVA+ICE+propina %s", inv.ImporteTotal, expected)
		// El subtotal se reparte exactamente entre brackets 0% y gravado.
		assert.True(t, inv.SubtotalSinImpuestos.Equal(inv.Subtotal0.Add(inv.SubtotalIVA)))
	}
}

// TestEscenarioReferencia: 2 × 10.00 al 12% sin descuento, pago de 22.40 ⇒
// precioTotalSinImpuesto 20.00, IVA 2.40, importe total 22.40.
func TestEscenarioReferencia(t *testing.T) {
	inv, details, payments, _ := buildValidInvoice()

	require.Len(t, details, 1)
	assert.Equal(t, "20.00", details[0].Subtotal.StringFixed(2))
	assert.Equal(t, "2.40", details[0].ValorIVA.StringFixed(2))
	assert.Equal(t, "20.00", inv.SubtotalSinImpuestos.StringFixed(2))
	assert.Equal(t, "2.40", inv.ValorIVA.StringFixed(2))
	assert.Equal(t, "22.40", inv.ImporteTotal.StringFixed(2))
	assert.Equal(t, "22.40", payments[0].Total.StringFixed(2))
}

func TestValidateInvoice_TotalesIncoherentes(t *testing.T) {
	inv, details, payments, customer := buildValidInvoice()
	inv.ImporteTotal = decimal.RequireFromString("99.99") // manipulado
	err := sri.ValidateInvoice(inv, details, payments, customer)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidateInvoice_SinLineas(t *testing.T) {
	inv, _, payments, customer := buildValidInvoice()
	err := sri.ValidateInvoice(inv, nil, payments, customer)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidateInvoice_SinPagos(t *testing.T) {
	inv, details, _, customer := buildValidInvoice()
	err := sri.ValidateInvoice(inv, details, nil, customer)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidateInvoice_PagosNoIgualanTotal_Tolerado(t *testing.T) {
	inv, details, payments, customer := buildValidInvoice()
	payments[0].Total = decimal.RequireFromString("10.00")
	assert.NoError(t, sri.ValidateInvoice(inv, details, payments, customer))
	assert.Equal(t, "10.00", sri.SumPayments(payments).StringFixed(2))
}

func TestValidateInvoice_CedulaInvalida(t *testing.T) {
	inv, details, payments, customer := buildValidInvoice()
	customer.Identificacion = "1710034066" // verificador incorrecto
	err := sri.ValidateInvoice(inv, details, payments, customer)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidateInvoice_RUCValido(t *testing.T) {
	inv, details, payments, customer := buildValidInvoice()
	customer.TipoIdentificacion = "04"
	customer.Identificacion = "1790011674001"
	assert.NoError(t, sri.ValidateInvoice(inv, details, payments, customer))
}

func TestValidateInvoice_ConsumidorFinal(t *testing.T) {
	inv, details, payments, customer := buildValidInvoice()
	customer.TipoIdentificacion = "07"
	customer.Identificacion = "9999999999999"
	assert.NoError(t, sri.ValidateInvoice(inv, details, payments, customer))

	customer.Identificacion = "1234567890123"
	assert.ErrorIs(t, sri.ValidateInvoice(inv, details, payments, customer), domain.ErrValidation)
}
