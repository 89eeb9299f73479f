package sri_test

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/internal/infrastructure/sri"
)

// buildContext arma un contexto de factura coherente: dos líneas (12% y 0%) y
// un pago en efectivo por el total.
func buildContext() *sri.InvoiceBuildContext {
	d1 := &entity.InvoiceDetail{
		CodigoPrincipal: "SKU-1",
		Descripcion:     "Teclado mecánico",
		Cantidad:        decimal.NewFromInt(2),
		PrecioUnitario:  decimal.RequireFromString("10.00"),
		TarifaIVA:       decimal.NewFromInt(12),
	}
	d1.RecomputeLineAmounts()
	d2 := &entity.InvoiceDetail{
		CodigoPrincipal: "SKU-2",
		Descripcion:     "Pan integral",
		Cantidad:        decimal.NewFromInt(3),
		PrecioUnitario:  decimal.RequireFromString("1.50"),
		TarifaIVA:       decimal.Zero,
	}
	d2.RecomputeLineAmounts()
	details := []*entity.InvoiceDetail{d1, d2}

	inv := &entity.Invoice{
		ClaveAcceso:     "1003202601179001167400110010010000000011234567818",
		Establecimiento: "001",
		PuntoEmision:    "001",
		Secuencial:      "000000001",
		FechaEmision:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	inv.RecomputeTotals(details)

	return &sri.InvoiceBuildContext{
		Invoice: inv,
		Company: &entity.Company{
			RUC:             "1790011674001",
			RazonSocial:     "Comercial Andina S.A.",
			NombreComercial: "Andina",
			DirMatriz:       "Av. Amazonas N34-120, Quito",
			Ambiente:        "1",
		},
		Customer: &entity.Customer{
			RazonSocial:        "Juan Pérez",
			Identificacion:     "1710034065",
			TipoIdentificacion: "05",
		},
		Details: details,
		Payments: []*entity.InvoicePayment{{
			FormaPago: "01",
			Total:     inv.ImporteTotal,
		}},
		InfoAdicional: []sri.CampoAdicional{{Nombre: "email", Valor: "juan@example.com"}},
	}
}

func parseFactura(t *testing.T, xmlBytes []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xmlBytes))
	root := doc.Root()
	require.NotNil(t, root)
	require.Equal(t, "factura", root.Tag)
	return root
}

func TestBuild_RaizYOrden(t *testing.T) {
	builder := sri.NewXMLBuilderService()
	out, err := builder.Build(buildContext())
	require.NoError(t, err)

	root := parseFactura(t, out)
	assert.Equal(t, "comprobante", root.SelectAttrValue("id", ""))
	assert.Equal(t, "1.1.0", root.SelectAttrValue("version", ""))

	// El validador del SRI exige el orden fijo de las secciones.
	var tags []string
	for _, child := range root.ChildElements() {
		tags = append(tags, child.Tag)
	}
	assert.Equal(t, []string{"infoTributaria", "infoFactura", "detalles", "infoAdicional"}, tags)
}

func TestBuild_InfoTributaria(t *testing.T) {
	builder := sri.NewXMLBuilderService()
	ctx := buildContext()
	out, err := builder.Build(ctx)
	require.NoError(t, err)

	it := parseFactura(t, out).SelectElement("infoTributaria")
	require.NotNil(t, it)
	assert.Equal(t, "1", it.SelectElement("ambiente").Text())
	assert.Equal(t, "1", it.SelectElement("tipoEmision").Text())
	assert.Equal(t, "1790011674001", it.SelectElement("ruc").Text())
	assert.Equal(t, ctx.Invoice.ClaveAcceso, it.SelectElement("claveAcceso").Text())
	assert.Equal(t, "01", it.SelectElement("codDoc").Text())
	assert.Equal(t, "000000001", it.SelectElement("secuencial").Text())
}

func TestBuild_FechaYMontos(t *testing.T) {
	builder := sri.NewXMLBuilderService()
	out, err := builder.Build(buildContext())
	require.NoError(t, err)

	inf := parseFactura(t, out).SelectElement("infoFactura")
	require.NotNil(t, inf)
	assert.Equal(t, "10/03/2026", inf.SelectElement("fechaEmision").Text())
	assert.Equal(t, "24.50", inf.SelectElement("totalSinImpuestos").Text())
	assert.Equal(t, "0.00", inf.SelectElement("totalDescuento").Text())
	assert.Equal(t, "26.90", inf.SelectElement("importeTotal").Text())
	assert.Equal(t, "DOLAR", inf.SelectElement("moneda").Text())

	pagos := inf.SelectElement("pagos").SelectElements("pago")
	require.Len(t, pagos, 1)
	assert.Equal(t, "01", pagos[0].SelectElement("formaPago").Text())
	assert.Equal(t, "26.90", pagos[0].SelectElement("total").Text())
}

// TestBuild_RederivarTotales: los totales de la factura deben poder
// reconstruirse exactamente desde el desglose totalConImpuestos del propio
// documento generado.
func TestBuild_RederivarTotales(t *testing.T) {
	builder := sri.NewXMLBuilderService()
	ctx := buildContext()
	out, err := builder.Build(ctx)
	require.NoError(t, err)

	inf := parseFactura(t, out).SelectElement("infoFactura")
	require.NotNil(t, inf)

	base := decimal.Zero
	iva := decimal.Zero
	for _, ti := range inf.SelectElement("totalConImpuestos").SelectElements("totalImpuesto") {
		require.Equal(t, "2", ti.SelectElement("codigo").Text()) // solo IVA en este escenario
		base = base.Add(decimal.RequireFromString(ti.SelectElement("baseImponible").Text()))
		iva = iva.Add(decimal.RequireFromString(ti.SelectElement("valor").Text()))
	}
	propina := decimal.RequireFromString(inf.SelectElement("propina").Text())
	total := decimal.RequireFromString(inf.SelectElement("importeTotal").Text())

	assert.True(t, base.Equal(ctx.Invoice.SubtotalSinImpuestos), "base %s", base)
	assert.True(t, iva.Equal(ctx.Invoice.ValorIVA), "iva %s", iva)
	assert.True(t, base.Add(iva).Add(propina).Equal(total), "total %s", total)
}

func TestBuild_DetallesConBrackets(t *testing.T) {
	builder := sri.NewXMLBuilderService()
	out, err := builder.Build(buildContext())
	require.NoError(t, err)

	detalles := parseFactura(t, out).SelectElement("detalles").SelectElements("detalle")
	require.Len(t, detalles, 2)

	imp1 := detalles[0].SelectElement("impuestos").SelectElements("impuesto")[0]
	assert.Equal(t, "2", imp1.SelectElement("codigoPorcentaje").Text()) // 12% → estándar
	assert.Equal(t, "12.00", imp1.SelectElement("tarifa").Text())
	assert.Equal(t, "20.00", imp1.SelectElement("baseImponible").Text())
	assert.Equal(t, "2.40", imp1.SelectElement("valor").Text())

	imp2 := detalles[1].SelectElement("impuestos").SelectElements("impuesto")[0]
	assert.Equal(t, "0", imp2.SelectElement("codigoPorcentaje").Text()) // tarifa 0%
	assert.Equal(t, "0.00", imp2.SelectElement("valor").Text())
}

func TestBuild_ICESoloSiAplica(t *testing.T) {
	builder := sri.NewXMLBuilderService()
	ctx := buildContext()

	// Sin ICE: ningún totalImpuesto con codigo 3.
	out, err := builder.Build(ctx)
	require.NoError(t, err)
	for _, ti := range parseFactura(t, out).FindElements("//totalConImpuestos/totalImpuesto") {
		assert.NotEqual(t, "3", ti.SelectElement("codigo").Text())
	}

	// Con ICE en la primera línea aparece el bracket con su base propia.
	ctx.Details[0].TarifaICE = decimal.NewFromInt(50)
	ctx.Details[0].RecomputeLineAmounts()
	ctx.Invoice.RecomputeTotals(ctx.Details)
	ctx.Payments[0].Total = ctx.Invoice.ImporteTotal

	out, err = builder.Build(ctx)
	require.NoError(t, err)
	var found bool
	for _, ti := range parseFactura(t, out).FindElements("//totalConImpuestos/totalImpuesto") {
		if ti.SelectElement("codigo").Text() == "3" {
			found = true
			assert.Equal(t, "20.00", ti.SelectElement("baseImponible").Text())
			assert.Equal(t, "10.00", ti.SelectElement("valor").Text())
		}
	}
	assert.True(t, found, "falta el bracket ICE en totalConImpuestos")
}

func TestBuild_InfoAdicional(t *testing.T) {
	builder := sri.NewXMLBuilderService()
	out, err := builder.Build(buildContext())
	require.NoError(t, err)

	campos := parseFactura(t, out).FindElements("//infoAdicional/campoAdicional")
	require.Len(t, campos, 1)
	assert.Equal(t, "email", campos[0].SelectAttrValue("nombre", ""))
	assert.Equal(t, "juan@example.com", campos[0].Text())
}

func TestBuild_CamposObligatorios(t *testing.T) {
	builder := sri.NewXMLBuilderService()

	ctx := buildContext()
	ctx.Company.RUC = ""
	_, err := builder.Build(ctx)
	assert.ErrorIs(t, err, domain.ErrValidation)

	ctx = buildContext()
	ctx.Invoice.ClaveAcceso = ""
	_, err = builder.Build(ctx)
	assert.ErrorIs(t, err, domain.ErrValidation)

	ctx = buildContext()
	ctx.Customer.Identificacion = ""
	_, err = builder.Build(ctx)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = builder.Build(nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
