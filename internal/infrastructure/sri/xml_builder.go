package sri

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	pkgsri "github.com/tu-usuario/facturador-sri/pkg/sri"
)

// Atributos del elemento raíz <factura> (esquema SRI v1.1.0). El id
// "comprobante" es obligatorio: la firma XAdES lo referencia.
const (
	ComprobanteID  = "comprobante"
	SchemaVersion  = "1.1.0"
	currencyDolar  = "DOLAR"
	// codigoPorcentaje genérico para ICE cuando la línea no especifica uno.
	codigoPorcentajeICE = "3023"
)

// XMLBuilderService construye el XML de la factura (sin firma XAdES).
// El orden de los elementos es fijo y lo exige el validador del SRI:
// infoTributaria → infoFactura → detalles → infoAdicional.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el []byte del documento <factura> según el esquema v1.1.0.
// Todos los montos se serializan como decimal de punto fijo con 2 decimales
// mínimos, nunca en notación científica.
func (s *XMLBuilderService) Build(ctx *InvoiceBuildContext) ([]byte, error) {
	if ctx == nil || ctx.Invoice == nil || ctx.Company == nil || ctx.Customer == nil {
		return nil, fmt.Errorf("%w: faltan invoice, company o customer en el contexto", domain.ErrValidation)
	}
	if err := s.checkRequired(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "factura"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: ComprobanteID},
			{Name: xml.Name{Local: "version"}, Value: SchemaVersion},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	s.writeInfoTributaria(enc, ctx)
	s.writeInfoFactura(enc, ctx)
	s.writeDetalles(enc, ctx)
	s.writeInfoAdicional(enc, ctx)

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// checkRequired valida la presencia de los campos obligatorios de emisor y
// comprador antes de emitir un solo token.
func (s *XMLBuilderService) checkRequired(ctx *InvoiceBuildContext) error {
	inv, com, cus := ctx.Invoice, ctx.Company, ctx.Customer
	switch {
	case com.RUC == "":
		return fmt.Errorf("%w: RUC del emisor requerido", domain.ErrValidation)
	case com.RazonSocial == "":
		return fmt.Errorf("%w: razón social del emisor requerida", domain.ErrValidation)
	case com.DirMatriz == "":
		return fmt.Errorf("%w: dirección matriz del emisor requerida", domain.ErrValidation)
	case inv.ClaveAcceso == "":
		return fmt.Errorf("%w: clave de acceso no asignada", domain.ErrValidation)
	case inv.FechaEmision.IsZero():
		return fmt.Errorf("%w: fecha de emisión requerida", domain.ErrValidation)
	case cus.RazonSocial == "":
		return fmt.Errorf("%w: razón social del comprador requerida", domain.ErrValidation)
	case cus.Identificacion == "":
		return fmt.Errorf("%w: identificación del comprador requerida", domain.ErrValidation)
	case cus.TipoIdentificacion == "":
		return fmt.Errorf("%w: tipo de identificación del comprador requerido", domain.ErrValidation)
	}
	return nil
}

func (s *XMLBuilderService) writeInfoTributaria(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	inv, com := ctx.Invoice, ctx.Company
	open(enc, "infoTributaria")
	writeEl(enc, "ambiente", com.Ambiente)
	writeEl(enc, "tipoEmision", pkgsri.EmisionNormal)
	writeEl(enc, "razonSocial", com.RazonSocial)
	if com.NombreComercial != "" {
		writeEl(enc, "nombreComercial", com.NombreComercial)
	}
	writeEl(enc, "ruc", com.RUC)
	writeEl(enc, "claveAcceso", inv.ClaveAcceso)
	writeEl(enc, "codDoc", pkgsri.DocTypeFactura)
	writeEl(enc, "estab", inv.Establecimiento)
	writeEl(enc, "ptoEmi", inv.PuntoEmision)
	writeEl(enc, "secuencial", inv.Secuencial)
	writeEl(enc, "dirMatriz", com.DirMatriz)
	closeEl(enc, "infoTributaria")
}

func (s *XMLBuilderService) writeInfoFactura(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	inv, com, cus := ctx.Invoice, ctx.Company, ctx.Customer
	open(enc, "infoFactura")
	writeEl(enc, "fechaEmision", inv.FechaEmision.Format("02/01/2006"))
	if com.DirEstablecimiento != "" {
		writeEl(enc, "dirEstablecimiento", com.DirEstablecimiento)
	}
	if com.ContribuyenteEspecial != "" {
		writeEl(enc, "contribuyenteEspecial", com.ContribuyenteEspecial)
	}
	writeEl(enc, "obligadoContabilidad", siNo(com.ObligadoContabilidad))
	writeEl(enc, "tipoIdentificacionComprador", cus.TipoIdentificacion)
	writeEl(enc, "razonSocialComprador", cus.RazonSocial)
	writeEl(enc, "identificacionComprador", cus.Identificacion)
	if cus.Direccion != "" {
		writeEl(enc, "direccionComprador", cus.Direccion)
	}
	writeEl(enc, "totalSinImpuestos", money(inv.SubtotalSinImpuestos))
	writeEl(enc, "totalDescuento", money(inv.TotalDescuento))

	// Desglose por bracket: tarifa 0% siempre que tenga base; tarifa estándar
	// con el IVA calculado; ICE solo cuando su valor es distinto de cero.
	open(enc, "totalConImpuestos")
	if inv.Subtotal0.IsPositive() || inv.SubtotalIVA.IsZero() {
		s.writeTotalImpuesto(enc, pkgsri.TaxCodeIVA, pkgsri.IVABracketCero, inv.Subtotal0, decimal.Zero)
	}
	if inv.SubtotalIVA.IsPositive() {
		s.writeTotalImpuesto(enc, pkgsri.TaxCodeIVA, pkgsri.IVABracketDoce, inv.SubtotalIVA, inv.ValorIVA)
	}
	if inv.ValorICE.IsPositive() {
		s.writeTotalImpuesto(enc, pkgsri.TaxCodeICE, codigoPorcentajeICE, s.baseICE(ctx), inv.ValorICE)
	}
	closeEl(enc, "totalConImpuestos")

	writeEl(enc, "propina", money(inv.Propina))
	writeEl(enc, "importeTotal", money(inv.ImporteTotal))
	writeEl(enc, "moneda", currencyDolar)

	open(enc, "pagos")
	for _, p := range ctx.Payments {
		open(enc, "pago")
		writeEl(enc, "formaPago", p.FormaPago)
		writeEl(enc, "total", money(p.Total))
		if p.Plazo > 0 {
			writeEl(enc, "plazo", strconv.Itoa(p.Plazo))
			writeEl(enc, "unidadTiempo", p.UnidadTiempo)
		}
		closeEl(enc, "pago")
	}
	closeEl(enc, "pagos")
	closeEl(enc, "infoFactura")
}

func (s *XMLBuilderService) writeTotalImpuesto(enc *xml.Encoder, codigo, codigoPorcentaje string, base, valor decimal.Decimal) {
	open(enc, "totalImpuesto")
	writeEl(enc, "codigo", codigo)
	writeEl(enc, "codigoPorcentaje", codigoPorcentaje)
	writeEl(enc, "baseImponible", money(base))
	writeEl(enc, "valor", money(valor))
	closeEl(enc, "totalImpuesto")
}

// baseICE suma las bases de las líneas con ICE (la base del bracket ICE no es
// el subtotal de la factura sino solo el de las líneas gravadas con ICE).
func (s *XMLBuilderService) baseICE(ctx *InvoiceBuildContext) decimal.Decimal {
	var base decimal.Decimal
	for _, d := range ctx.Details {
		if d.ValorICE.IsPositive() {
			base = base.Add(d.Subtotal)
		}
	}
	return base
}

func (s *XMLBuilderService) writeDetalles(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	open(enc, "detalles")
	for _, d := range ctx.Details {
		open(enc, "detalle")
		writeEl(enc, "codigoPrincipal", d.CodigoPrincipal)
		writeEl(enc, "descripcion", d.Descripcion)
		writeEl(enc, "cantidad", quantity(d.Cantidad))
		writeEl(enc, "precioUnitario", quantity(d.PrecioUnitario))
		writeEl(enc, "descuento", money(d.Descuento))
		writeEl(enc, "precioTotalSinImpuesto", money(d.Subtotal))

		open(enc, "impuestos")
		s.writeImpuestoLinea(enc, pkgsri.TaxCodeIVA, bracketForIVA(d.TarifaIVA), d.TarifaIVA, d.Subtotal, d.ValorIVA)
		if d.ValorICE.IsPositive() {
			s.writeImpuestoLinea(enc, pkgsri.TaxCodeICE, codigoPorcentajeICE, d.TarifaICE, d.Subtotal, d.ValorICE)
		}
		closeEl(enc, "impuestos")
		closeEl(enc, "detalle")
	}
	closeEl(enc, "detalles")
}

func (s *XMLBuilderService) writeImpuestoLinea(enc *xml.Encoder, codigo, codigoPorcentaje string, tarifa, base, valor decimal.Decimal) {
	open(enc, "impuesto")
	writeEl(enc, "codigo", codigo)
	writeEl(enc, "codigoPorcentaje", codigoPorcentaje)
	writeEl(enc, "tarifa", tarifa.StringFixed(2))
	writeEl(enc, "baseImponible", money(base))
	writeEl(enc, "valor", money(valor))
	closeEl(enc, "impuesto")
}

func (s *XMLBuilderService) writeInfoAdicional(enc *xml.Encoder, ctx *InvoiceBuildContext) {
	if len(ctx.InfoAdicional) == 0 {
		return
	}
	open(enc, "infoAdicional")
	for _, campo := range ctx.InfoAdicional {
		_ = enc.EncodeToken(xml.StartElement{
			Name: xml.Name{Local: "campoAdicional"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "nombre"}, Value: campo.Nombre}},
		})
		_ = enc.EncodeToken(xml.CharData(campo.Valor))
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "campoAdicional"}})
	}
	closeEl(enc, "infoAdicional")
}

// bracketForIVA mapea la tarifa al codigoPorcentaje de la tabla SRI:
// 0% → "0"; 14% → "3"; cualquier otra tarifa positiva → "2" (estándar).
func bracketForIVA(tarifa decimal.Decimal) string {
	switch {
	case tarifa.IsZero():
		return pkgsri.IVABracketCero
	case tarifa.Equal(decimal.NewFromInt(14)):
		return pkgsri.IVABracketCatorce
	default:
		return pkgsri.IVABracketDoce
	}
}

// ── helpers de serialización ──────────────────────────────────────────────────

func open(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func closeEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeEl(enc *xml.Encoder, local, value string) {
	open(enc, local)
	_ = enc.EncodeToken(xml.CharData(value))
	closeEl(enc, local)
}

// money serializa montos con exactamente 2 decimales (sin notación científica).
func money(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// quantity serializa cantidades y precios unitarios conservando hasta 6
// decimales significativos, con mínimo 2.
func quantity(d decimal.Decimal) string {
	if d.Exponent() < -2 {
		return d.Round(6).String()
	}
	return d.StringFixed(2)
}

func siNo(b bool) string {
	if b {
		return "SI"
	}
	return "NO"
}
