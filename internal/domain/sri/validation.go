// Package sri contiene la lógica de dominio de comprobantes electrónicos SRI
// (Ecuador): clave de acceso y validaciones previas a la emisión.
package sri

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	pkgsri "github.com/tu-usuario/facturador-sri/pkg/sri"
)

// ValidateInvoice valida la factura, sus líneas y pagos antes de asignar clave
// de acceso. Comprueba la identificación del comprador según su tipo y que los
// totales de la cabecera coincidan con la suma de las líneas.
func ValidateInvoice(
	invoice *entity.Invoice,
	details []*entity.InvoiceDetail,
	payments []*entity.InvoicePayment,
	customer *entity.Customer,
) error {
	if invoice == nil {
		return fmt.Errorf("%w: factura nula", domain.ErrValidation)
	}
	var errs []error

	if customer == nil {
		errs = append(errs, fmt.Errorf("%w: comprador requerido", domain.ErrValidation))
	} else {
		if err := validateCustomerID(customer); err != nil {
			errs = append(errs, err)
		}
	}

	if len(details) == 0 {
		errs = append(errs, fmt.Errorf("%w: la factura debe tener al menos una línea", domain.ErrValidation))
	} else {
		var sumSubtotal, sumIVA, sumICE decimal.Decimal
		for i, d := range details {
			if !d.Cantidad.IsPositive() {
				errs = append(errs, fmt.Errorf("%w: línea %d con cantidad no positiva", domain.ErrValidation, i+1))
			}
			if d.PrecioUnitario.IsNegative() || d.Descuento.IsNegative() {
				errs = append(errs, fmt.Errorf("%w: línea %d con precio o descuento negativo", domain.ErrValidation, i+1))
			}
			sumSubtotal = sumSubtotal.Add(d.Subtotal)
			sumIVA = sumIVA.Add(d.ValorIVA)
			sumICE = sumICE.Add(d.ValorICE)
		}
		if !invoice.SubtotalSinImpuestos.Equal(sumSubtotal.Round(2)) {
			errs = append(errs, fmt.Errorf("subtotal sin impuestos (%s) no coincide con la suma de líneas (%s)",
				invoice.SubtotalSinImpuestos.String(), sumSubtotal.Round(2).String()))
		}
		if !invoice.ValorIVA.Equal(sumIVA.Round(2)) {
			errs = append(errs, fmt.Errorf("valor IVA (%s) no coincide con la suma por líneas (%s)",
				invoice.ValorIVA.String(), sumIVA.Round(2).String()))
		}
		expectedTotal := invoice.SubtotalSinImpuestos.Add(invoice.ValorIVA).Add(invoice.ValorICE).Add(invoice.Propina).Round(2)
		if !invoice.ImporteTotal.Equal(expectedTotal) {
			errs = append(errs, fmt.Errorf("importe total (%s) no coincide con subtotal + IVA + ICE + propina (%s)",
				invoice.ImporteTotal.String(), expectedTotal.String()))
		}
	}

	if len(payments) == 0 {
		errs = append(errs, fmt.Errorf("%w: la factura debe declarar al menos una forma de pago", domain.ErrValidation))
	} else {
		// La suma de pagos no se compara contra el importe total: se espera que
		// coincida pero no se exige (ver SumPayments para el aviso en el caso de uso).
		for _, p := range payments {
			if !pkgsri.ValidPaymentCodes[p.FormaPago] {
				errs = append(errs, fmt.Errorf("%w: forma de pago desconocida %q", domain.ErrValidation, p.FormaPago))
			}
			if p.Total.IsNegative() {
				errs = append(errs, fmt.Errorf("%w: pago con monto negativo", domain.ErrValidation))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{domain.ErrValidation}, errs...)...)
	}
	return nil
}

// SumPayments suma los montos de las formas de pago, redondeada a 2 decimales.
// Sirve para detectar (sin rechazar) pagos que no igualan el importe total.
func SumPayments(payments []*entity.InvoicePayment) decimal.Decimal {
	var sum decimal.Decimal
	for _, p := range payments {
		sum = sum.Add(p.Total)
	}
	return sum.Round(2)
}

// validateCustomerID valida la identificación del comprador según su tipo
// (tabla 6 SRI): RUC con verificador, cédula módulo 10, consumidor final fijo.
func validateCustomerID(c *entity.Customer) error {
	switch c.TipoIdentificacion {
	case pkgsri.IdentificationTypeRUC:
		if err := pkgsri.ValidateRUC(c.Identificacion); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	case pkgsri.IdentificationTypeCedula:
		if err := pkgsri.ValidateCedula(c.Identificacion); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	case pkgsri.IdentificationTypeConsumidorFinal:
		if c.Identificacion != pkgsri.ConsumidorFinalID {
			return fmt.Errorf("%w: consumidor final debe identificarse como %s", domain.ErrValidation, pkgsri.ConsumidorFinalID)
		}
	case pkgsri.IdentificationTypePasaporte:
		if c.Identificacion == "" {
			return fmt.Errorf("%w: pasaporte vacío", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: tipo de identificación desconocido %q", domain.ErrValidation, c.TipoIdentificacion)
	}
	return nil
}
