// Package email implementa la notificación al comprador por correo cuando su
// comprobante queda autorizado, con el XML autorizado adjunto.
package email

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/tu-usuario/facturador-sri/internal/application/billing"
	"github.com/tu-usuario/facturador-sri/internal/domain/entity"
	"github.com/tu-usuario/facturador-sri/pkg/config"
	"github.com/tu-usuario/facturador-sri/pkg/logger"
)

// SMTPNotifier envía el correo de comprobante autorizado vía SMTP.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
	log    *logger.Logger
}

var _ billing.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier construye el notificador a partir de la configuración SMTP.
func NewSMTPNotifier(cfg config.SMTPConfig, log *logger.Logger) *SMTPNotifier {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   from,
		log:    log,
	}
}

// SendAuthorized envía al comprador el aviso de autorización con el XML
// autorizado adjunto. Si el comprador no tiene correo registrado no hay nada
// que enviar y no es un error.
func (n *SMTPNotifier) SendAuthorized(ctx context.Context, company *entity.Company, customer *entity.Customer, invoice *entity.Invoice, xmlAutorizado []byte) error {
	if customer == nil || customer.Email == "" {
		n.log.Debug().
			Str("invoice_id", invoice.ID).
			Msg("comprador sin correo registrado, se omite la notificación")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	emisor := company.NombreComercial
	if emisor == "" {
		emisor = company.RazonSocial
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", customer.Email)
	m.SetHeader("Subject", fmt.Sprintf("Factura electrónica %s - %s", invoice.Serie(), emisor))
	m.SetBody("text/plain", buildBody(emisor, customer, invoice))
	m.Attach(invoice.ClaveAcceso+".xml", gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(xmlAutorizado)
		return err
	}))

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("envío de correo a %s: %w", customer.Email, err)
	}

	n.log.Info().
		Str("invoice_id", invoice.ID).
		Str("to", customer.Email).
		Msg("notificación de autorización enviada")
	return nil
}

func buildBody(emisor string, customer *entity.Customer, invoice *entity.Invoice) string {
	return fmt.Sprintf(`Estimado/a %s:

Su factura electrónica %s emitida por %s fue autorizada por el SRI.

Número de autorización: %s
Clave de acceso: %s
Importe total: USD %s

Se adjunta el comprobante autorizado en formato XML.
`,
		customer.RazonSocial,
		invoice.Serie(),
		emisor,
		invoice.NumeroAutorizacion,
		invoice.ClaveAcceso,
		invoice.ImporteTotal.StringFixed(2),
	)
}
