package domain

import "errors"

// Errores de dominio (sin dependencias externas).
//
// La taxonomía del ciclo SRI distingue qué errores se reintentan:
//   - ErrValidation:        datos de entrada inválidos; no se reintenta, se devuelve al caller.
//   - ErrCertificate:       certificado de firma ausente, corrupto o fuera de vigencia;
//     no se reintenta automáticamente, requiere intervención del operador.
//   - ErrTransport:         fallo de red o del WS del SRI; se reintenta con backoff acotado.
//   - ErrProtocolRejection: el SRI rechazó explícitamente el comprobante; terminal.
//   - ErrStateConflict:     transición inválida para el estado actual de la factura;
//     se registra en log y se trata como no-op, nunca como crash.
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrValidation        = errors.New("datos inválidos para el comprobante")
	ErrCertificate       = errors.New("certificado de firma inválido")
	ErrTransport         = errors.New("fallo de comunicación con el SRI")
	ErrProtocolRejection = errors.New("comprobante rechazado por el SRI")
	ErrStateConflict     = errors.New("transición inválida para el estado de la factura")
)
