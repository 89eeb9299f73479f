package entity

import "time"

// Procesos registrados en la bitácora de interacción con el SRI.
const (
	ProcessSubmit    = "SUBMIT"    // envío al WS de recepción
	ProcessAuthorize = "AUTHORIZE" // consulta al WS de autorización
	ProcessEmail     = "EMAIL"     // notificación al comprador
)

// Resultados posibles de cada interacción.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeError   = "ERROR"
)

// SubmissionLog es un registro inmutable de una interacción con el SRI o de un
// efecto colateral del ciclo (email). Se crea, nunca se modifica: la bitácora
// es append-only y forma la pista de auditoría por factura. InvoiceID puede
// estar vacío cuando el fallo ocurre antes de que exista la factura.
type SubmissionLog struct {
	ID        string
	CompanyID string
	InvoiceID string // opcional
	Process   string // ProcessSubmit | ProcessAuthorize | ProcessEmail
	Outcome   string // OutcomeSuccess | OutcomeError
	Detail    string // payload crudo de respuesta o texto del error
	CreatedAt time.Time
}
