package billing

import "time"

// RetryPolicy define cuántos intentos se permiten y cuánto esperar antes de
// cada uno. Step en cero da espera fija; positivo, backoff lineal.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Step         time.Duration
}

// FixedDelay política de espera fija entre intentos (envío a recepción).
func FixedDelay(maxAttempts int, delay time.Duration) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, InitialDelay: delay}
}

// LinearBackoff política de espera creciente (polling de autorización):
// initial, initial+step, initial+2·step, ...
func LinearBackoff(maxAttempts int, initial, step time.Duration) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, InitialDelay: initial, Step: step}
}

// Delay devuelve la espera previa al intento attempt (base 1). El primer
// intento de envío no espera; los reintentos sí.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.InitialDelay
	}
	return p.InitialDelay + time.Duration(attempt-1)*p.Step
}

// Exhausted indica si attempt ya superó el máximo permitido.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
