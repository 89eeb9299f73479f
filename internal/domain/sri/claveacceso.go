// Package sri: generación de la clave de acceso de 49 dígitos según la ficha
// técnica de Comprobantes Electrónicos del SRI (Ecuador).
// Algoritmo del verificador: módulo 11 con pesos cíclicos 2..7 de derecha a izquierda.

package sri

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/tu-usuario/facturador-sri/internal/domain"
	pkgsri "github.com/tu-usuario/facturador-sri/pkg/sri"
)

// ClaveAccesoParams contiene los campos de ancho fijo que componen la clave.
type ClaveAccesoParams struct {
	FechaEmision    time.Time // se serializa como ddmmaaaa (8)
	CodDoc          string    // tipo de comprobante (2), ej: "01" factura
	RUC             string    // RUC del emisor (13)
	Ambiente        string    // "1" pruebas, "2" producción (1)
	Establecimiento string    // (3)
	PuntoEmision    string    // (3)
	Secuencial      string    // hasta 9 dígitos; se rellena con ceros a la izquierda
	CodigoNumerico  string    // 8 dígitos; vacío = se genera aleatorio
}

// ClaveAccesoService genera y valida claves de acceso.
type ClaveAccesoService struct{}

// NewClaveAccesoService crea el servicio.
func NewClaveAccesoService() *ClaveAccesoService {
	return &ClaveAccesoService{}
}

// Generate construye la clave de acceso: 48 dígitos de campos concatenados más
// el dígito verificador módulo 11. Determinista salvo CodigoNumerico aleatorio.
//
// Orden y anchos: fecha ddmmaaaa (8) + codDoc (2) + RUC (13) + ambiente (1) +
// estab (3) + ptoEmi (3) + secuencial (9) + código numérico (8) + tipoEmisión "1" (1).
func (s *ClaveAccesoService) Generate(p *ClaveAccesoParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: ClaveAccesoParams es obligatorio", domain.ErrValidation)
	}
	if p.FechaEmision.IsZero() {
		return "", fmt.Errorf("%w: fecha de emisión es obligatoria", domain.ErrValidation)
	}

	codDoc := p.CodDoc
	if codDoc == "" {
		codDoc = pkgsri.DocTypeFactura
	}
	fields := []struct {
		name  string
		value string
		width int
		pad   bool // true: rellenar con ceros a la izquierda; false: ancho exacto
	}{
		{"codDoc", codDoc, 2, false},
		{"ruc", onlyDigits(p.RUC), 13, false},
		{"ambiente", p.Ambiente, 1, false},
		{"establecimiento", p.Establecimiento, 3, true},
		{"puntoEmision", p.PuntoEmision, 3, true},
		{"secuencial", strings.TrimSpace(p.Secuencial), 9, true},
	}

	var sb strings.Builder
	sb.WriteString(p.FechaEmision.Format("02012006"))
	for _, f := range fields {
		v := f.value
		if f.pad {
			if len(v) > f.width {
				return "", fmt.Errorf("%w: %s %q excede el ancho de %d dígitos", domain.ErrValidation, f.name, v, f.width)
			}
			v = strings.Repeat("0", f.width-len(v)) + v
		}
		if len(v) != f.width {
			return "", fmt.Errorf("%w: %s %q debe tener %d dígitos", domain.ErrValidation, f.name, v, f.width)
		}
		if !isNumeric(v) {
			return "", fmt.Errorf("%w: %s %q contiene caracteres no numéricos", domain.ErrValidation, f.name, v)
		}
		sb.WriteString(v)
	}

	codigoNumerico := p.CodigoNumerico
	if codigoNumerico == "" {
		var err error
		codigoNumerico, err = randomNumericCode()
		if err != nil {
			return "", fmt.Errorf("generar código numérico: %w", err)
		}
	}
	if len(codigoNumerico) != 8 || !isNumeric(codigoNumerico) {
		return "", fmt.Errorf("%w: código numérico %q debe tener 8 dígitos", domain.ErrValidation, codigoNumerico)
	}
	sb.WriteString(codigoNumerico)
	sb.WriteString(pkgsri.EmisionNormal)

	prefix := sb.String() // 48 dígitos
	return prefix + string('0'+byte(CheckDigit(prefix))), nil
}

// CheckDigit calcula el dígito verificador módulo 11 de una cadena numérica:
// pesos cíclicos 2,3,4,5,6,7 de derecha a izquierda; residuo 0 → 0, 1 → 1,
// en otro caso 11 − residuo.
func CheckDigit(digits string) int {
	weight := 2
	sum := 0
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch rem := sum % 11; rem {
	case 0:
		return 0
	case 1:
		return 1
	default:
		return 11 - rem
	}
}

// Validate comprueba que una clave de acceso tenga 49 dígitos numéricos y que
// el verificador coincida con el recomputado sobre los 48 primeros.
func Validate(claveAcceso string) error {
	if len(claveAcceso) != 49 {
		return fmt.Errorf("%w: la clave de acceso debe tener 49 dígitos, tiene %d", domain.ErrValidation, len(claveAcceso))
	}
	if !isNumeric(claveAcceso) {
		return fmt.Errorf("%w: la clave de acceso contiene caracteres no numéricos", domain.ErrValidation)
	}
	expected := CheckDigit(claveAcceso[:48])
	if int(claveAcceso[48]-'0') != expected {
		return fmt.Errorf("%w: dígito verificador de la clave inválido: esperado %d, recibido %c", domain.ErrValidation, expected, claveAcceso[48])
	}
	return nil
}

func randomNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
