package sri

import (
	"fmt"
	"unicode"
)

// pesos para el dígito verificador de RUC de sociedades privadas (módulo 11, SRI).
// Se aplican a los 9 primeros dígitos, de izquierda a derecha.
var rucSociedadWeights = [9]int{4, 3, 2, 7, 6, 5, 4, 3, 2}

// ValidateCedula valida una cédula ecuatoriana de 10 dígitos con el algoritmo
// módulo 10 del Registro Civil (coeficientes 2,1,2,1,... sobre los 9 primeros
// dígitos; productos mayores a 9 restan 9).
func ValidateCedula(cedula string) error {
	digits := extractDigits(cedula)
	if len(digits) != 10 {
		return fmt.Errorf("sri: la cédula debe tener 10 dígitos, se encontraron %d", len(digits))
	}
	province := (int(digits[0]-'0') * 10) + int(digits[1]-'0')
	if province < 1 || (province > 24 && province != 30) {
		return fmt.Errorf("sri: código de provincia inválido en la cédula: %02d", province)
	}
	var sum int
	for i := 0; i < 9; i++ {
		d := int(digits[i] - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	expected := (10 - sum%10) % 10
	if int(digits[9]-'0') != expected {
		return fmt.Errorf("sri: dígito verificador de la cédula inválido: esperado %d, recibido %c", expected, digits[9])
	}
	return nil
}

// ValidateRUC valida un RUC ecuatoriano de 13 dígitos. El tercer dígito decide
// el tipo: <6 persona natural (cédula + "001"), 9 sociedad privada (módulo 11).
// Los tres dígitos finales son el código de establecimiento y no pueden ser 000.
func ValidateRUC(ruc string) error {
	digits := extractDigits(ruc)
	if len(digits) != 13 {
		return fmt.Errorf("sri: el RUC debe tener 13 dígitos, se encontraron %d", len(digits))
	}
	if string(digits[10:]) == "000" {
		return fmt.Errorf("sri: el sufijo de establecimiento del RUC no puede ser 000")
	}
	third := digits[2] - '0'
	switch {
	case third < 6:
		return ValidateCedula(string(digits[:10]))
	case third == 9:
		return validateRUCSociedad(digits[:10])
	case third == 6:
		// RUC de entidad pública: base de 9 dígitos con su propio esquema de pesos;
		// se acepta sin validar el verificador (fuera del alcance de facturación privada).
		return nil
	default:
		return fmt.Errorf("sri: tercer dígito del RUC inválido: %c", digits[2])
	}
}

func validateRUCSociedad(digits []byte) error {
	var sum int
	for i, w := range rucSociedadWeights {
		sum += int(digits[i]-'0') * w
	}
	remainder := sum % 11
	var expected int
	switch remainder {
	case 0:
		expected = 0
	case 1:
		return fmt.Errorf("sri: base de RUC de sociedad inválida (residuo 1)")
	default:
		expected = 11 - remainder
	}
	if int(digits[9]-'0') != expected {
		return fmt.Errorf("sri: dígito verificador del RUC inválido: esperado %d, recibido %c", expected, digits[9])
	}
	return nil
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
