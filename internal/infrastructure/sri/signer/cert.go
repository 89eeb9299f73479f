// Carga e inspección del certificado de firma (.p12 PKCS#12 o par PEM).

package signer

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/tu-usuario/facturador-sri/internal/domain"
)

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// Cualquier fallo (archivo ausente, password incorrecto, contenido corrupto)
// se reporta como ErrCertificate: requiere intervención del operador, no
// reintentos.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: leer p12 %s: %v", domain.ErrCertificate, path, err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: decodificar p12 (¿password incorrecto?): %v", domain.ErrCertificate, err)
	}
	if _, ok := priv.(*rsa.PrivateKey); !ok {
		return tls.Certificate{}, fmt.Errorf("%w: el p12 no contiene una llave privada RSA", domain.ErrCertificate)
	}
	// pkcs12.Decode devuelve solo el certificado hoja; al SRI le basta.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// LoadFromPEM carga certificado y llave desde archivos PEM (separados o combinados).
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: cargar PEM: %v", domain.ErrCertificate, err)
	}
	return cert, nil
}

// CheckValidity verifica la ventana de vigencia del certificado en el instante
// dado. Distingue "aún no vigente" de "expirado" en el mensaje.
func CheckValidity(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("%w: certificado aún no vigente (válido desde %s)",
			domain.ErrCertificate, cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("%w: certificado expirado el %s",
			domain.ErrCertificate, cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// CertInfo resume los datos del certificado para el endpoint de diagnóstico.
type CertInfo struct {
	Subject    string    `json:"subject"`
	Issuer     string    `json:"issuer"`
	Serial     string    `json:"serial"`
	NotBefore  time.Time `json:"not_before"`
	NotAfter   time.Time `json:"not_after"`
	Vigente    bool      `json:"vigente"`
	DiasPorVencer int    `json:"dias_por_vencer"`
}

// Inspect devuelve el resumen del certificado cargado.
func Inspect(cert tls.Certificate) (*CertInfo, error) {
	leaf := cert.Leaf
	if leaf == nil {
		if len(cert.Certificate) == 0 {
			return nil, fmt.Errorf("%w: certificado no cargado", domain.ErrCertificate)
		}
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("%w: parsear certificado: %v", domain.ErrCertificate, err)
		}
		leaf = parsed
	}
	now := time.Now()
	return &CertInfo{
		Subject:       leaf.Subject.String(),
		Issuer:        leaf.Issuer.String(),
		Serial:        leaf.SerialNumber.Text(16),
		NotBefore:     leaf.NotBefore,
		NotAfter:      leaf.NotAfter,
		Vigente:       CheckValidity(leaf, now) == nil,
		DiasPorVencer: int(time.Until(leaf.NotAfter).Hours() / 24),
	}, nil
}

// CertDigestAndIssuerSerial devuelve el digest SHA-256 del certificado
// (Base64), el nombre del emisor y el serial decimal para XAdES.
func CertDigestAndIssuerSerial(cert *x509.Certificate) (digestB64 string, issuerName string, serial string) {
	h := sha256.Sum256(cert.Raw)
	digestB64 = base64.StdEncoding.EncodeToString(h[:])
	issuerName = cert.Issuer.String()
	serial = cert.SerialNumber.String()
	return digestB64, issuerName, serial
}
