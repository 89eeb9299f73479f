// Herramienta de diagnóstico: inspecciona un certificado de firma sin
// levantar la API. Útil cuando recepción devuelve errores de firma y hay que
// descartar un certificado vencido o una contraseña incorrecta.
//
//	go run ./cmd/certinfo -cert firma.p12 -pass 'clave'
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tu-usuario/facturador-sri/internal/infrastructure/sri/signer"
)

func main() {
	certPath := flag.String("cert", "", "ruta al certificado (.p12/.pfx o PEM)")
	certPass := flag.String("pass", "", "contraseña del contenedor .p12")
	flag.Parse()

	if *certPath == "" {
		fmt.Fprintln(os.Stderr, "uso: certinfo -cert <archivo> [-pass <contraseña>]")
		os.Exit(2)
	}

	cert, err := loadCert(*certPath, *certPass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no se pudo cargar el certificado: %v\n", err)
		os.Exit(1)
	}

	info, err := signer.Inspect(cert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no se pudo inspeccionar el certificado: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sujeto:       %s\n", info.Subject)
	fmt.Printf("Emisor:       %s\n", info.Issuer)
	fmt.Printf("Serial:       %s\n", info.Serial)
	fmt.Printf("Válido desde: %s\n", info.NotBefore.Format("2006-01-02"))
	fmt.Printf("Válido hasta: %s\n", info.NotAfter.Format("2006-01-02"))
	if !info.Vigente {
		fmt.Println("NO VIGENTE: el SRI rechazará los comprobantes firmados con él")
		os.Exit(1)
	}
	fmt.Printf("Vigente, vence en %d días\n", info.DiasPorVencer)
}

func loadCert(path, password string) (tls.Certificate, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".p12") || strings.HasSuffix(lower, ".pfx") {
		return signer.LoadFromP12(path, password)
	}
	return signer.LoadFromPEM(path, "")
}
