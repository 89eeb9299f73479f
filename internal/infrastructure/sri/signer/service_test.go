package signer_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturador-sri/internal/domain"
	"github.com/tu-usuario/facturador-sri/internal/infrastructure/sri/signer"
)

// selfSignedCert genera un certificado RSA autofirmado con la ventana de
// vigencia indicada.
func selfSignedCert(t *testing.T, notBefore, notAfter time.Time) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1234),
		Subject:      pkix.Name{CommonName: "FIRMA PRUEBAS", Organization: []string{"Comercial Andina S.A."}},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}
}

const facturaMinima = `<?xml version="1.0" encoding="UTF-8"?>
<factura id="comprobante" version="1.1.0">
  <infoTributaria>
    <ruc>1790011674001</ruc>
    <claveAcceso>1003202601179001167400110010010000000011234567818</claveAcceso>
  </infoTributaria>
</factura>`

func TestSign_EstructuraFirma(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))

	signed, err := svc.Sign([]byte(facturaMinima), cert)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	root := doc.Root()
	require.Equal(t, "factura", root.Tag)

	// La firma debe ser el último hijo del raíz.
	children := root.ChildElements()
	require.NotEmpty(t, children)
	sig := children[len(children)-1]
	assert.Equal(t, "Signature", trimPrefix(sig.Tag))

	signedInfo := sig.FindElement("./SignedInfo")
	if signedInfo == nil {
		signedInfo = sig.FindElement("./ds:SignedInfo")
	}
	require.NotNil(t, signedInfo)

	refs := signedInfo.FindElements("./Reference")
	if len(refs) == 0 {
		refs = signedInfo.FindElements("./ds:Reference")
	}
	require.Len(t, refs, 2)
	assert.Equal(t, "#comprobante", refs[0].SelectAttrValue("URI", ""))
	assert.Equal(t, "#signed-props", refs[1].SelectAttrValue("URI", ""))

	// DigestValue y SignatureValue presentes y no vacíos.
	for _, path := range []string{"//DigestValue", "//ds:DigestValue"} {
		for _, dv := range sig.FindElements(path) {
			assert.NotEmpty(t, dv.Text())
		}
	}

	// El contenido original se preserva.
	it := root.SelectElement("infoTributaria")
	require.NotNil(t, it)
	assert.Equal(t, "1790011674001", it.SelectElement("ruc").Text())
}

func trimPrefix(tag string) string {
	for i := len(tag) - 1; i >= 0; i-- {
		if tag[i] == ':' {
			return tag[i+1:]
		}
	}
	return tag
}

func TestSign_FirmaDeterministaPorDocumento(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))

	a, err := svc.Sign([]byte(facturaMinima), cert)
	require.NoError(t, err)
	b, err := svc.Sign([]byte(facturaMinima), cert)
	require.NoError(t, err)
	// SigningTime puede variar entre llamadas, pero ambas producen firmas
	// estructuralmente válidas sobre el mismo documento.
	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b)
}

func TestSign_CertificadoExpirado(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	cert := selfSignedCert(t, time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))

	_, err := svc.Sign([]byte(facturaMinima), cert)
	assert.ErrorIs(t, err, domain.ErrCertificate)
}

func TestSign_CertificadoAunNoVigente(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	cert := selfSignedCert(t, time.Now().Add(24*time.Hour), time.Now().Add(48*time.Hour))

	_, err := svc.Sign([]byte(facturaMinima), cert)
	assert.ErrorIs(t, err, domain.ErrCertificate)
}

func TestSign_XMLVacio(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	_, err := svc.Sign(nil, cert)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSign_SinIDComprobante(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	_, err := svc.Sign([]byte(`<factura version="1.1.0"></factura>`), cert)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckValidity(t *testing.T) {
	cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	assert.NoError(t, signer.CheckValidity(cert.Leaf, time.Now()))
	assert.ErrorIs(t, signer.CheckValidity(cert.Leaf, time.Now().Add(-2*time.Hour)), domain.ErrCertificate)
	assert.ErrorIs(t, signer.CheckValidity(cert.Leaf, time.Now().Add(2*time.Hour)), domain.ErrCertificate)
}

func TestLoadFromP12_ArchivoInexistente(t *testing.T) {
	_, err := signer.LoadFromP12("/no/existe/firma.p12", "secreto")
	assert.ErrorIs(t, err, domain.ErrCertificate)
}

func TestInspect(t *testing.T) {
	cert := selfSignedCert(t, time.Now().Add(-time.Hour), time.Now().Add(30*24*time.Hour))

	info, err := signer.Inspect(cert)
	require.NoError(t, err)
	assert.Contains(t, info.Subject, "FIRMA PRUEBAS")
	assert.True(t, info.Vigente)
	assert.GreaterOrEqual(t, info.DiasPorVencer, 29)

	_, err = signer.Inspect(tls.Certificate{})
	assert.ErrorIs(t, err, domain.ErrCertificate)
}
