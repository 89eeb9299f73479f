package entity

import "time"

// Company representa un emisor de comprobantes electrónicos (enfoque Ecuador).
type Company struct {
	ID                   string
	RazonSocial          string
	NombreComercial      string
	RUC                  string // RUC ecuatoriano de 13 dígitos
	DirMatriz            string
	DirEstablecimiento   string
	ObligadoContabilidad bool   // "SI"/"NO" en el XML
	ContribuyenteEspecial string // número de resolución; vacío si no aplica
	Ambiente             string // "1" pruebas, "2" producción (sri.AmbientePruebas/Produccion)
	Establecimiento      string // 3 dígitos por defecto para nuevas facturas
	PuntoEmision         string // 3 dígitos
	CertPath             string // ruta al contenedor .p12 del certificado de firma
	CertPassword         string
	Email                string
	Status               string // active, suspended, inactive
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Customer representa un comprador (receptor del comprobante).
type Customer struct {
	ID                 string
	CompanyID          string
	RazonSocial        string
	Identificacion     string // RUC, cédula o pasaporte
	TipoIdentificacion string // código tabla 6 SRI ("04" RUC, "05" cédula, ...)
	Email              string
	Telefono           string
	Direccion          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
