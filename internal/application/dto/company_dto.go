package dto

import "time"

// CreateCompanyRequest body para POST /api/companies.
// CertPassword nunca se devuelve en respuestas.
type CreateCompanyRequest struct {
	RazonSocial           string `json:"razon_social"`
	NombreComercial       string `json:"nombre_comercial,omitempty"`
	RUC                   string `json:"ruc"`
	DirMatriz             string `json:"dir_matriz"`
	DirEstablecimiento    string `json:"dir_establecimiento,omitempty"`
	ObligadoContabilidad  bool   `json:"obligado_contabilidad"`
	ContribuyenteEspecial string `json:"contribuyente_especial,omitempty"`
	Ambiente              string `json:"ambiente,omitempty"` // "1" pruebas (default), "2" producción
	Establecimiento       string `json:"establecimiento,omitempty"`
	PuntoEmision          string `json:"punto_emision,omitempty"`
	CertPath              string `json:"cert_path,omitempty"`
	CertPassword          string `json:"cert_password,omitempty"`
	Email                 string `json:"email,omitempty"`
}

// CompanyResponse emisor en respuestas (sin credenciales del certificado).
type CompanyResponse struct {
	ID                    string    `json:"id"`
	RazonSocial           string    `json:"razon_social"`
	NombreComercial       string    `json:"nombre_comercial,omitempty"`
	RUC                   string    `json:"ruc"`
	DirMatriz             string    `json:"dir_matriz"`
	DirEstablecimiento    string    `json:"dir_establecimiento,omitempty"`
	ObligadoContabilidad  bool      `json:"obligado_contabilidad"`
	ContribuyenteEspecial string    `json:"contribuyente_especial,omitempty"`
	Ambiente              string    `json:"ambiente"`
	Establecimiento       string    `json:"establecimiento"`
	PuntoEmision          string    `json:"punto_emision"`
	Email                 string    `json:"email,omitempty"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// CompanyListResponse listado paginado de emisores.
type CompanyListResponse struct {
	Items []CompanyResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
