package dto

import "time"

// VerifyFormRequest is the body of POST /api/verify-form. Field content is
// validated by the verification service so eligibility failures keep their
// distinct responses; only presence is checked at binding time.
type VerifyFormRequest struct {
	CompanyCode string `json:"company_code" binding:"required"`
	WorkEmail   string `json:"work_email" binding:"required"`
}

// CreateCompanyCodeRequest is the body of POST /api/admin/company-codes.
type CreateCompanyCodeRequest struct {
	CompanyCode    string     `json:"company_code" binding:"required"`
	CompanyName    string     `json:"company_name" binding:"required"`
	AllowedDomain  string     `json:"allowed_domain" binding:"required"`
	ExpiresAt      *time.Time `json:"expires_at"`
	MaxActivations *int       `json:"max_activations"`
}
