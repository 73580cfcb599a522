package entity

import "time"

// CompanyCode unlocks discount-program eligibility for one organization.
// Each successful verification counts one activation against the cap.
type CompanyCode struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Code               string     `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name               string     `gorm:"size:100;not null" json:"name"`
	AllowedEmailDomain string     `gorm:"size:100;not null" json:"allowed_email_domain"`
	Active             bool       `gorm:"not null;default:true" json:"active"`
	ExpiresAt          *time.Time `gorm:"index" json:"expires_at,omitempty"`
	MaxActivations     *int       `json:"max_activations,omitempty"` // nil = unlimited
	CurrentActivations int        `gorm:"not null;default:0" json:"current_activations"`
	CreatedAt          time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CompanyCode) TableName() string {
	return "company_codes"
}

func (c *CompanyCode) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// HasCapacity reports whether at least one activation slot remains.
// Advisory only: the authoritative check is the conditional update
// performed when the slot is claimed.
func (c *CompanyCode) HasCapacity() bool {
	return c.MaxActivations == nil || c.CurrentActivations < *c.MaxActivations
}
