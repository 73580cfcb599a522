package entity

import "time"

// Verification statuses for a Member.
const (
	VerificationStatusPending  = "pending"
	VerificationStatusVerified = "verified"
)

// Member is an individual participant keyed by work email. It tracks the
// verification token lifecycle and the discount issued on verification.
type Member struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	WorkEmail          string     `gorm:"size:100;not null;uniqueIndex" json:"work_email"`
	CompanyCode        string     `gorm:"size:50;not null;index" json:"company_code"`
	CompanyName        string     `gorm:"size:100;not null" json:"company_name"`
	VerificationToken  *string    `gorm:"size:64;index" json:"-"`
	TokenExpiresAt     *time.Time `json:"-"`
	VerificationStatus string     `gorm:"size:20;not null;default:'pending'" json:"verification_status"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	DiscountCode       *string    `gorm:"size:64" json:"discount_code,omitempty"`
	CommerceCustomerID *string    `gorm:"size:64" json:"commerce_customer_id,omitempty"`
	FirstName          *string    `gorm:"size:100" json:"first_name,omitempty"`

	// Informational counters synced from the storefront, never written here.
	TotalOrders int     `gorm:"not null;default:0" json:"total_orders"`
	TotalSpent  float64 `gorm:"not null;default:0" json:"total_spent"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

func (m *Member) IsVerified() bool {
	return m.VerificationStatus == VerificationStatusVerified
}

func (m *Member) IsTokenExpired(now time.Time) bool {
	return m.TokenExpiresAt == nil || now.After(*m.TokenExpiresAt)
}
