package repository

import (
	"time"

	"github.com/yourusername/innercircle-api/internal/domain/entity"
)

// MemberRepository persists discount-program members.
type MemberRepository interface {
	GetByWorkEmail(workEmail string) (*entity.Member, error)

	// Upsert creates the member or, when a row with the same work email
	// exists, overwrites its token, expiry, company linkage and status.
	Upsert(member *entity.Member) error

	// GetPendingByToken returns the member matching work email + token with
	// status pending and an unexpired token. Any miss is ErrNotFound.
	GetPendingByToken(workEmail, token string, now time.Time) (*entity.Member, error)

	// FinalizeVerification marks the member verified, records the discount
	// code and commerce customer id, and clears the token fields. The update
	// is conditional on the member still holding this exact pending token;
	// a lost race returns apperrors.ErrConflict.
	FinalizeVerification(workEmail, token string, update VerificationUpdate) error

	CountByStatus(status string) (int64, error)
}

// VerificationUpdate carries the fields written when a member transitions
// from pending to verified.
type VerificationUpdate struct {
	DiscountCode       string
	CommerceCustomerID string
	FirstName          string
	VerifiedAt         time.Time
}
