package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/innercircle-api/internal/domain/entity"
	"github.com/yourusername/innercircle-api/internal/domain/repository"
	apperrors "github.com/yourusername/innercircle-api/internal/pkg/errors"
)

// MemberRepo implements repository.MemberRepository.
type MemberRepo struct {
	db *gorm.DB
}

func NewMemberRepo(db *gorm.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

func (r *MemberRepo) GetByWorkEmail(workEmail string) (*entity.Member, error) {
	var member entity.Member
	err := r.db.Where("work_email = ?", workEmail).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

// Upsert creates or refreshes the row keyed by work_email. Re-submission
// before verification simply issues a fresh token over the old one.
func (r *MemberRepo) Upsert(member *entity.Member) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "work_email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"company_code",
			"company_name",
			"verification_token",
			"token_expires_at",
			"verification_status",
			"updated_at",
		}),
	}).Create(member).Error
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

func (r *MemberRepo) GetPendingByToken(workEmail, token string, now time.Time) (*entity.Member, error) {
	var member entity.Member
	err := r.db.
		Where("work_email = ? AND verification_token = ? AND verification_status = ? AND token_expires_at > ?",
			workEmail, token, entity.VerificationStatusPending, now).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pending member: %w", err)
	}
	return &member, nil
}

// FinalizeVerification is conditional on the member still holding this exact
// pending token, which makes the token single-use even under concurrent
// clicks on the same link.
func (r *MemberRepo) FinalizeVerification(workEmail, token string, update repository.VerificationUpdate) error {
	res := r.db.Model(&entity.Member{}).
		Where("work_email = ? AND verification_token = ? AND verification_status = ?",
			workEmail, token, entity.VerificationStatusPending).
		Updates(map[string]interface{}{
			"verification_status":  entity.VerificationStatusVerified,
			"verified_at":          update.VerifiedAt,
			"discount_code":        update.DiscountCode,
			"commerce_customer_id": update.CommerceCustomerID,
			"first_name":           update.FirstName,
			"verification_token":   nil,
			"token_expires_at":     nil,
			"updated_at":           update.VerifiedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize verification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *MemberRepo) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Member{}).
		Where("verification_status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}
