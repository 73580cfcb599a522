package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/innercircle-api/internal/domain/entity"
	apperrors "github.com/yourusername/innercircle-api/internal/pkg/errors"
)

// CompanyCodeRepo implements repository.CompanyCodeRepository.
type CompanyCodeRepo struct {
	db *gorm.DB
}

func NewCompanyCodeRepo(db *gorm.DB) *CompanyCodeRepo {
	return &CompanyCodeRepo{db: db}
}

func (r *CompanyCodeRepo) Create(code *entity.CompanyCode) error {
	return r.db.Create(code).Error
}

func (r *CompanyCodeRepo) GetByCode(code string) (*entity.CompanyCode, error) {
	var cc entity.CompanyCode
	err := r.db.Where("code = ?", code).First(&cc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get company code: %w", err)
	}
	return &cc, nil
}

func (r *CompanyCodeRepo) List() ([]entity.CompanyCode, error) {
	var codes []entity.CompanyCode
	if err := r.db.Order("created_at DESC").Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("failed to list company codes: %w", err)
	}
	return codes, nil
}

// ClaimActivation increments the activation counter in a single conditional
// UPDATE so the cap can never be overshot by concurrent verifications. A
// zero-row result means the slot was gone at commit time.
func (r *CompanyCodeRepo) ClaimActivation(code string) error {
	res := r.db.Model(&entity.CompanyCode{}).
		Where("code = ? AND active = ? AND (max_activations IS NULL OR current_activations < max_activations)", code, true).
		Updates(map[string]interface{}{
			"current_activations": gorm.Expr("current_activations + 1"),
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to claim activation for %s: %w", code, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *CompanyCodeRepo) ReleaseActivation(code string) error {
	res := r.db.Model(&entity.CompanyCode{}).
		Where("code = ? AND current_activations > 0", code).
		Updates(map[string]interface{}{
			"current_activations": gorm.Expr("current_activations - 1"),
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to release activation for %s: %w", code, res.Error)
	}
	return nil
}
