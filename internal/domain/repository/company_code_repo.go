package repository

import "github.com/yourusername/innercircle-api/internal/domain/entity"

// CompanyCodeRepository persists discount-program company codes.
type CompanyCodeRepository interface {
	Create(code *entity.CompanyCode) error
	GetByCode(code string) (*entity.CompanyCode, error)
	List() ([]entity.CompanyCode, error)

	// ClaimActivation atomically increments current_activations, but only
	// while the code is active and below its cap. Returns
	// apperrors.ErrConflict if no slot remains at commit time.
	ClaimActivation(code string) error

	// ReleaseActivation is the compensating decrement for a claimed slot
	// whose verification did not complete.
	ReleaseActivation(code string) error
}
