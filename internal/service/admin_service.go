package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/innercircle-api/internal/domain/entity"
	"github.com/yourusername/innercircle-api/internal/domain/repository"
	apperrors "github.com/yourusername/innercircle-api/internal/pkg/errors"
)

const (
	statsCacheKey = "admin:stats"
	statsCacheTTL = 30 * time.Second
)

// CompanyStats is one row of the admin stats report.
type CompanyStats struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Activations int    `json:"activations"`
	Max         *int   `json:"max"`
}

// ProgramStats aggregates verification progress across all company codes.
type ProgramStats struct {
	TotalVerifications   int64          `json:"total_verifications"`
	PendingVerifications int64          `json:"pending_verifications"`
	Companies            []CompanyStats `json:"companies"`
}

// CreateCompanyCodeInput carries the fields of an admin code-creation request.
type CreateCompanyCodeInput struct {
	Code           string
	Name           string
	AllowedDomain  string
	ExpiresAt      *time.Time
	MaxActivations *int
}

// AdminService backs the admin reporting and company-code management surface.
type AdminService struct {
	companyCodeRepo repository.CompanyCodeRepository
	memberRepo      repository.MemberRepository
	cache           repository.CacheRepository // nil when Redis is not configured
}

func NewAdminService(
	companyCodeRepo repository.CompanyCodeRepository,
	memberRepo repository.MemberRepository,
	cache repository.CacheRepository,
) (*AdminService, error) {
	if companyCodeRepo == nil {
		return nil, fmt.Errorf("company code repository is required")
	}
	if memberRepo == nil {
		return nil, fmt.Errorf("member repository is required")
	}
	return &AdminService{
		companyCodeRepo: companyCodeRepo,
		memberRepo:      memberRepo,
		cache:           cache,
	}, nil
}

func (s *AdminService) CreateCompanyCode(input CreateCompanyCodeInput) (*entity.CompanyCode, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	input.AllowedDomain = strings.TrimSpace(strings.TrimPrefix(input.AllowedDomain, "@"))
	if input.Code == "" || input.Name == "" || input.AllowedDomain == "" {
		return nil, fmt.Errorf("%w: company_code, company_name and allowed_domain are required", apperrors.ErrValidation)
	}
	if input.MaxActivations != nil && *input.MaxActivations < 1 {
		return nil, fmt.Errorf("%w: max_activations must be at least 1", apperrors.ErrValidation)
	}

	code := &entity.CompanyCode{
		Code:               input.Code,
		Name:               input.Name,
		AllowedEmailDomain: input.AllowedDomain,
		Active:             true,
		ExpiresAt:          input.ExpiresAt,
		MaxActivations:     input.MaxActivations,
	}
	if err := s.companyCodeRepo.Create(code); err != nil {
		return nil, err
	}

	s.invalidateStats()
	return code, nil
}

func (s *AdminService) ListCompanyCodes() ([]entity.CompanyCode, error) {
	return s.companyCodeRepo.List()
}

// GetStats aggregates verification counts, served from the Redis cache for a
// short window when one is configured.
func (s *AdminService) GetStats() (*ProgramStats, error) {
	if s.cache != nil {
		var cached ProgramStats
		if err := s.cache.GetJSON(statsCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AdminService] stats cache read failed: %v", err)
		}
	}

	verified, err := s.memberRepo.CountByStatus(entity.VerificationStatusVerified)
	if err != nil {
		return nil, err
	}
	pending, err := s.memberRepo.CountByStatus(entity.VerificationStatusPending)
	if err != nil {
		return nil, err
	}
	codes, err := s.companyCodeRepo.List()
	if err != nil {
		return nil, err
	}

	stats := &ProgramStats{
		TotalVerifications:   verified,
		PendingVerifications: pending,
		Companies:            make([]CompanyStats, 0, len(codes)),
	}
	for _, c := range codes {
		stats.Companies = append(stats.Companies, CompanyStats{
			Code:        c.Code,
			Name:        c.Name,
			Activations: c.CurrentActivations,
			Max:         c.MaxActivations,
		})
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(statsCacheKey, stats, statsCacheTTL); err != nil {
			log.Printf("[AdminService] stats cache write failed: %v", err)
		}
	}

	return stats, nil
}

func (s *AdminService) invalidateStats() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(statsCacheKey); err != nil {
		log.Printf("[AdminService] stats cache invalidation failed: %v", err)
	}
}
