package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/yourusername/innercircle-api/internal/domain/entity"
	"github.com/yourusername/innercircle-api/internal/domain/repository"
	apperrors "github.com/yourusername/innercircle-api/internal/pkg/errors"
)

const discountCodePrefix = "INNERCIRCLE"

// SubmitResult is returned on a successful form submission.
type SubmitResult struct {
	Message string `json:"message"`
}

// VerifyResult is returned on a successful email verification.
type VerifyResult struct {
	Message      string `json:"message"`
	DiscountCode string `json:"discount_code"`
	FirstName    string `json:"first_name"`
}

// VerificationService owns the member state machine: it validates
// eligibility, issues time-boxed verification tokens and, on confirmation,
// transitions a member to verified with a provisioned discount. It is the
// only writer of CompanyCode and Member records.
type VerificationService struct {
	companyCodeRepo repository.CompanyCodeRepository
	memberRepo      repository.MemberRepository
	emailService    EmailService
	commerce        CommerceService
	frontendBaseURL string
	tokenTTL        time.Duration
	discountPercent int
}

func NewVerificationService(
	companyCodeRepo repository.CompanyCodeRepository,
	memberRepo repository.MemberRepository,
	emailService EmailService,
	commerce CommerceService,
	frontendBaseURL string,
	tokenTTL time.Duration,
	discountPercent int,
) (*VerificationService, error) {
	if companyCodeRepo == nil {
		return nil, fmt.Errorf("company code repository is required")
	}
	if memberRepo == nil {
		return nil, fmt.Errorf("member repository is required")
	}
	if emailService == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if commerce == nil {
		return nil, fmt.Errorf("commerce service is required")
	}
	if frontendBaseURL == "" {
		return nil, fmt.Errorf("frontend base URL is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if discountPercent <= 0 || discountPercent >= 100 {
		discountPercent = 15
	}

	return &VerificationService{
		companyCodeRepo: companyCodeRepo,
		memberRepo:      memberRepo,
		emailService:    emailService,
		commerce:        commerce,
		frontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
		tokenTTL:        tokenTTL,
		discountPercent: discountPercent,
	}, nil
}

// SubmitVerification validates eligibility for the given company code, issues
// a fresh verification token and emails the verification link. Checks run in
// order and the first failure wins.
func (s *VerificationService) SubmitVerification(ctx context.Context, companyCode, workEmail string) (*SubmitResult, error) {
	companyCode = strings.TrimSpace(companyCode)
	workEmail = strings.TrimSpace(workEmail)
	if companyCode == "" || workEmail == "" {
		return nil, fmt.Errorf("%w: company code and work email are required", ErrInvalidRequest)
	}

	code, err := s.companyCodeRepo.GetByCode(companyCode)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: company code is not recognized", ErrInvalidCode)
		}
		return nil, err
	}
	if !code.Active {
		return nil, fmt.Errorf("%w: company code is not recognized", ErrInvalidCode)
	}

	now := time.Now()
	if code.IsExpired(now) {
		return nil, fmt.Errorf("%w: this discount program has ended", ErrProgramExpired)
	}
	if !code.HasCapacity() {
		return nil, fmt.Errorf("%w: all discount slots for this program are taken", ErrActivationLimitReached)
	}

	if domain := emailDomain(workEmail); domain != code.AllowedEmailDomain {
		return nil, fmt.Errorf("%w: only @%s work emails are eligible", ErrDomainNotEligible, code.AllowedEmailDomain)
	}

	existing, err := s.memberRepo.GetByWorkEmail(workEmail)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsVerified() {
		return nil, fmt.Errorf("%w: this email is already registered", ErrAlreadyRegistered)
	}

	token, err := generateVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}
	expiresAt := now.Add(s.tokenTTL)

	member := &entity.Member{
		WorkEmail:          workEmail,
		CompanyCode:        code.Code,
		CompanyName:        code.Name,
		VerificationToken:  &token,
		TokenExpiresAt:     &expiresAt,
		VerificationStatus: entity.VerificationStatusPending,
	}
	if err := s.memberRepo.Upsert(member); err != nil {
		return nil, err
	}

	verifyURL := fmt.Sprintf("%s/verify?token=%s&email=%s", s.frontendBaseURL, token, url.QueryEscape(workEmail))
	// Deterministic per token so a provider-side retry cannot double-send.
	idempotencyKey := "verify-link:" + token
	if err := s.emailService.SendVerificationLink(ctx, workEmail, verifyURL, code.Name, idempotencyKey); err != nil {
		// The pending record stays; the token is unusable until re-submission
		// issues a fresh one, which is harmless.
		log.Printf("[VerificationService] failed to send verification link to %s: %v", workEmail, err)
		return nil, fmt.Errorf("%w: could not send the verification email, please try again", ErrEmailDeliveryFailed)
	}

	return &SubmitResult{
		Message: fmt.Sprintf("Check your inbox: we sent a verification link to %s. It expires in %d hours.", workEmail, int(s.tokenTTL.Hours())),
	}, nil
}

// VerifyEmail confirms a verification link and issues the discount. The
// activation slot is claimed before provisioning and released on any failure,
// so a company cap can never be overshot and no member ends up verified
// without a counted activation.
func (s *VerificationService) VerifyEmail(ctx context.Context, token, workEmail string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	workEmail = strings.TrimSpace(workEmail)
	if token == "" || workEmail == "" {
		return nil, fmt.Errorf("%w: verification link is invalid or has expired", ErrLinkInvalidOrExpired)
	}

	now := time.Now()
	member, err := s.memberRepo.GetPendingByToken(workEmail, token, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Deliberately undifferentiated: wrong token, wrong email, already
			// verified and expired all look the same to the caller.
			return nil, fmt.Errorf("%w: verification link is invalid or has expired", ErrLinkInvalidOrExpired)
		}
		return nil, err
	}

	firstName := deriveFirstName(member.WorkEmail)
	suffix, err := generateCodeSuffix(6)
	if err != nil {
		return nil, fmt.Errorf("failed to generate discount code: %w", err)
	}
	discountCode := fmt.Sprintf("%s-%s-%s", discountCodePrefix, codeNameSegment(firstName), suffix)

	if err := s.companyCodeRepo.ClaimActivation(member.CompanyCode); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: all discount slots for this program are taken", ErrActivationLimitReached)
		}
		return nil, err
	}

	customerID, err := s.commerce.ProvisionDiscount(ctx, member.WorkEmail, firstName, discountCode, s.discountPercent)
	if err != nil {
		s.releaseActivation(member.CompanyCode)
		log.Printf("[VerificationService] discount provisioning failed for %s: %v", member.WorkEmail, err)
		return nil, fmt.Errorf("%w: could not issue the discount, please try the link again", ErrProvisioningFailed)
	}

	err = s.memberRepo.FinalizeVerification(member.WorkEmail, token, repository.VerificationUpdate{
		DiscountCode:       discountCode,
		CommerceCustomerID: customerID,
		FirstName:          firstName,
		VerifiedAt:         now,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Lost the race against a concurrent click on the same link. The
			// provisioned code for this attempt is orphaned in the commerce
			// platform; the winning attempt issued its own.
			s.releaseActivation(member.CompanyCode)
			log.Printf("[VerificationService] verification race lost for %s, orphaned code %s", member.WorkEmail, discountCode)
			return nil, fmt.Errorf("%w: verification link is invalid or has expired", ErrLinkInvalidOrExpired)
		}
		return nil, err
	}

	// Best-effort: the discount code is already in the synchronous response.
	if err := s.emailService.SendDiscountCode(ctx, member.WorkEmail, firstName, discountCode, "discount:"+discountCode); err != nil {
		log.Printf("[VerificationService] failed to send discount code email to %s: %v", member.WorkEmail, err)
	}

	return &VerifyResult{
		Message:      fmt.Sprintf("Welcome to the Inner Circle, %s! Your discount code is ready.", firstName),
		DiscountCode: discountCode,
		FirstName:    firstName,
	}, nil
}

func (s *VerificationService) releaseActivation(companyCode string) {
	if err := s.companyCodeRepo.ReleaseActivation(companyCode); err != nil {
		log.Printf("[VerificationService] failed to release activation for %s: %v", companyCode, err)
	}
}

// emailDomain returns the part after '@', empty when there is none.
func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return ""
}

// deriveFirstName turns the local part of an email into a display name by
// capitalizing its first character.
func deriveFirstName(email string) string {
	local := email
	if i := strings.LastIndex(email, "@"); i >= 0 {
		local = email[:i]
	}
	if local == "" {
		return "Member"
	}
	runes := []rune(local)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// codeNameSegment strips the name down to uppercase alphanumerics for use
// inside a discount code.
func codeNameSegment(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "MEMBER"
	}
	return b.String()
}

func generateVerificationToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

const codeSuffixCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateCodeSuffix guards against collisions between members sharing a
// derived name.
func generateCodeSuffix(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeSuffixCharset[int(b[i])%len(codeSuffixCharset)]
	}
	return string(b), nil
}
