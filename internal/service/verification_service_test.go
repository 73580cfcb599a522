package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/innercircle-api/internal/domain/entity"
	"github.com/yourusername/innercircle-api/internal/domain/repository"
	apperrors "github.com/yourusername/innercircle-api/internal/pkg/errors"
)

// ============================================================================
// Mocks shared by the service tests
// ============================================================================

// MockCompanyCodeRepository implements repository.CompanyCodeRepository
type MockCompanyCodeRepository struct {
	mock.Mock
}

func (m *MockCompanyCodeRepository) Create(code *entity.CompanyCode) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockCompanyCodeRepository) GetByCode(code string) (*entity.CompanyCode, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CompanyCode), args.Error(1)
}

func (m *MockCompanyCodeRepository) List() ([]entity.CompanyCode, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.CompanyCode), args.Error(1)
}

func (m *MockCompanyCodeRepository) ClaimActivation(code string) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockCompanyCodeRepository) ReleaseActivation(code string) error {
	args := m.Called(code)
	return args.Error(0)
}

// MockMemberRepository implements repository.MemberRepository
type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) GetByWorkEmail(workEmail string) (*entity.Member, error) {
	args := m.Called(workEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Member), args.Error(1)
}

func (m *MockMemberRepository) Upsert(member *entity.Member) error {
	args := m.Called(member)
	return args.Error(0)
}

func (m *MockMemberRepository) GetPendingByToken(workEmail, token string, now time.Time) (*entity.Member, error) {
	args := m.Called(workEmail, token, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Member), args.Error(1)
}

func (m *MockMemberRepository) FinalizeVerification(workEmail, token string, update repository.VerificationUpdate) error {
	args := m.Called(workEmail, token, update)
	return args.Error(0)
}

func (m *MockMemberRepository) CountByStatus(status string) (int64, error) {
	args := m.Called(status)
	return args.Get(0).(int64), args.Error(1)
}

// MockEmailService implements EmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendVerificationLink(ctx context.Context, toEmail, verifyURL, companyName, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, verifyURL, companyName, idempotencyKey)
	return args.Error(0)
}

func (m *MockEmailService) SendDiscountCode(ctx context.Context, toEmail, firstName, discountCode, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, firstName, discountCode, idempotencyKey)
	return args.Error(0)
}

// MockCommerceService implements CommerceService
type MockCommerceService struct {
	mock.Mock
}

func (m *MockCommerceService) FindOrCreateCustomer(ctx context.Context, email, firstName string) (string, error) {
	args := m.Called(ctx, email, firstName)
	return args.String(0), args.Error(1)
}

func (m *MockCommerceService) CreatePercentageDiscount(ctx context.Context, title string, percentOff int) (string, error) {
	args := m.Called(ctx, title, percentOff)
	return args.String(0), args.Error(1)
}

func (m *MockCommerceService) AttachCode(ctx context.Context, ruleID, code string) error {
	args := m.Called(ctx, ruleID, code)
	return args.Error(0)
}

func (m *MockCommerceService) ProvisionDiscount(ctx context.Context, email, firstName, code string, percentOff int) (string, error) {
	args := m.Called(ctx, email, firstName, code, percentOff)
	return args.String(0), args.Error(1)
}

// MockCacheRepository implements repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// ============================================================================
// Fixtures
// ============================================================================

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func activeCompanyCode() *entity.CompanyCode {
	return &entity.CompanyCode{
		Code:               "ACME1",
		Name:               "Acme Inc.",
		AllowedEmailDomain: "acme.com",
		Active:             true,
		MaxActivations:     intPtr(1),
		CurrentActivations: 0,
	}
}

func newTestVerificationService(t *testing.T,
	codeRepo *MockCompanyCodeRepository,
	memberRepo *MockMemberRepository,
	emailSvc *MockEmailService,
	commerce *MockCommerceService,
) *VerificationService {
	t.Helper()
	svc, err := NewVerificationService(
		codeRepo, memberRepo, emailSvc, commerce,
		"https://shop.example.com", 24*time.Hour, 15,
	)
	require.NoError(t, err)
	return svc
}

// ============================================================================
// SubmitVerification
// ============================================================================

func TestSubmitVerification_MissingFields(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	tests := []struct {
		name        string
		companyCode string
		workEmail   string
	}{
		{name: "both empty", companyCode: "", workEmail: ""},
		{name: "missing email", companyCode: "ACME1", workEmail: ""},
		{name: "missing code", companyCode: "", workEmail: "jane@acme.com"},
		{name: "whitespace only", companyCode: "   ", workEmail: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.SubmitVerification(context.Background(), tt.companyCode, tt.workEmail)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	codeRepo.AssertNotCalled(t, "GetByCode")
	memberRepo.AssertNotCalled(t, "Upsert")
}

func TestSubmitVerification_UnknownOrInactiveCode(t *testing.T) {
	tests := []struct {
		name string
		code *entity.CompanyCode
		err  error
	}{
		{name: "nonexistent code", code: nil, err: apperrors.ErrNotFound},
		{name: "inactive code", code: &entity.CompanyCode{Code: "ACME1", Active: false}, err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeRepo := new(MockCompanyCodeRepository)
			memberRepo := new(MockMemberRepository)
			emailSvc := new(MockEmailService)
			commerce := new(MockCommerceService)
			svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

			codeRepo.On("GetByCode", "ACME1").Return(tt.code, tt.err)

			result, err := svc.SubmitVerification(context.Background(), "ACME1", "jane@acme.com")
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrInvalidCode)

			// No member record is created or altered.
			memberRepo.AssertNotCalled(t, "Upsert")
			memberRepo.AssertNotCalled(t, "GetByWorkEmail")
		})
	}
}

func TestSubmitVerification_ProgramExpired(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	expired := time.Now().Add(-time.Hour)
	code := activeCompanyCode()
	code.ExpiresAt = &expired
	codeRepo.On("GetByCode", "ACME1").Return(code, nil)

	result, err := svc.SubmitVerification(context.Background(), "ACME1", "jane@acme.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrProgramExpired)
	memberRepo.AssertNotCalled(t, "Upsert")
}

func TestSubmitVerification_ActivationLimitReached(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	code := activeCompanyCode()
	code.CurrentActivations = 1 // cap is 1
	codeRepo.On("GetByCode", "ACME1").Return(code, nil)

	result, err := svc.SubmitVerification(context.Background(), "ACME1", "jane@acme.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrActivationLimitReached)
	memberRepo.AssertNotCalled(t, "Upsert")
}

func TestSubmitVerification_DomainNotEligible(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	codeRepo.On("GetByCode", "ACME1").Return(activeCompanyCode(), nil)

	result, err := svc.SubmitVerification(context.Background(), "ACME1", "bob@other.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDomainNotEligible)
	// The message names the expected domain.
	assert.Contains(t, err.Error(), "acme.com")

	// No token is issued.
	memberRepo.AssertNotCalled(t, "Upsert")
	emailSvc.AssertNotCalled(t, "SendVerificationLink")
}

func TestSubmitVerification_DomainCheckIsCaseSensitive(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	codeRepo.On("GetByCode", "ACME1").Return(activeCompanyCode(), nil)

	result, err := svc.SubmitVerification(context.Background(), "ACME1", "jane@ACME.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDomainNotEligible)
}

func TestSubmitVerification_AlreadyRegistered(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	codeRepo.On("GetByCode", "ACME1").Return(activeCompanyCode(), nil)
	memberRepo.On("GetByWorkEmail", "jane@acme.com").Return(&entity.Member{
		WorkEmail:          "jane@acme.com",
		VerificationStatus: entity.VerificationStatusVerified,
		DiscountCode:       strPtr("INNERCIRCLE-JANE-AAAAAA"),
	}, nil)

	result, err := svc.SubmitVerification(context.Background(), "ACME1", "jane@acme.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	// The verified record is never overwritten.
	memberRepo.AssertNotCalled(t, "Upsert")
}

func TestSubmitVerification_Success(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	codeRepo.On("GetByCode", "ACME1").Return(activeCompanyCode(), nil)
	memberRepo.On("GetByWorkEmail", "jane@acme.com").Return(nil, apperrors.ErrNotFound)

	var savedMember *entity.Member
	memberRepo.On("Upsert", mock.AnythingOfType("*entity.Member")).Run(func(args mock.Arguments) {
		savedMember = args.Get(0).(*entity.Member)
	}).Return(nil)

	var sentURL string
	emailSvc.On("SendVerificationLink", mock.Anything, "jane@acme.com", mock.AnythingOfType("string"), "Acme Inc.", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			sentURL = args.String(2)
		}).Return(nil)

	result, err := svc.SubmitVerification(context.Background(), "ACME1", "jane@acme.com")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.Message, "jane@acme.com")

	require.NotNil(t, savedMember)
	assert.Equal(t, entity.VerificationStatusPending, savedMember.VerificationStatus)
	assert.Equal(t, "ACME1", savedMember.CompanyCode)
	assert.Equal(t, "Acme Inc.", savedMember.CompanyName)
	require.NotNil(t, savedMember.VerificationToken)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), *savedMember.VerificationToken)
	require.NotNil(t, savedMember.TokenExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *savedMember.TokenExpiresAt, time.Minute)

	// The emailed link embeds the issued token and the address.
	assert.Contains(t, sentURL, "https://shop.example.com/verify?token="+*savedMember.VerificationToken)
	assert.Contains(t, sentURL, "email=jane%40acme.com")

	emailSvc.AssertNumberOfCalls(t, "SendVerificationLink", 1)
	commerce.AssertNotCalled(t, "ProvisionDiscount")
}

func TestSubmitVerification_ResubmissionIssuesFreshToken(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	oldToken := "0123456789abcdef0123456789abcdef"
	codeRepo.On("GetByCode", "ACME1").Return(activeCompanyCode(), nil)
	memberRepo.On("GetByWorkEmail", "jane@acme.com").Return(&entity.Member{
		WorkEmail:          "jane@acme.com",
		VerificationStatus: entity.VerificationStatusPending,
		VerificationToken:  &oldToken,
	}, nil)

	var savedMember *entity.Member
	memberRepo.On("Upsert", mock.AnythingOfType("*entity.Member")).Run(func(args mock.Arguments) {
		savedMember = args.Get(0).(*entity.Member)
	}).Return(nil)
	emailSvc.On("SendVerificationLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.SubmitVerification(context.Background(), "ACME1", "jane@acme.com")
	require.NoError(t, err)

	require.NotNil(t, savedMember)
	require.NotNil(t, savedMember.VerificationToken)
	assert.NotEqual(t, oldToken, *savedMember.VerificationToken)
	assert.Equal(t, entity.VerificationStatusPending, savedMember.VerificationStatus)
}

func TestSubmitVerification_EmailDeliveryFailed(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	codeRepo.On("GetByCode", "ACME1").Return(activeCompanyCode(), nil)
	memberRepo.On("GetByWorkEmail", "jane@acme.com").Return(nil, apperrors.ErrNotFound)
	memberRepo.On("Upsert", mock.AnythingOfType("*entity.Member")).Return(nil)
	emailSvc.On("SendVerificationLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)

	result, err := svc.SubmitVerification(context.Background(), "ACME1", "jane@acme.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrEmailDeliveryFailed)

	// The pending record was already persisted; that is accepted.
	memberRepo.AssertNumberOfCalls(t, "Upsert", 1)
}

// ============================================================================
// VerifyEmail
// ============================================================================

func pendingMember(token string) *entity.Member {
	expiresAt := time.Now().Add(time.Hour)
	return &entity.Member{
		WorkEmail:          "jane@acme.com",
		CompanyCode:        "ACME1",
		CompanyName:        "Acme Inc.",
		VerificationToken:  &token,
		TokenExpiresAt:     &expiresAt,
		VerificationStatus: entity.VerificationStatusPending,
	}
}

func TestVerifyEmail_EmptyInput(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	for _, pair := range [][2]string{{"", ""}, {"sometoken", ""}, {"", "jane@acme.com"}} {
		result, err := svc.VerifyEmail(context.Background(), pair[0], pair[1])
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrLinkInvalidOrExpired)
	}

	memberRepo.AssertNotCalled(t, "GetPendingByToken")
}

func TestVerifyEmail_NoMatchingPendingMember(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	// Wrong token, wrong email, already verified and expired all surface as
	// the same repository miss.
	memberRepo.On("GetPendingByToken", "jane@acme.com", "deadbeef", mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.ErrNotFound)

	result, err := svc.VerifyEmail(context.Background(), "deadbeef", "jane@acme.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrLinkInvalidOrExpired)

	codeRepo.AssertNotCalled(t, "ClaimActivation")
	commerce.AssertNotCalled(t, "ProvisionDiscount")
}

func TestVerifyEmail_Success(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	token := "0123456789abcdef0123456789abcdef"
	memberRepo.On("GetPendingByToken", "jane@acme.com", token, mock.AnythingOfType("time.Time")).
		Return(pendingMember(token), nil)
	codeRepo.On("ClaimActivation", "ACME1").Return(nil)

	var provisionedCode string
	commerce.On("ProvisionDiscount", mock.Anything, "jane@acme.com", "Jane", mock.AnythingOfType("string"), 15).
		Run(func(args mock.Arguments) {
			provisionedCode = args.String(3)
		}).Return("cust-42", nil)

	var update repository.VerificationUpdate
	memberRepo.On("FinalizeVerification", "jane@acme.com", token, mock.AnythingOfType("repository.VerificationUpdate")).
		Run(func(args mock.Arguments) {
			update = args.Get(2).(repository.VerificationUpdate)
		}).Return(nil)
	emailSvc.On("SendDiscountCode", mock.Anything, "jane@acme.com", "Jane", mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(nil)

	result, err := svc.VerifyEmail(context.Background(), token, "jane@acme.com")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Jane", result.FirstName)
	assert.Regexp(t, regexp.MustCompile(`^INNERCIRCLE-JANE-[A-Z0-9]{6}$`), result.DiscountCode)
	assert.Equal(t, provisionedCode, result.DiscountCode)

	assert.Equal(t, result.DiscountCode, update.DiscountCode)
	assert.Equal(t, "cust-42", update.CommerceCustomerID)
	assert.Equal(t, "Jane", update.FirstName)
	assert.WithinDuration(t, time.Now(), update.VerifiedAt, time.Minute)

	codeRepo.AssertNumberOfCalls(t, "ClaimActivation", 1)
	codeRepo.AssertNotCalled(t, "ReleaseActivation")
	commerce.AssertNumberOfCalls(t, "ProvisionDiscount", 1)
}

func TestVerifyEmail_ConfirmationEmailIsBestEffort(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	token := "0123456789abcdef0123456789abcdef"
	memberRepo.On("GetPendingByToken", "jane@acme.com", token, mock.AnythingOfType("time.Time")).
		Return(pendingMember(token), nil)
	codeRepo.On("ClaimActivation", "ACME1").Return(nil)
	commerce.On("ProvisionDiscount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("cust-42", nil)
	memberRepo.On("FinalizeVerification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	emailSvc.On("SendDiscountCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)

	result, err := svc.VerifyEmail(context.Background(), token, "jane@acme.com")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.DiscountCode)
}

func TestVerifyEmail_ActivationSlotGoneAtClaimTime(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	token := "0123456789abcdef0123456789abcdef"
	memberRepo.On("GetPendingByToken", "jane@acme.com", token, mock.AnythingOfType("time.Time")).
		Return(pendingMember(token), nil)
	codeRepo.On("ClaimActivation", "ACME1").Return(apperrors.ErrConflict)

	result, err := svc.VerifyEmail(context.Background(), token, "jane@acme.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrActivationLimitReached)

	// Nothing was provisioned and the member stays pending.
	commerce.AssertNotCalled(t, "ProvisionDiscount")
	memberRepo.AssertNotCalled(t, "FinalizeVerification")
	codeRepo.AssertNotCalled(t, "ReleaseActivation")
}

func TestVerifyEmail_ProvisioningFailureReleasesSlot(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	token := "0123456789abcdef0123456789abcdef"
	memberRepo.On("GetPendingByToken", "jane@acme.com", token, mock.AnythingOfType("time.Time")).
		Return(pendingMember(token), nil)
	codeRepo.On("ClaimActivation", "ACME1").Return(nil)
	commerce.On("ProvisionDiscount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", assert.AnError)
	codeRepo.On("ReleaseActivation", "ACME1").Return(nil)

	result, err := svc.VerifyEmail(context.Background(), token, "jane@acme.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrProvisioningFailed)

	// The slot is given back and the member is untouched, so the link stays
	// usable for a retry.
	codeRepo.AssertNumberOfCalls(t, "ReleaseActivation", 1)
	memberRepo.AssertNotCalled(t, "FinalizeVerification")
	emailSvc.AssertNotCalled(t, "SendDiscountCode")
}

func TestVerifyEmail_LostFinalizeRaceReleasesSlot(t *testing.T) {
	codeRepo := new(MockCompanyCodeRepository)
	memberRepo := new(MockMemberRepository)
	emailSvc := new(MockEmailService)
	commerce := new(MockCommerceService)
	svc := newTestVerificationService(t, codeRepo, memberRepo, emailSvc, commerce)

	token := "0123456789abcdef0123456789abcdef"
	memberRepo.On("GetPendingByToken", "jane@acme.com", token, mock.AnythingOfType("time.Time")).
		Return(pendingMember(token), nil)
	codeRepo.On("ClaimActivation", "ACME1").Return(nil)
	commerce.On("ProvisionDiscount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("cust-42", nil)
	memberRepo.On("FinalizeVerification", mock.Anything, mock.Anything, mock.Anything).
		Return(apperrors.ErrConflict)
	codeRepo.On("ReleaseActivation", "ACME1").Return(nil)

	result, err := svc.VerifyEmail(context.Background(), token, "jane@acme.com")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrLinkInvalidOrExpired)

	// A concurrent click won; this attempt must not count an activation or
	// hand out a second discount.
	codeRepo.AssertNumberOfCalls(t, "ReleaseActivation", 1)
	emailSvc.AssertNotCalled(t, "SendDiscountCode")
}

// ============================================================================
// Helpers
// ============================================================================

func TestDeriveFirstName(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{email: "jane@acme.com", want: "Jane"},
		{email: "jane.doe@acme.com", want: "Jane.doe"},
		{email: "x@acme.com", want: "X"},
		{email: "@acme.com", want: "Member"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveFirstName(tt.email))
		})
	}
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "acme.com", emailDomain("jane@acme.com"))
	assert.Equal(t, "acme.com", emailDomain("weird@name@acme.com"))
	assert.Equal(t, "", emailDomain("not-an-email"))
}

func TestCodeNameSegment(t *testing.T) {
	assert.Equal(t, "JANE", codeNameSegment("Jane"))
	assert.Equal(t, "JANEDOE", codeNameSegment("Jane.doe"))
	assert.Equal(t, "MEMBER", codeNameSegment("..."))
}

func TestGenerateCodeSuffix(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		suffix, err := generateCodeSuffix(6)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{6}$`), suffix)
		seen[suffix] = true
	}
	// Collisions across 50 draws of a 36^6 space would point at a broken
	// random source.
	assert.Greater(t, len(seen), 45)
}

func TestGenerateVerificationToken(t *testing.T) {
	token, err := generateVerificationToken()
	require.NoError(t, err)
	assert.Len(t, token, 32)
	assert.Equal(t, strings.ToLower(token), token)
}
