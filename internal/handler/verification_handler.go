package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/innercircle-api/internal/handler/dto"
	"github.com/yourusername/innercircle-api/internal/service"
)

// VerificationHandler serves the public verification endpoints.
type VerificationHandler struct {
	verificationService *service.VerificationService
}

func NewVerificationHandler(verificationService *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
	}
}

// clientErrors map to 400 with their user-facing message; everything else is
// an upstream/persistence failure surfaced as a generic 500.
var clientErrors = []error{
	service.ErrInvalidRequest,
	service.ErrInvalidCode,
	service.ErrProgramExpired,
	service.ErrActivationLimitReached,
	service.ErrDomainNotEligible,
	service.ErrAlreadyRegistered,
	service.ErrLinkInvalidOrExpired,
}

var upstreamErrors = []error{
	service.ErrEmailDeliveryFailed,
	service.ErrProvisioningFailed,
}

// SubmitForm handles POST /api/verify-form.
func (h *VerificationHandler) SubmitForm(c *gin.Context) {
	var req dto.VerifyFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Company code and work email are required", "error_type": service.ErrInvalidRequest.Error()})
		return
	}

	result, err := h.verificationService.SubmitVerification(c.Request.Context(), req.CompanyCode, req.WorkEmail)
	if err != nil {
		respondVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": result.Message})
}

// VerifyEmail handles GET /api/verify-email?token=&email=.
func (h *VerificationHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	email := c.Query("email")

	result, err := h.verificationService.VerifyEmail(c.Request.Context(), token, email)
	if err != nil {
		respondVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       result.Message,
		"discount_code": result.DiscountCode,
		"first_name":    result.FirstName,
	})
}

func respondVerificationError(c *gin.Context, err error) {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			c.JSON(http.StatusBadRequest, gin.H{"error": userMessage(err, target), "error_type": target.Error()})
			return
		}
	}
	for _, target := range upstreamErrors {
		if errors.Is(err, target) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": userMessage(err, target), "error_type": target.Error()})
			return
		}
	}

	log.Printf("[VerificationHandler] internal error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// userMessage strips the sentinel prefix from a wrapped flow error, leaving
// the human-readable part.
func userMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
