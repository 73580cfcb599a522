package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendVerificationLink(ctx context.Context, toEmail, verifyURL, companyName, idempotencyKey string) error
	SendDiscountCode(ctx context.Context, toEmail, firstName, discountCode, idempotencyKey string) error
}

// NoopEmailService is used when outbound email is disabled (local runs).
type NoopEmailService struct{}

func (s *NoopEmailService) SendVerificationLink(ctx context.Context, toEmail, verifyURL, companyName, idempotencyKey string) error {
	log.Printf("[EmailService] noop send verification link to=%s url=%s", toEmail, verifyURL)
	return nil
}

func (s *NoopEmailService) SendDiscountCode(ctx context.Context, toEmail, firstName, discountCode, idempotencyKey string) error {
	log.Printf("[EmailService] noop send discount code to=%s code=%s", toEmail, discountCode)
	return nil
}

// ResendEmailService sends emails via the Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendVerificationLink(ctx context.Context, toEmail, verifyURL, companyName, idempotencyKey string) error {
	if toEmail == "" || verifyURL == "" {
		return fmt.Errorf("toEmail and verifyURL are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Verify your work email",
		Text: fmt.Sprintf(
			"Confirm your %s work email to unlock your Inner Circle discount: %s\nThe link expires in 24 hours.",
			companyName, verifyURL,
		),
		Html: fmt.Sprintf(
			"<p>Confirm your <strong>%s</strong> work email to unlock your Inner Circle discount.</p>"+
				"<p><a href=\"%s\">Verify my email</a></p><p>The link expires in 24 hours.</p>",
			companyName, verifyURL,
		),
	}

	return s.send(ctx, params, idempotencyKey)
}

func (s *ResendEmailService) SendDiscountCode(ctx context.Context, toEmail, firstName, discountCode, idempotencyKey string) error {
	if toEmail == "" || discountCode == "" {
		return fmt.Errorf("toEmail and discountCode are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Your Inner Circle discount code",
		Text: fmt.Sprintf(
			"Hi %s, your email is verified. Your one-time discount code is %s.",
			firstName, discountCode,
		),
		Html: fmt.Sprintf(
			"<p>Hi %s, your email is verified.</p><p>Your one-time discount code is <strong>%s</strong>.</p>",
			firstName, discountCode,
		),
	}

	return s.send(ctx, params, idempotencyKey)
}

func (s *ResendEmailService) send(ctx context.Context, params *resend.SendEmailRequest, idempotencyKey string) error {
	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
