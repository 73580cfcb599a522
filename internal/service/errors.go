package service

import "errors"

// Verification flow errors used by handlers for stable status mapping.
var (
	ErrInvalidRequest         = errors.New("invalid_request")
	ErrInvalidCode            = errors.New("invalid_code")
	ErrProgramExpired         = errors.New("program_expired")
	ErrActivationLimitReached = errors.New("activation_limit_reached")
	ErrDomainNotEligible      = errors.New("domain_not_eligible")
	ErrAlreadyRegistered      = errors.New("already_registered")
	ErrLinkInvalidOrExpired   = errors.New("link_invalid_or_expired")
	ErrEmailDeliveryFailed    = errors.New("email_delivery_failed")
	ErrProvisioningFailed     = errors.New("provisioning_failed")
)
