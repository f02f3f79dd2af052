package services

import "errors"

var (
	ErrTenantNotFound     = errors.New("tenant token not recognised")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrModelNotConfigured = errors.New("model API key is not configured")
	ErrRateLimited        = errors.New("model rate limited")
	ErrModelBusy          = errors.New("model still rate limited after retries")
	ErrModelUnavailable   = errors.New("model call failed")
	ErrNoPPPoELogin       = errors.New("customer has no PPPoE login")
	ErrDeviceNotFound     = errors.New("router not found in the ACS")
	ErrCustomerRequired   = errors.New("a customer is required to register a new device")
	ErrTokenRequired      = errors.New("push token is required")
)
