package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound   = errors.New("campaign not found")
	ErrValidation = errors.New("invalid campaign input")

	// ErrInvalidState means the campaign's current status does not allow
	// the requested operation (sending a sent campaign, reverting a test
	// that isn't one). Handlers map it to 422.
	ErrInvalidState = errors.New("operation not allowed in current campaign status")
)
