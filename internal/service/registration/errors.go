package registration

import "errors"

// Sentinel errors for the registration service layer.
var (
	ErrValidation        = errors.New("invalid registration input")
	ErrEventNotFound     = errors.New("event not found")
	ErrAlreadyRegistered = errors.New("contact already has an active ticket for this event")

	// ErrTokenTaken is surfaced by the repository when a generated ticket
	// token collides with an existing one; the service retries with a
	// fresh token.
	ErrTokenTaken = errors.New("ticket token already exists")
)
