package subscription

import "errors"

var (
	ErrValidation = errors.New("invalid email address")
	ErrNotFound   = errors.New("contact not found")
)
