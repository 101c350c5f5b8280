package subscription

import "context"

// Repository is the data access contract for subscription state.
type Repository interface {
	// SetSubscription writes the unsubscribed flag on the contact with the
	// given email, case-insensitively. Returns false when no such contact
	// exists.
	SetSubscription(ctx context.Context, email string, unsubscribed bool) (bool, error)

	// IsUnsubscribed reports the contact's current opt-out state. Returns
	// ErrNotFound for unknown emails.
	IsUnsubscribed(ctx context.Context, email string) (bool, error)
}
