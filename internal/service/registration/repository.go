package registration

import (
	"context"

	"github.com/ignite/eventcrm/internal/domain"
)

// Repository defines the data access contract for registration.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetContactByEmail looks up a contact case-insensitively.
	// Returns (nil, nil) when no contact exists.
	GetContactByEmail(ctx context.Context, email string) (*domain.Contact, error)

	// CreateContact inserts a new contact. When a concurrent registration
	// already inserted the same email, implementations adopt the existing
	// row and rewrite c.ID to the winner's id instead of failing.
	CreateContact(ctx context.Context, c *domain.Contact) error

	// MergeContactProfile applies the non-empty fields of the update to an
	// existing contact without clobbering anything else. OptIn=true flips
	// unsubscribed to false; it never flips it to true.
	MergeContactProfile(ctx context.Context, contactID string, u ProfileUpdate) error

	// GetEvent returns an event by id. Returns ErrEventNotFound if absent.
	GetEvent(ctx context.Context, id string) (*domain.Event, error)

	// CreateAttendance inserts a new attendance. Must return
	// ErrAlreadyRegistered when a non-cancelled attendance already exists
	// for the (contact, event) pair, and ErrTokenTaken on a ticket token
	// collision — both enforced by the store, not by a prior read.
	CreateAttendance(ctx context.Context, a *domain.Attendance) error

	// TokenExists reports whether a ticket token is already in use.
	TokenExists(ctx context.Context, token string) (bool, error)
}

// ProfileUpdate holds the merge fields for an existing contact. Empty
// strings are "no change".
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Phone     string
	OptIn     bool
}

// Notifier schedules the registration confirmation message. Delivery is
// fire-and-forget: enqueue failures are logged by the caller and never fail
// the registration.
type Notifier interface {
	EnqueueConfirmation(ctx context.Context, n Confirmation) error
}

// Confirmation is the payload handed to the notification worker.
type Confirmation struct {
	ContactID   string `json:"contact_id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	EventName   string `json:"event_name"`
	EventDate   string `json:"event_date"`
	Location    string `json:"location"`
	TicketToken string `json:"ticket_token"`
}
