package checkin

import (
	"context"
	"time"

	"github.com/ignite/eventcrm/internal/domain"
)

// Repository defines the data access contract for check-in.
// Implementations must be safe for concurrent use, and the transition
// methods must be atomic conditional updates, never read-then-write.
type Repository interface {
	// GetByToken returns the attendance holding the given ticket token.
	// Returns ErrNotFound if no such token exists.
	GetByToken(ctx context.Context, token string) (*domain.Attendance, error)

	// GetAttendance returns an attendance by id. Returns ErrNotFound if
	// it doesn't exist.
	GetAttendance(ctx context.Context, id string) (*domain.Attendance, error)

	// CheckIn transitions the attendance to checked_in with the given
	// timestamp, only if its current status is registered. Returns false
	// (and no error) when the row was in any other state — the caller
	// re-reads to find out which.
	CheckIn(ctx context.Context, attendanceID string, at time.Time) (bool, error)

	// UndoCheckIn transitions checked_in back to registered and clears
	// checked_in_at, only if the current status is checked_in.
	UndoCheckIn(ctx context.Context, attendanceID string) (bool, error)

	// Search returns attendance+contact pairs for one event whose contact
	// name or email matches the query case-insensitively, capped at limit.
	Search(ctx context.Context, eventID, query string, limit int) ([]Match, error)

	// GetContact returns the contact for an attendance result.
	GetContact(ctx context.Context, contactID string) (*domain.Contact, error)
}

// Match is one search hit: the attendance plus its contact, which the
// check-in desk needs to confirm identity.
type Match struct {
	Attendance domain.Attendance `json:"attendance"`
	Contact    domain.Contact    `json:"contact"`
}
