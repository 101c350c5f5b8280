package domain

import "time"

// Event is a schedulable occurrence people register for.
type Event struct {
	ID       string    `json:"id" db:"id"`
	Slug     string    `json:"slug" db:"slug"`
	Name     string    `json:"name" db:"name"`
	StartsAt time.Time `json:"starts_at" db:"starts_at"`
	Location string    `json:"location" db:"location"`
	Capacity *int      `json:"capacity" db:"capacity"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AttendanceStatus enumerates the check-in state machine states.
type AttendanceStatus string

const (
	AttendanceRegistered AttendanceStatus = "registered"
	AttendanceCheckedIn  AttendanceStatus = "checked_in"
	AttendanceCancelled  AttendanceStatus = "cancelled"
)

// Attendance joins one contact to one event. The ticket token is embedded in
// the QR code handed to the attendee; it is random, globally unique and
// URL-safe. At most one non-cancelled attendance exists per (contact, event).
type Attendance struct {
	ID          string           `json:"id" db:"id"`
	ContactID   string           `json:"contact_id" db:"contact_id"`
	EventID     string           `json:"event_id" db:"event_id"`
	Status      AttendanceStatus `json:"status" db:"status"`
	TicketToken string           `json:"qr_code_data" db:"qr_code_data"`
	CheckedInAt *time.Time       `json:"checked_in_at" db:"checked_in_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Active reports whether the attendance counts toward the one-active-ticket
// invariant. Cancelled is terminal and never active.
func (a *Attendance) Active() bool {
	return a.Status == AttendanceRegistered || a.Status == AttendanceCheckedIn
}
