package checkin

import "errors"

// Sentinel errors for the check-in service layer. Handlers map these to
// specific responses so the scanning client can render the right message
// (already in / wrong event / cancelled) instead of a blanket failure.
var (
	// ErrNotFound covers both unknown tokens and tokens belonging to a
	// different event; cross-event ticket existence is never leaked.
	ErrNotFound = errors.New("ticket not found for this event")

	// ErrAlreadyCheckedIn is informational, not a failure to retry. The
	// accompanying result carries the original check-in time.
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")

	// ErrCancelled marks the terminal state; no transition leaves it.
	ErrCancelled = errors.New("ticket is cancelled")

	// ErrNotCheckedIn is returned by Undo when the attendance is not
	// currently checked in.
	ErrNotCheckedIn = errors.New("attendance is not checked in")
)
