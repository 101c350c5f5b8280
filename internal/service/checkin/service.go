package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/eventcrm/internal/domain"
)

// SearchLimit caps manual-fallback search results.
const SearchLimit = 20

// Service implements the check-in state machine. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a check-in service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Result is the outcome of a Validate call. On ErrAlreadyCheckedIn it is
// still populated so the client can show who is already in and since when.
type Result struct {
	Attendance *domain.Attendance `json:"attendance"`
	Contact    *domain.Contact    `json:"contact"`
}

// Validate looks up a scanned ticket token for one event and checks it in.
//
// A token that exists but belongs to a different event fails with
// ErrNotFound — the scanner must not learn that the ticket is valid
// elsewhere. A token already checked in fails with ErrAlreadyCheckedIn and a
// Result carrying the original timestamp. Cancelled is terminal.
//
// The transition itself is the repository's conditional update, so two
// concurrent scans of the same token yield exactly one success; the loser
// re-reads and reports ErrAlreadyCheckedIn.
func (s *Service) Validate(ctx context.Context, token, eventID string) (*Result, error) {
	att, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if att.EventID != eventID {
		return nil, ErrNotFound
	}

	switch att.Status {
	case domain.AttendanceCancelled:
		return nil, ErrCancelled
	case domain.AttendanceCheckedIn:
		return s.alreadyCheckedIn(ctx, att)
	}

	at := s.now().UTC()
	ok, err := s.repo.CheckIn(ctx, att.ID, at)
	if err != nil {
		return nil, fmt.Errorf("check in %s: %w", att.ID, err)
	}
	if !ok {
		// Lost a race: someone else moved the row first. Re-read to
		// report the state they left it in.
		att, err = s.repo.GetAttendance(ctx, att.ID)
		if err != nil {
			return nil, err
		}
		if att.Status == domain.AttendanceCancelled {
			return nil, ErrCancelled
		}
		return s.alreadyCheckedIn(ctx, att)
	}

	att.Status = domain.AttendanceCheckedIn
	att.CheckedInAt = &at

	contact, err := s.repo.GetContact(ctx, att.ContactID)
	if err != nil {
		return nil, err
	}
	return &Result{Attendance: att, Contact: contact}, nil
}

func (s *Service) alreadyCheckedIn(ctx context.Context, att *domain.Attendance) (*Result, error) {
	contact, err := s.repo.GetContact(ctx, att.ContactID)
	if err != nil {
		return nil, err
	}
	return &Result{Attendance: att, Contact: contact}, ErrAlreadyCheckedIn
}

// Search is the manual fallback for when scanning fails: case-insensitive
// substring match over contact name/email, scoped to one event, capped.
// Read-only, no state change.
func (s *Service) Search(ctx context.Context, eventID, query string) ([]Match, error) {
	if query == "" {
		return nil, nil
	}
	return s.repo.Search(ctx, eventID, query, SearchLimit)
}

// Undo reverts a mistaken check-in back to registered, clearing
// checked_in_at. The cleared timestamp is a deliberate design choice: the
// state machine stays clean and a later re-scan records a fresh time.
func (s *Service) Undo(ctx context.Context, attendanceID string) error {
	ok, err := s.repo.UndoCheckIn(ctx, attendanceID)
	if err != nil {
		return fmt.Errorf("undo check-in %s: %w", attendanceID, err)
	}
	if ok {
		return nil
	}
	att, err := s.repo.GetAttendance(ctx, attendanceID)
	if err != nil {
		return err
	}
	if att.Status == domain.AttendanceCancelled {
		return ErrCancelled
	}
	return ErrNotCheckedIn
}
