// Package registration creates contacts and event tickets. It owns the
// invariant that at most one non-cancelled attendance exists per
// (contact, event) pair; the repository enforces it at the store so the
// check is race-free.
package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// maxTokenAttempts bounds the retry loop on ticket token collisions. With
// 128-bit tokens a single collision is already remarkable.
const maxTokenAttempts = 5

// Service implements registration business logic.
type Service struct {
	repo     Repository
	notifier Notifier
}

// NewService creates a registration service. The notifier may be nil in
// contexts that don't send confirmations (imports, tests).
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// Input holds the registration form fields.
type Input struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AgreeUpdates bool   `json:"agree_updates"`
	EventID      string `json:"event_id"`
}

// Result identifies the created records.
type Result struct {
	ContactID    string `json:"contact_id"`
	AttendanceID string `json:"attendance_id"`
	TicketToken  string `json:"ticket_token"`
}

// Register finds or creates the contact by email, then issues exactly one
// active ticket for the event. A second registration for the same
// (contact, event) fails with ErrAlreadyRegistered. The confirmation message
// is enqueued fire-and-forget after the ticket exists.
func (s *Service) Register(ctx context.Context, in Input) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	event, err := s.repo.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}

	contact, err := s.upsertContact(ctx, in)
	if err != nil {
		return nil, err
	}

	att, err := s.createTicket(ctx, contact.ID, event.ID)
	if err != nil {
		return nil, err
	}

	s.scheduleConfirmation(ctx, contact, event, att)

	return &Result{
		ContactID:    contact.ID,
		AttendanceID: att.ID,
		TicketToken:  att.TicketToken,
	}, nil
}

func (in *Input) validate() error {
	if in.EventID == "" {
		return fmt.Errorf("%w: event_id is required", ErrValidation)
	}
	if !domain.ValidEmail(in.Email) {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if in.FirstName == "" {
		return fmt.Errorf("%w: first_name is required", ErrValidation)
	}
	return nil
}

// upsertContact applies the registration's merge semantics: new contacts are
// created; existing contacts get non-empty fields merged in, and the
// unsubscribed flag only ever moves true→false here (opt-in), never the
// other way.
func (s *Service) upsertContact(ctx context.Context, in Input) (*domain.Contact, error) {
	email := domain.NormalizeEmail(in.Email)

	contact, err := s.repo.GetContactByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup contact: %w", err)
	}

	if contact == nil {
		contact = &domain.Contact{
			ID:           uuid.New().String(),
			Email:        email,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Phone:        in.Phone,
			Unsubscribed: !in.AgreeUpdates,
		}
		if err := s.repo.CreateContact(ctx, contact); err != nil {
			return nil, fmt.Errorf("create contact: %w", err)
		}
		return contact, nil
	}

	if err := s.repo.MergeContactProfile(ctx, contact.ID, ProfileUpdate{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		OptIn:     in.AgreeUpdates,
	}); err != nil {
		return nil, fmt.Errorf("merge contact: %w", err)
	}

	if in.FirstName != "" {
		contact.FirstName = in.FirstName
	}
	if in.LastName != "" {
		contact.LastName = in.LastName
	}
	if in.Phone != "" {
		contact.Phone = in.Phone
	}
	if in.AgreeUpdates {
		contact.Unsubscribed = false
	}
	return contact, nil
}

func (s *Service) createTicket(ctx context.Context, contactID, eventID string) (*domain.Attendance, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token := NewTicketToken()
		if taken, err := s.repo.TokenExists(ctx, token); err != nil {
			return nil, fmt.Errorf("token uniqueness check: %w", err)
		} else if taken {
			continue
		}

		att := &domain.Attendance{
			ID:          uuid.New().String(),
			ContactID:   contactID,
			EventID:     eventID,
			Status:      domain.AttendanceRegistered,
			TicketToken: token,
		}
		err := s.repo.CreateAttendance(ctx, att)
		if errors.Is(err, ErrTokenTaken) {
			continue // raced another registration onto the same token
		}
		if err != nil {
			return nil, err
		}
		return att, nil
	}
	return nil, fmt.Errorf("could not allocate a unique ticket token after %d attempts", maxTokenAttempts)
}

// scheduleConfirmation enqueues the confirmation message. Failures are
// logged, never returned: the ticket exists and the attendee can still be
// checked in by search.
func (s *Service) scheduleConfirmation(ctx context.Context, c *domain.Contact, e *domain.Event, a *domain.Attendance) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.EnqueueConfirmation(ctx, Confirmation{
		ContactID:   c.ID,
		Email:       c.Email,
		FirstName:   c.FirstName,
		EventName:   e.Name,
		EventDate:   e.StartsAt.Format(time.RFC1123),
		Location:    e.Location,
		TicketToken: a.TicketToken,
	})
	if err != nil {
		logger.Error("confirmation enqueue failed",
			"contact_id", c.ID, "event_id", e.ID, "error", err.Error())
	}
}
