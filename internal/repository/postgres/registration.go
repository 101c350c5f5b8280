// Package postgres implements the service repository contracts against
// PostgreSQL. Every state transition is a conditional UPDATE and every
// uniqueness rule is a database constraint, so correctness does not depend
// on the number of processes running.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/service/registration"
)

// Constraint names the registration path maps onto sentinel errors.
const (
	constraintActiveTicket = "attendances_one_active_per_event"
	constraintTicketToken  = "attendances_qr_code_data_key"
	constraintContactEmail = "contacts_email_lower_key"
)

// RegistrationRepo implements registration.Repository.
type RegistrationRepo struct{ db *sql.DB }

func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

func (r *RegistrationRepo) GetContactByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, phone, unsubscribed,
		       engagement_score, created_at, updated_at
		FROM contacts
		WHERE lower(email) = lower($1)
	`, email).Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.Unsubscribed,
		&c.EngagementScore, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact by email: %w", err)
	}
	return c, nil
}

// CreateContact inserts the contact. When a concurrent registration already
// claimed the email, the existing row wins, c.ID is rewritten to it, and
// the losing insert's non-empty profile fields are merged into the winner,
// matching the merge the lookup-found path performs.
func (r *RegistrationRepo) CreateContact(ctx context.Context, c *domain.Contact) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, email, first_name, last_name, phone, unsubscribed, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT ((lower(email))) DO UPDATE SET
			first_name = CASE WHEN EXCLUDED.first_name <> '' THEN EXCLUDED.first_name ELSE contacts.first_name END,
			last_name  = CASE WHEN EXCLUDED.last_name <> '' THEN EXCLUDED.last_name ELSE contacts.last_name END,
			phone      = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE contacts.phone END,
			updated_at = NOW()
		RETURNING id
	`, c.ID, c.Email, c.FirstName, c.LastName, c.Phone, c.Unsubscribed).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func (r *RegistrationRepo) MergeContactProfile(ctx context.Context, contactID string, u registration.ProfileUpdate) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET
			first_name   = CASE WHEN $2 <> '' THEN $2 ELSE first_name END,
			last_name    = CASE WHEN $3 <> '' THEN $3 ELSE last_name END,
			phone        = CASE WHEN $4 <> '' THEN $4 ELSE phone END,
			unsubscribed = CASE WHEN $5 THEN FALSE ELSE unsubscribed END,
			updated_at   = NOW()
		WHERE id = $1
	`, contactID, u.FirstName, u.LastName, u.Phone, u.OptIn)
	if err != nil {
		return fmt.Errorf("merge contact profile: %w", err)
	}
	return nil
}

func (r *RegistrationRepo) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	e := &domain.Event{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, starts_at, location, capacity, created_at, updated_at
		FROM events
		WHERE id = $1
	`, id).Scan(&e.ID, &e.Slug, &e.Name, &e.StartsAt, &e.Location, &e.Capacity, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registration.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r *RegistrationRepo) CreateAttendance(ctx context.Context, a *domain.Attendance) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendances (id, contact_id, event_id, status, qr_code_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, a.ID, a.ContactID, a.EventID, a.Status, a.TicketToken, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			switch {
			case strings.Contains(pqErr.Constraint, constraintActiveTicket):
				return registration.ErrAlreadyRegistered
			case strings.Contains(pqErr.Constraint, constraintTicketToken):
				return registration.ErrTokenTaken
			}
		}
		return fmt.Errorf("create attendance: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (r *RegistrationRepo) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendances WHERE qr_code_data = $1)`, token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("token exists: %w", err)
	}
	return exists, nil
}
