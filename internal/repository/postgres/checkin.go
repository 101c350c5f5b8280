package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/service/checkin"
)

// CheckinRepo implements checkin.Repository. The transition methods are
// single conditional UPDATEs: under concurrent duplicate scans the database
// picks exactly one winner.
type CheckinRepo struct{ db *sql.DB }

func NewCheckinRepo(db *sql.DB) *CheckinRepo { return &CheckinRepo{db: db} }

const attendanceColumns = `id, contact_id, event_id, status, qr_code_data, checked_in_at, created_at, updated_at`

func scanAttendance(row *sql.Row) (*domain.Attendance, error) {
	a := &domain.Attendance{}
	err := row.Scan(&a.ID, &a.ContactID, &a.EventID, &a.Status, &a.TicketToken,
		&a.CheckedInAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkin.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan attendance: %w", err)
	}
	return a, nil
}

func (r *CheckinRepo) GetByToken(ctx context.Context, token string) (*domain.Attendance, error) {
	return scanAttendance(r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendances WHERE qr_code_data = $1`, token))
}

func (r *CheckinRepo) GetAttendance(ctx context.Context, id string) (*domain.Attendance, error) {
	return scanAttendance(r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendances WHERE id = $1`, id))
}

func (r *CheckinRepo) CheckIn(ctx context.Context, attendanceID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendances
		SET status = 'checked_in', checked_in_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'registered'
	`, attendanceID, at)
	if err != nil {
		return false, fmt.Errorf("check in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CheckinRepo) UndoCheckIn(ctx context.Context, attendanceID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendances
		SET status = 'registered', checked_in_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'checked_in'
	`, attendanceID)
	if err != nil {
		return false, fmt.Errorf("undo check in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CheckinRepo) Search(ctx context.Context, eventID, query string, limit int) ([]checkin.Match, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.contact_id, a.event_id, a.status, a.qr_code_data, a.checked_in_at,
		       a.created_at, a.updated_at,
		       c.id, c.email, c.first_name, c.last_name, c.phone
		FROM attendances a
		JOIN contacts c ON c.id = a.contact_id
		WHERE a.event_id = $1
		  AND (c.first_name ILIKE $2 OR c.last_name ILIKE $2 OR c.email ILIKE $2
		       OR (c.first_name || ' ' || c.last_name) ILIKE $2)
		ORDER BY c.first_name, c.last_name
		LIMIT $3
	`, eventID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search attendances: %w", err)
	}
	defer rows.Close()

	var out []checkin.Match
	for rows.Next() {
		var m checkin.Match
		if err := rows.Scan(
			&m.Attendance.ID, &m.Attendance.ContactID, &m.Attendance.EventID,
			&m.Attendance.Status, &m.Attendance.TicketToken, &m.Attendance.CheckedInAt,
			&m.Attendance.CreatedAt, &m.Attendance.UpdatedAt,
			&m.Contact.ID, &m.Contact.Email, &m.Contact.FirstName, &m.Contact.LastName, &m.Contact.Phone,
		); err != nil {
			return nil, fmt.Errorf("scan search match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *CheckinRepo) GetContact(ctx context.Context, contactID string) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, phone, unsubscribed,
		       engagement_score, created_at, updated_at
		FROM contacts
		WHERE id = $1
	`, contactID).Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.Unsubscribed,
		&c.EngagementScore, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkin.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}
