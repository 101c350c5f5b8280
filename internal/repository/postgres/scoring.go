package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ScoringRepo implements scoring.Repository.
type ScoringRepo struct{ db *sql.DB }

func NewScoringRepo(db *sql.DB) *ScoringRepo { return &ScoringRepo{db: db} }

func (r *ScoringRepo) CheckedInCount(ctx context.Context, contactID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendances
		WHERE contact_id = $1 AND status = 'checked_in'
	`, contactID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("checked-in count: %w", err)
	}
	return n, nil
}

func (r *ScoringRepo) UniqueOpenCount(ctx context.Context, contactID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM email_event_uniques
		WHERE contact_id = $1 AND event_type = 'opened'
	`, contactID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unique open count: %w", err)
	}
	return n, nil
}

func (r *ScoringRepo) LastEngagementAt(ctx context.Context, contactID string) (*time.Time, error) {
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(at) FROM (
			SELECT checked_in_at AS at FROM attendances
			WHERE contact_id = $1 AND checked_in_at IS NOT NULL
			UNION ALL
			SELECT occurred_at FROM email_events
			WHERE contact_id = $1 AND event_type IN ('opened', 'clicked')
		) engagements
	`, contactID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last engagement: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

func (r *ScoringRepo) UpdateEngagementScore(ctx context.Context, contactID string, score float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET engagement_score = $2, updated_at = NOW()
		WHERE id = $1
	`, contactID, score)
	if err != nil {
		return fmt.Errorf("update engagement score: %w", err)
	}
	return nil
}

func (r *ScoringRepo) ContactIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM contacts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list contact ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
