package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/ingest"
)

// IngestRepo implements ingest.Repository. The whole write path for one
// event runs in a single transaction so the event row, the uniqueness
// marker, and the counter bump commit or roll back together.
type IngestRepo struct{ db *sql.DB }

func NewIngestRepo(db *sql.DB) *IngestRepo { return &IngestRepo{db: db} }

func (r *IngestRepo) FindContactByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, phone, unsubscribed, engagement_score, created_at, updated_at
		FROM contacts
		WHERE lower(email) = lower($1)
	`, email).Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone,
		&c.Unsubscribed, &c.EngagementScore, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contact by email: %w", err)
	}
	return c, nil
}

func (r *IngestRepo) CampaignExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("campaign exists: %w", err)
	}
	return exists, nil
}

func (r *IngestRepo) RecordEvent(ctx context.Context, rec ingest.EventRecord) (ingest.Outcome, error) {
	var out ingest.Outcome

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("record event begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO email_events (id, campaign_id, contact_id, event_type, provider_event_id, payload, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (provider_event_id) DO NOTHING
	`, uuid.New().String(), rec.CampaignID, rec.ContactID, rec.Type,
		rec.ProviderEventID, []byte(rec.Payload), rec.OccurredAt)
	if err != nil {
		return out, fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return out, err
	}
	if n == 0 {
		out.Duplicate = true
		return out, tx.Commit()
	}

	// No campaign association: the event is logged only.
	if rec.CampaignID == nil {
		return out, tx.Commit()
	}
	campaignID := *rec.CampaignID

	res, err = tx.ExecContext(ctx, `
		INSERT INTO email_event_uniques (campaign_id, contact_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (campaign_id, contact_id, event_type) DO NOTHING
	`, campaignID, rec.ContactID, rec.Type)
	if err != nil {
		return out, fmt.Errorf("mark unique: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return out, err
	}
	out.First = n == 1

	if err := bumpCounters(ctx, tx, campaignID, rec.Type, out.First); err != nil {
		return out, err
	}

	if rec.Type == domain.EventClicked && rec.ClickURL != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO link_clicks (id, campaign_id, contact_id, url, clicked_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), campaignID, rec.ContactID, rec.ClickURL, rec.OccurredAt); err != nil {
			return out, fmt.Errorf("insert link click: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return out, fmt.Errorf("record event commit: %w", err)
	}
	return out, nil
}

// bumpCounters moves the campaign's derived counters with single-statement
// atomic increments. sent and delivered are logged only: total_sent is
// owned by the send engine's finalize step.
func bumpCounters(ctx context.Context, tx *sql.Tx, campaignID string, t domain.EmailEventType, first bool) error {
	var stmt string
	switch t {
	case domain.EventOpened:
		if first {
			stmt = `UPDATE campaigns SET total_opens = total_opens + 1, unique_opens = unique_opens + 1, updated_at = NOW() WHERE id = $1`
		} else {
			stmt = `UPDATE campaigns SET total_opens = total_opens + 1, updated_at = NOW() WHERE id = $1`
		}
	case domain.EventClicked:
		if first {
			stmt = `UPDATE campaigns SET total_clicks = total_clicks + 1, unique_clicks = unique_clicks + 1, updated_at = NOW() WHERE id = $1`
		} else {
			stmt = `UPDATE campaigns SET total_clicks = total_clicks + 1, updated_at = NOW() WHERE id = $1`
		}
	case domain.EventBounced:
		stmt = `UPDATE campaigns SET total_bounces = total_bounces + 1, updated_at = NOW() WHERE id = $1`
	case domain.EventComplained:
		stmt = `UPDATE campaigns SET total_complaints = total_complaints + 1, updated_at = NOW() WHERE id = $1`
	default:
		return nil
	}
	if _, err := tx.ExecContext(ctx, stmt, campaignID); err != nil {
		return fmt.Errorf("bump %s counter: %w", t, err)
	}
	return nil
}
