package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository and the worker's
// RecoveryStore against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, subject, from_name, from_email, body, status, placement_score,
	total_sent, total_opens, unique_opens, total_clicks, unique_clicks,
	total_bounces, total_complaints, sent_at, created_at, updated_at`

func scanCampaign(scan func(...interface{}) error) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := scan(
		&c.ID, &c.Subject, &c.FromName, &c.FromEmail, &c.Body, &c.Status, &c.PlacementScore,
		&c.TotalSent, &c.TotalOpens, &c.UniqueOpens, &c.TotalClicks, &c.UniqueClicks,
		&c.TotalBounces, &c.TotalComplaints, &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	return scanCampaign(row.Scan)
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	var args []interface{}

	if f.Status != "" {
		args = append(args, f.Status)
		cond := fmt.Sprintf(" AND status = $%d", len(args))
		countQ += cond
		q += cond
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		cond := fmt.Sprintf(" AND subject ILIKE $%d", len(args))
		countQ += cond
		q += cond
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	args = append(args, limit, f.Offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, subject, from_name, from_email, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, c.ID, c.Subject, c.FromName, c.FromEmail, c.Body, c.Status)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Update(ctx context.Context, id string, u campaign.UpdateFields) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			subject    = COALESCE($2, subject),
			from_name  = COALESCE($3, from_name),
			from_email = COALESCE($4, from_email),
			body       = COALESCE($5, body),
			updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
	`, id, u.Subject, u.FromName, u.FromEmail, u.Body)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return r.explainNoRows(ctx, res, id)
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return r.explainNoRows(ctx, res, id)
}

// explainNoRows turns a zero-row conditional write into the right sentinel:
// missing row or wrong status.
func (r *CampaignRepo) explainNoRows(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return campaign.ErrNotFound
	}
	return campaign.ErrInvalidState
}

func (r *CampaignRepo) TransitionToSending(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'testing')
	`, id)
	if err != nil {
		return false, fmt.Errorf("transition to sending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CampaignRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, totalSent int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'sent', sent_at = $2, total_sent = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'sending'
	`, id, sentAt, totalSent)
	if err != nil {
		return fmt.Errorf("mark campaign sent: %w", err)
	}
	return nil
}

func (r *CampaignRepo) SetTestResult(ctx context.Context, id string, score float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'testing', placement_score = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'testing')
	`, id, score)
	if err != nil {
		return fmt.Errorf("set test result: %w", err)
	}
	return r.explainNoRows(ctx, res, id)
}

func (r *CampaignRepo) RevertTest(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'draft', updated_at = NOW()
		WHERE id = $1 AND status = 'testing'
	`, id)
	if err != nil {
		return fmt.Errorf("revert test: %w", err)
	}
	return r.explainNoRows(ctx, res, id)
}

func (r *CampaignRepo) Audience(ctx context.Context) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, first_name, last_name
		FROM contacts
		WHERE unsubscribed = FALSE
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName); err != nil {
			return nil, fmt.Errorf("scan audience contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Enqueue(ctx context.Context, campaignID string, contacts []domain.Contact) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("enqueue begin: %w", err)
	}
	defer tx.Rollback()

	for _, c := range contacts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO campaign_queue (id, campaign_id, contact_id, email, first_name, last_name, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending', NOW())
			ON CONFLICT (campaign_id, contact_id) DO NOTHING
		`, uuid.New().String(), campaignID, c.ID, c.Email, c.FirstName, c.LastName); err != nil {
			return 0, fmt.Errorf("enqueue recipient: %w", err)
		}
	}

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_queue WHERE campaign_id = $1`, campaignID).Scan(&total); err != nil {
		return 0, fmt.Errorf("enqueue count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("enqueue commit: %w", err)
	}
	return total, nil
}

// ClaimQueueBatch claims pending rows with SKIP LOCKED so concurrent
// workers never double-send a recipient.
func (r *CampaignRepo) ClaimQueueBatch(ctx context.Context, campaignID, workerID string, limit int) ([]campaign.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE campaign_queue SET status = 'claimed', claimed_by = $2, claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM campaign_queue
			WHERE campaign_id = $1 AND status = 'pending'
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, campaign_id, contact_id, email, first_name, last_name
	`, campaignID, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim queue batch: %w", err)
	}
	defer rows.Close()

	var out []campaign.QueueItem
	for rows.Next() {
		var it campaign.QueueItem
		if err := rows.Scan(&it.ID, &it.CampaignID, &it.ContactID, &it.Email, &it.FirstName, &it.LastName); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkQueueItemSent finalizes the row and logs the sent event in one
// transaction, keyed on the queue row id so a crash between delivery and
// finalize cannot double-log.
func (r *CampaignRepo) MarkQueueItemSent(ctx context.Context, itemID, messageID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark sent begin: %w", err)
	}
	defer tx.Rollback()

	var campaignID, contactID string
	err = tx.QueryRowContext(ctx, `
		UPDATE campaign_queue SET status = 'sent', message_id = $2, sent_at = NOW()
		WHERE id = $1 AND status = 'claimed'
		RETURNING campaign_id, contact_id
	`, itemID, messageID).Scan(&campaignID, &contactID)
	if errors.Is(err, sql.ErrNoRows) {
		// someone else finalized it
		return nil
	}
	if err != nil {
		return fmt.Errorf("finalize queue item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO email_events (id, campaign_id, contact_id, event_type, provider_event_id, occurred_at, created_at)
		VALUES ($1, $2, $3, 'sent', $4, NOW(), NOW())
		ON CONFLICT (provider_event_id) DO NOTHING
	`, uuid.New().String(), campaignID, contactID, "send:"+itemID); err != nil {
		return fmt.Errorf("log sent event: %w", err)
	}

	return tx.Commit()
}

func (r *CampaignRepo) MarkQueueItemFailed(ctx context.Context, itemID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_queue SET status = 'failed', error = $2
		WHERE id = $1 AND status = 'claimed'
	`, itemID, reason)
	if err != nil {
		return fmt.Errorf("mark queue item failed: %w", err)
	}
	return nil
}

func (r *CampaignRepo) QueueCounts(ctx context.Context, campaignID string) (int, int, error) {
	var total, sent int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'sent')
		FROM campaign_queue
		WHERE campaign_id = $1
	`, campaignID).Scan(&total, &sent)
	if err != nil {
		return 0, 0, fmt.Errorf("queue counts: %w", err)
	}
	return total, sent, nil
}

// RecomputeStats derives the counters from the event log and writes them
// back, reconciling any drift between the live increments and the log.
func (r *CampaignRepo) RecomputeStats(ctx context.Context, campaignID string) (*domain.CampaignStats, error) {
	s := &domain.CampaignStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE event_type = 'opened'),
			COUNT(DISTINCT contact_id) FILTER (WHERE event_type = 'opened'),
			COUNT(*) FILTER (WHERE event_type = 'clicked'),
			COUNT(DISTINCT contact_id) FILTER (WHERE event_type = 'clicked'),
			COUNT(*) FILTER (WHERE event_type = 'bounced'),
			COUNT(*) FILTER (WHERE event_type = 'complained')
		FROM email_events
		WHERE campaign_id = $1
	`, campaignID).Scan(
		&s.TotalOpens, &s.UniqueOpens, &s.TotalClicks, &s.UniqueClicks,
		&s.TotalBounces, &s.TotalComplaints,
	)
	if err != nil {
		return nil, fmt.Errorf("recompute stats: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			total_opens = $2, unique_opens = $3,
			total_clicks = $4, unique_clicks = $5,
			total_bounces = $6, total_complaints = $7,
			updated_at = NOW()
		WHERE id = $1
	`, campaignID, s.TotalOpens, s.UniqueOpens, s.TotalClicks, s.UniqueClicks,
		s.TotalBounces, s.TotalComplaints)
	if err != nil {
		return nil, fmt.Errorf("write recomputed stats: %w", err)
	}
	return s, nil
}

func (r *CampaignRepo) TopLinks(ctx context.Context, campaignID string, limit int) ([]campaign.LinkCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url, COUNT(*), COUNT(DISTINCT contact_id)
		FROM link_clicks
		WHERE campaign_id = $1
		GROUP BY url
		ORDER BY COUNT(*) DESC, url
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("top links: %w", err)
	}
	defer rows.Close()

	var out []campaign.LinkCount
	for rows.Next() {
		var lc campaign.LinkCount
		if err := rows.Scan(&lc.URL, &lc.Clicks, &lc.UniqueClicks); err != nil {
			return nil, fmt.Errorf("scan link count: %w", err)
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

// ReleaseStaleClaims returns timed-out claimed rows to pending so a
// replacement worker can pick them up.
func (r *CampaignRepo) ReleaseStaleClaims(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_queue
		SET status = 'pending', claimed_by = NULL, claimed_at = NULL
		WHERE status = 'claimed' AND claimed_at < $1
	`, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *CampaignRepo) SendingCampaignIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM campaigns WHERE status = 'sending'`)
	if err != nil {
		return nil, fmt.Errorf("sending campaigns: %w", err)
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
