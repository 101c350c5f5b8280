package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/eventcrm/internal/service/subscription"
)

// SubscriptionRepo implements subscription.Repository on the contacts table.
type SubscriptionRepo struct{ db *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

func (r *SubscriptionRepo) SetSubscription(ctx context.Context, email string, unsubscribed bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET unsubscribed = $2, updated_at = NOW()
		WHERE lower(email) = lower($1)
	`, email, unsubscribed)
	if err != nil {
		return false, fmt.Errorf("set subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SubscriptionRepo) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	var out bool
	err := r.db.QueryRowContext(ctx,
		`SELECT unsubscribed FROM contacts WHERE lower(email) = lower($1)`, email).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return false, subscription.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("is unsubscribed: %w", err)
	}
	return out, nil
}
