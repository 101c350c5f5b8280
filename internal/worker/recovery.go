package worker

import (
	"context"
	"time"

	"github.com/ignite/eventcrm/internal/pkg/logger"
	"github.com/ignite/eventcrm/internal/service/campaign"
)

// RecoveryStore is the queue-maintenance surface of the campaign store.
type RecoveryStore interface {
	// ReleaseStaleClaims returns claimed queue rows older than the
	// visibility timeout to pending, and reports how many it released.
	ReleaseStaleClaims(ctx context.Context, olderThan time.Duration) (int, error)

	// SendingCampaignIDs lists campaigns stuck in the sending status.
	SendingCampaignIDs(ctx context.Context) ([]string, error)
}

// Deliverer drains a sending campaign's queue to completion.
type Deliverer interface {
	Deliver(ctx context.Context, campaignID string) (*campaign.SendSummary, error)
}

// Recovery puts crashed sends back on track at worker startup and on a
// periodic sweep: claimed rows whose worker died go back to pending, then
// every campaign still marked sending is driven to completion. It also
// backstops dispatch messages lost between the API and the send worker.
type Recovery struct {
	store      RecoveryStore
	campaigns  Deliverer
	visibility time.Duration
}

func NewRecovery(store RecoveryStore, campaigns Deliverer, visibility time.Duration) *Recovery {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &Recovery{store: store, campaigns: campaigns, visibility: visibility}
}

// Run performs one recovery sweep. Per-campaign failures are logged and do
// not stop the sweep.
func (r *Recovery) Run(ctx context.Context) error {
	released, err := r.store.ReleaseStaleClaims(ctx, r.visibility)
	if err != nil {
		return err
	}
	if released > 0 {
		logger.Warn("released stale queue claims", "count", released)
	}

	ids, err := r.store.SendingCampaignIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		sum, err := r.campaigns.Deliver(ctx, id)
		if err != nil {
			logger.Error("campaign recovery delivery failed", "campaign_id", id, "error", err.Error())
			continue
		}
		logger.Info("campaign driven to completion",
			"campaign_id", id, "sent", sum.Sent, "failed", sum.Failed)
	}
	return nil
}

// RunEvery repeats Run on the interval until the context ends. The first
// sweep happens immediately.
func (r *Recovery) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := r.Run(ctx); err != nil {
			logger.Error("recovery sweep failed", "error", err.Error())
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
