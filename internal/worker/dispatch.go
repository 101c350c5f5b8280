package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/pkg/logger"
	"github.com/ignite/eventcrm/internal/service/campaign"
)

// dispatchKey is the Redis list carrying campaign ids awaiting delivery.
const dispatchKey = "eventcrm:campaign:dispatch"

// SendDispatcher queues campaign ids for the send worker. The API process
// holds one so delivery never runs inside a request.
type SendDispatcher struct {
	rdb *redis.Client
}

func NewSendDispatcher(rdb *redis.Client) *SendDispatcher {
	return &SendDispatcher{rdb: rdb}
}

func (d *SendDispatcher) Dispatch(ctx context.Context, campaignID string) error {
	return d.rdb.LPush(ctx, dispatchKey, campaignID).Err()
}

// SendWorker pops dispatched campaign ids and drives their queues to
// completion. The recovery sweep backstops any id lost between push and
// pop, so losing a dispatch message costs latency, not delivery.
type SendWorker struct {
	rdb       *redis.Client
	campaigns Deliverer
	done      chan struct{}
}

func NewSendWorker(rdb *redis.Client, campaigns Deliverer) *SendWorker {
	return &SendWorker{rdb: rdb, campaigns: campaigns, done: make(chan struct{})}
}

// Start launches the poll loop in its own goroutine.
func (w *SendWorker) Start(ctx context.Context) {
	logger.Info("send worker started", "queue", dispatchKey)
	go w.poll(ctx)
}

// Stop ends the poll loop after the current blocking pop returns.
func (w *SendWorker) Stop() {
	close(w.done)
}

func (w *SendWorker) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		default:
		}

		res, err := w.rdb.BRPop(ctx, time.Second, dispatchKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Warn("dispatch queue pop failed", "error", err.Error())
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
			continue
		}

		// BRPop returns [key, value]
		if len(res) != 2 {
			continue
		}
		w.run(ctx, res[1])
	}
}

func (w *SendWorker) run(ctx context.Context, campaignID string) {
	sum, err := w.campaigns.Deliver(ctx, campaignID)
	switch {
	case errors.Is(err, campaign.ErrInvalidState):
		// already finalized, usually by the recovery sweep
		logger.Debug("dispatched campaign no longer sending", "campaign_id", campaignID)
	case err != nil:
		logger.Error("campaign delivery failed", "campaign_id", campaignID, "error", err.Error())
	default:
		logger.Info("campaign delivered",
			"campaign_id", campaignID, "sent", sum.Sent, "failed", sum.Failed)
	}
}
