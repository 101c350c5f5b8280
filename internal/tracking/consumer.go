package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// Recorder is the ingestion surface the consumer drains into. Both methods
// swallow their own failures; the consumer only routes.
type Recorder interface {
	RecordOpen(ctx context.Context, campaignID, contactID string)
	RecordClick(ctx context.Context, campaignID, contactID, url string)
}

// Consumer drains the tracking queue into the event store.
type Consumer struct {
	rdb      *redis.Client
	recorder Recorder
	queue    string
	done     chan struct{}
}

func NewConsumer(rdb *redis.Client, recorder Recorder, queue string) *Consumer {
	if queue == "" {
		queue = defaultQueueKey
	}
	return &Consumer{rdb: rdb, recorder: recorder, queue: queue, done: make(chan struct{})}
}

// Start launches the poll loop in its own goroutine.
func (c *Consumer) Start(ctx context.Context) {
	logger.Info("tracking consumer started", "queue", c.queue)
	go c.poll(ctx)
}

// Stop ends the poll loop after the current blocking pop returns.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		res, err := c.rdb.BRPop(ctx, time.Second, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Warn("tracking queue pop failed", "error", err.Error())
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
			continue
		}

		// BRPop returns [key, value]
		if len(res) != 2 {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(res[1]), &evt); err != nil {
			logger.Warn("dropping undecodable tracking event", "error", err.Error())
			continue
		}
		c.dispatch(ctx, evt)
	}
}

func (c *Consumer) dispatch(ctx context.Context, evt Event) {
	switch evt.Type {
	case EventOpen:
		c.recorder.RecordOpen(ctx, evt.CampaignID, evt.ContactID)
	case EventClick:
		c.recorder.RecordClick(ctx, evt.CampaignID, evt.ContactID, evt.URL)
	default:
		logger.Warn("unknown tracking event type", "type", string(evt.Type))
	}
}
