package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// defaultQueueKey is the Redis list carrying tracking events to the
// consumer when the config names no other.
const defaultQueueKey = "tracking:events"

// EventType is limited to what the tracking endpoints can observe.
type EventType string

const (
	EventOpen  EventType = "opened"
	EventClick EventType = "clicked"
)

// Event is one pixel or click hit, queued for asynchronous recording.
type Event struct {
	Type       EventType `json:"type"`
	CampaignID string    `json:"campaign_id"`
	ContactID  string    `json:"contact_id"`
	URL        string    `json:"url,omitempty"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher pushes events onto the Redis queue without blocking the request
// path. Publisher and consumer must share the same queue name.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

func NewPublisher(rdb *redis.Client, queue string) *Publisher {
	if queue == "" {
		queue = defaultQueueKey
	}
	return &Publisher{rdb: rdb, queue: queue}
}

// Publish enqueues the event. It never fails the caller: a lost tracking
// hit is worth less than a slow pixel.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error("marshal tracking event", "error", err.Error())
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.rdb.LPush(ctx, p.queue, body).Err(); err != nil {
			logger.Error("publish tracking event", "error", err.Error())
		}
	}()
}
