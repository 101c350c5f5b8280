// Package ingest turns provider webhooks and tracking hits into the
// append-only event log and the campaign counters derived from it.
//
// The receiving side is deliberately forgiving: unknown recipients, unknown
// event types, and duplicate deliveries are all acknowledged without side
// effects, because a webhook provider treats anything but a 2xx as an
// invitation to retry forever.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// ErrMalformed marks a structurally invalid webhook event: no type, or no
// data object, or no recipient inside it. A single-object body earns a 400
// for this; inside a batch the event is dropped and the rest acknowledged.
var ErrMalformed = errors.New("malformed webhook event")

// Service applies ingestion policy on top of the repository's transactional
// write path.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// WebhookEvent is the provider's wire envelope: a type string plus a data
// object describing the delivery.
type WebhookEvent struct {
	Type string       `json:"type"`
	Data *WebhookData `json:"data"`
}

// WebhookData carries the per-event fields. The campaign id rides in Tags;
// the first tag naming a known campaign wins.
type WebhookData struct {
	To        string    `json:"to"`
	ID        string    `json:"id"`
	Tags      []string  `json:"tags,omitempty"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Ingest processes one webhook event. A nil return means "acknowledge":
// that covers recorded events, duplicates, unmapped types, and unknown
// recipients alike. Only ErrMalformed and infrastructure failures come back
// as errors.
func (s *Service) Ingest(ctx context.Context, ev WebhookEvent) error {
	if ev.Type == "" || ev.Data == nil || ev.Data.To == "" {
		return ErrMalformed
	}

	eventType, ok := MapEventType(ev.Type)
	if !ok {
		logger.Debug("ignoring unmapped event type", "type", ev.Type)
		return nil
	}

	contact, err := s.repo.FindContactByEmail(ctx, domain.NormalizeEmail(ev.Data.To))
	if err != nil {
		return err
	}
	if contact == nil {
		logger.Debug("ignoring event for unknown recipient", "recipient", ev.Data.To)
		return nil
	}

	campaignID, err := s.resolveCampaign(ctx, ev.Data.Tags, eventType)
	if err != nil {
		return err
	}

	providerEventID := ev.Data.ID
	if providerEventID == "" {
		// no provider id means no dedup handle; synthesize one so the
		// unique index never rejects the insert
		providerEventID = "gen:" + uuid.New().String()
	}

	occurredAt := ev.Data.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	clickURL := ""
	if eventType == domain.EventClicked {
		clickURL = ev.Data.Link
	}

	payload, _ := json.Marshal(ev.Data)

	outcome, err := s.repo.RecordEvent(ctx, EventRecord{
		CampaignID:      campaignID,
		ContactID:       contact.ID,
		Type:            eventType,
		ProviderEventID: providerEventID,
		Payload:         payload,
		OccurredAt:      occurredAt,
		ClickURL:        clickURL,
	})
	if err != nil {
		return err
	}
	if outcome.Duplicate {
		logger.Debug("duplicate webhook delivery", "provider_event_id", providerEventID)
	}
	return nil
}

// resolveCampaign picks the campaign association out of the provider tags.
// An event whose tags name no known campaign is kept without one.
func (s *Service) resolveCampaign(ctx context.Context, tags []string, t domain.EmailEventType) (*string, error) {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		known, err := s.repo.CampaignExists(ctx, tag)
		if err != nil {
			return nil, err
		}
		if known {
			id := tag
			return &id, nil
		}
	}
	if len(tags) > 0 {
		// keep the event, lose the association
		logger.Warn("no tag names a known campaign", "tags", strings.Join(tags, ","), "type", string(t))
	}
	return nil, nil
}

// RecordOpen is the tracking-pixel path. It shares the webhook contract for
// an opened event but swallows every failure: the pixel renders no matter
// what.
func (s *Service) RecordOpen(ctx context.Context, campaignID, contactID string) {
	s.recordTracking(ctx, campaignID, contactID, domain.EventOpened, "")
}

// RecordClick is the click-redirect path, same contract as RecordOpen plus
// the link_clicks row.
func (s *Service) RecordClick(ctx context.Context, campaignID, contactID, url string) {
	s.recordTracking(ctx, campaignID, contactID, domain.EventClicked, url)
}

func (s *Service) recordTracking(ctx context.Context, campaignID, contactID string, t domain.EmailEventType, url string) {
	// ids come out of HMAC-signed URLs we minted ourselves, so no
	// recipient lookup here
	_, err := s.repo.RecordEvent(ctx, EventRecord{
		CampaignID:      &campaignID,
		ContactID:       contactID,
		Type:            t,
		ProviderEventID: "track:" + uuid.New().String(),
		OccurredAt:      time.Now().UTC(),
		ClickURL:        url,
	})
	if err != nil {
		logger.Error("tracking event not recorded",
			"campaign_id", campaignID, "contact_id", contactID, "type", string(t), "error", err.Error())
	}
}
