package domain

import (
	"encoding/json"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
//
// The legal transitions are:
//
//	draft -> testing   (deliverability pre-check, advisory)
//	testing -> draft   (revert)
//	draft|testing -> sending -> sent
//
// "sending" is a transient state owned by the send engine; a campaign found
// in it at worker startup has an unfinished queue and is resumed. "sent" is
// terminal for content edits; its counters remain append-only.
type CampaignStatus string

const (
	CampaignDraft   CampaignStatus = "draft"
	CampaignTesting CampaignStatus = "testing"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
)

// Campaign represents one email blast with its content and aggregate
// counters. The counters are a derived cache over the email_events log and
// are only ever moved by atomic increments; RecomputeStats reconciles them.
type Campaign struct {
	ID        string         `json:"id" db:"id"`
	Subject   string         `json:"subject" db:"subject"`
	FromName  string         `json:"from_name" db:"from_name"`
	FromEmail string         `json:"from_email" db:"from_email"`
	Body      string         `json:"body" db:"body"`
	Status    CampaignStatus `json:"status" db:"status"`

	// PlacementScore is the advisory 0-100 result of the last
	// deliverability pre-check, if any.
	PlacementScore *float64 `json:"placement_score" db:"placement_score"`

	TotalSent       int `json:"total_sent" db:"total_sent"`
	TotalOpens      int `json:"total_opens" db:"total_opens"`
	UniqueOpens     int `json:"unique_opens" db:"unique_opens"`
	TotalClicks     int `json:"total_clicks" db:"total_clicks"`
	UniqueClicks    int `json:"unique_clicks" db:"unique_clicks"`
	TotalBounces    int `json:"total_bounces" db:"total_bounces"`
	TotalComplaints int `json:"total_complaints" db:"total_complaints"`

	SentAt    *time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Sendable reports whether the campaign may enter the send pipeline.
func (c *Campaign) Sendable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignTesting
}

// EmailEventType enumerates the internal delivery-signal vocabulary.
// Provider-specific type strings are mapped onto it by the ingest layer;
// anything outside this set is acknowledged and dropped there.
type EmailEventType string

const (
	EventSent       EmailEventType = "sent"
	EventDelivered  EmailEventType = "delivered"
	EventOpened     EmailEventType = "opened"
	EventClicked    EmailEventType = "clicked"
	EventBounced    EmailEventType = "bounced"
	EventComplained EmailEventType = "complained"
)

// EmailEvent is one immutable observed delivery signal. The event log is the
// source of truth for campaign counters; events are append-only and
// deduplicated on ProviderEventID when the provider supplies one.
type EmailEvent struct {
	ID              string          `json:"id" db:"id"`
	CampaignID      *string         `json:"campaign_id" db:"campaign_id"`
	ContactID       string          `json:"contact_id" db:"contact_id"`
	Type            EmailEventType  `json:"event_type" db:"event_type"`
	ProviderEventID string          `json:"provider_event_id" db:"provider_event_id"`
	Payload         json.RawMessage `json:"payload" db:"payload"`
	OccurredAt      time.Time       `json:"occurred_at" db:"occurred_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// LinkClick is one click-through record, aggregated for top-links reporting.
type LinkClick struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	ContactID  string    `json:"contact_id" db:"contact_id"`
	URL        string    `json:"url" db:"url"`
	ClickedAt  time.Time `json:"clicked_at" db:"clicked_at"`
}

// CampaignStats is the counter tuple recomputed from the event log when
// reconciling against the live campaign row.
type CampaignStats struct {
	TotalOpens      int `json:"total_opens"`
	UniqueOpens     int `json:"unique_opens"`
	TotalClicks     int `json:"total_clicks"`
	UniqueClicks    int `json:"unique_clicks"`
	TotalBounces    int `json:"total_bounces"`
	TotalComplaints int `json:"total_complaints"`
}
