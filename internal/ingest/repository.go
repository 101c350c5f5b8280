package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ignite/eventcrm/internal/domain"
)

// Repository is the data access contract for event ingestion.
// Implementations must be safe for concurrent use.
type Repository interface {
	// FindContactByEmail looks up a contact case-insensitively.
	// Returns (nil, nil) when no contact exists.
	FindContactByEmail(ctx context.Context, email string) (*domain.Contact, error)

	// CampaignExists reports whether the campaign id is known.
	CampaignExists(ctx context.Context, id string) (bool, error)

	// RecordEvent runs the whole write path for one delivery signal in a
	// single transaction:
	//
	//   1. insert the event, deduplicated on ProviderEventID; a duplicate
	//      makes the entire call a no-op
	//   2. insert-if-absent into the per-(campaign, contact, type)
	//      uniqueness table to decide first occurrence
	//   3. bump the campaign's total_* counter, and its unique_* counter
	//      on first occurrence, as single-statement atomic increments
	//   4. insert a link_clicks row when ClickURL is set
	//
	// Events without a campaign id skip steps 2-4: they are logged only.
	RecordEvent(ctx context.Context, rec EventRecord) (Outcome, error)
}

// EventRecord is the normalized write request for one delivery signal.
type EventRecord struct {
	CampaignID      *string
	ContactID       string
	Type            domain.EmailEventType
	ProviderEventID string
	Payload         json.RawMessage
	OccurredAt      time.Time
	ClickURL        string
}

// Outcome reports what RecordEvent did.
type Outcome struct {
	// Duplicate is true when the provider event id was already recorded
	// and nothing changed.
	Duplicate bool

	// First is true when this was the first event of its type for the
	// (campaign, contact) pair.
	First bool
}
