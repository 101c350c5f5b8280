package campaign

import (
	"context"
	"time"

	"github.com/ignite/eventcrm/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, newest first, plus the
	// total count before pagination.
	List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// Update modifies mutable fields. Nil fields are not applied.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a draft campaign. Returns ErrInvalidState for any
	// other status.
	Delete(ctx context.Context, id string) error

	// TransitionToSending conditionally moves draft/testing to sending and
	// reports whether this call won the transition. A false return with a
	// nil error means another sender got there first (or the status
	// forbids sending).
	TransitionToSending(ctx context.Context, id string) (bool, error)

	// MarkSent finishes a send: status=sent, sent_at, total_sent.
	MarkSent(ctx context.Context, id string, sentAt time.Time, totalSent int) error

	// SetTestResult stores a deliverability pre-check: status=testing plus
	// the placement score. Allowed from draft or testing only; returns
	// ErrInvalidState otherwise.
	SetTestResult(ctx context.Context, id string, score float64) error

	// RevertTest moves testing back to draft. Returns ErrInvalidState when
	// the campaign is not in testing.
	RevertTest(ctx context.Context, id string) error

	// Audience returns the contacts a send would go to: not unsubscribed,
	// fixed at call time.
	Audience(ctx context.Context) ([]domain.Contact, error)

	// Enqueue inserts one pending queue row per contact, skipping pairs
	// that already have a row for this campaign, and returns how many rows
	// now exist for it. Re-running it is safe.
	Enqueue(ctx context.Context, campaignID string, contacts []domain.Contact) (int, error)

	// ClaimQueueBatch atomically claims up to limit pending rows for this
	// worker and returns them. Concurrent claimers never receive the same
	// row.
	ClaimQueueBatch(ctx context.Context, campaignID, workerID string, limit int) ([]QueueItem, error)

	// MarkQueueItemSent finalizes a delivered row and logs the sent event.
	MarkQueueItemSent(ctx context.Context, itemID, messageID string) error

	// MarkQueueItemFailed finalizes a failed row with the reason.
	MarkQueueItemFailed(ctx context.Context, itemID, reason string) error

	// QueueCounts returns how many queue rows exist for the campaign and
	// how many of them are already sent. A resumed send uses these to
	// report totals that include deliveries from before the crash.
	QueueCounts(ctx context.Context, campaignID string) (total, sent int, err error)

	// RecomputeStats rebuilds the campaign's counters from the event log
	// and returns the reconciled numbers.
	RecomputeStats(ctx context.Context, campaignID string) (*domain.CampaignStats, error)

	// TopLinks aggregates link_clicks for the campaign, most clicked
	// first.
	TopLinks(ctx context.Context, campaignID string, limit int) ([]LinkCount, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Subject   *string
	FromName  *string
	FromEmail *string
	Body      *string
}

// QueueItem is one recipient's durable place in a campaign send.
type QueueItem struct {
	ID         string
	CampaignID string
	ContactID  string
	Email      string
	FirstName  string
	LastName   string
}

// LinkCount is one row of the top-links report.
type LinkCount struct {
	URL          string `json:"url"`
	Clicks       int    `json:"clicks"`
	UniqueClicks int    `json:"unique_clicks"`
}
