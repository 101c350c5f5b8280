package ingest

import (
	"strings"

	"github.com/ignite/eventcrm/internal/domain"
)

// providerTypes is the closed mapping from provider webhook type strings to
// the internal vocabulary. Providers disagree on naming (delivery vs
// delivered, spam_complaint vs complaint), so the common spellings are all
// listed. Anything absent from this table is acknowledged and dropped.
var providerTypes = map[string]domain.EmailEventType{
	"injection": domain.EventSent,

	"delivery":  domain.EventDelivered,
	"delivered": domain.EventDelivered,

	"open":         domain.EventOpened,
	"opened":       domain.EventOpened,
	"initial_open": domain.EventOpened,

	"click":   domain.EventClicked,
	"clicked": domain.EventClicked,

	"bounce":      domain.EventBounced,
	"bounced":     domain.EventBounced,
	"out_of_band": domain.EventBounced,

	"complaint":      domain.EventComplained,
	"complained":     domain.EventComplained,
	"spam_complaint": domain.EventComplained,
	"spam_report":    domain.EventComplained,
}

// MapEventType translates a provider type string, case-insensitively.
func MapEventType(providerType string) (domain.EmailEventType, bool) {
	t, ok := providerTypes[strings.ToLower(strings.TrimSpace(providerType))]
	return t, ok
}
