package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/eventcrm/internal/domain"
)

func TestMapEventType(t *testing.T) {
	cases := map[string]domain.EmailEventType{
		"injection":      domain.EventSent,
		"delivery":       domain.EventDelivered,
		"delivered":      domain.EventDelivered,
		"open":           domain.EventOpened,
		"initial_open":   domain.EventOpened,
		"click":          domain.EventClicked,
		"bounce":         domain.EventBounced,
		"out_of_band":    domain.EventBounced,
		"spam_complaint": domain.EventComplained,
		"spam_report":    domain.EventComplained,
	}
	for provider, want := range cases {
		got, ok := MapEventType(provider)
		assert.True(t, ok, provider)
		assert.Equal(t, want, got, provider)
	}
}

func TestMapEventTypeNormalizes(t *testing.T) {
	got, ok := MapEventType("  Delivery ")
	assert.True(t, ok)
	assert.Equal(t, domain.EventDelivered, got)
}

func TestMapEventTypeClosed(t *testing.T) {
	for _, unknown := range []string{"list_unsubscribe", "amp_click", "render", ""} {
		_, ok := MapEventType(unknown)
		assert.False(t, ok, unknown)
	}
}
