package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ignite/eventcrm/internal/ingest"
	"github.com/ignite/eventcrm/internal/pkg/httputil"
	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// maxWebhookBody caps the webhook payload at 5 MB.
const maxWebhookBody = 5 << 20

// ReceiveWebhook handles POST /webhooks/email. The provider posts
// `{type, data:{to, id, tags?, link?, created_at}}` objects, singly or in a
// batch array, and retries on any non-2xx. Everything processable is
// acknowledged with 200 even when individual events are dropped; 400 is
// reserved for a body we cannot parse and for a lone event missing its
// type or data. Infrastructure failures are 500 so the provider retries
// the batch; dedup on provider event ids makes the retry safe.
func (h *Handlers) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}

	events, single, ok := parseWebhookBody(body)
	if !ok {
		httputil.BadRequest(w, "invalid webhook payload")
		return
	}

	accepted := 0
	for _, ev := range events {
		err := h.Events.Ingest(r.Context(), ev)
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ingest.ErrMalformed):
			if single {
				httputil.BadRequest(w, "event missing type or data")
				return
			}
			logger.Warn("dropping malformed webhook event", "type", ev.Type)
		default:
			httputil.InternalError(w, err)
			return
		}
	}

	httputil.OK(w, map[string]any{"accepted": accepted})
}

// parseWebhookBody accepts either a single event object or a batch array.
func parseWebhookBody(body []byte) (events []ingest.WebhookEvent, single, ok bool) {
	var batch []ingest.WebhookEvent
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch, false, true
	}
	var one ingest.WebhookEvent
	if err := json.Unmarshal(body, &one); err == nil {
		return []ingest.WebhookEvent{one}, true, true
	}
	return nil, false, false
}
