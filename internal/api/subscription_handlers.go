package api

import (
	"errors"
	"net/http"

	"github.com/ignite/eventcrm/internal/pkg/httputil"
	"github.com/ignite/eventcrm/internal/pkg/logger"
	"github.com/ignite/eventcrm/internal/service/subscription"
)

type subscriptionRequest struct {
	Email string `json:"email"`
}

// Unsubscribe handles POST /unsubscribe, the public opt-out endpoint linked
// from campaign footers. Unknown emails are acknowledged the same as known
// ones so the endpoint cannot be used to enumerate the contact list.
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	err := h.Subscriptions.Unsubscribe(r.Context(), req.Email)
	switch {
	case err == nil:
		httputil.OK(w, map[string]string{"status": "unsubscribed"})
	case errors.Is(err, subscription.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, subscription.ErrNotFound):
		logger.Debug("unsubscribe for unknown email")
		httputil.OK(w, map[string]string{"status": "unsubscribed"})
	default:
		httputil.InternalError(w, err)
	}
}

// Resubscribe handles POST /api/contacts/resubscribe: an operator action on
// an explicit contact request, never automatic.
func (h *Handlers) Resubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	err := h.Subscriptions.Resubscribe(r.Context(), req.Email)
	switch {
	case err == nil:
		httputil.OK(w, map[string]string{"status": "subscribed"})
	case errors.Is(err, subscription.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, subscription.ErrNotFound):
		httputil.NotFound(w, "contact not found")
	default:
		httputil.InternalError(w, err)
	}
}
