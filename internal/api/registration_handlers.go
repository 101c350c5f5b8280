package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/eventcrm/internal/pkg/httputil"
	"github.com/ignite/eventcrm/internal/service/registration"
)

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// Register handles POST /api/events/{eventID}/registrations.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registration.Input
	if !httputil.Decode(w, r, &in) {
		return
	}
	in.EventID = chi.URLParam(r, "eventID")

	res, err := h.Registrations.Register(r.Context(), in)
	switch {
	case err == nil:
		httputil.Created(w, res)
	case errors.Is(err, registration.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, registration.ErrEventNotFound):
		httputil.NotFound(w, "event not found")
	case errors.Is(err, registration.ErrAlreadyRegistered):
		httputil.Conflict(w, "already_registered", "you already have a ticket for this event")
	default:
		httputil.InternalError(w, err)
	}
}
