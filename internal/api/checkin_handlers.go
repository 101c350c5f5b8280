package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/eventcrm/internal/pkg/httputil"
	"github.com/ignite/eventcrm/internal/service/checkin"
)

type validateRequest struct {
	Token   string `json:"token"`
	EventID string `json:"event_id"`
}

// ValidateTicket handles POST /api/checkin/validate: the scanner's single
// call. A duplicate scan is a 409 that still carries the attendance so the
// door staff can see who is already in and since when.
func (h *Handlers) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.EventID == "" {
		httputil.BadRequest(w, "token and event_id are required")
		return
	}

	res, err := h.Checkins.Validate(r.Context(), req.Token, req.EventID)
	switch {
	case err == nil:
		httputil.OK(w, res)
	case errors.Is(err, checkin.ErrAlreadyCheckedIn):
		httputil.ErrorWithDetails(w, http.StatusConflict, "already_checked_in", err.Error(), res)
	case errors.Is(err, checkin.ErrCancelled):
		httputil.InvalidState(w, err.Error())
	case errors.Is(err, checkin.ErrNotFound):
		httputil.NotFound(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

// SearchAttendees handles GET /api/events/{eventID}/checkin/search?q= —
// the manual fallback when a QR code will not scan.
func (h *Handlers) SearchAttendees(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	query := r.URL.Query().Get("q")

	matches, err := h.Checkins.Search(r.Context(), eventID, query)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if matches == nil {
		matches = []checkin.Match{}
	}
	httputil.OK(w, map[string]any{"matches": matches})
}

// UndoCheckin handles POST /api/checkin/{attendanceID}/undo.
func (h *Handlers) UndoCheckin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "attendanceID")

	err := h.Checkins.Undo(r.Context(), id)
	switch {
	case err == nil:
		httputil.OK(w, map[string]string{"status": "registered"})
	case errors.Is(err, checkin.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, checkin.ErrCancelled), errors.Is(err, checkin.ErrNotCheckedIn):
		httputil.InvalidState(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
