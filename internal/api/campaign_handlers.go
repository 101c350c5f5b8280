package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/eventcrm/internal/pkg/httputil"
	"github.com/ignite/eventcrm/internal/service/campaign"
)

// campaignError maps campaign service sentinels onto the error envelope.
func campaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrInvalidState):
		httputil.InvalidState(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

// ListCampaigns handles GET /api/campaigns.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := campaign.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = v
	}

	campaigns, total, err := h.Campaigns.List(r.Context(), f)
	if err != nil {
		campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"campaigns": campaigns,
		"total":     total,
	})
}

// CreateCampaign handles POST /api/campaigns.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.Campaigns.Create(r.Context(), in)
	if err != nil {
		campaignError(w, err)
		return
	}
	httputil.Created(w, c)
}

// GetCampaign handles GET /api/campaigns/{campaignID}.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Campaigns.Get(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		campaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// UpdateCampaign handles PUT /api/campaigns/{campaignID}. Only drafts are
// editable.
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var u campaign.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	id := chi.URLParam(r, "campaignID")
	if err := h.Campaigns.Update(r.Context(), id, u); err != nil {
		campaignError(w, err)
		return
	}
	c, err := h.Campaigns.Get(r.Context(), id)
	if err != nil {
		campaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign handles DELETE /api/campaigns/{campaignID}.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.Campaigns.Delete(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "deleted"})
}

// TestCampaign handles POST /api/campaigns/{campaignID}/test: the advisory
// deliverability pre-check. The score never gates sending.
func (h *Handlers) TestCampaign(w http.ResponseWriter, r *http.Request) {
	eval, err := h.Campaigns.Test(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		campaignError(w, err)
		return
	}
	httputil.OK(w, eval)
}

// RevertCampaignTest handles POST /api/campaigns/{campaignID}/revert-test.
func (h *Handlers) RevertCampaignTest(w http.ResponseWriter, r *http.Request) {
	if err := h.Campaigns.RevertTest(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "draft"})
}

// SendCampaign handles POST /api/campaigns/{campaignID}/send: locks in the
// audience, enqueues every recipient, and hands delivery to the worker.
// Responds 202 with the queue snapshot; clients poll stats for progress.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Campaigns.Send(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		campaignError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, summary)
}

// ResumeCampaign handles POST /api/campaigns/{campaignID}/resume:
// re-dispatches an interrupted send to the worker and reports how far the
// queue had progressed.
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Campaigns.Resume(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		campaignError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, summary)
}

// CampaignStats handles GET /api/campaigns/{campaignID}/stats: recomputes
// the counters from the event log and returns the reconciled values.
func (h *Handlers) CampaignStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Campaigns.RecomputeStats(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		campaignError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// CampaignTopLinks handles GET /api/campaigns/{campaignID}/links.
func (h *Handlers) CampaignTopLinks(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	links, err := h.Campaigns.TopLinks(r.Context(), chi.URLParam(r, "campaignID"), limit)
	if err != nil {
		campaignError(w, err)
		return
	}
	if links == nil {
		links = []campaign.LinkCount{}
	}
	httputil.OK(w, map[string]any{"links": links})
}
