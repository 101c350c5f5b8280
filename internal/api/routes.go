package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/eventcrm/internal/ingest"
	"github.com/ignite/eventcrm/internal/service/campaign"
	"github.com/ignite/eventcrm/internal/service/checkin"
	"github.com/ignite/eventcrm/internal/service/registration"
	"github.com/ignite/eventcrm/internal/service/subscription"
)

// Handlers bundles the services the HTTP layer fronts.
type Handlers struct {
	Registrations *registration.Service
	Checkins      *checkin.Service
	Campaigns     *campaign.Service
	Events        *ingest.Service
	Subscriptions *subscription.Service
}

// SetupRoutes configures all routes. The webhook receiver lives outside
// /api: providers call it directly and it must stay reachable without the
// dashboard's CORS assumptions.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	// Provider webhook receiver, no auth: providers sign nothing useful and
	// retry on non-2xx, so the handler is deliberately forgiving.
	r.Post("/webhooks/email", h.ReceiveWebhook)

	// Public opt-out, linked from campaign footers.
	r.Post("/unsubscribe", h.Unsubscribe)

	r.Route("/api", func(r chi.Router) {
		// Public registration
		r.Post("/events/{eventID}/registrations", h.Register)

		// Check-in scanner
		r.Post("/checkin/validate", h.ValidateTicket)
		r.Post("/checkin/{attendanceID}/undo", h.UndoCheckin)
		r.Get("/events/{eventID}/checkin/search", h.SearchAttendees)

		// Operator action on explicit contact request
		r.Post("/contacts/resubscribe", h.Resubscribe)

		// Campaign management
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Get("/{campaignID}", h.GetCampaign)
			r.Put("/{campaignID}", h.UpdateCampaign)
			r.Delete("/{campaignID}", h.DeleteCampaign)
			r.Post("/{campaignID}/test", h.TestCampaign)
			r.Post("/{campaignID}/revert-test", h.RevertCampaignTest)
			r.Post("/{campaignID}/send", h.SendCampaign)
			r.Post("/{campaignID}/resume", h.ResumeCampaign)
			r.Get("/{campaignID}/stats", h.CampaignStats)
			r.Get("/{campaignID}/links", h.CampaignTopLinks)
		})
	})

	return r
}
