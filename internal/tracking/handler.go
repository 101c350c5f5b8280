package tracking

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the pixel and click endpoints. It does no database work:
// valid hits go to the publisher, everything else is answered and dropped.
type Handler struct {
	signer *Signer
	pub    *Publisher
}

func NewHandler(signer *Signer, pub *Publisher) *Handler {
	return &Handler{signer: signer, pub: pub}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/t/o/{data}/{sig}", h.HandleOpen)
	r.Get("/t/c/{data}/{sig}", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleOpen records an open and serves the pixel. The pixel renders for
// forged or garbled URLs too; an email client only ever sees an image.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	campaignID, contactID, ok := h.signer.DecodeOpen(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
	if ok {
		h.pub.Publish(r.Context(), Event{
			Type:       EventOpen,
			CampaignID: campaignID,
			ContactID:  contactID,
			IPAddress:  realIP(r),
			UserAgent:  r.UserAgent(),
			Timestamp:  time.Now().UTC(),
		})
	}
	h.servePixel(w)
}

// HandleClick records a click and redirects to the wrapped destination. A
// bad signature gets a 400: redirecting to an unverified URL would make the
// endpoint an open redirect.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	campaignID, contactID, destURL, ok := h.signer.DecodeClick(chi.URLParam(r, "data"), chi.URLParam(r, "sig"))
	if !ok {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}

	h.pub.Publish(r.Context(), Event{
		Type:       EventClick,
		CampaignID: campaignID,
		ContactID:  contactID,
		URL:        destURL,
		IPAddress:  realIP(r),
		UserAgent:  r.UserAgent(),
		Timestamp:  time.Now().UTC(),
	})
	http.Redirect(w, r, destURL, http.StatusTemporaryRedirect)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
