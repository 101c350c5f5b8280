package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/ingest"
)

// memRepo mirrors the transactional semantics the SQL store provides: the
// dedup insert, the uniqueness table, and the counter bumps all happen
// under one lock.
type memRepo struct {
	mu        sync.Mutex
	contacts  map[string]*domain.Contact // keyed by email
	campaigns map[string]*domain.Campaign
	events    map[string]ingest.EventRecord // keyed by provider event id
	uniques   map[string]bool               // campaign|contact|type
	clicks    []domain.LinkClick
	recordErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		contacts:  make(map[string]*domain.Contact),
		campaigns: make(map[string]*domain.Campaign),
		events:    make(map[string]ingest.EventRecord),
		uniques:   make(map[string]bool),
	}
}

func (m *memRepo) FindContactByEmail(_ context.Context, email string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[email]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) CampaignExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.campaigns[id]
	return ok, nil
}

func (m *memRepo) RecordEvent(_ context.Context, rec ingest.EventRecord) (ingest.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return ingest.Outcome{}, m.recordErr
	}

	if _, dup := m.events[rec.ProviderEventID]; dup {
		return ingest.Outcome{Duplicate: true}, nil
	}
	m.events[rec.ProviderEventID] = rec

	if rec.CampaignID == nil {
		return ingest.Outcome{}, nil
	}
	c, ok := m.campaigns[*rec.CampaignID]
	if !ok {
		return ingest.Outcome{}, errors.New("campaign row missing")
	}

	key := *rec.CampaignID + "|" + rec.ContactID + "|" + string(rec.Type)
	first := !m.uniques[key]
	m.uniques[key] = true

	switch rec.Type {
	case domain.EventOpened:
		c.TotalOpens++
		if first {
			c.UniqueOpens++
		}
	case domain.EventClicked:
		c.TotalClicks++
		if first {
			c.UniqueClicks++
		}
		if rec.ClickURL != "" {
			m.clicks = append(m.clicks, domain.LinkClick{
				CampaignID: *rec.CampaignID,
				ContactID:  rec.ContactID,
				URL:        rec.ClickURL,
				ClickedAt:  rec.OccurredAt,
			})
		}
	case domain.EventBounced:
		c.TotalBounces++
	case domain.EventComplained:
		c.TotalComplaints++
	}
	return ingest.Outcome{First: first}, nil
}

func seed(repo *memRepo) {
	repo.contacts["ada@example.com"] = &domain.Contact{ID: "c-1", Email: "ada@example.com"}
	repo.campaigns["camp-1"] = &domain.Campaign{ID: "camp-1", Status: domain.CampaignSent}
}

func openEvent(eventID string) ingest.WebhookEvent {
	return ingest.WebhookEvent{
		Type: "open",
		Data: &ingest.WebhookData{
			To:        "Ada@Example.com",
			ID:        eventID,
			Tags:      []string{"camp-1"},
			CreatedAt: time.Now().UTC(),
		},
	}
}

func TestIngestOpenCounters(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)
	ctx := context.Background()

	// two distinct opens by the same contact
	if err := svc.Ingest(ctx, openEvent("ev-1")); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := svc.Ingest(ctx, openEvent("ev-2")); err != nil {
		t.Fatalf("second open: %v", err)
	}

	c := repo.campaigns["camp-1"]
	if c.TotalOpens != 2 || c.UniqueOpens != 1 {
		t.Errorf("opens = %d/%d, want total 2 unique 1", c.TotalOpens, c.UniqueOpens)
	}
}

func TestIngestDuplicateDeliveryIsNoOp(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)
	ctx := context.Background()

	// the provider retries the same event three times
	for i := 0; i < 3; i++ {
		if err := svc.Ingest(ctx, openEvent("ev-1")); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	c := repo.campaigns["camp-1"]
	if c.TotalOpens != 1 || c.UniqueOpens != 1 {
		t.Errorf("opens = %d/%d, want 1/1 after duplicate deliveries", c.TotalOpens, c.UniqueOpens)
	}
	if len(repo.events) != 1 {
		t.Errorf("events logged = %d, want 1", len(repo.events))
	}
}

func TestIngestUnknownRecipientAcked(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)

	ev := openEvent("ev-1")
	ev.Data.To = "stranger@example.com"
	if err := svc.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("unknown recipient must be acked, got %v", err)
	}
	if len(repo.events) != 0 {
		t.Error("unknown recipient must leave no trace")
	}
}

func TestIngestUnmappedTypeAcked(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)

	ev := openEvent("ev-1")
	ev.Type = "amp_initial_render"
	if err := svc.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("unmapped type must be acked, got %v", err)
	}
	if len(repo.events) != 0 {
		t.Error("unmapped type must not be recorded")
	}
}

func TestIngestMalformed(t *testing.T) {
	svc := ingest.NewService(newMemRepo())
	for _, ev := range []ingest.WebhookEvent{
		{Type: "", Data: &ingest.WebhookData{To: "a@b.co"}},
		{Type: "open", Data: nil},
		{Type: "open", Data: &ingest.WebhookData{To: ""}},
	} {
		if err := svc.Ingest(context.Background(), ev); !errors.Is(err, ingest.ErrMalformed) {
			t.Errorf("event %+v: err = %v, want ErrMalformed", ev, err)
		}
	}
}

// The provider ships the envelope as `{type, data:{...}}`; decoding it off
// the wire and ingesting it must move the counters.
func TestIngestWireEnvelope(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)

	body := []byte(`{"type":"open","data":{"to":"ada@example.com","id":"evt-1","tags":["camp-1"],"created_at":"2026-08-01T10:00:00Z"}}`)
	var ev ingest.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if err := svc.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	c := repo.campaigns["camp-1"]
	if c.TotalOpens != 1 || c.UniqueOpens != 1 {
		t.Errorf("opens = %d/%d, want 1/1 from a wire-shaped event", c.TotalOpens, c.UniqueOpens)
	}
	rec, ok := repo.events["evt-1"]
	if !ok {
		t.Fatal("event not logged under the provider id")
	}
	if rec.CampaignID == nil || *rec.CampaignID != "camp-1" {
		t.Error("campaign association not resolved from tags")
	}
	if want := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC); !rec.OccurredAt.Equal(want) {
		t.Errorf("occurred_at = %v, want created_at from the payload", rec.OccurredAt)
	}
}

func TestIngestPicksFirstKnownCampaignTag(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)

	ev := openEvent("ev-1")
	ev.Data.Tags = []string{"vip-list", "camp-1"}
	if err := svc.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if repo.campaigns["camp-1"].TotalOpens != 1 {
		t.Error("known campaign tag not resolved past the unknown one")
	}
}

func TestIngestUnknownCampaignLogsWithoutAssociation(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)

	ev := openEvent("ev-1")
	ev.Data.Tags = []string{"camp-deleted"}
	if err := svc.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	rec, ok := repo.events["ev-1"]
	if !ok {
		t.Fatal("event must still be logged")
	}
	if rec.CampaignID != nil {
		t.Error("event must carry no campaign association")
	}
	if repo.campaigns["camp-1"].TotalOpens != 0 {
		t.Error("no counters may move")
	}
}

func TestIngestClickRecordsLink(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)

	ev := openEvent("ev-1")
	ev.Type = "click"
	ev.Data.Link = "https://example.com/agenda"
	if err := svc.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	c := repo.campaigns["camp-1"]
	if c.TotalClicks != 1 || c.UniqueClicks != 1 {
		t.Errorf("clicks = %d/%d, want 1/1", c.TotalClicks, c.UniqueClicks)
	}
	if len(repo.clicks) != 1 || repo.clicks[0].URL != "https://example.com/agenda" {
		t.Errorf("link clicks = %+v, want one row for the url", repo.clicks)
	}
}

func TestIngestBounceCountsEveryEvent(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ev := openEvent(fmt.Sprintf("ev-%d", i))
		ev.Type = "bounce"
		if err := svc.Ingest(ctx, ev); err != nil {
			t.Fatalf("bounce %d: %v", i, err)
		}
	}
	if got := repo.campaigns["camp-1"].TotalBounces; got != 2 {
		t.Errorf("bounces = %d, want 2 (no unique counter for bounces)", got)
	}
}

func TestRecordOpenPixelPath(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)
	ctx := context.Background()

	svc.RecordOpen(ctx, "camp-1", "c-1")
	svc.RecordOpen(ctx, "camp-1", "c-1")

	c := repo.campaigns["camp-1"]
	if c.TotalOpens != 2 || c.UniqueOpens != 1 {
		t.Errorf("opens = %d/%d, want total 2 unique 1", c.TotalOpens, c.UniqueOpens)
	}
}

func TestRecordOpenSwallowsFailures(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	repo.recordErr = errors.New("connection refused")
	svc := ingest.NewService(repo)

	// must not panic or surface the error
	svc.RecordOpen(context.Background(), "camp-1", "c-1")
}

func TestRecordClick(t *testing.T) {
	repo := newMemRepo()
	seed(repo)
	svc := ingest.NewService(repo)

	svc.RecordClick(context.Background(), "camp-1", "c-1", "https://example.com/venue")

	c := repo.campaigns["camp-1"]
	if c.TotalClicks != 1 || c.UniqueClicks != 1 {
		t.Errorf("clicks = %d/%d, want 1/1", c.TotalClicks, c.UniqueClicks)
	}
	if len(repo.clicks) != 1 {
		t.Errorf("link clicks = %d, want 1", len(repo.clicks))
	}
}
