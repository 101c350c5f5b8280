package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/service/campaign"
)

func startSendWorker(t *testing.T, deliverer Deliverer) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	w := NewSendWorker(rdb, deliverer)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.Start(ctx)
	t.Cleanup(w.Stop)
	return rdb
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSendWorkerDeliversDispatchedCampaigns(t *testing.T) {
	deliverer := &fakeDeliverer{}
	rdb := startSendWorker(t, deliverer)

	d := NewSendDispatcher(rdb)
	if err := d.Dispatch(context.Background(), "camp-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Dispatch(context.Background(), "camp-2"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	waitFor(t, func() bool { return len(deliverer.snapshot()) == 2 })
	got := deliverer.snapshot()
	if got[0] != "camp-1" || got[1] != "camp-2" {
		t.Errorf("delivered = %v, want dispatch order preserved", got)
	}
}

// finalizedDeliverer mimics a campaign the recovery sweep already finished.
type finalizedDeliverer struct {
	fakeDeliverer
	finalized map[string]bool
}

func (f *finalizedDeliverer) Deliver(ctx context.Context, id string) (*campaign.SendSummary, error) {
	if f.finalized[id] {
		f.mu.Lock()
		f.delivered = append(f.delivered, id)
		f.mu.Unlock()
		return nil, campaign.ErrInvalidState
	}
	return f.fakeDeliverer.Deliver(ctx, id)
}

func TestSendWorkerSkipsFinalizedCampaign(t *testing.T) {
	deliverer := &finalizedDeliverer{finalized: map[string]bool{"camp-1": true}}
	rdb := startSendWorker(t, deliverer)

	d := NewSendDispatcher(rdb)
	for _, id := range []string{"camp-1", "camp-2"} {
		if err := d.Dispatch(context.Background(), id); err != nil {
			t.Fatalf("Dispatch(%s): %v", id, err)
		}
	}

	// the stale id must not wedge the loop; the next campaign still runs
	waitFor(t, func() bool { return len(deliverer.snapshot()) == 2 })
}
