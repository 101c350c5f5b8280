package checkin_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/service/checkin"
)

// memRepo is an in-memory check-in repository for unit testing. Its
// transition methods hold the mutex across the whole compare-and-set, which
// is the same guarantee the SQL conditional update gives.
type memRepo struct {
	mu          sync.Mutex
	attendances map[string]*domain.Attendance // keyed by id
	contacts    map[string]*domain.Contact
}

func newMemRepo() *memRepo {
	return &memRepo{
		attendances: make(map[string]*domain.Attendance),
		contacts:    make(map[string]*domain.Contact),
	}
}

func (m *memRepo) GetByToken(_ context.Context, token string) (*domain.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attendances {
		if a.TicketToken == token {
			cp := *a
			return &cp, nil
		}
	}
	return nil, checkin.ErrNotFound
}

func (m *memRepo) GetAttendance(_ context.Context, id string) (*domain.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendances[id]
	if !ok {
		return nil, checkin.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) CheckIn(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendances[id]
	if !ok || a.Status != domain.AttendanceRegistered {
		return false, nil
	}
	a.Status = domain.AttendanceCheckedIn
	a.CheckedInAt = &at
	return true, nil
}

func (m *memRepo) UndoCheckIn(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendances[id]
	if !ok || a.Status != domain.AttendanceCheckedIn {
		return false, nil
	}
	a.Status = domain.AttendanceRegistered
	a.CheckedInAt = nil
	return true, nil
}

func (m *memRepo) Search(_ context.Context, eventID, query string, limit int) ([]checkin.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []checkin.Match
	for _, a := range m.attendances {
		if a.EventID != eventID {
			continue
		}
		c := m.contacts[a.ContactID]
		if c == nil {
			continue
		}
		hay := strings.ToLower(c.FirstName + " " + c.LastName + " " + c.Email)
		if strings.Contains(hay, q) {
			out = append(out, checkin.Match{Attendance: *a, Contact: *c})
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memRepo) GetContact(_ context.Context, id string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, checkin.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) seed(att domain.Attendance, c domain.Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := att
	m.attendances[cp.ID] = &cp
	cc := c
	m.contacts[cc.ID] = &cc
}

func seedTicket(repo *memRepo, status domain.AttendanceStatus) domain.Attendance {
	att := domain.Attendance{
		ID:          "att-1",
		ContactID:   "contact-1",
		EventID:     "event-1",
		Status:      status,
		TicketToken: "tok-abc123",
	}
	if status == domain.AttendanceCheckedIn {
		at := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
		att.CheckedInAt = &at
	}
	repo.seed(att, domain.Contact{
		ID: "contact-1", Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	})
	return att
}

func TestValidateSuccess(t *testing.T) {
	repo := newMemRepo()
	seedTicket(repo, domain.AttendanceRegistered)
	svc := checkin.NewService(repo)

	res, err := svc.Validate(context.Background(), "tok-abc123", "event-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Attendance.Status != domain.AttendanceCheckedIn {
		t.Fatalf("expected checked_in, got %s", res.Attendance.Status)
	}
	if res.Attendance.CheckedInAt == nil {
		t.Fatal("expected checked_in_at to be set")
	}
	if res.Contact.Email != "jane@example.com" {
		t.Fatalf("unexpected contact: %+v", res.Contact)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	repo := newMemRepo()
	seedTicket(repo, domain.AttendanceRegistered)
	svc := checkin.NewService(repo)

	_, err := svc.Validate(context.Background(), "tok-nope", "event-1")
	if !errors.Is(err, checkin.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateWrongEventIsNotFound(t *testing.T) {
	repo := newMemRepo()
	seedTicket(repo, domain.AttendanceRegistered)
	svc := checkin.NewService(repo)

	// Valid token, wrong event: must be indistinguishable from an unknown
	// token so ticket existence never leaks across events.
	res, err := svc.Validate(context.Background(), "tok-abc123", "event-2")
	if !errors.Is(err, checkin.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no attendance data, got %+v", res)
	}

	// And the ticket must remain untouched for its real event.
	att, _ := repo.GetAttendance(context.Background(), "att-1")
	if att.Status != domain.AttendanceRegistered {
		t.Fatalf("wrong-event scan mutated status to %s", att.Status)
	}
}

func TestValidateAlreadyCheckedIn(t *testing.T) {
	repo := newMemRepo()
	seeded := seedTicket(repo, domain.AttendanceCheckedIn)
	svc := checkin.NewService(repo)

	res, err := svc.Validate(context.Background(), "tok-abc123", "event-1")
	if !errors.Is(err, checkin.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}
	if res == nil || res.Attendance.CheckedInAt == nil {
		t.Fatal("already-checked-in result must carry the original timestamp")
	}
	if !res.Attendance.CheckedInAt.Equal(*seeded.CheckedInAt) {
		t.Fatalf("timestamp changed: got %v want %v", res.Attendance.CheckedInAt, seeded.CheckedInAt)
	}
}

func TestValidateCancelled(t *testing.T) {
	repo := newMemRepo()
	seedTicket(repo, domain.AttendanceCancelled)
	svc := checkin.NewService(repo)

	_, err := svc.Validate(context.Background(), "tok-abc123", "event-1")
	if !errors.Is(err, checkin.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestValidateConcurrentScans(t *testing.T) {
	repo := newMemRepo()
	seedTicket(repo, domain.AttendanceRegistered)
	svc := checkin.NewService(repo)

	const n = 32
	var wg sync.WaitGroup
	var successes, duplicates, others int64
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Validate(context.Background(), "tok-abc123", "event-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, checkin.ErrAlreadyCheckedIn):
				duplicates++
			default:
				others++
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
	if duplicates != n-1 {
		t.Fatalf("expected %d already-checked-in results, got %d (other errors: %d)", n-1, duplicates, others)
	}

	att, _ := repo.GetAttendance(context.Background(), "att-1")
	if att.Status != domain.AttendanceCheckedIn {
		t.Fatalf("final status %s, want checked_in", att.Status)
	}
}

func TestUndoClearsTimestamp(t *testing.T) {
	repo := newMemRepo()
	seedTicket(repo, domain.AttendanceCheckedIn)
	svc := checkin.NewService(repo)

	if err := svc.Undo(context.Background(), "att-1"); err != nil {
		t.Fatalf("undo: %v", err)
	}

	att, _ := repo.GetAttendance(context.Background(), "att-1")
	if att.Status != domain.AttendanceRegistered {
		t.Fatalf("status %s, want registered", att.Status)
	}
	if att.CheckedInAt != nil {
		t.Fatal("checked_in_at must be cleared on undo")
	}

	// A second undo is an invalid-state error, not a silent no-op.
	if err := svc.Undo(context.Background(), "att-1"); !errors.Is(err, checkin.ErrNotCheckedIn) {
		t.Fatalf("expected ErrNotCheckedIn, got %v", err)
	}
}

func TestUndoCancelled(t *testing.T) {
	repo := newMemRepo()
	seedTicket(repo, domain.AttendanceCancelled)
	svc := checkin.NewService(repo)

	if err := svc.Undo(context.Background(), "att-1"); !errors.Is(err, checkin.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestSearchScopedAndCapped(t *testing.T) {
	repo := newMemRepo()
	svc := checkin.NewService(repo)

	for i := 0; i < 30; i++ {
		id := string(rune('a' + i%26))
		repo.seed(domain.Attendance{
			ID: "att-" + id + string(rune('0'+i/26)), ContactID: "c-" + id + string(rune('0'+i/26)),
			EventID: "event-1", Status: domain.AttendanceRegistered, TicketToken: "tok-" + id + string(rune('0'+i/26)),
		}, domain.Contact{
			ID: "c-" + id + string(rune('0'+i/26)), Email: "smith" + id + "@example.com",
			FirstName: "Sam", LastName: "Smith",
		})
	}
	// A matching contact on a different event must not appear.
	repo.seed(domain.Attendance{
		ID: "att-other", ContactID: "c-other", EventID: "event-2",
		Status: domain.AttendanceRegistered, TicketToken: "tok-other",
	}, domain.Contact{ID: "c-other", Email: "smith@other.com", FirstName: "Sam", LastName: "Smith"})

	matches, err := svc.Search(context.Background(), "event-1", "SMITH")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != checkin.SearchLimit {
		t.Fatalf("expected cap of %d, got %d", checkin.SearchLimit, len(matches))
	}
	for _, m := range matches {
		if m.Attendance.EventID != "event-1" {
			t.Fatalf("search leaked attendance from %s", m.Attendance.EventID)
		}
	}

	empty, err := svc.Search(context.Background(), "event-1", "")
	if err != nil || empty != nil {
		t.Fatalf("empty query should return nothing, got %v, %v", empty, err)
	}
}
