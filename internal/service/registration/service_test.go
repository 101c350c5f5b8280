package registration_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/service/registration"
)

// memRepo is an in-memory registration repository. CreateAttendance holds
// the mutex across the duplicate and token checks, the same atomicity the
// store's unique indexes provide.
type memRepo struct {
	mu          sync.Mutex
	contacts    map[string]*domain.Contact // keyed by id
	events      map[string]*domain.Event
	attendances map[string]*domain.Attendance
}

func newMemRepo() *memRepo {
	return &memRepo{
		contacts:    make(map[string]*domain.Contact),
		events:      make(map[string]*domain.Event),
		attendances: make(map[string]*domain.Attendance),
	}
}

func (m *memRepo) GetContactByEmail(_ context.Context, email string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) CreateContact(_ context.Context, c *domain.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.contacts {
		if ex.Email == c.Email {
			c.ID = ex.ID // lost the insert race, adopt the winner
			return nil
		}
	}
	cp := *c
	m.contacts[c.ID] = &cp
	return nil
}

func (m *memRepo) MergeContactProfile(_ context.Context, id string, u registration.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return errors.New("no such contact")
	}
	if u.FirstName != "" {
		c.FirstName = u.FirstName
	}
	if u.LastName != "" {
		c.LastName = u.LastName
	}
	if u.Phone != "" {
		c.Phone = u.Phone
	}
	if u.OptIn {
		c.Unsubscribed = false
	}
	return nil
}

func (m *memRepo) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, registration.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memRepo) CreateAttendance(_ context.Context, a *domain.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.attendances {
		if ex.TicketToken == a.TicketToken {
			return registration.ErrTokenTaken
		}
		if ex.ContactID == a.ContactID && ex.EventID == a.EventID &&
			ex.Status != domain.AttendanceCancelled {
			return registration.ErrAlreadyRegistered
		}
	}
	cp := *a
	m.attendances[a.ID] = &cp
	return nil
}

func (m *memRepo) TokenExists(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attendances {
		if a.TicketToken == token {
			return true, nil
		}
	}
	return false, nil
}

type memNotifier struct {
	mu   sync.Mutex
	sent []registration.Confirmation
	fail bool
}

func (n *memNotifier) EnqueueConfirmation(_ context.Context, c registration.Confirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("queue unavailable")
	}
	n.sent = append(n.sent, c)
	return nil
}

func seedEvent(repo *memRepo) *domain.Event {
	e := &domain.Event{
		ID:       "evt-1",
		Slug:     "launch-night",
		Name:     "Launch Night",
		StartsAt: time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC),
		Location: "Pier 70",
	}
	repo.events[e.ID] = e
	return e
}

func validInput() registration.Input {
	return registration.Input{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "Ada@Example.COM",
		Phone:        "+1 415 555 0100",
		AgreeUpdates: true,
		EventID:      "evt-1",
	}
}

func TestRegisterNewContact(t *testing.T) {
	repo := newMemRepo()
	seedEvent(repo)
	notifier := &memNotifier{}
	svc := registration.NewService(repo, notifier)

	res, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.TicketToken == "" || len(res.TicketToken) != 32 {
		t.Errorf("ticket token = %q, want 32 hex chars", res.TicketToken)
	}

	c := repo.contacts[res.ContactID]
	if c == nil {
		t.Fatal("contact not persisted")
	}
	if c.Email != "ada@example.com" {
		t.Errorf("email = %q, want normalized lowercase", c.Email)
	}
	if c.Unsubscribed {
		t.Error("contact opted in but stored unsubscribed")
	}

	a := repo.attendances[res.AttendanceID]
	if a == nil {
		t.Fatal("attendance not persisted")
	}
	if a.Status != domain.AttendanceRegistered {
		t.Errorf("status = %q, want registered", a.Status)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("confirmations enqueued = %d, want 1", len(notifier.sent))
	}
	if notifier.sent[0].TicketToken != res.TicketToken {
		t.Error("confirmation carries a different ticket token")
	}
}

func TestRegisterExistingContactMergesProfile(t *testing.T) {
	repo := newMemRepo()
	seedEvent(repo)
	repo.contacts["c-1"] = &domain.Contact{
		ID:           "c-1",
		Email:        "ada@example.com",
		FirstName:    "A.",
		Phone:        "old-phone",
		Unsubscribed: true,
	}
	svc := registration.NewService(repo, nil)

	in := validInput()
	in.LastName = "" // omitted fields must not clobber
	res, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.ContactID != "c-1" {
		t.Errorf("contact id = %q, want existing c-1", res.ContactID)
	}

	c := repo.contacts["c-1"]
	if c.FirstName != "Ada" {
		t.Errorf("first name = %q, want merged Ada", c.FirstName)
	}
	if c.Phone != "+1 415 555 0100" {
		t.Errorf("phone = %q, want merged value", c.Phone)
	}
	if c.Unsubscribed {
		t.Error("opt-in did not clear unsubscribed")
	}
}

func TestRegisterOptOutDoesNotResubscribeEither(t *testing.T) {
	repo := newMemRepo()
	seedEvent(repo)
	repo.contacts["c-1"] = &domain.Contact{
		ID: "c-1", Email: "ada@example.com", FirstName: "Ada", Unsubscribed: true,
	}
	svc := registration.NewService(repo, nil)

	in := validInput()
	in.AgreeUpdates = false
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !repo.contacts["c-1"].Unsubscribed {
		t.Error("registering without opt-in must not resubscribe")
	}
}

func TestRegisterDuplicateActiveTicket(t *testing.T) {
	repo := newMemRepo()
	seedEvent(repo)
	svc := registration.NewService(repo, nil)

	if _, err := svc.Register(context.Background(), validInput()); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(context.Background(), validInput())
	if !errors.Is(err, registration.ErrAlreadyRegistered) {
		t.Fatalf("second Register err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterAfterCancellationSucceeds(t *testing.T) {
	repo := newMemRepo()
	seedEvent(repo)
	svc := registration.NewService(repo, nil)

	res, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	repo.attendances[res.AttendanceID].Status = domain.AttendanceCancelled

	if _, err := svc.Register(context.Background(), validInput()); err != nil {
		t.Fatalf("re-register after cancellation: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := registration.NewService(newMemRepo(), nil)
	cases := []struct {
		name   string
		mutate func(*registration.Input)
	}{
		{"missing email", func(in *registration.Input) { in.Email = "" }},
		{"malformed email", func(in *registration.Input) { in.Email = "not-an-email" }},
		{"missing first name", func(in *registration.Input) { in.FirstName = "" }},
		{"missing event", func(in *registration.Input) { in.EventID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			if !errors.Is(err, registration.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRegisterUnknownEvent(t *testing.T) {
	repo := newMemRepo()
	svc := registration.NewService(repo, nil)

	in := validInput()
	in.EventID = "evt-missing"
	_, err := svc.Register(context.Background(), in)
	if !errors.Is(err, registration.ErrEventNotFound) {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestRegisterNotifierFailureIsNotFatal(t *testing.T) {
	repo := newMemRepo()
	seedEvent(repo)
	svc := registration.NewService(repo, &memNotifier{fail: true})

	res, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if repo.attendances[res.AttendanceID] == nil {
		t.Fatal("ticket must survive a confirmation enqueue failure")
	}
}

func TestRegisterConcurrentSameContact(t *testing.T) {
	repo := newMemRepo()
	seedEvent(repo)
	svc := registration.NewService(repo, nil)

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Register(context.Background(), validInput())
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		} else if !errors.Is(err, registration.ErrAlreadyRegistered) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("successful registrations = %d, want exactly 1", ok)
	}
	active := 0
	for _, a := range repo.attendances {
		if a.Status != domain.AttendanceCancelled {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active attendances = %d, want 1", active)
	}
}
