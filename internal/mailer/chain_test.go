package mailer

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSender scripts one transport's behavior for chain tests.
type fakeSender struct {
	name   string
	err    error // transport-level failure
	reject error // provider rejection (Success=false)
	calls  int
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, msg *Message) (*SendResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.reject != nil {
		return &SendResult{Success: false, Provider: f.name, Err: f.reject}, nil
	}
	return &SendResult{Success: true, MessageID: f.name + "-msg", Provider: f.name, SentAt: time.Now()}, nil
}

func testMessage() *Message {
	return &Message{Email: "ada@example.com", Subject: "hi", HTML: "<p>hi</p>"}
}

func TestChainPrimarySucceeds(t *testing.T) {
	primary := &fakeSender{name: "ses"}
	backup := &fakeSender{name: "sparkpost"}
	chain := NewChain(primary, backup)

	res, err := chain.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Provider != "ses" {
		t.Errorf("provider = %q, want ses", res.Provider)
	}
	if backup.calls != 0 {
		t.Error("backup must not be called when primary succeeds")
	}
}

func TestChainFallsBackOnTransportError(t *testing.T) {
	primary := &fakeSender{name: "ses", err: errors.New("dial timeout")}
	backup := &fakeSender{name: "sparkpost"}
	chain := NewChain(primary, backup)

	res, err := chain.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Provider != "sparkpost" {
		t.Errorf("provider = %q, want sparkpost fallback", res.Provider)
	}
}

func TestChainFallsBackOnRejection(t *testing.T) {
	primary := &fakeSender{name: "ses", reject: errors.New("account sending paused")}
	backup := &fakeSender{name: "sparkpost"}
	chain := NewChain(primary, backup)

	res, err := chain.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Provider != "sparkpost" {
		t.Errorf("provider = %q, want sparkpost fallback", res.Provider)
	}
}

func TestChainAllFail(t *testing.T) {
	cause := errors.New("rate limited")
	chain := NewChain(
		&fakeSender{name: "ses", err: errors.New("down")},
		&fakeSender{name: "sparkpost", reject: cause},
	)

	_, err := chain.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("want error when every transport fails")
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want it to wrap the last rejection", err)
	}
}

func TestChainEmpty(t *testing.T) {
	chain := NewChain()
	if _, err := chain.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("want error from empty chain")
	}
	if chain.Primary() != nil {
		t.Error("empty chain has no primary")
	}
}
