// Package mailer contains the outbound email transports and the
// deliverability pre-check.
//
// Transport adapters are split into individual files:
//   - ses.go:       AWS SES v2
//   - sparkpost.go: SparkPost Transmissions API
//   - chain.go:     ordered fallback across transports
package mailer

import (
	"context"
	"time"
)

// Sender sends a single rendered email through one provider.
type Sender interface {
	// Name identifies the provider ("ses", "sparkpost").
	Name() string
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}

// BatchSender extends Sender for providers that accept multiple recipients
// in one API call.
type BatchSender interface {
	Sender
	SendBatch(ctx context.Context, messages []Message) (*BatchSendResult, error)
	MaxBatchSize() int
}

// Message is a fully rendered email, ready for a provider. Rendering
// (merge tags, preheader) happens before the transport layer.
type Message struct {
	ID         string
	CampaignID string
	ContactID  string
	Email      string
	FromName   string
	FromEmail  string
	ReplyTo    string
	Subject    string
	HTML       string
	Text       string
}

// SendResult reports one delivery attempt. A provider-side rejection comes
// back as Success=false with Err set and a nil error return, so callers can
// distinguish "this message was refused" from "the transport broke".
type SendResult struct {
	Success   bool
	MessageID string
	Provider  string
	Err       error
	SentAt    time.Time
}

// BatchSendResult aggregates a multi-recipient send.
type BatchSendResult struct {
	TransmissionID string
	Accepted       int
	Rejected       int
	Results        []SendResult
}
