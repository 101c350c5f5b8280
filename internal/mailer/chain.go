package mailer

import (
	"context"
	"fmt"

	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// Chain tries each transport in order until one accepts the message. A
// provider-side rejection and a transport error both move to the next
// sender; the chain only fails when every sender has.
type Chain struct {
	senders []Sender
}

// NewChain builds a fallback chain. Order matters: the first sender is the
// primary and the only one considered for batch sends.
func NewChain(senders ...Sender) *Chain {
	return &Chain{senders: senders}
}

func (c *Chain) Name() string { return "chain" }

// Primary returns the first sender, or nil for an empty chain.
func (c *Chain) Primary() Sender {
	if len(c.senders) == 0 {
		return nil
	}
	return c.senders[0]
}

// Send attempts each sender in order and returns the first success.
func (c *Chain) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if len(c.senders) == 0 {
		return nil, fmt.Errorf("no email transports configured")
	}

	var lastErr error
	for _, s := range c.senders {
		res, err := s.Send(ctx, msg)
		if err != nil {
			lastErr = err
			logger.Warn("transport unavailable, trying next",
				"provider", s.Name(), "error", err.Error())
			continue
		}
		if !res.Success {
			lastErr = res.Err
			logger.Warn("transport rejected message, trying next",
				"provider", s.Name(), "email", msg.Email, "error", fmt.Sprint(res.Err))
			continue
		}
		return res, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("message rejected")
	}
	return nil, fmt.Errorf("all transports failed: %w", lastErr)
}
