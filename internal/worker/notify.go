package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/osteele/liquid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/mailer"
	"github.com/ignite/eventcrm/internal/pkg/logger"
	"github.com/ignite/eventcrm/internal/service/registration"
)

// confirmQueueKey is the Redis list of pending registration confirmations.
const confirmQueueKey = "eventcrm:notify:confirmations"

// maxConfirmAttempts bounds redelivery before a confirmation is dropped.
const maxConfirmAttempts = 3

// confirmationSubject and confirmationBody are the stock ticket email.
const confirmationSubject = `You're registered for {{ event_name }}`

const confirmationBody = `<html><body>
<p>Hi {{ first_name | default: "there" }},</p>
<p>You're in! Here are your details for <strong>{{ event_name }}</strong>:</p>
<ul>
  <li>When: {{ event_date }}</li>
  <li>Where: {{ location }}</li>
</ul>
<p>Your ticket code is <strong>{{ ticket_token }}</strong>. Show the QR code
from your confirmation page at the door and you'll be scanned straight in.</p>
</body></html>`

// Notifier enqueues confirmations onto the Redis list. It satisfies the
// registration service's Notifier.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

type queuedConfirmation struct {
	registration.Confirmation
	Attempts int `json:"attempts"`
}

// EnqueueConfirmation pushes the confirmation for the notify worker.
func (n *Notifier) EnqueueConfirmation(ctx context.Context, c registration.Confirmation) error {
	body, err := json.Marshal(queuedConfirmation{Confirmation: c})
	if err != nil {
		return err
	}
	return n.rdb.LPush(ctx, confirmQueueKey, body).Err()
}

// NotifyWorker drains the confirmation queue and sends ticket emails. Send
// failures are re-queued up to maxConfirmAttempts, then logged and dropped;
// a confirmation email is best effort, the ticket itself already exists.
type NotifyWorker struct {
	rdb     *redis.Client
	sender  mailer.Sender
	subject *liquid.Template
	body    *liquid.Template

	fromName  string
	fromEmail string
	done      chan struct{}
}

func NewNotifyWorker(rdb *redis.Client, sender mailer.Sender, fromName, fromEmail string) (*NotifyWorker, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil || fmt.Sprintf("%v", value) == "" {
			return defaultVal
		}
		return value
	})

	subject, err := engine.ParseString(confirmationSubject)
	if err != nil {
		return nil, fmt.Errorf("parse confirmation subject: %w", err)
	}
	body, err := engine.ParseString(confirmationBody)
	if err != nil {
		return nil, fmt.Errorf("parse confirmation body: %w", err)
	}

	return &NotifyWorker{
		rdb:       rdb,
		sender:    sender,
		subject:   subject,
		body:      body,
		fromName:  fromName,
		fromEmail: fromEmail,
		done:      make(chan struct{}),
	}, nil
}

// Start launches the drain loop in its own goroutine.
func (w *NotifyWorker) Start(ctx context.Context) {
	logger.Info("notify worker started", "queue", confirmQueueKey)
	go w.drain(ctx)
}

// Stop ends the drain loop after the current blocking pop returns.
func (w *NotifyWorker) Stop() {
	close(w.done)
}

func (w *NotifyWorker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		default:
		}

		res, err := w.rdb.BRPop(ctx, time.Second, confirmQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Warn("confirmation queue pop failed", "error", err.Error())
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
			continue
		}
		if len(res) != 2 {
			continue
		}

		var qc queuedConfirmation
		if err := json.Unmarshal([]byte(res[1]), &qc); err != nil {
			logger.Warn("dropping undecodable confirmation", "error", err.Error())
			continue
		}
		w.deliver(ctx, qc)
	}
}

func (w *NotifyWorker) deliver(ctx context.Context, qc queuedConfirmation) {
	qc.Attempts++

	subject, body, err := w.render(qc.Confirmation)
	if err != nil {
		logger.Error("confirmation render failed, dropping",
			"contact_id", qc.ContactID, "error", err.Error())
		return
	}

	res, err := w.sender.Send(ctx, &mailer.Message{
		ContactID: qc.ContactID,
		Email:     qc.Email,
		FromName:  w.fromName,
		FromEmail: w.fromEmail,
		Subject:   subject,
		HTML:      body,
	})
	if err == nil && res.Success {
		return
	}

	if qc.Attempts >= maxConfirmAttempts {
		logger.Error("confirmation dropped after retries",
			"contact_id", qc.ContactID, "attempts", qc.Attempts)
		return
	}

	logger.Warn("confirmation send failed, requeueing",
		"contact_id", qc.ContactID, "attempt", qc.Attempts)
	payload, merr := json.Marshal(qc)
	if merr != nil {
		return
	}
	if err := w.rdb.LPush(ctx, confirmQueueKey, payload).Err(); err != nil {
		logger.Error("confirmation requeue failed", "contact_id", qc.ContactID, "error", err.Error())
	}
}

func (w *NotifyWorker) render(c registration.Confirmation) (subject, body string, err error) {
	bindings := map[string]interface{}{
		"first_name":   c.FirstName,
		"event_name":   c.EventName,
		"event_date":   c.EventDate,
		"location":     c.Location,
		"ticket_token": c.TicketToken,
	}
	subject, err = w.subject.RenderString(bindings)
	if err != nil {
		return "", "", err
	}
	body, err = w.body.RenderString(bindings)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}
