package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/mailer"
	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// Throttle paces outbound sends. The worker wires in the Redis rate
// limiter; tests use nil, which never blocks.
type Throttle interface {
	// Wait blocks until the provider's per-second budget admits one more
	// send, or the context ends.
	Wait(ctx context.Context, provider string) error
}

// Dispatcher hands a campaign's queued delivery to the background worker.
// The API process only enqueues; draining the queue is the worker's job.
type Dispatcher interface {
	Dispatch(ctx context.Context, campaignID string) error
}

// Options tunes the send pipeline.
type Options struct {
	Throttle       Throttle
	Dispatch       Dispatcher
	ClaimBatchSize int
	InterSendDelay time.Duration
}

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the repository is.
type Service struct {
	repo     Repository
	sender   mailer.Sender
	renderer *Renderer
	opts     Options
	workerID string
}

// NewService creates a campaign service backed by the given repository and
// transport.
func NewService(repo Repository, sender mailer.Sender, opts Options) *Service {
	if opts.ClaimBatchSize <= 0 {
		opts.ClaimBatchSize = 200
	}
	return &Service{
		repo:     repo,
		sender:   sender,
		renderer: NewRenderer(),
		opts:     opts,
		workerID: "sender-" + uuid.New().String()[:8],
	}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Subject   string `json:"subject"`
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	Body      string `json:"body"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Campaign, error) {
	if in.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if !domain.ValidEmail(in.FromEmail) {
		return nil, fmt.Errorf("%w: from_email is invalid", ErrValidation)
	}
	if in.Body == "" {
		return nil, fmt.Errorf("%w: body is required", ErrValidation)
	}
	if _, err := s.renderer.Parse(in.Subject, in.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c := &domain.Campaign{
		ID:        uuid.New().String(),
		Subject:   in.Subject,
		FromName:  in.FromName,
		FromEmail: domain.NormalizeEmail(in.FromEmail),
		Body:      in.Body,
		Status:    domain.CampaignDraft,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update modifies mutable campaign fields.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	return s.repo.Update(ctx, id, u)
}

// Delete removes a draft campaign.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Test runs the deliverability pre-check and parks the campaign in testing.
// The score is advisory; Send accepts a testing campaign regardless.
func (s *Service) Test(ctx context.Context, id string) (*mailer.Evaluation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignTesting {
		return nil, ErrInvalidState
	}

	ev := mailer.EvaluateContent(c.Subject, c.Body)
	if err := s.repo.SetTestResult(ctx, id, ev.Score); err != nil {
		return nil, err
	}
	return &ev, nil
}

// RevertTest moves a testing campaign back to draft.
func (s *Service) RevertTest(ctx context.Context, id string) error {
	return s.repo.RevertTest(ctx, id)
}

// SendError names one recipient a campaign could not be delivered to.
type SendError struct {
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// SendSummary reports the state of a campaign's delivery queue.
type SendSummary struct {
	Total  int         `json:"total"`
	Sent   int         `json:"sent"`
	Failed int         `json:"failed"`
	Errors []SendError `json:"errors,omitempty"`
}

// Send locks in the audience, enqueues a durable queue row per recipient,
// and hands delivery to the worker. Exactly one concurrent caller wins the
// transition to sending; everyone else gets ErrInvalidState. The returned
// summary is a queue snapshot taken before any delivery; progress is
// visible through the stats endpoint while the worker drains the queue.
func (s *Service) Send(ctx context.Context, id string) (*SendSummary, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Sendable() {
		return nil, ErrInvalidState
	}
	if _, err := s.renderer.Parse(c.Subject, c.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	won, err := s.repo.TransitionToSending(ctx, id)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidState
	}

	audience, err := s.repo.Audience(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	queued, err := s.repo.Enqueue(ctx, id, audience)
	if err != nil {
		return nil, fmt.Errorf("enqueue recipients: %w", err)
	}

	s.dispatch(ctx, id)
	return &SendSummary{Total: queued}, nil
}

// Resume re-dispatches an interrupted sending campaign and reports the
// queue's current position.
func (s *Service) Resume(ctx context.Context, id string) (*SendSummary, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignSending {
		return nil, ErrInvalidState
	}
	total, sent, err := s.repo.QueueCounts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("queue counts: %w", err)
	}
	s.dispatch(ctx, id)
	return &SendSummary{Total: total, Sent: sent}, nil
}

// dispatch notifies the worker. A failed or absent dispatch is not fatal:
// the recovery sweep picks up any campaign left in sending.
func (s *Service) dispatch(ctx context.Context, id string) {
	if s.opts.Dispatch == nil {
		logger.Debug("no dispatcher configured, delivery waits for the recovery sweep", "campaign_id", id)
		return
	}
	if err := s.opts.Dispatch.Dispatch(ctx, id); err != nil {
		logger.Error("campaign dispatch failed", "campaign_id", id, "error", err.Error())
	}
}

// Deliver drains a sending campaign's queue rows and finalizes the
// campaign. This is the worker-side half of Send; it is safe to call
// concurrently and repeatedly, the queue claims arbitrate. Per-recipient
// failures are collected in the summary, not returned as errors. A non-nil
// error with a partial summary means the loop stopped early (context
// cancelled, repository down) and the campaign stays in sending for
// recovery.
func (s *Service) Deliver(ctx context.Context, id string) (*SendSummary, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignSending {
		return nil, ErrInvalidState
	}
	tpl, err := s.renderer.Parse(c.Subject, c.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.deliver(ctx, c, tpl)
}

// deliver works through the campaign's queue rows and finalizes the
// campaign when none remain.
func (s *Service) deliver(ctx context.Context, c *domain.Campaign, tpl *Template) (*SendSummary, error) {
	total, alreadySent, err := s.repo.QueueCounts(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("queue counts: %w", err)
	}
	summary := &SendSummary{Total: total, Sent: alreadySent}

	triedBatch := false
	for {
		items, err := s.repo.ClaimQueueBatch(ctx, c.ID, s.workerID, s.opts.ClaimBatchSize)
		if err != nil {
			return summary, fmt.Errorf("claim queue batch: %w", err)
		}
		if len(items) == 0 {
			break
		}

		if !triedBatch && summary.Sent == 0 && summary.Failed == 0 {
			triedBatch = true
			if s.sendAsBatch(ctx, c, tpl, items, total, summary) {
				continue
			}
		}

		for i := range items {
			if err := s.sendOne(ctx, c, tpl, &items[i], summary); err != nil {
				return summary, err
			}
		}
	}

	if err := s.repo.MarkSent(ctx, c.ID, time.Now().UTC(), summary.Sent); err != nil {
		return summary, fmt.Errorf("finalize campaign: %w", err)
	}
	logger.Info("campaign send complete",
		"campaign_id", c.ID, "total", summary.Total, "sent", summary.Sent, "failed", summary.Failed)
	return summary, nil
}

// sendOne delivers a single queue item. Delivery failures go into the
// summary; only infrastructure errors propagate.
func (s *Service) sendOne(ctx context.Context, c *domain.Campaign, tpl *Template, item *QueueItem, summary *SendSummary) error {
	if s.opts.Throttle != nil {
		if err := s.opts.Throttle.Wait(ctx, s.providerName()); err != nil {
			return err
		}
	}

	subject, body, err := tpl.Render(&domain.Contact{
		FirstName: item.FirstName,
		LastName:  item.LastName,
		Email:     item.Email,
	})
	if err != nil {
		s.recordFailure(ctx, item, summary, err)
		return nil
	}

	res, err := s.sender.Send(ctx, s.message(c, item, subject, body))
	switch {
	case err != nil:
		s.recordFailure(ctx, item, summary, err)
	case !res.Success:
		s.recordFailure(ctx, item, summary, res.Err)
	default:
		if err := s.repo.MarkQueueItemSent(ctx, item.ID, res.MessageID); err != nil {
			return fmt.Errorf("mark queue item sent: %w", err)
		}
		summary.Sent++
	}

	return sleepCtx(ctx, s.opts.InterSendDelay)
}

// sendAsBatch attempts one multi-recipient call when the primary transport
// supports it and the whole audience fits. Reports whether the items were
// fully handled; on any error the caller falls back to serial sends.
func (s *Service) sendAsBatch(ctx context.Context, c *domain.Campaign, tpl *Template, items []QueueItem, total int, summary *SendSummary) bool {
	bs, ok := s.batchSender()
	if !ok || len(items) != total || total > bs.MaxBatchSize() {
		return false
	}

	messages := make([]mailer.Message, 0, len(items))
	for i := range items {
		subject, body, err := tpl.Render(&domain.Contact{
			FirstName: items[i].FirstName,
			LastName:  items[i].LastName,
			Email:     items[i].Email,
		})
		if err != nil {
			return false
		}
		messages = append(messages, *s.message(c, &items[i], subject, body))
	}

	if s.opts.Throttle != nil {
		if err := s.opts.Throttle.Wait(ctx, bs.Name()); err != nil {
			return false
		}
	}

	res, err := bs.SendBatch(ctx, messages)
	if err != nil {
		logger.Warn("batch send failed, falling back to serial",
			"campaign_id", c.ID, "provider", bs.Name(), "error", err.Error())
		return false
	}

	for i := range items {
		r := mailer.SendResult{Success: true, MessageID: res.TransmissionID}
		if i < len(res.Results) {
			r = res.Results[i]
		}
		if r.Success {
			if err := s.repo.MarkQueueItemSent(ctx, items[i].ID, r.MessageID); err != nil {
				logger.Error("mark queue item sent", "item_id", items[i].ID, "error", err.Error())
				continue
			}
			summary.Sent++
		} else {
			s.recordFailure(ctx, &items[i], summary, r.Err)
		}
	}
	return true
}

func (s *Service) recordFailure(ctx context.Context, item *QueueItem, summary *SendSummary, cause error) {
	reason := "send failed"
	if cause != nil {
		reason = cause.Error()
	}
	if err := s.repo.MarkQueueItemFailed(ctx, item.ID, reason); err != nil {
		logger.Error("mark queue item failed", "item_id", item.ID, "error", err.Error())
	}
	summary.Failed++
	summary.Errors = append(summary.Errors, SendError{Recipient: item.Email, Reason: reason})
}

func (s *Service) message(c *domain.Campaign, item *QueueItem, subject, body string) *mailer.Message {
	return &mailer.Message{
		ID:         item.ID,
		CampaignID: c.ID,
		ContactID:  item.ContactID,
		Email:      item.Email,
		FromName:   c.FromName,
		FromEmail:  c.FromEmail,
		Subject:    subject,
		HTML:       body,
	}
}

// batchSender unwraps the chain's primary, if any, and reports whether it
// can batch.
func (s *Service) batchSender() (mailer.BatchSender, bool) {
	var cand mailer.Sender = s.sender
	if ch, ok := cand.(*mailer.Chain); ok {
		cand = ch.Primary()
	}
	bs, ok := cand.(mailer.BatchSender)
	return bs, ok
}

func (s *Service) providerName() string {
	if ch, ok := s.sender.(*mailer.Chain); ok {
		if p := ch.Primary(); p != nil {
			return p.Name()
		}
	}
	return s.sender.Name()
}

// RecomputeStats reconciles the campaign's counters against the event log.
func (s *Service) RecomputeStats(ctx context.Context, id string) (*domain.CampaignStats, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.RecomputeStats(ctx, id)
}

// TopLinks returns the campaign's most-clicked URLs.
func (s *Service) TopLinks(ctx context.Context, id string, limit int) ([]LinkCount, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.TopLinks(ctx, id, limit)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
