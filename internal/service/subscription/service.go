package subscription

import (
	"context"
	"fmt"

	"github.com/ignite/eventcrm/internal/domain"
	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// Service implements subscription business logic. Safe for concurrent use if
// the repository is.
type Service struct {
	repo Repository
}

// NewService creates a subscription service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Unsubscribe opts the contact out of campaign sends. Idempotent; unknown
// emails return ErrNotFound and the caller decides whether to surface it
// (the public endpoint does not, to avoid address probing).
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	return s.set(ctx, email, true)
}

// Resubscribe clears the opt-out flag. Used by operators on explicit
// request; nothing in the system flips it back automatically.
func (s *Service) Resubscribe(ctx context.Context, email string) error {
	return s.set(ctx, email, false)
}

// IsUnsubscribed reports the contact's opt-out state.
func (s *Service) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	if !domain.ValidEmail(email) {
		return false, ErrValidation
	}
	return s.repo.IsUnsubscribed(ctx, domain.NormalizeEmail(email))
}

func (s *Service) set(ctx context.Context, email string, unsubscribed bool) error {
	if !domain.ValidEmail(email) {
		return ErrValidation
	}
	email = domain.NormalizeEmail(email)

	found, err := s.repo.SetSubscription(ctx, email, unsubscribed)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	logger.Info("subscription changed", "email", email, "unsubscribed", unsubscribed)
	return nil
}
