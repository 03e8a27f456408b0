package services

import (
	"context"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/metrics"
)

// SubscriptionService implements subscription.Resolver
type SubscriptionService struct {
	repo   subscription.Repository
	store  account.Store
	logger *logger.Logger
	now    func() time.Time
}

// NewSubscriptionService creates a new subscription service. store may be
// nil, in which case activation does not refresh the cached tier.
func NewSubscriptionService(repo subscription.Repository, store account.Store, log *logger.Logger) *SubscriptionService {
	if log == nil {
		log = logger.Nop()
	}
	return &SubscriptionService{
		repo:   repo,
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// WithClock replaces the time source
func (s *SubscriptionService) WithClock(now func() time.Time) *SubscriptionService {
	s.now = now
	return s
}

// Resolve returns the active subscription or nil. An expired record reads as
// no subscription; it is never deleted.
func (s *SubscriptionService) Resolve(ctx context.Context, userID string) (*subscription.Subscription, error) {
	sub, err := s.repo.Get(ctx, userID)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !sub.IsActive(s.now()) {
		return nil, nil
	}
	return sub, nil
}

// Activate overwrites the subscription with a fresh period starting now.
// A redelivered confirmation carrying the stored order id is a no-op.
func (s *SubscriptionService) Activate(ctx context.Context, userID string, plan subscription.Plan, orderID string) (*subscription.Subscription, error) {
	if !plan.IsPaid() {
		return nil, errors.ValidationError("Plan cannot be purchased", map[string]string{"plan": string(plan)})
	}

	log := s.logger.WithUser(userID)

	if orderID != "" {
		existing, err := s.repo.Get(ctx, userID)
		if err != nil && !errors.IsNotFound(err) {
			return nil, err
		}
		if existing != nil && existing.OrderID == orderID {
			log.With("order_id", orderID).Info("Duplicate payment confirmation ignored")
			return existing, nil
		}
	}

	now := s.now()
	sub := &subscription.Subscription{
		UserID:    userID,
		Plan:      plan,
		StartAt:   now,
		EndAt:     now.Add(plan.Duration()),
		OrderID:   orderID,
		UpdatedAt: now,
	}
	if err := s.repo.Put(ctx, sub); err != nil {
		log.ErrorWithErr(err, "Failed to activate subscription")
		return nil, err
	}

	metrics.RecordSubscriptionActivated(string(plan))
	log.WithFields(map[string]interface{}{
		"plan":     plan,
		"end_at":   sub.EndAt,
		"order_id": orderID,
	}).Info("Subscription activated")

	s.refreshProjection(ctx, sub)
	return sub, nil
}

// refreshProjection writes the new tier onto the account. The tier is a
// display cache; a failure is logged and left for the next reconciliation.
func (s *SubscriptionService) refreshProjection(ctx context.Context, sub *subscription.Subscription) {
	if s.store == nil {
		return
	}
	_, err := s.store.Patch(ctx, sub.UserID, account.PatchFor(account.ProjectionOf(sub)))
	if err != nil && !errors.IsNotFound(err) {
		s.logger.WithUser(sub.UserID).WithError(err).Warn("Failed to refresh tier projection")
	}
}

// Entitlement derives what the user may do right now
func (s *SubscriptionService) Entitlement(ctx context.Context, userID string) (*subscription.Entitlement, error) {
	sub, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return subscription.EntitlementFor(sub), nil
}
