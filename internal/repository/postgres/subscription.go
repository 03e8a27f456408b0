package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/metrics"
)

// SubscriptionRepository implements subscription.Repository
type SubscriptionRepository struct {
	db *DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *DB) subscription.Repository {
	return &SubscriptionRepository{db: db}
}

// Get retrieves the stored subscription of a user
func (r *SubscriptionRepository) Get(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := r.db.Rebind(`
		SELECT user_id, plan, start_at, end_at, order_id, updated_at
		FROM subscriptions WHERE user_id = ?
	`)

	var (
		s                             subscription.Subscription
		plan                          string
		startAt, endAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &plan, &startAt, &endAt, &s.OrderID, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Subscription")
	}
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to get subscription", err)
	}

	s.Plan = subscription.Plan(plan)
	s.StartAt = time.UnixMilli(startAt).UTC()
	s.EndAt = time.UnixMilli(endAt).UTC()
	s.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &s, nil
}

// Put inserts or overwrites a subscription
func (r *SubscriptionRepository) Put(ctx context.Context, s *subscription.Subscription) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("put", "subscriptions", time.Since(start)) }()

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}

	query := r.db.Rebind(`
		INSERT INTO subscriptions (user_id, plan, start_at, end_at, order_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = excluded.plan,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			order_id = excluded.order_id,
			updated_at = excluded.updated_at
	`)

	_, err := r.db.ExecContext(ctx, query,
		s.UserID, string(s.Plan), s.StartAt.UnixMilli(), s.EndAt.UnixMilli(), s.OrderID, s.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.StoreUnavailable("Failed to save subscription", err)
	}
	return nil
}

// CountActiveByPlan counts subscriptions ending after now, grouped by plan
func (r *SubscriptionRepository) CountActiveByPlan(ctx context.Context, now time.Time) (map[subscription.Plan]int64, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT plan, COUNT(*) FROM subscriptions WHERE end_at > ? GROUP BY plan
	`), now.UnixMilli())
	if err != nil {
		return nil, errors.StoreUnavailable("Failed to count subscriptions", err)
	}
	defer rows.Close()

	counts := make(map[subscription.Plan]int64)
	for rows.Next() {
		var (
			plan  string
			count int64
		)
		if err := rows.Scan(&plan, &count); err != nil {
			return nil, errors.StoreUnavailable("Failed to scan subscription count", err)
		}
		counts[subscription.Plan(plan)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreUnavailable("Failed to count subscriptions", err)
	}
	return counts, nil
}
