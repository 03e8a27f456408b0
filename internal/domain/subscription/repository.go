package subscription

import (
	"context"
	"time"
)

// Repository defines the interface for subscription data access
type Repository interface {
	// Get returns the stored subscription, expired or not
	Get(ctx context.Context, userID string) (*Subscription, error)

	// Put inserts or overwrites the user's subscription
	Put(ctx context.Context, sub *Subscription) error

	// CountActiveByPlan counts subscriptions with end_at after now
	CountActiveByPlan(ctx context.Context, now time.Time) (map[Plan]int64, error)
}
