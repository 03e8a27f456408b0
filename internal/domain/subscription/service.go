package subscription

import "context"

// Resolver answers which plan a user is entitled to right now
type Resolver interface {
	// Resolve returns the active subscription, or nil when none exists or it has expired
	Resolve(ctx context.Context, userID string) (*Subscription, error)

	// Activate overwrites the user's subscription after a confirmed payment
	Activate(ctx context.Context, userID string, plan Plan, orderID string) (*Subscription, error)

	// Entitlement derives plan, premium status and allowance
	Entitlement(ctx context.Context, userID string) (*Entitlement, error)
}
