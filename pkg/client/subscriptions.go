package client

import (
	"context"
	"net/url"
)

// SubscriptionService handles plan API calls
type SubscriptionService struct {
	client *Client
}

// Get returns the active subscription; Plan is "free" when there is none
func (s *SubscriptionService) Get(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	if err := s.client.doRequest(ctx, "GET", "/api/v1/me/subscription", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Entitlement returns what the plan allows right now
func (s *SubscriptionService) Entitlement(ctx context.Context) (*Entitlement, error) {
	var e Entitlement
	if err := s.client.doRequest(ctx, "GET", "/api/v1/me/entitlement", nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// InternalService handles server-to-server calls guarded by the API key
type InternalService struct {
	client *Client
}

// ActivateRequest records a confirmed payment
type ActivateRequest struct {
	UserID  string `json:"userId"`
	Plan    string `json:"plan"` // lite, plus, pro
	OrderID string `json:"orderId,omitempty"`
}

// Activate starts or replaces a user's subscription
func (s *InternalService) Activate(ctx context.Context, req ActivateRequest) (*Subscription, error) {
	var sub Subscription
	if err := s.client.doRequest(ctx, "POST", "/api/v1/internal/subscriptions/activate", req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// AdjustRequest applies a trusted increment
type AdjustRequest struct {
	Field  string `json:"field"` // coins, adsWatchedToday.count, sharesToday.count
	Delta  int64  `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

// Adjust applies an increment to userID's account
func (s *InternalService) Adjust(ctx context.Context, userID string, req AdjustRequest) (*Account, error) {
	var acct Account
	path := "/api/v1/internal/accounts/" + url.PathEscape(userID) + "/adjust"
	if err := s.client.doRequest(ctx, "POST", path, req, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}
