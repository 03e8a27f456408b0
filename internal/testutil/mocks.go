package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
)

// MockSubscriptionRepository is an in-memory subscription.Repository
type MockSubscriptionRepository struct {
	mu   sync.Mutex
	subs map[string]*subscription.Subscription
	Err  error
}

// NewMockSubscriptionRepository creates a new mock subscription repository
func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{
		subs: make(map[string]*subscription.Subscription),
	}
}

func (m *MockSubscriptionRepository) Get(ctx context.Context, userID string) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.subs[userID]
	if !ok {
		return nil, errors.NotFound("Subscription")
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepository) Put(ctx context.Context, s *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *s
	m.subs[s.UserID] = &cp
	return nil
}

func (m *MockSubscriptionRepository) CountActiveByPlan(ctx context.Context, now time.Time) (map[subscription.Plan]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	counts := make(map[subscription.Plan]int64)
	for _, s := range m.subs {
		if s.IsActive(now) {
			counts[s.Plan]++
		}
	}
	return counts, nil
}

// FlakyStore wraps an account.Store and fails the next Failures calls to
// ApplyDailyGrant and Get with StoreUnavailable.
type FlakyStore struct {
	account.Store

	mu       sync.Mutex
	Failures int
	Calls    int
}

// NewFlakyStore wraps store
func NewFlakyStore(store account.Store, failures int) *FlakyStore {
	return &FlakyStore{Store: store, Failures: failures}
}

func (f *FlakyStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Failures > 0 {
		f.Failures--
		return errors.StoreUnavailable("store offline", nil)
	}
	return nil
}

func (f *FlakyStore) Get(ctx context.Context, userID string) (*account.Account, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, userID)
}

func (f *FlakyStore) ApplyDailyGrant(ctx context.Context, userID string, g account.DailyGrant) (*account.Account, bool, error) {
	if err := f.fail(); err != nil {
		return nil, false, err
	}
	return f.Store.ApplyDailyGrant(ctx, userID, g)
}
