package services

import (
	"context"
	"testing"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/testutil"
)

func TestSubscriptionService_Activate(t *testing.T) {
	tests := []struct {
		name     string
		plan     subscription.Plan
		duration time.Duration
		wantErr  bool
	}{
		{name: "lite", plan: subscription.PlanLite, duration: 7 * 24 * time.Hour},
		{name: "plus", plan: subscription.PlanPlus, duration: 30 * 24 * time.Hour},
		{name: "pro", plan: subscription.PlanPro, duration: 90 * 24 * time.Hour},
		{name: "free cannot be bought", plan: subscription.PlanFree, wantErr: true},
		{name: "unknown plan", plan: subscription.Plan("ultra"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := testutil.NewClock(testutil.Date(2026, 3, 10))
			service := NewSubscriptionService(testutil.NewMockSubscriptionRepository(), nil, logger.Nop()).WithClock(clock.Now)

			sub, err := service.Activate(context.Background(), "u1", tt.plan, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Activate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.HasCode(err, errors.ErrCodeValidation) {
					t.Errorf("Activate() error = %v, want validation error", err)
				}
				return
			}
			if got := sub.EndAt.Sub(sub.StartAt); got != tt.duration {
				t.Errorf("Activate() duration = %v, want %v", got, tt.duration)
			}
			if !sub.StartAt.Equal(clock.Now()) {
				t.Errorf("Activate() start = %v, want %v", sub.StartAt, clock.Now())
			}
		})
	}
}

func TestSubscriptionService_RenewalDoesNotStack(t *testing.T) {
	clock := testutil.NewClock(testutil.Date(2026, 3, 10))
	service := NewSubscriptionService(testutil.NewMockSubscriptionRepository(), nil, logger.Nop()).WithClock(clock.Now)
	ctx := context.Background()

	if _, err := service.Activate(ctx, "u1", subscription.PlanPlus, "a"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	clock.Advance(10 * 24 * time.Hour)
	renewed, err := service.Activate(ctx, "u1", subscription.PlanLite, "b")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	want := clock.Now().Add(subscription.LiteDuration)
	if !renewed.EndAt.Equal(want) {
		t.Errorf("renewal end = %v, want %v", renewed.EndAt, want)
	}

	got, err := service.Resolve(ctx, "u1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Plan != subscription.PlanLite {
		t.Errorf("Resolve() plan = %v, want lite", got.Plan)
	}
}

func TestSubscriptionService_DuplicateOrder(t *testing.T) {
	clock := testutil.NewClock(testutil.Date(2026, 3, 10))
	service := NewSubscriptionService(testutil.NewMockSubscriptionRepository(), nil, logger.Nop()).WithClock(clock.Now)
	ctx := context.Background()

	first, err := service.Activate(ctx, "u1", subscription.PlanPlus, "order-9")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	clock.Advance(time.Hour)
	again, err := service.Activate(ctx, "u1", subscription.PlanPlus, "order-9")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if !again.EndAt.Equal(first.EndAt) {
		t.Errorf("redelivery moved end from %v to %v", first.EndAt, again.EndAt)
	}
}

func TestSubscriptionService_ResolveExpiry(t *testing.T) {
	clock := testutil.NewClock(testutil.Date(2026, 3, 10))
	service := NewSubscriptionService(testutil.NewMockSubscriptionRepository(), nil, logger.Nop()).WithClock(clock.Now)
	ctx := context.Background()

	sub, err := service.Activate(ctx, "u1", subscription.PlanLite, "")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	tests := []struct {
		name       string
		at         time.Time
		wantActive bool
	}{
		{name: "just activated", at: sub.StartAt, wantActive: true},
		{name: "one second before end", at: sub.EndAt.Add(-time.Second), wantActive: true},
		{name: "at end", at: sub.EndAt, wantActive: false},
		{name: "after end", at: sub.EndAt.Add(24 * time.Hour), wantActive: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Set(tt.at)
			got, err := service.Resolve(ctx, "u1")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if (got != nil) != tt.wantActive {
				t.Errorf("Resolve() active = %v, want %v", got != nil, tt.wantActive)
			}
		})
	}
}

func TestSubscriptionService_ResolveErrors(t *testing.T) {
	repo := testutil.NewMockSubscriptionRepository()
	service := NewSubscriptionService(repo, nil, logger.Nop())
	ctx := context.Background()

	got, err := service.Resolve(ctx, "never-paid")
	if err != nil || got != nil {
		t.Fatalf("Resolve() = %v, %v; want nil, nil", got, err)
	}

	repo.Err = errors.StoreUnavailable("down", nil)
	if _, err := service.Resolve(ctx, "u1"); !errors.IsStoreUnavailable(err) {
		t.Errorf("Resolve() error = %v, want store unavailable", err)
	}
}

func TestSubscriptionService_Entitlement(t *testing.T) {
	clock := testutil.NewClock(testutil.Date(2026, 3, 10))
	service := NewSubscriptionService(testutil.NewMockSubscriptionRepository(), nil, logger.Nop()).WithClock(clock.Now)
	ctx := context.Background()

	e, err := service.Entitlement(ctx, "u1")
	if err != nil {
		t.Fatalf("Entitlement() error = %v", err)
	}
	if e.Plan != subscription.PlanFree || e.IsPremium || !e.ShowAds || e.DailyAllowance != 100 {
		t.Errorf("free entitlement = %+v", e)
	}

	if _, err := service.Activate(ctx, "u1", subscription.PlanPro, ""); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	e, err = service.Entitlement(ctx, "u1")
	if err != nil {
		t.Fatalf("Entitlement() error = %v", err)
	}
	if e.Plan != subscription.PlanPro || !e.IsPremium || e.ShowAds || !e.UnlimitedSpend || e.ExpiresAt == nil {
		t.Errorf("pro entitlement = %+v", e)
	}
}

func TestSubscriptionService_ActivateRefreshesTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.Reconcile(ctx, "u1"); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if _, err := f.subs.Activate(ctx, "u1", subscription.PlanLite, "order-1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	acct, err := f.ledger.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if acct.ProTier == nil || *acct.ProTier != account.TierBronze {
		t.Errorf("tier = %v, want bronze", acct.ProTier)
	}
	// the allowance only changes at the next rollover
	if acct.Coins != 100 {
		t.Errorf("coins = %d, want 100", acct.Coins)
	}
}
