package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/testutil"
)

type recordedGauge struct {
	mu     sync.Mutex
	values map[string]float64
	calls  int
}

func (r *recordedGauge) set(plan string, count float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = make(map[string]float64)
	}
	r.values[plan] = count
	r.calls++
}

func (r *recordedGauge) snapshot() (map[string]float64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out, r.calls
}

func newGauge(t *testing.T, repo subscription.Repository, now time.Time) (*SubscriptionGauge, *recordedGauge) {
	t.Helper()
	g, err := NewSubscriptionGauge(repo, "@every 1h", logger.Nop())
	if err != nil {
		t.Fatalf("NewSubscriptionGauge() error = %v", err)
	}
	rec := &recordedGauge{}
	g.set = rec.set
	g.now = func() time.Time { return now }
	return g, rec
}

func TestNewSubscriptionGauge_InvalidSchedule(t *testing.T) {
	if _, err := NewSubscriptionGauge(testutil.NewMockSubscriptionRepository(), "every now and then", logger.Nop()); err == nil {
		t.Error("NewSubscriptionGauge() accepted an invalid schedule")
	}
}

func TestSubscriptionGauge_Refresh(t *testing.T) {
	now := testutil.Date(2026, 3, 10)
	repo := testutil.NewMockSubscriptionRepository()
	ctx := context.Background()

	subs := []*subscription.Subscription{
		{UserID: "a", Plan: subscription.PlanLite, StartAt: now.Add(-time.Hour), EndAt: now.Add(subscription.LiteDuration)},
		{UserID: "b", Plan: subscription.PlanPro, StartAt: now.Add(-time.Hour), EndAt: now.Add(subscription.ProDuration)},
		{UserID: "c", Plan: subscription.PlanPro, StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Minute)},
		// lapsed
		{UserID: "d", Plan: subscription.PlanPlus, StartAt: now.Add(-40 * 24 * time.Hour), EndAt: now.Add(-10 * 24 * time.Hour)},
	}
	for _, s := range subs {
		if err := repo.Put(ctx, s); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	g, rec := newGauge(t, repo, now)
	g.Refresh(ctx)

	got, _ := rec.snapshot()
	want := map[string]float64{"lite": 1, "plus": 0, "pro": 2}
	for plan, count := range want {
		if got[plan] != count {
			t.Errorf("gauge[%s] = %v, want %v", plan, got[plan], count)
		}
	}
}

func TestSubscriptionGauge_RefreshError(t *testing.T) {
	repo := testutil.NewMockSubscriptionRepository()
	repo.Err = errors.StoreUnavailable("down", nil)

	g, rec := newGauge(t, repo, time.Now())
	g.Refresh(context.Background())

	if _, calls := rec.snapshot(); calls != 0 {
		t.Errorf("gauge updated %d times after a failed count, want 0", calls)
	}
}

func TestSubscriptionGauge_StartStop(t *testing.T) {
	g, rec := newGauge(t, testutil.NewMockSubscriptionRepository(), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := g.Start(ctx); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	// the first refresh runs synchronously
	if _, calls := rec.snapshot(); calls != len(paidPlans) {
		t.Errorf("calls after Start() = %d, want %d", calls, len(paidPlans))
	}

	g.Stop()
	g.Stop()
}
