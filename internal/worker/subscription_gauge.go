package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/metrics"
)

// paidPlans are reported even when their count is zero so expired plans
// drop back to 0 on the dashboard.
var paidPlans = []subscription.Plan{subscription.PlanLite, subscription.PlanPlus, subscription.PlanPro}

// SubscriptionGauge periodically publishes the number of active
// subscriptions per plan
type SubscriptionGauge struct {
	repo     subscription.Repository
	schedule string
	logger   *logger.Logger
	now      func() time.Time
	set      func(plan string, count float64)

	mu        sync.Mutex
	scheduler *cron.Cron
}

// NewSubscriptionGauge creates the gauge worker. schedule is a standard cron
// expression or a descriptor such as "@every 5m".
func NewSubscriptionGauge(repo subscription.Repository, schedule string, log *logger.Logger) (*SubscriptionGauge, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid gauge schedule %q: %w", schedule, err)
	}
	return &SubscriptionGauge{
		repo:     repo,
		schedule: schedule,
		logger:   log,
		now:      time.Now,
		set:      metrics.SetActiveSubscriptions,
	}, nil
}

// Start runs one refresh immediately, then on the schedule until ctx is done
func (g *SubscriptionGauge) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.scheduler != nil {
		return fmt.Errorf("subscription gauge is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(g.schedule, func() { g.Refresh(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule subscription gauge: %w", err)
	}
	g.scheduler = c

	g.Refresh(ctx)
	c.Start()
	g.logger.WithFields(map[string]interface{}{"schedule": g.schedule}).Info("Subscription gauge started")

	go func() {
		<-ctx.Done()
		g.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running refresh
func (g *SubscriptionGauge) Stop() {
	g.mu.Lock()
	c := g.scheduler
	g.scheduler = nil
	g.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	g.logger.Info("Subscription gauge stopped")
}

// Refresh counts active subscriptions and updates the gauge
func (g *SubscriptionGauge) Refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	counts, err := g.repo.CountActiveByPlan(ctx, g.now())
	if err != nil {
		g.logger.ErrorWithErr(err, "Failed to count active subscriptions")
		return
	}

	for _, plan := range paidPlans {
		g.set(string(plan), float64(counts[plan]))
	}
	g.logger.WithFields(map[string]interface{}{
		"lite": counts[subscription.PlanLite],
		"plus": counts[subscription.PlanPlus],
		"pro":  counts[subscription.PlanPro],
	}).Debug("Active subscriptions refreshed")
}
