package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/repository/postgres"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/testutil"
)

type fixture struct {
	clock   *testutil.Clock
	store   *postgres.AccountRepository
	subRepo *testutil.MockSubscriptionRepository
	subs    *SubscriptionService
	ledger  *LedgerService
	prompts *PromptService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(db) })

	log := logger.New(logger.Config{Level: "error", Format: "json"})
	clock := testutil.NewClock(testutil.Date(2026, 3, 10))
	store := postgres.NewAccountRepository(postgres.Wrap(db, "sqlite"), nil, time.UTC, log)
	subRepo := testutil.NewMockSubscriptionRepository()
	subs := NewSubscriptionService(subRepo, store, log).WithClock(clock.Now)

	return &fixture{
		clock:   clock,
		store:   store,
		subRepo: subRepo,
		subs:    subs,
		ledger:  NewLedgerService(store, subs, time.UTC, 2, log).WithClock(clock.Now),
		prompts: NewPromptService(store, subs, log).WithClock(clock.Now),
	}
}

func TestLedgerService_ReconcileFreeUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, account.OutcomeCreated, r.Outcome)
	assert.Equal(t, int64(100), r.Account.Coins)
	assert.Equal(t, "2026-03-10", r.Account.LastCoinRewardDate)
	assert.Equal(t, account.DailyCounter{Date: "2026-03-10"}, r.Account.AdsWatchedToday)
	require.NotNil(t, r.Account.ProTier)
	assert.Equal(t, account.TierNone, *r.Account.ProTier)

	_, err = f.ledger.Spend(ctx, "u1", 70)
	require.NoError(t, err)

	// same day: nothing changes
	r, err = f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, account.OutcomeUnchanged, r.Outcome)
	assert.Equal(t, int64(30), r.Account.Coins)

	f.clock.Advance(24 * time.Hour)
	r, err = f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, account.OutcomeGranted, r.Outcome)
	assert.Equal(t, int64(70), r.Granted)
	assert.Equal(t, int64(100), r.Account.Coins)
	assert.Equal(t, "2026-03-11", r.Account.LastCoinRewardDate)

	r, err = f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, account.OutcomeUnchanged, r.Outcome)
	assert.Equal(t, int64(100), r.Account.Coins)
}

func TestLedgerService_ReconcileKeepsSurplus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, "u1", account.FieldCoins, 400, "promo")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	r, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, account.OutcomeGranted, r.Outcome)
	assert.Equal(t, int64(0), r.Granted)
	assert.Equal(t, int64(500), r.Account.Coins)
}

func TestLedgerService_ReconcileSubscriber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.subs.Activate(ctx, "u2", subscription.PlanPlus, "order-1")
	require.NoError(t, err)

	r, err := f.ledger.Reconcile(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, account.OutcomeCreated, r.Outcome)
	assert.Equal(t, int64(5000), r.Account.Coins)
	require.NotNil(t, r.Account.ProTier)
	assert.Equal(t, account.TierSilver, *r.Account.ProTier)
	require.NotNil(t, r.Account.ProTierExpiry)
	assert.True(t, sub.EndAt.Equal(*r.Account.ProTierExpiry))

	// 31 days later the plan has lapsed and the free allowance applies
	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.ledger.Spend(ctx, "u2", 4990)
	require.NoError(t, err)

	r, err = f.ledger.Reconcile(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(100), r.Account.Coins)
	assert.Equal(t, account.TierNone, *r.Account.ProTier)
	assert.Nil(t, r.Account.ProTierExpiry)
}

func TestLedgerService_ReconcileRefreshesTierSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)

	// the projection write inside Activate is bypassed here
	require.NoError(t, f.subRepo.Put(ctx, &subscription.Subscription{
		UserID:  "u1",
		Plan:    subscription.PlanLite,
		StartAt: f.clock.Now(),
		EndAt:   f.clock.Now().Add(subscription.LiteDuration),
	}))

	r, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, account.OutcomeUnchanged, r.Outcome)
	assert.Equal(t, int64(100), r.Account.Coins)
	assert.Equal(t, account.TierBronze, *r.Account.ProTier)
}

func TestLedgerService_ReconcileRetries(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  bool
	}{
		{name: "recovers within budget", failures: 2},
		{name: "gives up", failures: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			flaky := testutil.NewFlakyStore(f.store, tt.failures)
			ledger := NewLedgerService(flaky, f.subs, time.UTC, 2, logger.Nop()).WithClock(f.clock.Now)

			r, err := ledger.Reconcile(context.Background(), "u1")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsStoreUnavailable(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(100), r.Account.Coins)
		})
	}
}

func TestLedgerService_Rewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		res, err := f.ledger.WatchAd(ctx, "u1")
		require.NoError(t, err)
		require.True(t, res.Granted)
	}
	res, err := f.ledger.WatchAd(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, int64(200), res.Account.Coins)

	for i := 0; i < 5; i++ {
		res, err = f.ledger.ShareReward(ctx, "u1")
		require.NoError(t, err)
		require.True(t, res.Granted)
	}
	res, err = f.ledger.ShareReward(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, int64(275), res.Account.Coins)

	// next day the counters start over
	f.clock.Advance(24 * time.Hour)
	res, err = f.ledger.WatchAd(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, 1, res.Account.AdsWatchedToday.Count)
}

func TestLedgerService_RewardMissingAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.WatchAd(context.Background(), "nobody")
	assert.True(t, errors.IsNotFound(err), "got %v", err)
}

func TestLedgerService_Spend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)

	_, err = f.ledger.Spend(ctx, "u1", 0)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation), "got %v", err)

	_, err = f.ledger.Spend(ctx, "u1", 101)
	appErr, ok := errors.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, errors.ErrCodeInsufficientFunds, appErr.Code)
	assert.Equal(t, 402, appErr.StatusCode)

	acct, err := f.ledger.Spend(ctx, "u1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.Coins)
}

func TestLedgerService_GoldSpendsWithoutDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.subs.Activate(ctx, "u1", subscription.PlanPro, "order-pro")
	require.NoError(t, err)
	r, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(999999), r.Account.Coins)

	acct, err := f.ledger.Spend(ctx, "u1", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(999999), acct.Coins)
}

func TestLedgerService_Watch(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)

	got := make(chan *account.Account, 8)
	h, err := f.ledger.Watch(ctx, "u1", func(a *account.Account) { got <- a })
	require.NoError(t, err)
	defer h.Cancel()

	first := <-got
	assert.Equal(t, int64(100), first.Coins)

	_, err = f.ledger.WatchAd(ctx, "u1")
	require.NoError(t, err)

	select {
	case a := <-got:
		assert.Equal(t, int64(110), a.Coins)
		assert.Greater(t, a.Version, first.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("update not delivered")
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	_, err = f.ledger.WatchAd(context.Background(), "u1")
	require.NoError(t, err)

	select {
	case a := <-got:
		t.Fatalf("delivered after cancel: %+v", a)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLedgerService_WatchNoCallbackAfterCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		coins []int64
	)
	h, err := f.ledger.Watch(ctx, "u1", func(a *account.Account) {
		mu.Lock()
		coins = append(coins, a.Coins)
		n := len(coins)
		mu.Unlock()
		if n == 2 {
			close(entered)
			<-release
		}
	})
	require.NoError(t, err)

	_, err = f.ledger.WatchAd(ctx, "u1")
	require.NoError(t, err)
	<-entered

	_, err = f.ledger.Spend(ctx, "u1", 5)
	require.NoError(t, err)

	cancelled := make(chan struct{})
	go func() {
		h.Cancel()
		close(cancelled)
	}()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel blocked on a running callback")
	}

	close(release)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{100, 110}, coins)
}

func TestLedgerService_WatchCancelInsideCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		h     account.Handle
		calls int
	)
	mu.Lock()
	h, err = f.ledger.Watch(ctx, "u1", func(a *account.Account) {
		if a.Coins == 100 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		calls++
		h.Cancel()
	})
	mu.Unlock()
	require.NoError(t, err)

	_, err = f.ledger.WatchAd(ctx, "u1")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	_, err = f.ledger.Spend(ctx, "u1", 5)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestLedgerService_WatchMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Watch(context.Background(), "nobody", func(*account.Account) {})
	assert.True(t, errors.IsNotFound(err), "got %v", err)
}

func TestLedgerService_Transactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	_, err = f.ledger.WatchAd(ctx, "u1")
	require.NoError(t, err)
	_, err = f.ledger.Spend(ctx, "u1", 25)
	require.NoError(t, err)

	txs, err := f.ledger.Transactions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, account.TxSpend, txs[0].Kind)
	assert.Equal(t, int64(-25), txs[0].Amount)
	assert.Equal(t, int64(85), txs[0].BalanceAfter)
	assert.Equal(t, account.TxAdReward, txs[1].Kind)
	assert.Equal(t, account.TxDailyGrant, txs[2].Kind)
}
