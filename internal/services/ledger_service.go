package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/metrics"
)

const (
	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
	retryBackoff            = 50 * time.Millisecond
)

// LedgerService implements account.Service
type LedgerService struct {
	store    account.Store
	resolver subscription.Resolver
	loc      *time.Location
	retries  int
	logger   *logger.Logger
	now      func() time.Time
}

// NewLedgerService creates a new ledger service. loc defines the calendar
// day for every client; retries bounds how often a reconciliation is retried
// after the store was unavailable.
func NewLedgerService(store account.Store, resolver subscription.Resolver, loc *time.Location, retries int, log *logger.Logger) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LedgerService{
		store:    store,
		resolver: resolver,
		loc:      loc,
		retries:  retries,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

func (s *LedgerService) today() string {
	return account.Today(s.now(), s.loc)
}

// Reconcile brings the account up to date for today. It is idempotent within
// a day: the grant is conditioned on the stored reward date, so concurrent
// calls from several devices apply it once.
func (s *LedgerService) Reconcile(ctx context.Context, userID string) (*account.Reconciliation, error) {
	var result *account.Reconciliation
	err := s.retry(ctx, userID, func() error {
		r, err := s.reconcileOnce(ctx, userID)
		result = r
		return err
	})
	if err != nil {
		metrics.RecordReconciliation("error")
		s.logger.WithUser(userID).ErrorWithErr(err, "Reconciliation failed")
		return nil, err
	}

	metrics.RecordReconciliation(string(result.Outcome))
	if result.Granted > 0 {
		metrics.RecordCoinsGranted(string(account.TxDailyGrant), result.Granted)
	}
	if result.Outcome != account.OutcomeUnchanged {
		s.logger.WithUser(userID).WithFields(map[string]interface{}{
			"outcome": result.Outcome,
			"granted": result.Granted,
			"coins":   result.Account.Coins,
		}).Info("Account reconciled")
	}
	return result, nil
}

func (s *LedgerService) reconcileOnce(ctx context.Context, userID string) (*account.Reconciliation, error) {
	sub, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan := subscription.PlanOf(sub)
	allowance := plan.DailyAllowance()
	proj := account.ProjectionOf(sub)
	today := s.today()

	acct, err := s.store.Get(ctx, userID)
	if errors.IsNotFound(err) {
		tier := proj.Tier
		created, cerr := s.store.Create(ctx, &account.Account{
			UserID:             userID,
			Coins:              allowance,
			LastCoinRewardDate: today,
			AdsWatchedToday:    account.DailyCounter{Date: today},
			SharesToday:        account.DailyCounter{Date: today},
			ProTier:            &tier,
			ProTierExpiry:      proj.Expiry,
			LastDailyGrant:     allowance,
		})
		if cerr == nil {
			return &account.Reconciliation{Account: created, Outcome: account.OutcomeCreated, Granted: allowance}, nil
		}
		if !errors.HasCode(cerr, errors.ErrCodeAlreadyExists) {
			return nil, cerr
		}
		// another device created it first
		acct, err = s.store.Get(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	if acct.LastCoinRewardDate == today {
		if !acct.ProjectionMatches(proj) {
			if acct, err = s.store.Patch(ctx, userID, account.PatchFor(proj)); err != nil {
				return nil, err
			}
		}
		return &account.Reconciliation{Account: acct, Outcome: account.OutcomeUnchanged}, nil
	}

	updated, applied, err := s.store.ApplyDailyGrant(ctx, userID, account.DailyGrant{
		Today:      today,
		Allowance:  allowance,
		Projection: proj,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return &account.Reconciliation{Account: updated, Outcome: account.OutcomeUnchanged}, nil
	}
	return &account.Reconciliation{Account: updated, Outcome: account.OutcomeGranted, Granted: updated.LastDailyGrant}, nil
}

// retry reruns fn while the store is unavailable
func (s *LedgerService) retry(ctx context.Context, userID string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
		err = fn()
		if err == nil || !errors.IsStoreUnavailable(err) {
			return err
		}
		s.logger.WithUser(userID).WithError(err).Warnf("Store unavailable, attempt %d of %d", attempt+1, s.retries+1)
	}
	return err
}

// Get returns the account
func (s *LedgerService) Get(ctx context.Context, userID string) (*account.Account, error) {
	return s.store.Get(ctx, userID)
}

// Watch delivers the current state and then every newer committed state.
// Callbacks never run concurrently and never go back in version. The
// subscription ends when the handle is cancelled or ctx is done; once Cancel
// returns no further callback starts.
func (s *LedgerService) Watch(ctx context.Context, userID string, onChange func(*account.Account)) (account.Handle, error) {
	w := &watchHandle{onChange: onChange, done: make(chan struct{})}
	w.inner = s.store.Subscribe(userID, w.deliver)

	acct, err := s.store.Get(ctx, userID)
	if err != nil {
		w.Cancel()
		return nil, err
	}
	w.deliver(acct)

	go func() {
		select {
		case <-ctx.Done():
			w.Cancel()
		case <-w.done:
		}
	}()

	return w, nil
}

type watchHandle struct {
	inner    account.Handle
	onChange func(*account.Account)
	once     sync.Once
	done     chan struct{}

	// mu is held from the cancelled check through onChange
	mu         sync.Mutex
	last       int64
	cancelled  atomic.Bool
	inCallback atomic.Bool
}

func (w *watchHandle) deliver(a *account.Account) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancelled.Load() || a.Version <= w.last {
		return
	}
	w.last = a.Version

	w.inCallback.Store(true)
	defer w.inCallback.Store(false)
	w.onChange(a)
}

func (w *watchHandle) Cancel() {
	w.once.Do(func() {
		w.cancelled.Store(true)
		w.inner.Cancel()
		close(w.done)

		if !w.inCallback.Load() {
			w.mu.Lock()
			w.mu.Unlock()
		}
	})
}

// WatchAd claims the ad reward
func (s *LedgerService) WatchAd(ctx context.Context, userID string) (*account.RewardResult, error) {
	return s.claim(ctx, userID, account.RewardAd)
}

// ShareReward claims the share reward
func (s *LedgerService) ShareReward(ctx context.Context, userID string) (*account.RewardResult, error) {
	return s.claim(ctx, userID, account.RewardShare)
}

func (s *LedgerService) claim(ctx context.Context, userID string, kind account.RewardKind) (*account.RewardResult, error) {
	acct, granted, err := s.store.ClaimReward(ctx, userID, kind, s.today())
	if err != nil {
		metrics.RecordReward(string(kind), "error")
		return nil, err
	}

	if !granted {
		metrics.RecordReward(string(kind), "limit_reached")
		return &account.RewardResult{Granted: false, Account: acct}, nil
	}

	rule := kind.Rule()
	metrics.RecordReward(string(kind), "granted")
	metrics.RecordCoinsGranted(string(account.TxKindForReward(kind)), rule.Coins)
	s.logger.WithUser(userID).WithFields(map[string]interface{}{
		"reward": kind,
		"count":  kind.Counter(acct).Count,
		"coins":  acct.Coins,
	}).Debug("Reward granted")

	return &account.RewardResult{Granted: true, Account: acct}, nil
}

// Spend debits amount coins. Gold subscribers spend without a debit.
func (s *LedgerService) Spend(ctx context.Context, userID string, amount int64) (*account.Account, error) {
	if amount <= 0 {
		return nil, errors.ValidationError("Amount must be positive", map[string]int64{"amount": amount})
	}

	sub, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlimited := subscription.PlanOf(sub).UnlimitedSpend()

	acct, err := s.store.Spend(ctx, userID, account.SpendRequest{
		Amount:    amount,
		Unlimited: unlimited,
		Kind:      account.TxSpend,
	})
	recordSpend(err, unlimited)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func recordSpend(err error, unlimited bool) {
	switch {
	case errors.HasCode(err, errors.ErrCodeInsufficientFunds):
		metrics.RecordSpend("insufficient")
	case err != nil:
		metrics.RecordSpend("error")
	case unlimited:
		metrics.RecordSpend("unlimited")
	default:
		metrics.RecordSpend("ok")
	}
}

// Adjust applies a trusted increment, such as a support credit
func (s *LedgerService) Adjust(ctx context.Context, userID string, field account.Field, delta int64, reason string) (*account.Account, error) {
	if !field.IsValid() {
		return nil, errors.ValidationError("Unsupported field", map[string]string{"field": string(field)})
	}

	acct, err := s.store.Increment(ctx, userID, field, delta, reason)
	if err != nil {
		return nil, err
	}

	if field == account.FieldCoins {
		metrics.RecordCoinsGranted(string(account.TxAdjustment), delta)
	}
	s.logger.WithUser(userID).WithFields(map[string]interface{}{
		"field":  field,
		"delta":  delta,
		"reason": reason,
	}).Info("Account adjusted")

	return acct, nil
}

// Transactions lists ledger entries, newest first
func (s *LedgerService) Transactions(ctx context.Context, userID string, limit int) ([]*account.Transaction, error) {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}
	return s.store.ListTransactions(ctx, userID, limit)
}
