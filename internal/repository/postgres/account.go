package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/feed"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/legacy"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/metrics"
)

// errNoChange rolls back a mutation whose condition did not match
var errNoChange = stderrors.New("condition not met")

const accountColumns = `user_id, coins, last_coin_reward_date, ads_count, ads_date,
	shares_count, shares_date, pro_tier, pro_tier_expiry, last_daily_grant,
	version, created_at, updated_at`

var incrementColumns = map[account.Field]string{
	account.FieldCoins:       "coins",
	account.FieldAdsCount:    "ads_count",
	account.FieldSharesCount: "shares_count",
}

// count column, date column
var rewardColumns = map[account.RewardKind][2]string{
	account.RewardAd:    {"ads_count", "ads_date"},
	account.RewardShare: {"shares_count", "shares_date"},
}

// AccountRepository implements account.Store. Each mutation runs one
// conditional statement in a transaction, reads back the committed row and
// publishes it to the feed after commit.
type AccountRepository struct {
	db     *DB
	broker feed.Broker
	loc    *time.Location
	logger *logger.Logger
}

// NewAccountRepository creates a new account store. loc dates legacy
// timestamps; nil means UTC.
func NewAccountRepository(db *DB, broker feed.Broker, loc *time.Location, log *logger.Logger) *AccountRepository {
	if log == nil {
		log = logger.Nop()
	}
	if broker == nil {
		broker = feed.NewMemoryBroker(log)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AccountRepository{db: db, broker: broker, loc: loc, logger: log}
}

// Get returns the account with its favorites and history
func (r *AccountRepository) Get(ctx context.Context, userID string) (*account.Account, error) {
	if err := r.ensureCanonical(ctx, userID); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("get", "accounts", time.Since(start)) }()

	var snap *account.Account
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		s, err := r.snapshot(ctx, tx, userID)
		snap = s
		return err
	})
	if err != nil {
		return nil, r.fail("load account", err)
	}
	return snap, nil
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) (*account.Account, error) {
	now := time.Now().UnixMilli()
	tier, expiry := projectionArgs(acct.Projection())
	if acct.ProTier == nil {
		tier = nil
	}

	return r.mutate(ctx, "create account", acct.UserID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO accounts (user_id, coins, last_coin_reward_date, ads_count, ads_date,
				shares_count, shares_date, pro_tier, pro_tier_expiry, last_daily_grant,
				version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT (user_id) DO NOTHING
		`),
			acct.UserID, acct.Coins, acct.LastCoinRewardDate,
			acct.AdsWatchedToday.Count, acct.AdsWatchedToday.Date,
			acct.SharesToday.Count, acct.SharesToday.Date,
			tier, expiry, acct.LastDailyGrant, now, now,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errors.AlreadyExists("Account")
		}

		if acct.Coins > 0 {
			if err := r.record(ctx, tx, acct.UserID, account.TxDailyGrant, acct.Coins, acct.Coins, acct.LastCoinRewardDate); err != nil {
				return err
			}
		}
		return r.insertLists(ctx, tx, acct.UserID, acct.Favorites, acct.History, now)
	})
}

// Patch merges the named fields
func (r *AccountRepository) Patch(ctx context.Context, userID string, patch account.Patch) (*account.Account, error) {
	if patch.IsEmpty() {
		return r.Get(ctx, userID)
	}
	if err := r.ensureCanonical(ctx, userID); err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	if patch.ProTier != nil {
		sets = append(sets, "pro_tier = ?")
		args = append(args, string(*patch.ProTier))
	}
	if patch.ClearProTierExpiry {
		sets = append(sets, "pro_tier_expiry = NULL")
	} else if patch.ProTierExpiry != nil {
		sets = append(sets, "pro_tier_expiry = ?")
		args = append(args, patch.ProTierExpiry.UnixMilli())
	}
	sets = append(sets, "version = version + 1", "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), userID)

	query := "UPDATE accounts SET " + strings.Join(sets, ", ") + " WHERE user_id = ?"

	return r.mutate(ctx, "patch account", userID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.db.Rebind(query), args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errors.NotFound("Account")
		}
		return nil
	})
}

// Increment atomically adds delta to field, refusing results below zero and
// deltas larger than account.MaxAdjustment
func (r *AccountRepository) Increment(ctx context.Context, userID string, field account.Field, delta int64, reference string) (*account.Account, error) {
	col, ok := incrementColumns[field]
	if !ok {
		return nil, errors.ValidationError("Unsupported field", map[string]string{"field": string(field)})
	}
	if delta > account.MaxAdjustment || delta < -account.MaxAdjustment {
		return nil, errors.ValidationError("Delta out of range",
			map[string]interface{}{"field": string(field), "delta": delta, "max": account.MaxAdjustment})
	}
	if err := r.ensureCanonical(ctx, userID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE accounts SET %[1]s = %[1]s + ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND %[1]s + ? >= 0
		RETURNING coins`, col)

	return r.mutate(ctx, "increment "+col, userID, func(tx *sql.Tx) error {
		var coins int64
		err := tx.QueryRowContext(ctx, r.db.Rebind(query), delta, time.Now().UnixMilli(), userID, delta).Scan(&coins)
		if stderrors.Is(err, sql.ErrNoRows) {
			found, ferr := r.exists(ctx, tx, userID)
			if ferr != nil {
				return ferr
			}
			if !found {
				return errors.NotFound("Account")
			}
			return errors.ValidationError("Increment would make the field negative",
				map[string]interface{}{"field": string(field), "delta": delta})
		}
		if err != nil {
			return err
		}

		if field == account.FieldCoins && delta != 0 {
			return r.record(ctx, tx, userID, account.TxAdjustment, delta, coins, reference)
		}
		return nil
	})
}

// Subscribe registers onChange with the feed
func (r *AccountRepository) Subscribe(userID string, onChange func(*account.Account)) account.Handle {
	return r.broker.Subscribe(userID, onChange)
}

// ApplyDailyGrant tops coins up to the allowance, resets both reward
// counters and refreshes the tier projection in one statement, conditioned
// on the stored reward date differing from today. The grant size is computed
// from the pre-update balance inside the same statement.
func (r *AccountRepository) ApplyDailyGrant(ctx context.Context, userID string, g account.DailyGrant) (*account.Account, bool, error) {
	if err := r.ensureCanonical(ctx, userID); err != nil {
		return nil, false, err
	}
	tier, expiry := projectionArgs(g.Projection)

	snap, err := r.mutate(ctx, "apply daily grant", userID, func(tx *sql.Tx) error {
		var coins, granted int64
		err := tx.QueryRowContext(ctx, r.db.Rebind(`
			UPDATE accounts SET
				last_daily_grant = CASE WHEN coins < ? THEN ? - coins ELSE 0 END,
				coins = CASE WHEN coins < ? THEN ? ELSE coins END,
				ads_count = 0, ads_date = ?,
				shares_count = 0, shares_date = ?,
				last_coin_reward_date = ?,
				pro_tier = ?, pro_tier_expiry = ?,
				version = version + 1, updated_at = ?
			WHERE user_id = ? AND last_coin_reward_date <> ?
			RETURNING coins, last_daily_grant
		`),
			g.Allowance, g.Allowance, g.Allowance, g.Allowance,
			g.Today, g.Today, g.Today,
			tier, expiry, time.Now().UnixMilli(),
			userID, g.Today,
		).Scan(&coins, &granted)
		if stderrors.Is(err, sql.ErrNoRows) {
			return r.noChangeOrMissing(ctx, tx, userID)
		}
		if err != nil {
			return err
		}

		if granted > 0 {
			return r.record(ctx, tx, userID, account.TxDailyGrant, granted, coins, g.Today)
		}
		return nil
	})
	if stderrors.Is(err, errNoChange) {
		acct, gerr := r.Get(ctx, userID)
		return acct, false, gerr
	}
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// ClaimReward credits the reward only while today's count is under the
// limit. The rollover branch (stored date not today) writes count 1 in the
// same statement, so concurrent claims cannot skip the boundary.
func (r *AccountRepository) ClaimReward(ctx context.Context, userID string, kind account.RewardKind, today string) (*account.Account, bool, error) {
	cols, ok := rewardColumns[kind]
	if !ok {
		return nil, false, errors.ValidationError("Unknown reward", map[string]string{"kind": string(kind)})
	}
	if err := r.ensureCanonical(ctx, userID); err != nil {
		return nil, false, err
	}
	rule := kind.Rule()

	query := fmt.Sprintf(`
		UPDATE accounts SET
			coins = coins + ?,
			%[1]s = CASE WHEN %[2]s = ? THEN %[1]s + 1 ELSE 1 END,
			%[2]s = ?,
			version = version + 1,
			updated_at = ?
		WHERE user_id = ? AND (%[2]s <> ? OR %[1]s < ?)
		RETURNING coins`, cols[0], cols[1])

	snap, err := r.mutate(ctx, "claim "+string(kind)+" reward", userID, func(tx *sql.Tx) error {
		var coins int64
		err := tx.QueryRowContext(ctx, r.db.Rebind(query),
			rule.Coins, today, today, time.Now().UnixMilli(),
			userID, today, rule.DailyLimit,
		).Scan(&coins)
		if stderrors.Is(err, sql.ErrNoRows) {
			return r.noChangeOrMissing(ctx, tx, userID)
		}
		if err != nil {
			return err
		}
		return r.record(ctx, tx, userID, account.TxKindForReward(kind), rule.Coins, coins, today)
	})
	if stderrors.Is(err, errNoChange) {
		acct, gerr := r.Get(ctx, userID)
		return acct, false, gerr
	}
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// Spend debits req.Amount if the balance covers it, and optionally records
// a history entry in the same transaction.
func (r *AccountRepository) Spend(ctx context.Context, userID string, req account.SpendRequest) (*account.Account, error) {
	if err := r.ensureCanonical(ctx, userID); err != nil {
		return nil, err
	}
	kind := req.Kind
	if kind == "" {
		kind = account.TxSpend
	}
	now := time.Now().UnixMilli()

	return r.mutate(ctx, "spend coins", userID, func(tx *sql.Tx) error {
		var coins int64
		if req.Unlimited {
			err := tx.QueryRowContext(ctx, r.db.Rebind(`
				UPDATE accounts SET version = version + 1, updated_at = ?
				WHERE user_id = ?
				RETURNING coins
			`), now, userID).Scan(&coins)
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFound("Account")
			}
			if err != nil {
				return err
			}
		} else {
			err := tx.QueryRowContext(ctx, r.db.Rebind(`
				UPDATE accounts SET coins = coins - ?, version = version + 1, updated_at = ?
				WHERE user_id = ? AND coins >= ?
				RETURNING coins
			`), req.Amount, now, userID, req.Amount).Scan(&coins)
			if stderrors.Is(err, sql.ErrNoRows) {
				var balance int64
				berr := tx.QueryRowContext(ctx, r.db.Rebind(`SELECT coins FROM accounts WHERE user_id = ?`), userID).Scan(&balance)
				if stderrors.Is(berr, sql.ErrNoRows) {
					return errors.NotFound("Account")
				}
				if berr != nil {
					return berr
				}
				return errors.InsufficientFunds(balance, req.Amount)
			}
			if err != nil {
				return err
			}
			if req.Amount > 0 {
				if err := r.record(ctx, tx, userID, kind, -req.Amount, coins, req.Reference); err != nil {
					return err
				}
			}
		}

		if req.Record == nil {
			return nil
		}
		if _, err := r.insertSaved(ctx, tx, userID, account.ListHistory, *req.Record, now); err != nil {
			return err
		}
		return r.trimHistory(ctx, tx, userID)
	})
}

// AddFavorite prepends prompt to favorites
func (r *AccountRepository) AddFavorite(ctx context.Context, userID string, prompt account.SavedPrompt) (*account.Account, error) {
	if err := r.ensureCanonical(ctx, userID); err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()

	return r.mutate(ctx, "add favorite", userID, func(tx *sql.Tx) error {
		if err := r.bumpVersion(ctx, tx, userID, now); err != nil {
			return err
		}
		inserted, err := r.insertSaved(ctx, tx, userID, account.ListFavorites, prompt, now)
		if err != nil {
			return err
		}
		if !inserted {
			return errors.AlreadyExists("Favorite")
		}
		return nil
	})
}

// RemoveSaved deletes one prompt from list
func (r *AccountRepository) RemoveSaved(ctx context.Context, userID string, list account.List, promptID string) (*account.Account, error) {
	if err := r.ensureCanonical(ctx, userID); err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()

	return r.mutate(ctx, "remove "+string(list)+" entry", userID, func(tx *sql.Tx) error {
		if err := r.bumpVersion(ctx, tx, userID, now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, r.db.Rebind(`
			DELETE FROM saved_prompts WHERE user_id = ? AND list = ? AND prompt_id = ?
		`), userID, string(list), promptID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errors.NotFound("Prompt")
		}
		return nil
	})
}

// ListTransactions returns up to limit ledger entries, newest first
func (r *AccountRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]*account.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT id, user_id, kind, amount, balance_after, reference, created_at
		FROM coin_transactions
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, r.fail("list transactions", err)
	}
	defer rows.Close()

	txs := []*account.Transaction{}
	for rows.Next() {
		var (
			t         account.Transaction
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &kind, &t.Amount, &t.BalanceAfter, &t.Reference, &createdAt); err != nil {
			return nil, r.fail("scan transaction", err)
		}
		t.Kind = account.TxKind(kind)
		t.CreatedAt = time.UnixMilli(createdAt).UTC()
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list transactions", err)
	}
	return txs, nil
}

// ImportLegacy stores a raw legacy document for normalization on first read.
// Existing accounts are left alone; inserted reports whether a row was added.
func (r *AccountRepository) ImportLegacy(ctx context.Context, userID string, payload []byte) (inserted bool, err error) {
	now := time.Now().UnixMilli()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO accounts (user_id, legacy_payload, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`), userID, string(payload), now, now)
	if err != nil {
		return false, r.fail("import legacy account", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.fail("import legacy account", err)
	}
	return n > 0, nil
}

// ensureCanonical normalizes a legacy row before anything else touches it
func (r *AccountRepository) ensureCanonical(ctx context.Context, userID string) error {
	var payload sql.NullString
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT legacy_payload FROM accounts WHERE user_id = ?`), userID).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return r.fail("load account", err)
	}
	if !payload.Valid {
		return nil
	}
	return r.normalizeLegacy(ctx, userID, payload.String)
}

// normalizeLegacy rewrites a legacy row into the canonical columns. The
// update is conditioned on the payload still being present, so concurrent
// first reads normalize exactly once.
func (r *AccountRepository) normalizeLegacy(ctx context.Context, userID, payload string) error {
	log := r.logger.WithUser(userID)

	acct, err := legacy.Normalize(userID, []byte(payload), r.loc)
	if err != nil {
		log.WithError(err).Warn("Discarding unreadable legacy record")
		acct = &account.Account{UserID: userID}
	}

	var tier any
	if acct.ProTier != nil {
		tier = string(*acct.ProTier)
	}
	var expiry any
	if acct.ProTierExpiry != nil {
		expiry = acct.ProTierExpiry.UnixMilli()
	}
	now := time.Now().UnixMilli()

	_, err = r.mutate(ctx, "normalize legacy account", userID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.db.Rebind(`
			UPDATE accounts SET
				coins = ?, last_coin_reward_date = ?,
				ads_count = ?, ads_date = ?,
				shares_count = ?, shares_date = ?,
				pro_tier = ?, pro_tier_expiry = ?,
				legacy_payload = NULL,
				version = version + 1, updated_at = ?
			WHERE user_id = ? AND legacy_payload IS NOT NULL
		`),
			acct.Coins, acct.LastCoinRewardDate,
			acct.AdsWatchedToday.Count, acct.AdsWatchedToday.Date,
			acct.SharesToday.Count, acct.SharesToday.Date,
			tier, expiry, now, userID,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errNoChange
		}
		return r.insertLists(ctx, tx, userID, acct.Favorites, acct.History, now)
	})
	if stderrors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"coins":     acct.Coins,
		"favorites": len(acct.Favorites),
		"history":   len(acct.History),
	}).Info("Legacy account normalized")
	return nil
}

// mutate runs fn and reads the committed row back in one transaction, then
// publishes the snapshot.
func (r *AccountRepository) mutate(ctx context.Context, op, userID string, fn func(tx *sql.Tx) error) (*account.Account, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery(op, "accounts", time.Since(start)) }()

	var snap *account.Account
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		s, err := r.snapshot(ctx, tx, userID)
		if err != nil {
			return err
		}
		snap = s
		return nil
	})
	if err != nil {
		return nil, r.fail(op, err)
	}

	r.publish(snap)
	return snap, nil
}

func (r *AccountRepository) publish(acct *account.Account) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.broker.Publish(ctx, acct); err != nil {
		r.logger.WithUser(acct.UserID).WithError(err).Warn("Failed to publish account change")
	}
}

// fail maps driver errors onto the error taxonomy
func (r *AccountRepository) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, errNoChange) {
		return err
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound("Account")
	}
	return errors.StoreUnavailable("Failed to "+op, err)
}

func (r *AccountRepository) snapshot(ctx context.Context, q querier, userID string) (*account.Account, error) {
	a, err := scanAccount(q.QueryRowContext(ctx, r.db.Rebind(`SELECT `+accountColumns+` FROM accounts WHERE user_id = ?`), userID))
	if err != nil {
		return nil, err
	}
	if a.History, err = r.listSaved(ctx, q, userID, account.ListHistory); err != nil {
		return nil, err
	}
	if a.Favorites, err = r.listSaved(ctx, q, userID, account.ListFavorites); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) listSaved(ctx context.Context, q querier, userID string, list account.List) ([]account.SavedPrompt, error) {
	rows, err := q.QueryContext(ctx, r.db.Rebind(`
		SELECT payload FROM saved_prompts
		WHERE user_id = ? AND list = ?
		ORDER BY id DESC
	`), userID, string(list))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prompts := []account.SavedPrompt{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p account.SavedPrompt
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode saved prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// insertLists stores favorites and history given newest first; rows are
// inserted oldest first so id order matches.
func (r *AccountRepository) insertLists(ctx context.Context, tx *sql.Tx, userID string, favorites, history []account.SavedPrompt, now int64) error {
	for i := len(favorites) - 1; i >= 0; i-- {
		if _, err := r.insertSaved(ctx, tx, userID, account.ListFavorites, favorites[i], now); err != nil {
			return err
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if _, err := r.insertSaved(ctx, tx, userID, account.ListHistory, history[i], now); err != nil {
			return err
		}
	}
	if len(history) > account.HistoryLimit {
		return r.trimHistory(ctx, tx, userID)
	}
	return nil
}

func (r *AccountRepository) insertSaved(ctx context.Context, tx *sql.Tx, userID string, list account.List, p account.SavedPrompt, now int64) (bool, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode saved prompt: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO saved_prompts (user_id, list, prompt_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, list, prompt_id) DO NOTHING
	`), userID, string(list), p.ID, string(payload), now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *AccountRepository) trimHistory(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM saved_prompts
		WHERE user_id = ? AND list = 'history' AND id NOT IN (
			SELECT id FROM saved_prompts
			WHERE user_id = ? AND list = 'history'
			ORDER BY id DESC
			LIMIT ?
		)
	`), userID, userID, account.HistoryLimit)
	return err
}

func (r *AccountRepository) bumpVersion(ctx context.Context, tx *sql.Tx, userID string, now int64) error {
	res, err := tx.ExecContext(ctx, r.db.Rebind(`
		UPDATE accounts SET version = version + 1, updated_at = ? WHERE user_id = ?
	`), now, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return errors.NotFound("Account")
	}
	return nil
}

func (r *AccountRepository) record(ctx context.Context, tx *sql.Tx, userID string, kind account.TxKind, amount, balance int64, reference string) error {
	_, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO coin_transactions (user_id, kind, amount, balance_after, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), userID, string(kind), amount, balance, reference, time.Now().UnixMilli())
	return err
}

func (r *AccountRepository) exists(ctx context.Context, q querier, userID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM accounts WHERE user_id = ?`), userID).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// noChangeOrMissing distinguishes an unmatched condition from a missing row
func (r *AccountRepository) noChangeOrMissing(ctx context.Context, q querier, userID string) error {
	found, err := r.exists(ctx, q, userID)
	if err != nil {
		return err
	}
	if !found {
		return errors.NotFound("Account")
	}
	return errNoChange
}

func projectionArgs(p account.Projection) (tier, expiry any) {
	tier = string(p.Tier)
	if p.Tier == "" {
		tier = string(account.TierNone)
	}
	if p.Expiry != nil {
		expiry = p.Expiry.UnixMilli()
	}
	return tier, expiry
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var (
		a                    account.Account
		tier                 sql.NullString
		expiry               sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&a.UserID, &a.Coins, &a.LastCoinRewardDate,
		&a.AdsWatchedToday.Count, &a.AdsWatchedToday.Date,
		&a.SharesToday.Count, &a.SharesToday.Date,
		&tier, &expiry, &a.LastDailyGrant,
		&a.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tier.Valid {
		t := account.ProTier(tier.String)
		a.ProTier = &t
	}
	if expiry.Valid {
		e := time.UnixMilli(expiry.Int64).UTC()
		a.ProTierExpiry = &e
	}
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	a.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &a, nil
}
