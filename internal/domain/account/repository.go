package account

import (
	"context"
	"time"
)

// Handle is a live subscription to an account. Cancel is idempotent; once it
// returns no further callback starts.
type Handle interface {
	Cancel()
}

// Patch names the fields a partial update touches; nil fields keep their
// stored value.
type Patch struct {
	ProTier            *ProTier
	ProTierExpiry      *time.Time
	ClearProTierExpiry bool
}

// IsEmpty reports whether the patch names no field
func (p Patch) IsEmpty() bool {
	return p.ProTier == nil && p.ProTierExpiry == nil && !p.ClearProTierExpiry
}

// PatchFor builds the patch that writes a projection
func PatchFor(p Projection) Patch {
	tier := p.Tier
	patch := Patch{ProTier: &tier}
	if p.Expiry != nil {
		patch.ProTierExpiry = p.Expiry
	} else {
		patch.ClearProTierExpiry = true
	}
	return patch
}

// DailyGrant is one rollover: top-up to Allowance, reset counters to Today
// and refresh the tier projection.
type DailyGrant struct {
	Today      string
	Allowance  int64
	Projection Projection
}

// SpendRequest debits Amount coins. Unlimited skips the balance check and
// the debit. Record, when set, is prepended to history in the same write.
type SpendRequest struct {
	Amount    int64
	Unlimited bool
	Kind      TxKind
	Reference string
	Record    *SavedPrompt
}

// Store is the durable per-user account record. Every mutation is a single
// atomic conditional write and returns the state it committed.
type Store interface {
	// Get returns the account, normalizing a legacy record on first read
	Get(ctx context.Context, userID string) (*Account, error)

	// Create inserts a new account; AlreadyExists if one is present
	Create(ctx context.Context, acct *Account) (*Account, error)

	// Patch merges the named fields
	Patch(ctx context.Context, userID string, patch Patch) (*Account, error)

	// Increment atomically adds delta to field; the result may not go below zero
	Increment(ctx context.Context, userID string, field Field, delta int64, reference string) (*Account, error)

	// Subscribe delivers every committed state of the account until cancelled
	Subscribe(userID string, onChange func(*Account)) Handle

	// ApplyDailyGrant applies a rollover when the stored reward date differs
	// from grant.Today. applied is false when today's grant was already made.
	ApplyDailyGrant(ctx context.Context, userID string, grant DailyGrant) (acct *Account, applied bool, err error)

	// ClaimReward credits kind's payout if today's count is under its limit.
	// A stale counter date counts as zero and restarts at one.
	ClaimReward(ctx context.Context, userID string, kind RewardKind, today string) (acct *Account, granted bool, err error)

	// Spend debits coins only if the balance covers the amount
	Spend(ctx context.Context, userID string, req SpendRequest) (*Account, error)

	// AddFavorite prepends a copy of prompt to favorites
	AddFavorite(ctx context.Context, userID string, prompt SavedPrompt) (*Account, error)

	// RemoveSaved deletes a prompt from a list by id
	RemoveSaved(ctx context.Context, userID string, list List, promptID string) (*Account, error)

	// ListTransactions returns the newest ledger entries first
	ListTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error)
}
