package account

import (
	"context"
	"encoding/json"
)

// Outcome describes what a reconciliation did
type Outcome string

// Reconciliation outcomes
const (
	OutcomeCreated   Outcome = "created"
	OutcomeGranted   Outcome = "granted"
	OutcomeUnchanged Outcome = "unchanged"
)

// Reconciliation is the result of a daily reconciliation run
type Reconciliation struct {
	Account *Account `json:"account"`
	Outcome Outcome  `json:"outcome"`
	Granted int64    `json:"granted"`
}

// RewardResult is the result of a reward claim. Granted false means the
// daily limit was reached; it is not an error.
type RewardResult struct {
	Granted bool     `json:"granted"`
	Account *Account `json:"account"`
}

// GenerationDraft is what the client assembled for one generation
type GenerationDraft struct {
	Mode            Mode
	Prompt          string
	PlatformName    string
	PlatformIcon    string
	PlatformURL     string
	BaseIdea        string
	Settings        json.RawMessage
	ProTextSettings json.RawMessage
}

// Service defines the coin ledger operations
type Service interface {
	// Reconcile creates the account if needed and applies at most one daily grant per day
	Reconcile(ctx context.Context, userID string) (*Reconciliation, error)

	// Get returns the account
	Get(ctx context.Context, userID string) (*Account, error)

	// Watch delivers the current state, then every committed state, until the handle is cancelled
	Watch(ctx context.Context, userID string, onChange func(*Account)) (Handle, error)

	// WatchAd claims the ad reward
	WatchAd(ctx context.Context, userID string) (*RewardResult, error)

	// ShareReward claims the share reward
	ShareReward(ctx context.Context, userID string) (*RewardResult, error)

	// Spend debits amount coins; gold tier spends without a debit
	Spend(ctx context.Context, userID string, amount int64) (*Account, error)

	// Adjust applies a trusted atomic increment
	Adjust(ctx context.Context, userID string, field Field, delta int64, reason string) (*Account, error)

	// Transactions lists ledger entries, newest first
	Transactions(ctx context.Context, userID string, limit int) ([]*Transaction, error)
}

// PromptService manages generation spending, history and favorites
type PromptService interface {
	// RecordGeneration charges the mode's cost and prepends the prompt to history
	RecordGeneration(ctx context.Context, userID string, draft GenerationDraft) (*SavedPrompt, *Account, error)

	// History returns history, newest first
	History(ctx context.Context, userID string) ([]SavedPrompt, error)

	// Favorites returns favorites, newest first
	Favorites(ctx context.Context, userID string) ([]SavedPrompt, error)

	// AddFavorite copies a history entry into favorites
	AddFavorite(ctx context.Context, userID, promptID, name string) (*SavedPrompt, error)

	// RemoveFavorite deletes a favorite by id
	RemoveFavorite(ctx context.Context, userID, promptID string) error

	// RemoveHistory deletes a history entry by id
	RemoveHistory(ctx context.Context, userID, promptID string) error
}
