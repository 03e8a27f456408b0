package client

import (
	"encoding/json"
	"time"
)

// DailyCounter counts reward claims on one calendar date
type DailyCounter struct {
	Count int    `json:"count"`
	Date  string `json:"date"`
}

// SavedPrompt is a generated prompt in history or favorites
type SavedPrompt struct {
	ID              string          `json:"id"`
	Name            string          `json:"name,omitempty"`
	Prompt          string          `json:"prompt"`
	PlatformName    string          `json:"platformName,omitempty"`
	PlatformIcon    string          `json:"platformIcon,omitempty"`
	PlatformURL     string          `json:"platformUrl,omitempty"`
	BaseIdea        string          `json:"baseIdea,omitempty"`
	Timestamp       int64           `json:"timestamp"` // unix milliseconds
	Mode            string          `json:"mode"`      // image, video, text
	Settings        json.RawMessage `json:"settings,omitempty"`
	ProTextSettings json.RawMessage `json:"proTextSettings,omitempty"`
}

// Account is the user's coin ledger
type Account struct {
	UserID             string        `json:"userId"`
	Coins              int64         `json:"coins"`
	LastCoinRewardDate string        `json:"lastCoinRewardDate"`
	AdsWatchedToday    DailyCounter  `json:"adsWatchedToday"`
	SharesToday        DailyCounter  `json:"sharesToday"`
	Favorites          []SavedPrompt `json:"favorites"`
	History            []SavedPrompt `json:"history"`
	ProTier            *string       `json:"proTier"` // none, bronze, silver, gold
	ProTierExpiry      *time.Time    `json:"proTierExpiry"`
	LastDailyGrant     int64         `json:"lastDailyGrant"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Tier returns the cached tier, or "none"
func (a *Account) Tier() string {
	if a.ProTier == nil {
		return "none"
	}
	return *a.ProTier
}

// Session is the result of starting a session
type Session struct {
	Account *Account `json:"account"`
	Outcome string   `json:"outcome"` // created, granted, unchanged
	Granted int64    `json:"granted"`
}

// RewardResult is the result of a reward claim. Granted false means the
// daily limit was reached.
type RewardResult struct {
	Granted bool  `json:"granted"`
	Coins   int64 `json:"coins"`
}

// Transaction is one ledger entry
type Transaction struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"userId"`
	Kind         string    `json:"kind"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balanceAfter"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GenerationRequest records a generated prompt
type GenerationRequest struct {
	Mode            string          `json:"mode"`
	Prompt          string          `json:"prompt"`
	PlatformName    string          `json:"platformName,omitempty"`
	PlatformIcon    string          `json:"platformIcon,omitempty"`
	PlatformURL     string          `json:"platformUrl,omitempty"`
	BaseIdea        string          `json:"baseIdea,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
	ProTextSettings json.RawMessage `json:"proTextSettings,omitempty"`
}

// Generation is the saved prompt and the balance after the charge
type Generation struct {
	Prompt *SavedPrompt `json:"prompt"`
	Coins  int64        `json:"coins"`
}

// Subscription is the caller's current plan
type Subscription struct {
	Plan    string     `json:"plan"`
	Active  bool       `json:"active"`
	StartAt *time.Time `json:"startAt,omitempty"`
	EndAt   *time.Time `json:"endAt,omitempty"`
	OrderID string     `json:"orderId,omitempty"`
}

// Entitlement is what the caller's plan allows right now
type Entitlement struct {
	Plan           string     `json:"plan"`
	IsPremium      bool       `json:"isPremium"`
	ShowAds        bool       `json:"showAds"`
	DailyAllowance int64      `json:"dailyAllowance"`
	UnlimitedSpend bool       `json:"unlimitedSpend"`
	ExpiresAt      *time.Time `json:"expiresAt"`
}

// HealthResponse is the body of /healthz and /readyz
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// ServerStatus combines liveness and readiness
type ServerStatus struct {
	Live     bool          `json:"live"`
	Ready    bool          `json:"ready"`
	Database string        `json:"database,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Latency  time.Duration `json:"latencyNs"`
}
