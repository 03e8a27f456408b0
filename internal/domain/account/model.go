package account

import (
	"encoding/json"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
)

// DateLayout is the calendar date format used for every per-day field
const DateLayout = "2006-01-02"

// HistoryLimit caps the history list; older entries are dropped.
const HistoryLimit = 50

// Today returns the calendar date of now in loc
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// ProTier is the cached, display-only projection of the subscription plan
type ProTier string

// Tiers
const (
	TierNone   ProTier = "none"
	TierBronze ProTier = "bronze"
	TierSilver ProTier = "silver"
	TierGold   ProTier = "gold"
)

// IsValid reports whether t is a known tier
func (t ProTier) IsValid() bool {
	switch t {
	case TierNone, TierBronze, TierSilver, TierGold:
		return true
	}
	return false
}

// TierForPlan maps a plan onto its tier
func TierForPlan(p subscription.Plan) ProTier {
	switch p {
	case subscription.PlanLite:
		return TierBronze
	case subscription.PlanPlus:
		return TierSilver
	case subscription.PlanPro:
		return TierGold
	}
	return TierNone
}

// Projection is the tier and expiry cached on the account
type Projection struct {
	Tier   ProTier
	Expiry *time.Time
}

// ProjectionOf derives the cached tier fields from an active subscription (or nil)
func ProjectionOf(sub *subscription.Subscription) Projection {
	if sub == nil {
		return Projection{Tier: TierNone}
	}
	end := sub.EndAt
	return Projection{Tier: TierForPlan(sub.Plan), Expiry: &end}
}

// DailyCounter counts reward claims on one calendar date
type DailyCounter struct {
	Count int    `json:"count"`
	Date  string `json:"date"`
}

// CountOn returns the count if the counter belongs to today, zero otherwise
func (c DailyCounter) CountOn(today string) int {
	if c.Date != today {
		return 0
	}
	return c.Count
}

// Mode is the kind of prompt a generation produced
type Mode string

// Modes
const (
	ModeImage Mode = "image"
	ModeVideo Mode = "video"
	ModeText  Mode = "text"
)

// IsValid reports whether m is a known mode
func (m Mode) IsValid() bool {
	return m == ModeImage || m == ModeVideo || m == ModeText
}

// Cost returns the coins one generation in mode m costs
func (m Mode) Cost() int64 {
	switch m {
	case ModeImage:
		return 10
	case ModeVideo:
		return 20
	case ModeText:
		return 30
	}
	return 0
}

// SavedPrompt is an immutable generated prompt kept in history or favorites
type SavedPrompt struct {
	ID              string          `json:"id"`
	Name            string          `json:"name,omitempty"`
	Prompt          string          `json:"prompt"`
	PlatformName    string          `json:"platformName,omitempty"`
	PlatformIcon    string          `json:"platformIcon,omitempty"`
	PlatformURL     string          `json:"platformUrl,omitempty"`
	BaseIdea        string          `json:"baseIdea,omitempty"`
	Timestamp       int64           `json:"timestamp"` // unix milliseconds
	Mode            Mode            `json:"mode"`
	Settings        json.RawMessage `json:"settings,omitempty"`
	ProTextSettings json.RawMessage `json:"proTextSettings,omitempty"`
}

// Account is the per-user coin ledger record
type Account struct {
	UserID             string        `json:"userId"`
	Coins              int64         `json:"coins"`
	LastCoinRewardDate string        `json:"lastCoinRewardDate"`
	AdsWatchedToday    DailyCounter  `json:"adsWatchedToday"`
	SharesToday        DailyCounter  `json:"sharesToday"`
	Favorites          []SavedPrompt `json:"favorites"`
	History            []SavedPrompt `json:"history"`
	ProTier            *ProTier      `json:"proTier"`
	ProTierExpiry      *time.Time    `json:"proTierExpiry"`
	// LastDailyGrant is the number of coins the most recent top-up added.
	LastDailyGrant int64     `json:"lastDailyGrant"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Projection returns the cached tier fields
func (a *Account) Projection() Projection {
	p := Projection{Expiry: a.ProTierExpiry}
	if a.ProTier != nil {
		p.Tier = *a.ProTier
	}
	return p
}

// ProjectionMatches reports whether the cached tier fields equal p
func (a *Account) ProjectionMatches(p Projection) bool {
	cur := a.Projection()
	if a.ProTier == nil || cur.Tier != p.Tier {
		return false
	}
	switch {
	case cur.Expiry == nil && p.Expiry == nil:
		return true
	case cur.Expiry == nil || p.Expiry == nil:
		return false
	}
	return cur.Expiry.UnixMilli() == p.Expiry.UnixMilli()
}

// FindHistory returns the history entry with id
func (a *Account) FindHistory(id string) (SavedPrompt, bool) {
	for _, p := range a.History {
		if p.ID == id {
			return p, true
		}
	}
	return SavedPrompt{}, false
}

// RewardKind identifies a rate-limited reward
type RewardKind string

// Reward kinds
const (
	RewardAd    RewardKind = "ad"
	RewardShare RewardKind = "share"
)

// RewardRule is the daily limit and payout of a reward
type RewardRule struct {
	DailyLimit int
	Coins      int64
}

// Rule returns the rule for k
func (k RewardKind) Rule() RewardRule {
	switch k {
	case RewardAd:
		return RewardRule{DailyLimit: 10, Coins: 10}
	case RewardShare:
		return RewardRule{DailyLimit: 5, Coins: 15}
	}
	return RewardRule{}
}

// IsValid reports whether k is a known reward
func (k RewardKind) IsValid() bool {
	return k == RewardAd || k == RewardShare
}

// Counter returns the counter k tracks on a
func (k RewardKind) Counter(a *Account) DailyCounter {
	if k == RewardShare {
		return a.SharesToday
	}
	return a.AdsWatchedToday
}

// Field names a column that supports atomic increments
type Field string

// Incrementable fields
const (
	FieldCoins       Field = "coins"
	FieldAdsCount    Field = "adsWatchedToday.count"
	FieldSharesCount Field = "sharesToday.count"
)

// MaxAdjustment bounds the magnitude of a single increment
const MaxAdjustment int64 = 1_000_000_000

// IsValid reports whether f supports increments
func (f Field) IsValid() bool {
	return f == FieldCoins || f == FieldAdsCount || f == FieldSharesCount
}

// List selects one of the saved prompt lists
type List string

// Lists
const (
	ListHistory   List = "history"
	ListFavorites List = "favorites"
)

// TxKind classifies a ledger entry
type TxKind string

// Ledger entry kinds
const (
	TxDailyGrant  TxKind = "daily_grant"
	TxAdReward    TxKind = "ad_reward"
	TxShareReward TxKind = "share_reward"
	TxSpend       TxKind = "spend"
	TxGeneration  TxKind = "generation"
	TxAdjustment  TxKind = "adjustment"
)

// TxKindForReward returns the ledger kind for a reward
func TxKindForReward(k RewardKind) TxKind {
	if k == RewardShare {
		return TxShareReward
	}
	return TxAdReward
}

// Transaction is one balance change, written with the change itself
type Transaction struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"userId"`
	Kind         TxKind    `json:"kind"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balanceAfter"`
	Reference    string    `json:"reference,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
