package dto

import (
	"encoding/json"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
)

// SessionResponse is returned when a client starts a session
type SessionResponse struct {
	Account *account.Account `json:"account"`
	Outcome string           `json:"outcome"`
	Granted int64            `json:"granted"`
}

// RewardResponse is the result of a reward claim
type RewardResponse struct {
	Granted bool  `json:"granted"`
	Coins   int64 `json:"coins"`
}

// SpendRequest represents a generic coin debit
type SpendRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// GenerationRequest records one generated prompt
type GenerationRequest struct {
	Mode            string          `json:"mode" validate:"required,oneof=image video text"`
	Prompt          string          `json:"prompt" validate:"required,max=20000"`
	PlatformName    string          `json:"platformName,omitempty" validate:"max=200"`
	PlatformIcon    string          `json:"platformIcon,omitempty" validate:"max=2048"`
	PlatformURL     string          `json:"platformUrl,omitempty" validate:"omitempty,url"`
	BaseIdea        string          `json:"baseIdea,omitempty" validate:"max=5000"`
	Settings        json.RawMessage `json:"settings,omitempty"`
	ProTextSettings json.RawMessage `json:"proTextSettings,omitempty"`
}

// Draft converts the request to the domain draft
func (r GenerationRequest) Draft() account.GenerationDraft {
	return account.GenerationDraft{
		Mode:            account.Mode(r.Mode),
		Prompt:          r.Prompt,
		PlatformName:    r.PlatformName,
		PlatformIcon:    r.PlatformIcon,
		PlatformURL:     r.PlatformURL,
		BaseIdea:        r.BaseIdea,
		Settings:        r.Settings,
		ProTextSettings: r.ProTextSettings,
	}
}

// GenerationResponse carries the saved prompt and the balance after the charge
type GenerationResponse struct {
	Prompt *account.SavedPrompt `json:"prompt"`
	Coins  int64                `json:"coins"`
}

// AddFavoriteRequest copies a history entry into favorites
type AddFavoriteRequest struct {
	PromptID string `json:"promptId" validate:"required,max=128"`
	Name     string `json:"name,omitempty" validate:"max=120"`
}

// SubscriptionDTO is the caller's current plan. Plan is free and Active is
// false when no subscription is in force.
type SubscriptionDTO struct {
	Plan    subscription.Plan `json:"plan"`
	Active  bool              `json:"active"`
	StartAt *time.Time        `json:"startAt,omitempty"`
	EndAt   *time.Time        `json:"endAt,omitempty"`
	OrderID string            `json:"orderId,omitempty"`
}

// NewSubscriptionDTO maps an active subscription (or nil)
func NewSubscriptionDTO(s *subscription.Subscription) SubscriptionDTO {
	if s == nil {
		return SubscriptionDTO{Plan: subscription.PlanFree}
	}
	start, end := s.StartAt, s.EndAt
	return SubscriptionDTO{
		Plan:    s.Plan,
		Active:  true,
		StartAt: &start,
		EndAt:   &end,
		OrderID: s.OrderID,
	}
}

// ActivateSubscriptionRequest is sent by the payment backend after a confirmed capture
type ActivateSubscriptionRequest struct {
	UserID  string `json:"userId" validate:"required,userid"`
	Plan    string `json:"plan" validate:"required,oneof=lite plus pro"`
	OrderID string `json:"orderId,omitempty" validate:"max=128"`
}

// AdjustRequest applies a trusted increment to one account field
type AdjustRequest struct {
	Field  string `json:"field" validate:"required,oneof=coins adsWatchedToday.count sharesToday.count"`
	Delta  int64  `json:"delta" validate:"required,gte=-1000000000,lte=1000000000"`
	Reason string `json:"reason,omitempty" validate:"max=200"`
}
