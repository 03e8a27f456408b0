package subscription

import "time"

// Plan is a subscription plan identifier
type Plan string

// Plans
const (
	PlanFree Plan = "free"
	PlanLite Plan = "lite"
	PlanPlus Plan = "plus"
	PlanPro  Plan = "pro"
)

// Plan durations. Activation always restarts the clock.
const (
	LiteDuration = 7 * 24 * time.Hour
	PlusDuration = 30 * 24 * time.Hour
	ProDuration  = 90 * 24 * time.Hour
)

// Daily coin allowances per plan
const (
	FreeAllowance int64 = 100
	LiteAllowance int64 = 1000
	PlusAllowance int64 = 5000
	ProAllowance  int64 = 999999
)

// IsValid reports whether p is a known plan
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanLite, PlanPlus, PlanPro:
		return true
	}
	return false
}

// IsPaid reports whether p can be activated by a payment
func (p Plan) IsPaid() bool {
	return p == PlanLite || p == PlanPlus || p == PlanPro
}

// Duration returns how long an activation of p lasts. Free has no duration.
func (p Plan) Duration() time.Duration {
	switch p {
	case PlanLite:
		return LiteDuration
	case PlanPlus:
		return PlusDuration
	case PlanPro:
		return ProDuration
	}
	return 0
}

// DailyAllowance returns the number of coins the daily top-up guarantees.
// Unknown plans get the free allowance.
func (p Plan) DailyAllowance() int64 {
	switch p {
	case PlanLite:
		return LiteAllowance
	case PlanPlus:
		return PlusAllowance
	case PlanPro:
		return ProAllowance
	}
	return FreeAllowance
}

// UnlimitedSpend reports whether debits skip the balance check on p
func (p Plan) UnlimitedSpend() bool {
	return p == PlanPro
}

// Subscription is the authoritative record of a user's paid plan
type Subscription struct {
	UserID    string    `json:"userId"`
	Plan      Plan      `json:"plan"`
	StartAt   time.Time `json:"startAt"`
	EndAt     time.Time `json:"endAt"`
	OrderID   string    `json:"orderId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsActive reports whether the subscription still entitles the user at now
func (s *Subscription) IsActive(now time.Time) bool {
	return s != nil && s.EndAt.After(now)
}

// PlanOf returns the plan of an active subscription, or free for nil
func PlanOf(s *Subscription) Plan {
	if s == nil {
		return PlanFree
	}
	return s.Plan
}

// Entitlement is what the user may do right now, derived from the
// subscription. ShowAds drives the client's ad-script loading.
type Entitlement struct {
	Plan           Plan       `json:"plan"`
	IsPremium      bool       `json:"isPremium"`
	ShowAds        bool       `json:"showAds"`
	DailyAllowance int64      `json:"dailyAllowance"`
	UnlimitedSpend bool       `json:"unlimitedSpend"`
	ExpiresAt      *time.Time `json:"expiresAt"`
}

// EntitlementFor builds the entitlement of an active subscription (or nil)
func EntitlementFor(s *Subscription) *Entitlement {
	plan := PlanOf(s)
	e := &Entitlement{
		Plan:           plan,
		IsPremium:      plan != PlanFree,
		DailyAllowance: plan.DailyAllowance(),
		UnlimitedSpend: plan.UnlimitedSpend(),
	}
	e.ShowAds = !e.IsPremium
	if s != nil {
		end := s.EndAt
		e.ExpiresAt = &end
	}
	return e
}
