// Package legacy converts user documents from the old document store into
// the canonical account shape.
package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
)

// epochDate is used for counters whose last activity cannot be dated
const epochDate = "1970-01-01"

// document is the loosely-typed legacy user record. Fields observed with
// more than one shape stay raw.
type document struct {
	Coins               json.RawMessage   `json:"coins"`
	LastCoinRewardDate  json.RawMessage   `json:"lastCoinRewardDate"`
	AdsWatchedToday     json.RawMessage   `json:"adsWatchedToday"`
	LastAdWatched       json.RawMessage   `json:"lastAdWatched"`
	SharesToday         json.RawMessage   `json:"sharesToday"`
	LastShareRewardDate json.RawMessage   `json:"lastShareRewardDate"`
	Favorites           []json.RawMessage `json:"favorites"`
	History             []json.RawMessage `json:"history"`
	ProTier             json.RawMessage   `json:"proTier"`
	ProTierExpiry       json.RawMessage   `json:"proTierExpiry"`
}

type prompt struct {
	ID              json.RawMessage `json:"id"`
	Name            string          `json:"name"`
	Prompt          string          `json:"prompt"`
	PlatformName    string          `json:"platformName"`
	PlatformIcon    string          `json:"platformIcon"`
	PlatformURL     string          `json:"platformUrl"`
	BaseIdea        string          `json:"baseIdea"`
	Timestamp       json.RawMessage `json:"timestamp"`
	Mode            string          `json:"mode"`
	Settings        json.RawMessage `json:"settings"`
	ProTextSettings json.RawMessage `json:"proTextSettings"`
}

// Normalize parses a legacy document. Dates derived from timestamps use loc.
func Normalize(userID string, payload []byte, loc *time.Location) (*account.Account, error) {
	if loc == nil {
		loc = time.UTC
	}

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("legacy record %s: %w", userID, err)
	}

	acct := &account.Account{
		UserID:             userID,
		Coins:              parseCoins(doc.Coins),
		LastCoinRewardDate: parseDate(doc.LastCoinRewardDate, loc),
	}

	acct.AdsWatchedToday = parseCounter(doc.AdsWatchedToday, doc.LastAdWatched, loc)

	shareRef := doc.LastShareRewardDate
	if isNull(shareRef) {
		shareRef = doc.LastCoinRewardDate
	}
	acct.SharesToday = parseCounter(doc.SharesToday, shareRef, loc)

	acct.Favorites = parsePrompts(doc.Favorites, 0)
	acct.History = parsePrompts(doc.History, account.HistoryLimit)

	if !isNull(doc.ProTier) {
		var s string
		tier := account.TierNone
		if err := json.Unmarshal(doc.ProTier, &s); err == nil && account.ProTier(s).IsValid() {
			tier = account.ProTier(s)
		}
		acct.ProTier = &tier
	}
	if t, ok := parseTime(doc.ProTierExpiry); ok {
		acct.ProTierExpiry = &t
	}

	return acct, nil
}

// parseCounter accepts {count,date} as-is, or a bare number dated by ref
func parseCounter(raw, ref json.RawMessage, loc *time.Location) account.DailyCounter {
	if isNull(raw) {
		return account.DailyCounter{Date: epochDate}
	}

	raw = bytes.TrimSpace(raw)
	if raw[0] == '{' {
		var c struct {
			Count json.Number `json:"count"`
			Date  string      `json:"date"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return account.DailyCounter{Date: epochDate}
		}
		n, _ := c.Count.Float64()
		date := c.Date
		if date == "" {
			date = epochDate
		}
		return account.DailyCounter{Count: clampCount(n), Date: date}
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return account.DailyCounter{Date: epochDate}
	}
	date := parseDate(ref, loc)
	if date == "" {
		date = epochDate
	}
	return account.DailyCounter{Count: clampCount(n), Date: date}
}

func parseCoins(raw json.RawMessage) int64 {
	if isNull(raw) {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0
		}
		if n, err = strconv.ParseFloat(s, 64); err != nil {
			return 0
		}
	}
	if n <= 0 || math.IsNaN(n) {
		return 0
	}
	if n > math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(n)
}

func clampCount(n float64) int {
	if n <= 0 || math.IsNaN(n) {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// parseDate returns YYYY-MM-DD for a date string or any timestamp shape
func parseDate(raw json.RawMessage, loc *time.Location) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if _, err := time.Parse(account.DateLayout, s); err == nil {
			return s
		}
	}
	if t, ok := parseTime(raw); ok {
		return account.Today(t, loc)
	}
	return ""
}

// parseTime reads epoch milliseconds or seconds, RFC 3339 strings, and
// {seconds,nanoseconds} timestamp objects.
func parseTime(raw json.RawMessage) (time.Time, bool) {
	if isNull(raw) {
		return time.Time{}, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 {
			return time.Time{}, false
		}
		// Anything past 1e11 cannot be seconds before the year 5000.
		if n > 1e11 {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		return time.Unix(int64(n), 0).UTC(), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, account.DateLayout} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}

	var ts struct {
		Seconds     *int64 `json:"seconds"`
		Nanoseconds int64  `json:"nanoseconds"`
		USeconds    *int64 `json:"_seconds"`
		UNanos      int64  `json:"_nanoseconds"`
	}
	if err := json.Unmarshal(raw, &ts); err == nil {
		switch {
		case ts.Seconds != nil:
			return time.Unix(*ts.Seconds, ts.Nanoseconds).UTC(), true
		case ts.USeconds != nil:
			return time.Unix(*ts.USeconds, ts.UNanos).UTC(), true
		}
	}
	return time.Time{}, false
}

// parsePrompts keeps list order (newest first) and drops entries that cannot
// be read or repeat an id. limit 0 keeps everything.
func parsePrompts(raws []json.RawMessage, limit int) []account.SavedPrompt {
	out := make([]account.SavedPrompt, 0, len(raws))
	seen := make(map[string]bool, len(raws))

	for i, raw := range raws {
		if limit > 0 && len(out) == limit {
			break
		}
		var p prompt
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}

		id := rawID(p.ID)
		var ts int64
		if t, ok := parseTime(p.Timestamp); ok {
			ts = t.UnixMilli()
		}
		if id == "" {
			id = fmt.Sprintf("prompt_legacy_%d_%d", ts, i)
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		mode := account.Mode(strings.ToLower(p.Mode))
		if !mode.IsValid() {
			mode = account.ModeText
		}

		out = append(out, account.SavedPrompt{
			ID:              id,
			Name:            p.Name,
			Prompt:          p.Prompt,
			PlatformName:    p.PlatformName,
			PlatformIcon:    p.PlatformIcon,
			PlatformURL:     p.PlatformURL,
			BaseIdea:        p.BaseIdea,
			Timestamp:       ts,
			Mode:            mode,
			Settings:        nonNull(p.Settings),
			ProTextSettings: nonNull(p.ProTextSettings),
		})
	}
	return out
}

func rawID(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return "prompt_" + n.String()
	}
	return ""
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if isNull(raw) {
		return nil
	}
	return raw
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
