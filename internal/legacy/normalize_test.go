package legacy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
)

func TestNormalize_Coins(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int64
	}{
		{name: "number", payload: `{"coins": 120}`, want: 120},
		{name: "fractional", payload: `{"coins": 12.9}`, want: 12},
		{name: "string", payload: `{"coins": "75"}`, want: 75},
		{name: "negative", payload: `{"coins": -5}`, want: 0},
		{name: "garbage", payload: `{"coins": "lots"}`, want: 0},
		{name: "missing", payload: `{}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, err := Normalize("u1", []byte(tt.payload), time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, acct.Coins)
		})
	}
}

func TestNormalize_Counters(t *testing.T) {
	// 1773099000000 is 2026-03-09T23:30:00Z, already 2026-03-10 in Tokyo
	tokyo := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		name    string
		payload string
		loc     *time.Location
		ads     account.DailyCounter
		shares  account.DailyCounter
	}{
		{
			name:    "object counters",
			payload: `{"adsWatchedToday": {"count": 4, "date": "2026-03-09"}, "sharesToday": {"count": 1, "date": "2026-03-08"}}`,
			ads:     account.DailyCounter{Count: 4, Date: "2026-03-09"},
			shares:  account.DailyCounter{Count: 1, Date: "2026-03-08"},
		},
		{
			name:    "bare numbers dated by timestamps",
			payload: `{"adsWatchedToday": 6, "lastAdWatched": 1773099000000, "sharesToday": 2, "lastCoinRewardDate": "2026-03-07"}`,
			ads:     account.DailyCounter{Count: 6, Date: "2026-03-09"},
			shares:  account.DailyCounter{Count: 2, Date: "2026-03-07"},
		},
		{
			name:    "timestamp dated in configured zone",
			payload: `{"adsWatchedToday": 6, "lastAdWatched": 1773099000000}`,
			loc:     tokyo,
			ads:     account.DailyCounter{Count: 6, Date: "2026-03-10"},
			shares:  account.DailyCounter{Date: epochDate},
		},
		{
			name:    "bare number without reference",
			payload: `{"adsWatchedToday": 3}`,
			ads:     account.DailyCounter{Count: 3, Date: epochDate},
			shares:  account.DailyCounter{Date: epochDate},
		},
		{
			name:    "firestore timestamp object",
			payload: `{"sharesToday": 5, "lastShareRewardDate": {"seconds": 1773099000, "nanoseconds": 0}}`,
			ads:     account.DailyCounter{Date: epochDate},
			shares:  account.DailyCounter{Count: 5, Date: "2026-03-09"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := tt.loc
			if loc == nil {
				loc = time.UTC
			}
			acct, err := Normalize("u1", []byte(tt.payload), loc)
			require.NoError(t, err)
			assert.Equal(t, tt.ads, acct.AdsWatchedToday)
			assert.Equal(t, tt.shares, acct.SharesToday)
		})
	}
}

func TestNormalize_Prompts(t *testing.T) {
	payload := `{
		"history": [
			{"id": 17, "prompt": "one", "mode": "Image", "timestamp": 1773099000000, "settings": {"style": "noir"}},
			{"id": 17, "prompt": "duplicate"},
			"not an object",
			{"id": "abc", "prompt": "two", "mode": "poem", "timestamp": "2026-03-01T10:00:00Z"}
		],
		"favorites": [{"prompt": "unnamed id", "timestamp": 1773099000}]
	}`

	acct, err := Normalize("u1", []byte(payload), time.UTC)
	require.NoError(t, err)

	require.Len(t, acct.History, 2)
	assert.Equal(t, "prompt_17", acct.History[0].ID)
	assert.Equal(t, account.ModeImage, acct.History[0].Mode)
	assert.Equal(t, int64(1773099000000), acct.History[0].Timestamp)
	assert.JSONEq(t, `{"style": "noir"}`, string(acct.History[0].Settings))
	assert.Equal(t, "abc", acct.History[1].ID)
	assert.Equal(t, account.ModeText, acct.History[1].Mode)

	require.Len(t, acct.Favorites, 1)
	assert.Equal(t, "prompt_legacy_1773099000000_0", acct.Favorites[0].ID)
}

func TestNormalize_HistoryLimit(t *testing.T) {
	payload := `{"history": [`
	for i := 0; i < account.HistoryLimit+10; i++ {
		if i > 0 {
			payload += ","
		}
		payload += fmt.Sprintf(`{"id": "p%d", "prompt": "x"}`, i)
	}
	payload += `]}`

	acct, err := Normalize("u1", []byte(payload), time.UTC)
	require.NoError(t, err)
	assert.Len(t, acct.History, account.HistoryLimit)
}

func TestNormalize_Tier(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantTier   *account.ProTier
		wantExpiry bool
	}{
		{name: "absent", payload: `{}`},
		{name: "valid", payload: `{"proTier": "gold", "proTierExpiry": "2026-06-01T00:00:00Z"}`, wantTier: tierPtr(account.TierGold), wantExpiry: true},
		{name: "unknown", payload: `{"proTier": "platinum"}`, wantTier: tierPtr(account.TierNone)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, err := Normalize("u1", []byte(tt.payload), time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, acct.ProTier)
			assert.Equal(t, tt.wantExpiry, acct.ProTierExpiry != nil)
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	_, err := Normalize("u1", []byte(`not json`), time.UTC)
	assert.Error(t, err)
}

func tierPtr(t account.ProTier) *account.ProTier {
	return &t
}
