package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
)

func TestPromptService_RecordGeneration(t *testing.T) {
	tests := []struct {
		mode      account.Mode
		wantCoins int64
	}{
		{mode: account.ModeImage, wantCoins: 90},
		{mode: account.ModeVideo, wantCoins: 80},
		{mode: account.ModeText, wantCoins: 70},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.ledger.Reconcile(ctx, "u1")
			require.NoError(t, err)

			prompt, acct, err := f.prompts.RecordGeneration(ctx, "u1", account.GenerationDraft{
				Mode:         tt.mode,
				Prompt:       "cinematic city at dusk",
				PlatformName: "Midjourney",
				BaseIdea:     "city",
				Settings:     json.RawMessage(`{"aspect":"16:9"}`),
			})
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(prompt.ID, "prompt_"))
			assert.Equal(t, f.clock.Now().UnixMilli(), prompt.Timestamp)
			assert.Equal(t, tt.wantCoins, acct.Coins)
			require.Len(t, acct.History, 1)
			assert.Equal(t, prompt.ID, acct.History[0].ID)
			assert.JSONEq(t, `{"aspect":"16:9"}`, string(acct.History[0].Settings))

			txs, err := f.ledger.Transactions(ctx, "u1", 1)
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.Equal(t, account.TxGeneration, txs[0].Kind)
			assert.Equal(t, prompt.ID, txs[0].Reference)
		})
	}
}

func TestPromptService_RecordGenerationInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	_, err = f.ledger.Spend(ctx, "u1", 80)
	require.NoError(t, err)

	_, _, err = f.prompts.RecordGeneration(ctx, "u1", account.GenerationDraft{Mode: account.ModeText, Prompt: "essay"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientFunds), "got %v", err)

	history, err := f.prompts.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPromptService_RecordGenerationGold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.subs.Activate(ctx, "u1", subscription.PlanPro, "")
	require.NoError(t, err)
	_, err = f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)

	_, acct, err := f.prompts.RecordGeneration(ctx, "u1", account.GenerationDraft{Mode: account.ModeVideo, Prompt: "drone shot"})
	require.NoError(t, err)
	assert.Equal(t, int64(999999), acct.Coins)
	assert.Len(t, acct.History, 1)
}

func TestPromptService_RecordGenerationValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft account.GenerationDraft
	}{
		{name: "unknown mode", draft: account.GenerationDraft{Mode: "audio", Prompt: "x"}},
		{name: "empty prompt", draft: account.GenerationDraft{Mode: account.ModeText, Prompt: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.prompts.RecordGeneration(ctx, "u1", tt.draft)
			assert.True(t, errors.HasCode(err, errors.ErrCodeValidation), "got %v", err)
		})
	}
}

func TestPromptService_Favorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)

	prompt, _, err := f.prompts.RecordGeneration(ctx, "u1", account.GenerationDraft{
		Mode:     account.ModeImage,
		Prompt:   "a lighthouse in a storm, oil painting, dramatic lighting",
		BaseIdea: "a lighthouse in a storm with waves crashing over the rocks below",
	})
	require.NoError(t, err)

	fav, err := f.prompts.AddFavorite(ctx, "u1", prompt.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, prompt.ID, fav.ID)
	assert.Equal(t, "a lighthouse in a storm with waves crash…", fav.Name)

	_, err = f.prompts.AddFavorite(ctx, "u1", prompt.ID, "again")
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadyExists), "got %v", err)

	_, err = f.prompts.AddFavorite(ctx, "u1", "missing", "x")
	assert.True(t, errors.IsNotFound(err), "got %v", err)

	favorites, err := f.prompts.Favorites(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, favorites, 1)

	// removing from history leaves the favorite copy
	require.NoError(t, f.prompts.RemoveHistory(ctx, "u1", prompt.ID))
	history, err := f.prompts.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
	favorites, err = f.prompts.Favorites(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, favorites, 1)

	require.NoError(t, f.prompts.RemoveFavorite(ctx, "u1", prompt.ID))
	err = f.prompts.RemoveFavorite(ctx, "u1", prompt.ID)
	assert.True(t, errors.IsNotFound(err), "got %v", err)
}
