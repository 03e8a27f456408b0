package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
)

const defaultNameLength = 40

// PromptService implements account.PromptService
type PromptService struct {
	store    account.Store
	resolver subscription.Resolver
	logger   *logger.Logger
	now      func() time.Time
}

// NewPromptService creates a new prompt service
func NewPromptService(store account.Store, resolver subscription.Resolver, log *logger.Logger) *PromptService {
	if log == nil {
		log = logger.Nop()
	}
	return &PromptService{
		store:    store,
		resolver: resolver,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (s *PromptService) WithClock(now func() time.Time) *PromptService {
	s.now = now
	return s
}

// RecordGeneration charges the generation and stores the prompt in history
// in one write. Nothing is recorded when the balance is short.
func (s *PromptService) RecordGeneration(ctx context.Context, userID string, draft account.GenerationDraft) (*account.SavedPrompt, *account.Account, error) {
	if !draft.Mode.IsValid() {
		return nil, nil, errors.ValidationError("Unknown mode", map[string]string{"mode": string(draft.Mode)})
	}
	if strings.TrimSpace(draft.Prompt) == "" {
		return nil, nil, errors.ValidationError("Prompt is required", nil)
	}

	sub, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	unlimited := subscription.PlanOf(sub).UnlimitedSpend()

	now := s.now()
	prompt := &account.SavedPrompt{
		ID:              newPromptID(now),
		Prompt:          draft.Prompt,
		PlatformName:    draft.PlatformName,
		PlatformIcon:    draft.PlatformIcon,
		PlatformURL:     draft.PlatformURL,
		BaseIdea:        draft.BaseIdea,
		Timestamp:       now.UnixMilli(),
		Mode:            draft.Mode,
		Settings:        draft.Settings,
		ProTextSettings: draft.ProTextSettings,
	}

	acct, err := s.store.Spend(ctx, userID, account.SpendRequest{
		Amount:    draft.Mode.Cost(),
		Unlimited: unlimited,
		Kind:      account.TxGeneration,
		Reference: prompt.ID,
		Record:    prompt,
	})
	recordSpend(err, unlimited)
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithUser(userID).WithFields(map[string]interface{}{
		"prompt_id": prompt.ID,
		"mode":      prompt.Mode,
		"coins":     acct.Coins,
	}).Debug("Generation recorded")

	return prompt, acct, nil
}

// History returns history, newest first
func (s *PromptService) History(ctx context.Context, userID string) ([]account.SavedPrompt, error) {
	acct, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return acct.History, nil
}

// Favorites returns favorites, newest first
func (s *PromptService) Favorites(ctx context.Context, userID string) ([]account.SavedPrompt, error) {
	acct, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return acct.Favorites, nil
}

// AddFavorite copies a history entry into favorites under name
func (s *PromptService) AddFavorite(ctx context.Context, userID, promptID, name string) (*account.SavedPrompt, error) {
	acct, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	src, ok := acct.FindHistory(promptID)
	if !ok {
		return nil, errors.NotFound("Prompt")
	}

	fav := src
	fav.Name = strings.TrimSpace(name)
	if fav.Name == "" {
		fav.Name = defaultName(src)
	}

	if _, err := s.store.AddFavorite(ctx, userID, fav); err != nil {
		return nil, err
	}
	return &fav, nil
}

// RemoveFavorite deletes a favorite
func (s *PromptService) RemoveFavorite(ctx context.Context, userID, promptID string) error {
	_, err := s.store.RemoveSaved(ctx, userID, account.ListFavorites, promptID)
	return err
}

// RemoveHistory deletes a history entry
func (s *PromptService) RemoveHistory(ctx context.Context, userID, promptID string) error {
	_, err := s.store.RemoveSaved(ctx, userID, account.ListHistory, promptID)
	return err
}

func newPromptID(now time.Time) string {
	return fmt.Sprintf("prompt_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

func defaultName(p account.SavedPrompt) string {
	base := strings.TrimSpace(p.BaseIdea)
	if base == "" {
		base = strings.TrimSpace(p.Prompt)
	}
	if utf8.RuneCountInString(base) <= defaultNameLength {
		return base
	}
	runes := []rune(base)
	return string(runes[:defaultNameLength]) + "…"
}
