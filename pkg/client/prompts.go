package client

import (
	"context"
	"net/url"
)

// PromptService handles generation, history and favorites API calls
type PromptService struct {
	client *Client
}

// Generate charges a generation and records it in history
func (s *PromptService) Generate(ctx context.Context, req GenerationRequest) (*Generation, error) {
	var gen Generation
	if err := s.client.doRequest(ctx, "POST", "/api/v1/me/generations", req, &gen); err != nil {
		return nil, err
	}
	return &gen, nil
}

// History lists generated prompts, newest first
func (s *PromptService) History(ctx context.Context) ([]SavedPrompt, error) {
	var prompts []SavedPrompt
	if err := s.client.doRequest(ctx, "GET", "/api/v1/me/history", nil, &prompts); err != nil {
		return nil, err
	}
	return prompts, nil
}

// DeleteHistory removes a history entry
func (s *PromptService) DeleteHistory(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, "DELETE", "/api/v1/me/history/"+url.PathEscape(id), nil, nil)
}

// Favorites lists favorites, newest first
func (s *PromptService) Favorites(ctx context.Context) ([]SavedPrompt, error) {
	var prompts []SavedPrompt
	if err := s.client.doRequest(ctx, "GET", "/api/v1/me/favorites", nil, &prompts); err != nil {
		return nil, err
	}
	return prompts, nil
}

// AddFavorite copies a history entry into favorites. An empty name lets the
// server derive one.
func (s *PromptService) AddFavorite(ctx context.Context, promptID, name string) (*SavedPrompt, error) {
	body := map[string]string{"promptId": promptID}
	if name != "" {
		body["name"] = name
	}

	var fav SavedPrompt
	if err := s.client.doRequest(ctx, "POST", "/api/v1/me/favorites", body, &fav); err != nil {
		return nil, err
	}
	return &fav, nil
}

// DeleteFavorite removes a favorite
func (s *PromptService) DeleteFavorite(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, "DELETE", "/api/v1/me/favorites/"+url.PathEscape(id), nil, nil)
}
