package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/dto"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/utils"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/validator"
)

// PromptHandler serves generations, history and favorites
type PromptHandler struct {
	service   account.PromptService
	logger    *logger.Logger
	validator *validator.Validator
}

// NewPromptHandler creates a new prompt handler
func NewPromptHandler(service account.PromptService, log *logger.Logger, val *validator.Validator) *PromptHandler {
	return &PromptHandler{service: service, logger: log, validator: val}
}

// Generate charges a generation and records it in history
// @Summary Record a generation
// @Tags Prompts
// @Accept json
// @Produce json
// @Param request body dto.GenerationRequest true "Generated prompt"
// @Success 201 {object} dto.GenerationResponse
// @Failure 402 {object} utils.ErrorResponse "Insufficient coins"
// @Security BearerAuth
// @Router /me/generations [post]
func (h *PromptHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.GenerationRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	prompt, acct, err := h.service.RecordGeneration(r.Context(), userID, req.Draft())
	if err != nil {
		utils.WriteErr(w, err, "Failed to record generation")
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, dto.GenerationResponse{Prompt: prompt, Coins: acct.Coins})
}

// History lists generated prompts, newest first
// @Summary List history
// @Tags Prompts
// @Produce json
// @Success 200 {array} account.SavedPrompt
// @Security BearerAuth
// @Router /me/history [get]
func (h *PromptHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	history, err := h.service.History(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err, "Failed to list history")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, history)
}

// DeleteHistory removes a history entry
// @Summary Delete history entry
// @Tags Prompts
// @Param id path string true "Prompt ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponse "Prompt not found"
// @Security BearerAuth
// @Router /me/history/{id} [delete]
func (h *PromptHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveHistory(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		utils.WriteErr(w, err, "Failed to delete history entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Favorites lists favorites, newest first
// @Summary List favorites
// @Tags Prompts
// @Produce json
// @Success 200 {array} account.SavedPrompt
// @Security BearerAuth
// @Router /me/favorites [get]
func (h *PromptHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	favorites, err := h.service.Favorites(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err, "Failed to list favorites")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, favorites)
}

// AddFavorite copies a history entry into favorites
// @Summary Add favorite
// @Tags Prompts
// @Accept json
// @Produce json
// @Param request body dto.AddFavoriteRequest true "History entry"
// @Success 201 {object} account.SavedPrompt
// @Failure 409 {object} utils.ErrorResponse "Already a favorite"
// @Security BearerAuth
// @Router /me/favorites [post]
func (h *PromptHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.AddFavoriteRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	fav, err := h.service.AddFavorite(r.Context(), userID, req.PromptID, req.Name)
	if err != nil {
		utils.WriteErr(w, err, "Failed to add favorite")
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, fav)
}

// DeleteFavorite removes a favorite
// @Summary Delete favorite
// @Tags Prompts
// @Param id path string true "Prompt ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponse "Prompt not found"
// @Security BearerAuth
// @Router /me/favorites/{id} [delete]
func (h *PromptHandler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveFavorite(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		utils.WriteErr(w, err, "Failed to delete favorite")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
