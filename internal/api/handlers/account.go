package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/dto"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/middleware"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/utils"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/validator"
)

// AccountHandler serves the coin ledger
type AccountHandler struct {
	service   account.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service account.Service, log *logger.Logger, val *validator.Validator) *AccountHandler {
	return &AccountHandler{service: service, logger: log, validator: val}
}

// Session reconciles the account at sign-in
// @Summary Start a session
// @Description Creates the account on first sign-in and applies today's top-up
// @Tags Account
// @Produce json
// @Success 200 {object} dto.SessionResponse
// @Failure 503 {object} utils.ErrorResponse "Store unavailable"
// @Security BearerAuth
// @Router /session [post]
func (h *AccountHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.service.Reconcile(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err, "Failed to reconcile account")
		return
	}
	middleware.AddLogField(w, "outcome", result.Outcome)

	utils.WriteSuccess(w, http.StatusOK, dto.SessionResponse{
		Account: result.Account,
		Outcome: string(result.Outcome),
		Granted: result.Granted,
	})
}

// Get returns the caller's account
// @Summary Get account
// @Tags Account
// @Produce json
// @Success 200 {object} account.Account
// @Failure 404 {object} utils.ErrorResponse "Account not found"
// @Security BearerAuth
// @Router /me/account [get]
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	acct, err := h.service.Get(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err, "Failed to get account")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, acct)
}

// WatchAd claims the ad reward
// @Summary Claim ad reward
// @Tags Rewards
// @Produce json
// @Success 200 {object} dto.RewardResponse
// @Security BearerAuth
// @Router /me/rewards/ad [post]
func (h *AccountHandler) WatchAd(w http.ResponseWriter, r *http.Request) {
	h.reward(w, r, h.service.WatchAd)
}

// ShareReward claims the share reward
// @Summary Claim share reward
// @Tags Rewards
// @Produce json
// @Success 200 {object} dto.RewardResponse
// @Security BearerAuth
// @Router /me/rewards/share [post]
func (h *AccountHandler) ShareReward(w http.ResponseWriter, r *http.Request) {
	h.reward(w, r, h.service.ShareReward)
}

func (h *AccountHandler) reward(w http.ResponseWriter, r *http.Request, claim func(context.Context, string) (*account.RewardResult, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := claim(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err, "Failed to claim reward")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.RewardResponse{
		Granted: result.Granted,
		Coins:   result.Account.Coins,
	})
}

// Spend debits coins
// @Summary Spend coins
// @Tags Account
// @Accept json
// @Produce json
// @Param request body dto.SpendRequest true "Amount"
// @Success 200 {object} account.Account
// @Failure 402 {object} utils.ErrorResponse "Insufficient coins"
// @Security BearerAuth
// @Router /me/spend [post]
func (h *AccountHandler) Spend(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.SpendRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	acct, err := h.service.Spend(r.Context(), userID, req.Amount)
	if err != nil {
		utils.WriteErr(w, err, "Failed to spend coins")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, acct)
}

// Transactions lists ledger entries
// @Summary List transactions
// @Tags Account
// @Produce json
// @Param limit query int false "Max entries (default: 20, max: 100)"
// @Success 200 {array} account.Transaction
// @Security BearerAuth
// @Router /me/transactions [get]
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	txs, err := h.service.Transactions(r.Context(), userID, utils.ParseLimit(r))
	if err != nil {
		utils.WriteErr(w, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []*account.Transaction{}
	}

	utils.WriteSuccess(w, http.StatusOK, txs)
}

// Adjust applies a trusted increment
// @Summary Adjust an account
// @Description Server-to-server credit or correction
// @Tags Internal
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body dto.AdjustRequest true "Adjustment"
// @Success 200 {object} account.Account
// @Security ApiKeyAuth
// @Router /internal/accounts/{userId}/adjust [post]
func (h *AccountHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := h.validator.ValidateVar(userID, "userid"); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid user ID"))
		return
	}

	var req dto.AdjustRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	acct, err := h.service.Adjust(r.Context(), userID, account.Field(req.Field), req.Delta, req.Reason)
	if err != nil {
		utils.WriteErr(w, err, "Failed to adjust account")
		return
	}

	h.logger.WithUser(userID).WithFields(map[string]interface{}{
		"field": req.Field,
		"delta": req.Delta,
	}).Info("Internal adjustment applied")

	utils.WriteSuccess(w, http.StatusOK, acct)
}
