package handlers

import (
	"net/http"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/dto"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/subscription"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/utils"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/validator"
)

// SubscriptionHandler serves plans and entitlements
type SubscriptionHandler struct {
	resolver  subscription.Resolver
	logger    *logger.Logger
	validator *validator.Validator
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(resolver subscription.Resolver, log *logger.Logger, val *validator.Validator) *SubscriptionHandler {
	return &SubscriptionHandler{resolver: resolver, logger: log, validator: val}
}

// Get returns the caller's active subscription
// @Summary Get subscription
// @Tags Subscription
// @Produce json
// @Success 200 {object} dto.SubscriptionDTO
// @Security BearerAuth
// @Router /me/subscription [get]
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sub, err := h.resolver.Resolve(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err, "Failed to resolve subscription")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewSubscriptionDTO(sub))
}

// Entitlement returns what the caller's plan allows
// @Summary Get entitlement
// @Tags Subscription
// @Produce json
// @Success 200 {object} subscription.Entitlement
// @Security BearerAuth
// @Router /me/entitlement [get]
func (h *SubscriptionHandler) Entitlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	e, err := h.resolver.Entitlement(r.Context(), userID)
	if err != nil {
		utils.WriteErr(w, err, "Failed to resolve entitlement")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, e)
}

// Activate records a confirmed payment
// @Summary Activate a subscription
// @Description Called by the payment backend once a capture is confirmed
// @Tags Internal
// @Accept json
// @Produce json
// @Param request body dto.ActivateSubscriptionRequest true "Payment"
// @Success 200 {object} dto.SubscriptionDTO
// @Security ApiKeyAuth
// @Router /internal/subscriptions/activate [post]
func (h *SubscriptionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req dto.ActivateSubscriptionRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	sub, err := h.resolver.Activate(r.Context(), req.UserID, subscription.Plan(req.Plan), req.OrderID)
	if err != nil {
		utils.WriteErr(w, err, "Failed to activate subscription")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewSubscriptionDTO(sub))
}
