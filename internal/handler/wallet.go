package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"carbid/internal/repository"
	"carbid/internal/wallet"
)

type WalletHandler struct {
	Repo   repository.Repository
	Ledger *wallet.Ledger
}

func (h *WalletHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/wallet")
	group.POST("/fundings", h.funding)
	group.GET("/:user_id", h.balance)
	group.GET("/:user_id/transactions", h.transactions)
}

type fundingRequest struct {
	UserID      uint64 `json:"user_id"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref"`
}

// @Summary Apply a payment-gateway funding confirmation
// @Description Idempotent on external_ref: a retried callback reports the
// @Description funding as already applied instead of crediting twice.
// @Tags wallet
// @Param body body fundingRequest true "funding"
// @Success 200 {object} models.WalletTransaction
// @Router /api/v1/wallet/fundings [post]
func (h *WalletHandler) funding(c *gin.Context) {
	var req fundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.UserID == 0 || strings.TrimSpace(req.ExternalRef) == "" {
		Error(c, http.StatusBadRequest, "user_id and external_ref required", nil)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		Error(c, http.StatusBadRequest, "amount must be a positive decimal string", nil)
		return
	}

	item, err := h.Ledger.Fund(c.Request.Context(), req.UserID, amount, strings.TrimSpace(req.ExternalRef))
	if err != nil {
		if errors.Is(err, wallet.ErrDuplicateReference) {
			// The gateway retried a confirmation we already applied.
			Ok(c, nil, map[string]any{"already_applied": true})
			return
		}
		if errors.Is(err, wallet.ErrUserNotFound) {
			Error(c, http.StatusNotFound, "user not found", nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Read a user's balances
// @Tags wallet
// @Param user_id path int true "user id"
// @Success 200 {object} map[string]string
// @Router /api/v1/wallet/{user_id} [get]
func (h *WalletHandler) balance(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	user, err := h.Repo.GetUser(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if user == nil {
		Error(c, http.StatusNotFound, "user not found", nil)
		return
	}
	Ok(c, gin.H{
		"user_id":           user.ID,
		"available_balance": user.AvailableBalance.String(),
		"held_amount":       user.HeldAmount.String(),
	}, nil)
}

// @Summary List a user's wallet transactions
// @Tags wallet
// @Param user_id path int true "user id"
// @Success 200 {array} models.WalletTransaction
// @Router /api/v1/wallet/{user_id}/transactions [get]
func (h *WalletHandler) transactions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	params := repository.ListWalletTransactionsParams{UserID: &userID}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			params.Limit = v
		}
	}
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		params.Type = &raw
	}
	items, err := h.Repo.ListWalletTransactions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *WalletHandler) userID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("user_id")), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid user id", nil)
		return 0, false
	}
	return id, true
}
