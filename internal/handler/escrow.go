package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"carbid/internal/dispute"
	"carbid/internal/escrow"
	"carbid/internal/wallet"
)

type EscrowHandler struct {
	Engine   *escrow.Engine
	Resolver *dispute.Resolver
}

func (h *EscrowHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/escrows")
	group.POST("", h.initiate)
	group.POST("/:id/upgrade70", h.upgrade70)
	group.POST("/:id/complete", h.complete)
	group.POST("/:id/disputes", h.dispute)
}

type initiateEscrowRequest struct {
	AuctionID uint64 `json:"auction_id"`
	BuyerID   uint64 `json:"buyer_id"`
	Amount    string `json:"amount"`
}

// @Summary Open custody for a won auction (10% commitment)
// @Tags escrows
// @Param body body initiateEscrowRequest true "escrow"
// @Success 200 {object} models.Escrow
// @Router /api/v1/escrows [post]
func (h *EscrowHandler) initiate(c *gin.Context) {
	var req initiateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.AuctionID == 0 || req.BuyerID == 0 {
		Error(c, http.StatusBadRequest, "auction_id and buyer_id required", nil)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		Error(c, http.StatusBadRequest, "amount must be a positive decimal string", nil)
		return
	}

	esc, err := h.Engine.Initiate(c.Request.Context(), req.AuctionID, req.BuyerID, amount)
	if err != nil {
		h.writeEscrowError(c, err)
		return
	}
	Ok(c, esc, nil)
}

// @Summary Advance escrow to the 70% stage
// @Tags escrows
// @Param id path int true "escrow id"
// @Success 200 {object} models.Escrow
// @Router /api/v1/escrows/{id}/upgrade70 [post]
func (h *EscrowHandler) upgrade70(c *gin.Context) {
	id, ok := h.escrowID(c)
	if !ok {
		return
	}
	esc, err := h.Engine.UpgradeTo70(c.Request.Context(), id)
	if err != nil {
		h.writeEscrowError(c, err)
		return
	}
	Ok(c, esc, nil)
}

// @Summary Complete escrow: final hold, release, seller payout
// @Tags escrows
// @Param id path int true "escrow id"
// @Success 200 {object} map[string]string
// @Router /api/v1/escrows/{id}/complete [post]
func (h *EscrowHandler) complete(c *gin.Context) {
	id, ok := h.escrowID(c)
	if !ok {
		return
	}
	payout, err := h.Engine.Complete(c.Request.Context(), id)
	if err != nil {
		h.writeEscrowError(c, err)
		return
	}
	Ok(c, gin.H{"payout_amount": payout.String()}, nil)
}

type disputeRequest struct {
	Category string `json:"category"`
	Evidence string `json:"evidence"`
}

// @Summary File a dispute against an escrow
// @Tags escrows
// @Param id path int true "escrow id"
// @Param body body disputeRequest true "dispute"
// @Success 200 {object} dispute.Result
// @Router /api/v1/escrows/{id}/disputes [post]
func (h *EscrowHandler) dispute(c *gin.Context) {
	id, ok := h.escrowID(c)
	if !ok {
		return
	}
	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	category := dispute.Category(strings.ToLower(strings.TrimSpace(req.Category)))
	result, err := h.Resolver.Evaluate(c.Request.Context(), id, category, req.Evidence)
	if err != nil {
		switch {
		case errors.Is(err, dispute.ErrMissingCategory):
			Error(c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, dispute.ErrEscrowNotFound):
			Error(c, http.StatusNotFound, "escrow not found", nil)
		case errors.Is(err, dispute.ErrEscrowTerminal):
			Error(c, http.StatusConflict, err.Error(), nil)
		default:
			Error(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}
	Ok(c, result, nil)
}

func (h *EscrowHandler) escrowID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid escrow id", nil)
		return 0, false
	}
	return id, true
}

func (h *EscrowHandler) writeEscrowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, escrow.ErrAuctionNotFound), errors.Is(err, escrow.ErrEscrowNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, escrow.ErrNoSeller), errors.Is(err, escrow.ErrNotActive):
		Error(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, wallet.ErrInsufficientFunds):
		ErrorCode(c, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", err.Error())
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
