package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"carbid/internal/bidding"
)

type BidHandler struct {
	Engine *bidding.Engine
}

func (h *BidHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/auctions/:id/bids", h.place)
}

type placeBidRequest struct {
	UserID uint64 `json:"user_id"`
	Amount string `json:"amount"`
}

// @Summary Place a bid on a live auction
// @Tags bids
// @Param id path int true "auction id"
// @Param body body placeBidRequest true "bid"
// @Success 200 {object} models.Bid
// @Failure 402 {object} apiResponse "INSUFFICIENT_FUNDS"
// @Failure 403 {object} apiResponse "KYC_REQUIRED"
// @Failure 409 {object} apiResponse "BID_TOO_LOW | AUCTION_NOT_LIVE"
// @Router /api/v1/auctions/{id}/bids [post]
func (h *BidHandler) place(c *gin.Context) {
	auctionID, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid auction id", nil)
		return
	}
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.UserID == 0 {
		Error(c, http.StatusBadRequest, "user_id required", nil)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		Error(c, http.StatusBadRequest, "amount must be a positive decimal string", nil)
		return
	}

	bid, err := h.Engine.PlaceBid(c.Request.Context(), req.UserID, auctionID, amount)
	if err != nil {
		switch {
		case errors.Is(err, bidding.ErrAuctionNotFound):
			Error(c, http.StatusNotFound, "auction not found", nil)
		case errors.Is(err, bidding.ErrAuctionNotLive):
			ErrorCode(c, http.StatusConflict, "AUCTION_NOT_LIVE", err.Error())
		case errors.Is(err, bidding.ErrBidTooLow):
			ErrorCode(c, http.StatusConflict, "BID_TOO_LOW", err.Error())
		case errors.Is(err, bidding.ErrKYCRequired):
			ErrorCode(c, http.StatusForbidden, "KYC_REQUIRED", err.Error())
		case errors.Is(err, bidding.ErrInsufficientFunds):
			ErrorCode(c, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", err.Error())
		case errors.Is(err, bidding.ErrUserNotFound):
			Error(c, http.StatusNotFound, "user not found", nil)
		default:
			Error(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}
	Ok(c, bid, nil)
}
