package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"carbid/internal/models"
	"carbid/internal/repository"
)

type AuctionHandler struct {
	Repo repository.Repository
}

func (h *AuctionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/auctions")
	group.GET("", h.list)
	group.GET("/:id", h.get)
}

type auctionDetail struct {
	models.Auction
	Bids []models.Bid `json:"bids"`
}

// @Summary Get one auction with its bid history
// @Tags auctions
// @Param id path int true "auction id"
// @Success 200 {object} auctionDetail
// @Router /api/v1/auctions/{id} [get]
func (h *AuctionHandler) get(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid auction id", nil)
		return
	}
	auction, err := h.Repo.GetAuction(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if auction == nil {
		Error(c, http.StatusNotFound, "auction not found", nil)
		return
	}
	bids, err := h.Repo.ListBidsByAuction(c.Request.Context(), id, 100)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, auctionDetail{Auction: *auction, Bids: bids}, nil)
}

// @Summary List auctions
// @Tags auctions
// @Param status query string false "status filter"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {array} models.Auction
// @Router /api/v1/auctions [get]
func (h *AuctionHandler) list(c *gin.Context) {
	params := repository.ListAuctionsParams{}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		params.Status = &raw
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			params.Limit = v
		}
	}
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			params.Offset = v
		}
	}
	items, err := h.Repo.ListAuctions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"count": len(items)})
}
