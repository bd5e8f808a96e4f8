package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carbid/internal/lifecycle"
)

// SweepHandler exposes the periodic sweeps to an external scheduler; the
// same entry points run on the in-process cron when enabled.
type SweepHandler struct {
	Manager *lifecycle.Manager
}

func (h *SweepHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/sweeps")
	group.POST("/lifecycle", h.lifecycle)
	group.POST("/settlement-timeouts", h.settlementTimeouts)
}

// @Summary Advance due auctions through their lifecycle
// @Tags sweeps
// @Success 200 {object} lifecycle.SweepResult
// @Router /api/v1/sweeps/lifecycle [post]
func (h *SweepHandler) lifecycle(c *gin.Context) {
	res, err := h.Manager.SweepLifecycle(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, res, nil)
}

// @Summary Forfeit settlements past the deadline
// @Tags sweeps
// @Success 200 {object} lifecycle.TimeoutSweepResult
// @Router /api/v1/sweeps/settlement-timeouts [post]
func (h *SweepHandler) settlementTimeouts(c *gin.Context) {
	res, err := h.Manager.SweepSettlementTimeouts(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, res, nil)
}
