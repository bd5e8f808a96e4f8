package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// ErrorCode rejects with a stable machine-readable code so clients can
// route the user to a remediation path (top up, verify identity) instead
// of a generic failure.
func ErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    map[string]any{"code": code},
	})
}
