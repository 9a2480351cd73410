package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-admin/internal/service"
)

type envelope struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{StatusCode: status, Message: "success", Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{StatusCode: status, Message: message})
}

// respondError maps service errors onto the response envelope. Anything that
// is not a *service.Error is an internal fault and stays opaque to clients.
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		c.JSON(svcErr.Status, envelope{StatusCode: svcErr.Status, Message: svcErr.Message})
		return
	}
	zap.L().Error("internal error", zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusInternalServerError, envelope{
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal server error",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{StatusCode: http.StatusBadRequest, Message: message})
}
