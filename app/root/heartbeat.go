package root

import (
	"net/http"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Heartbeat answers 200 while the store is reachable and 503 otherwise
func Heartbeat(c *gin.Context, d *internal.Deps) {
	if err := d.Store.Ping(c.Request.Context()); err != nil {
		zap.L().Warn("Heartbeat failed", zap.Error(err), zap.String("requestID", middleware.RequestID(c)))
		c.Status(http.StatusServiceUnavailable)
		return
	}

	c.Status(http.StatusOK)
}
