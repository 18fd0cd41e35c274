package user

import (
	"net/http"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func tokenResponse(c *gin.Context, status int, message string, p *service.TokenPair) {
	c.JSON(status, gin.H{
		"message":       message,
		"access_token":  p.AccessToken,
		"refresh_token": p.RefreshToken,
	})
}

// UserLogin expects LoginSchema to have checked the credentials and stored
// the account
func UserLogin(c *gin.Context, d *internal.Deps) {
	a := c.MustGet(middleware.KeyAccount).(*model.Account)

	pair, err := d.Accounts.Login(c.Request.Context(), a.ID, a.Verify)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	zap.L().Debug("User logged in", zap.String("userID", a.ID), zap.String("requestID", middleware.RequestID(c)))
	tokenResponse(c, http.StatusOK, apperr.MsgLoginSuccess, pair)
}
