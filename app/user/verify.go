package user

import (
	"net/http"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type verifyEmailBody struct {
	EmailVerifyToken string `json:"email_verify_token"`
}

// UserVerifyEmail consumes the email verify token checked by the guard
func UserVerifyEmail(c *gin.Context, d *internal.Deps) {
	claims := middleware.Claims(c, middleware.KeyEmailVerifyToken)

	var data verifyEmailBody
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	pair, err := d.Accounts.VerifyEmail(c.Request.Context(), claims.UserID, data.EmailVerifyToken)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	zap.L().Debug("Email verified", zap.String("userID", claims.UserID), zap.String("requestID", middleware.RequestID(c)))
	tokenResponse(c, http.StatusOK, apperr.MsgEmailVerifySuccess, pair)
}

func UserResendVerifyEmail(c *gin.Context, d *internal.Deps) {
	userID := c.GetString(middleware.KeyUserID)

	sent, err := d.Accounts.ResendVerifyEmail(c.Request.Context(), userID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	if !sent {
		c.JSON(http.StatusOK, gin.H{"message": apperr.MsgEmailAlreadyVerified})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": apperr.MsgResendVerifySuccess})
}
