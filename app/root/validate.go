package root

import (
	"net/http"

	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Validate runs after the access token guard and echoes what it decoded
func Validate(c *gin.Context) {
	claims := middleware.Claims(c, middleware.KeyAuthorization)

	c.JSON(http.StatusOK, gin.H{
		"message":            apperr.MsgAccessTokenValid,
		"user_id":            claims.UserID,
		"verification_state": claims.Verify,
	})
}
