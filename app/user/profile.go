package user

import (
	"net/http"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// UserProfile returns the public part of someone's account by username
func UserProfile(c *gin.Context, d *internal.Deps) {
	p, err := d.Accounts.Profile(c.Request.Context(), c.Param("username"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": apperr.MsgGetProfileSuccess,
		"result":  p,
	})
}
