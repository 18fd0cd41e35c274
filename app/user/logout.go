package user

import (
	"net/http"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

// UserLogout runs after the access and refresh token guards. Both tokens
// must belong to the same user.
func UserLogout(c *gin.Context, d *internal.Deps) {
	access := middleware.Claims(c, middleware.KeyAuthorization)
	refresh := middleware.Claims(c, middleware.KeyRefreshToken)

	if access.UserID != refresh.UserID {
		middleware.Fail(c, apperr.Unauthorized(apperr.MsgAccessTokenMismatch))
		return
	}

	var data refreshBody
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	if err := d.Accounts.Logout(c.Request.Context(), data.RefreshToken); err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": apperr.MsgLogoutSuccess})
}

// UserRefreshToken rotates the session behind refresh_token
func UserRefreshToken(c *gin.Context, d *internal.Deps) {
	claims := middleware.Claims(c, middleware.KeyRefreshToken)

	var data refreshBody
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	pair, err := d.Accounts.RefreshToken(c.Request.Context(), data.RefreshToken, claims)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	tokenResponse(c, http.StatusOK, apperr.MsgRefreshTokenSuccess, pair)
}
