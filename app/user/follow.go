package user

import (
	"net/http"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type followBody struct {
	FollowedUserID string `json:"followed_user_id"`
}

func UserFollow(c *gin.Context, d *internal.Deps) {
	var data followBody
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	created, err := d.Accounts.Follow(c.Request.Context(), c.GetString(middleware.KeyUserID), data.FollowedUserID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	if !created {
		c.JSON(http.StatusOK, gin.H{"message": apperr.MsgAlreadyFollowed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": apperr.MsgFollowSuccess})
}

func UserUnfollow(c *gin.Context, d *internal.Deps) {
	var data followBody
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	deleted, err := d.Accounts.Unfollow(c.Request.Context(), c.GetString(middleware.KeyUserID), data.FollowedUserID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	if !deleted {
		c.JSON(http.StatusOK, gin.H{"message": apperr.MsgAlreadyUnfollowed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": apperr.MsgUnfollowSuccess})
}
