package user

import (
	"net/http"
	"time"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// UserFetch returns the caller's own account. Password hash and single use
// tokens are never serialized.
func UserFetch(c *gin.Context, d *internal.Deps) {
	a, err := d.Accounts.Me(c.Request.Context(), c.GetString(middleware.KeyUserID))
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": apperr.MsgGetMeSuccess,
		"result":  a,
	})
}

type updateMeBody struct {
	Name        *string    `json:"name"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Bio         *string    `json:"bio"`
	Location    *string    `json:"location"`
	Website     *string    `json:"website"`
	Username    *string    `json:"username"`
	Avatar      *string    `json:"avatar"`
	CoverPhoto  *string    `json:"cover_photo"`
}

// UserUpdate applies the filtered and validated body to the caller's account
func UserUpdate(c *gin.Context, d *internal.Deps) {
	var data updateMeBody
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	a, err := d.Accounts.UpdateMe(c.Request.Context(), c.GetString(middleware.KeyUserID), model.AccountPatch{
		Name:        data.Name,
		DateOfBirth: data.DateOfBirth,
		Bio:         data.Bio,
		Location:    data.Location,
		Website:     data.Website,
		Username:    data.Username,
		Avatar:      data.Avatar,
		CoverPhoto:  data.CoverPhoto,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": apperr.MsgUpdateMeSuccess,
		"result":  a,
	})
}
