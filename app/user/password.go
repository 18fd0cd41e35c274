package user

import (
	"net/http"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type passwordBody struct {
	Password string `json:"password"`
}

type resetPasswordBody struct {
	ForgotPasswordToken string `json:"forgot_password_token"`
	Password            string `json:"password"`
}

// UserForgotPassword expects ForgotPasswordSchema to have found the account
func UserForgotPassword(c *gin.Context, d *internal.Deps) {
	a := c.MustGet(middleware.KeyAccount).(*model.Account)

	if err := d.Accounts.ForgotPassword(c.Request.Context(), a.ID, a.Verify); err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": apperr.MsgCheckEmailToReset})
}

// UserVerifyForgotPassword only reports that the guard accepted the token
func UserVerifyForgotPassword(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": apperr.MsgForgotTokenVerified})
}

func UserResetPassword(c *gin.Context, d *internal.Deps) {
	claims := middleware.Claims(c, middleware.KeyForgotPasswordToken)

	var data resetPasswordBody
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	err := d.Accounts.ResetPassword(c.Request.Context(), claims.UserID, data.ForgotPasswordToken, data.Password)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": apperr.MsgResetPasswordSuccess})
}

func UserChangePassword(c *gin.Context, d *internal.Deps) {
	var data passwordBody
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	err := d.Accounts.ChangePassword(c.Request.Context(), c.GetString(middleware.KeyUserID), data.Password)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": apperr.MsgChangePasswordSuccess})
}
