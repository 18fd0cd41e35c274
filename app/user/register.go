package user

import (
	"net/http"

	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

func UserRegister(c *gin.Context, d *internal.Deps) {
	var data service.RegisterInput
	if err := middleware.Bind(c, &data); err != nil {
		middleware.Fail(c, err)
		return
	}

	pair, err := d.Accounts.Register(c.Request.Context(), data)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	tokenResponse(c, http.StatusCreated, apperr.MsgRegisterSuccess, pair)
}
