package middleware

import (
	"bitwise74/account-api/pkg/validators"

	"github.com/gin-gonic/gin"
)

// Validate runs s against the request. Anything stored by the rules becomes
// visible through c.Get for the stages after it.
func Validate(e *validators.Engine, s validators.Schema) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := Request(c)

		res := e.Run(c.Request.Context(), s, r)
		if err := res.Error(); err != nil {
			Fail(c, err)
			return
		}

		for k, v := range r.Locals() {
			c.Set(k, v)
		}

		c.Next()
	}
}
