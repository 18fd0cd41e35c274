package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/lo"
)

const requestKey = "validationRequest"

func BodySizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Fast reject for legit requests
		if c.Request.ContentLength > maxBytes {
			Fail(c, apperr.New(http.StatusRequestEntityTooLarge, apperr.MsgBodyTooLarge))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// JSONBody decodes the request body into a map once so that every guard and
// validator on the route can look at it. An empty body is an empty object.
func JSONBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		body := map[string]any{}

		if c.Request.Body != nil && c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					Fail(c, apperr.New(http.StatusRequestEntityTooLarge, apperr.MsgBodyTooLarge))
					return
				}

				Fail(c, apperr.BadRequest(apperr.MsgInvalidBody).Wrap(err))
				return
			}
		}

		c.Set(requestKey, validators.NewRequest(body, c.Request.Header, params(c)))
		c.Next()
	}
}

func params(c *gin.Context) map[string]string {
	p := make(map[string]string, len(c.Params))
	for _, v := range c.Params {
		p[v.Key] = v.Value
	}

	return p
}

// Request returns the validation view of the current request, creating an
// empty one for routes without a body
func Request(c *gin.Context) *validators.Request {
	if v, ok := c.Get(requestKey); ok {
		return v.(*validators.Request)
	}

	r := validators.NewRequest(nil, c.Request.Header, params(c))
	c.Set(requestKey, r)

	return r
}

// Bind decodes the sanitized body into out, matching fields by their json tag
func Bind(c *gin.Context, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc("2006-01-02"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder, %w", err)
	}

	if err := dec.Decode(Request(c).Body()); err != nil {
		return apperr.BadRequest(apperr.MsgInvalidBody).Wrap(err)
	}

	return nil
}

// FilterBody drops every body field that isn't listed
func FilterBody(keys ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := Request(c)
		r.ReplaceBody(lo.PickByKeys(r.Body(), keys))
		c.Next()
	}
}
