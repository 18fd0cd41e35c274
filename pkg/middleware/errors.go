package middleware

import (
	"errors"
	"net/http"

	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler must be the first middleware after recovery. Guards and
// handlers push errors with c.Error and abort, this writes the response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		requestID := RequestID(c)
		e := Classify(last.Err)

		if e.Status >= http.StatusInternalServerError {
			zap.L().Error(e.Message,
				zap.Error(e.Err),
				zap.String("requestID", requestID),
				zap.String("path", c.FullPath()),
			)
		} else {
			zap.L().Debug("Request rejected",
				zap.Int("status", e.Status),
				zap.String("message", e.Message),
				zap.NamedError("cause", e.Err),
				zap.String("requestID", requestID),
			)
		}

		body := gin.H{
			"message":   e.Message,
			"requestID": requestID,
		}
		if len(e.Fields) > 0 {
			body["errors"] = e.Fields
		}

		c.AbortWithStatusJSON(e.Status, body)
	}
}

// Classify turns any error into the typed error that gets serialized.
// Untyped errors never leak their text to the client.
func Classify(err error) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		return e
	}

	if errors.Is(err, store.ErrUnavailable) {
		return apperr.Unavailable(err)
	}

	return apperr.Internal(err)
}

// StoreFailure converts an unexpected store error into an aborting error,
// keeping timeouts distinct from everything else
func StoreFailure(err error) *apperr.Error {
	if errors.Is(err, store.ErrUnavailable) {
		return apperr.Unavailable(err)
	}

	return apperr.Internal(err)
}

// Fail records err and stops the chain
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
