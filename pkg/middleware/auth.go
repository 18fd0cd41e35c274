package middleware

import (
	"context"
	"errors"
	"strings"

	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/security"
	"bitwise74/account-api/pkg/validators"

	"github.com/gin-gonic/gin"
)

// Context keys set by the guards
const (
	KeyUserID              = "userID"
	KeyAuthorization       = "decodedAuthorization"
	KeyRefreshToken        = "decodedRefreshToken"
	KeyEmailVerifyToken    = "decodedEmailVerifyToken"
	KeyForgotPasswordToken = "decodedForgotPasswordToken"
	// KeyAccount holds the *model.Account a guard or validator already loaded
	KeyAccount = "account"
)

// Guards builds the authentication stages of a route. Each guard is a
// validation schema so it gets the same abort semantics as field checks.
type Guards struct {
	Engine *validators.Engine
	Tokens *security.Issuer
	Store  store.Store
}

func NewGuards(e *validators.Engine, tokens *security.Issuer, s store.Store) *Guards {
	return &Guards{Engine: e, Tokens: tokens, Store: s}
}

// Validate runs s with the guards' engine
func (g *Guards) Validate(s validators.Schema) gin.HandlerFunc {
	return Validate(g.Engine, s)
}

// TokenError maps a verification failure to a 401 with a message telling the
// failure kinds apart
func TokenError(err error) *apperr.Error {
	msg := apperr.MsgTokenMalformed

	switch {
	case errors.Is(err, security.ErrTokenExpired):
		msg = apperr.MsgTokenExpired
	case errors.Is(err, security.ErrTokenSignature):
		msg = apperr.MsgTokenSignature
	case errors.Is(err, security.ErrTokenKind):
		msg = apperr.MsgTokenKind
	}

	return apperr.Unauthorized(msg).Wrap(err)
}

// Claims returns the decoded token stored under key, or nil
func Claims(c *gin.Context, key string) *security.Claims {
	v, ok := c.Get(key)
	if !ok {
		return nil
	}

	claims, _ := v.(*security.Claims)
	return claims
}

func (g *Guards) AccessTokenSchema() validators.Schema {
	return validators.Schema{{
		Name: "Authorization",
		In:   validators.Header,
		Rules: []validators.Rule{validators.Custom(func(_ context.Context, v any, r *validators.Request) error {
			header, _ := v.(string)

			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				return apperr.Unauthorized(apperr.MsgAccessTokenRequired)
			}

			claims, err := g.Tokens.Verify(token, security.AccessToken)
			if err != nil {
				return TokenError(err)
			}

			r.Set(KeyAuthorization, claims)
			r.Set(KeyUserID, claims.UserID)
			return nil
		})},
	}}
}

// RequireAccessToken verifies the bearer token in the Authorization header
func (g *Guards) RequireAccessToken() gin.HandlerFunc {
	return g.Validate(g.AccessTokenSchema())
}

func (g *Guards) RefreshTokenSchema() validators.Schema {
	return validators.Schema{{
		Name:      "refresh_token",
		In:        validators.Body,
		Sensitive: true,
		Rules: []validators.Rule{
			validators.Trim(),
			validators.Custom(func(ctx context.Context, v any, r *validators.Request) error {
				token, _ := v.(string)
				if token == "" {
					return apperr.Unauthorized(apperr.MsgRefreshTokenRequired)
				}

				claims, err := g.Tokens.Verify(token, security.RefreshToken)
				if err != nil {
					return TokenError(err)
				}

				// A valid signature is not enough, the session must still exist
				if _, err := g.Store.RefreshToken(ctx, token); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return apperr.Unauthorized(apperr.MsgRefreshTokenNotExist)
					}

					return StoreFailure(err)
				}

				r.Set(KeyRefreshToken, claims)
				return nil
			}),
		},
	}}
}

// RequireRefreshToken verifies the refresh_token body field and checks that
// its session record still exists
func (g *Guards) RequireRefreshToken() gin.HandlerFunc {
	return g.Validate(g.RefreshTokenSchema())
}

// RequireVerifiedUser must come after RequireAccessToken
func (g *Guards) RequireVerifiedUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c, KeyAuthorization)
		if claims == nil {
			Fail(c, apperr.Unauthorized(apperr.MsgAccessTokenRequired))
			return
		}

		if claims.Verify != model.Verified {
			Fail(c, apperr.Forbidden(apperr.MsgUserNotVerified))
			return
		}

		c.Next()
	}
}

// singleUseToken builds the schema shared by the email verify and forgot
// password guards. The token must verify and still be the one stored on the
// account, so a consumed or rotated token is rejected.
func (g *Guards) singleUseToken(field string, kind security.Kind, key, required, stale string, missing *apperr.Error, stored func(*model.Account) string) validators.Schema {
	return validators.Schema{{
		Name:      field,
		In:        validators.Body,
		Sensitive: true,
		Rules: []validators.Rule{
			validators.Trim(),
			validators.Custom(func(ctx context.Context, v any, r *validators.Request) error {
				token, _ := v.(string)
				if token == "" {
					return apperr.Unauthorized(required)
				}

				claims, err := g.Tokens.Verify(token, kind)
				if err != nil {
					return TokenError(err)
				}

				a, err := g.Store.AccountByID(ctx, claims.UserID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return missing
					}

					return StoreFailure(err)
				}

				if stored(a) != token {
					return apperr.Unauthorized(stale)
				}

				r.Set(key, claims)
				r.Set(KeyAccount, a)
				return nil
			}),
		},
	}}
}

func (g *Guards) EmailVerifyTokenSchema() validators.Schema {
	return g.singleUseToken(
		"email_verify_token",
		security.EmailVerifyToken,
		KeyEmailVerifyToken,
		apperr.MsgEmailVerifyTokenRequired,
		apperr.MsgEmailVerifyTokenUsed,
		apperr.NotFound(apperr.MsgUserNotFound),
		func(a *model.Account) string { return a.EmailVerifyToken },
	)
}

// RequireEmailVerifyToken checks email_verify_token against the account
func (g *Guards) RequireEmailVerifyToken() gin.HandlerFunc {
	return g.Validate(g.EmailVerifyTokenSchema())
}

func (g *Guards) ForgotPasswordTokenSchema() validators.Schema {
	return g.singleUseToken(
		"forgot_password_token",
		security.ForgotPasswordToken,
		KeyForgotPasswordToken,
		apperr.MsgForgotTokenRequired,
		apperr.MsgForgotTokenInvalid,
		apperr.Unauthorized(apperr.MsgUserNotFound),
		func(a *model.Account) string { return a.ForgotPasswordToken },
	)
}

// RequireForgotPasswordToken checks forgot_password_token against the account
func (g *Guards) RequireForgotPasswordToken() gin.HandlerFunc {
	return g.Validate(g.ForgotPasswordTokenSchema())
}
