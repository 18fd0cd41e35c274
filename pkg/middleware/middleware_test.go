package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/internal/store/storetest"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/security"
	"bitwise74/account-api/pkg/validators"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(NewRequestIDMiddleware(), ErrorHandler())
	r.POST("/", handlers...)

	return r
}

func serve(t *testing.T, r *gin.Engine, body string, header http.Header) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}

	return w.Code, out
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.NotFound(apperr.MsgUserNotFound), http.StatusNotFound, apperr.MsgUserNotFound},
		{fmt.Errorf("wrapped, %w", apperr.Forbidden(apperr.MsgUserNotVerified)), http.StatusForbidden, apperr.MsgUserNotVerified},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, apperr.MsgInternal},
		{fmt.Errorf("lookup, %w", store.ErrUnavailable), http.StatusServiceUnavailable, apperr.MsgUnavailable},
	}

	for _, tt := range tests {
		r := newEngine(func(c *gin.Context) { Fail(c, tt.err) })

		status, body := serve(t, r, "", nil)
		assert.Equal(t, tt.status, status)
		assert.Equal(t, tt.message, body["message"])
		assert.NotEmpty(t, body["requestID"])
		assert.NotContains(t, body, "errors")
	}
}

func TestErrorHandlerSerializesFields(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		Fail(c, apperr.Validation(map[string]apperr.FieldError{
			"email": {Message: apperr.MsgEmailInvalid, Value: "harry", Location: "body"},
		}))
	})

	status, body := serve(t, r, "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	fields := body["errors"].(map[string]any)
	assert.Equal(t, map[string]any{"msg": apperr.MsgEmailInvalid, "value": "harry", "location": "body"}, fields["email"])
}

func TestJSONBody(t *testing.T) {
	var got map[string]any
	r := newEngine(BodySizeLimiter(64), JSONBody(), func(c *gin.Context) {
		got = Request(c).Body()
		c.Status(http.StatusNoContent)
	})

	status, _ := serve(t, r, `{"email":"harry@hogwarts.edu"}`, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, map[string]any{"email": "harry@hogwarts.edu"}, got)

	status, _ = serve(t, r, "", nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Empty(t, got)

	status, body := serve(t, r, `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.MsgInvalidBody, body["message"])

	status, body = serve(t, r, `{"bio":"`+strings.Repeat("a", 100)+`"}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, apperr.MsgBodyTooLarge, body["message"])
}

func TestFilterBodyAndBind(t *testing.T) {
	type out struct {
		Name        string     `json:"name"`
		DateOfBirth *time.Time `json:"date_of_birth"`
		Email       string     `json:"email"`
	}

	var got out
	r := newEngine(JSONBody(), FilterBody("name", "date_of_birth"), func(c *gin.Context) {
		if err := Bind(c, &got); err != nil {
			Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	status, _ := serve(t, r, `{"name":"Harry","date_of_birth":"1980-07-31","email":"evil@hogwarts.edu"}`, nil)
	require.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, "Harry", got.Name)
	assert.Empty(t, got.Email)
	require.NotNil(t, got.DateOfBirth)
	assert.Equal(t, time.July, got.DateOfBirth.Month())
}

func TestValidateCopiesLocals(t *testing.T) {
	e := validators.NewEngine(0)
	schema := validators.Schema{{
		Name: "email",
		In:   validators.Body,
		Rules: []validators.Rule{
			validators.IsEmail(apperr.MsgEmailInvalid),
			validators.Custom(func(_ context.Context, v any, r *validators.Request) error {
				r.Set("seen", v)
				return nil
			}),
		},
	}}

	var seen any
	r := newEngine(JSONBody(), Validate(e, schema), func(c *gin.Context) {
		seen, _ = c.Get("seen")
		c.Status(http.StatusNoContent)
	})

	status, _ := serve(t, r, `{"email":"harry@hogwarts.edu"}`, nil)
	require.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, "harry@hogwarts.edu", seen)

	status, body := serve(t, r, `{"email":"harry"}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["errors"], "email")
}

type guardFixture struct {
	guards *Guards
	tokens *security.Issuer
	store  store.Store
}

func newGuards(t *testing.T) *guardFixture {
	t.Helper()

	tokens, err := security.NewIssuer(security.TokenConfig{
		Access:         security.KindConfig{Secret: "a", TTL: time.Minute},
		Refresh:        security.KindConfig{Secret: "r", TTL: time.Hour},
		EmailVerify:    security.KindConfig{Secret: "e", TTL: time.Hour},
		ForgotPassword: security.KindConfig{Secret: "f", TTL: time.Hour},
	})
	require.NoError(t, err)

	s := storetest.NewSQLite(t)

	return &guardFixture{
		guards: NewGuards(validators.NewEngine(0), tokens, s),
		tokens: tokens,
		store:  s,
	}
}

func TestRequireAccessToken(t *testing.T) {
	f := newGuards(t)

	var userID string
	r := newEngine(f.guards.RequireAccessToken(), f.guards.RequireVerifiedUser(), func(c *gin.Context) {
		userID = c.GetString(KeyUserID)
		c.Status(http.StatusNoContent)
	})

	verified, err := f.tokens.Issue(security.AccessToken, "u1", model.Verified)
	require.NoError(t, err)
	unverified, err := f.tokens.Issue(security.AccessToken, "u2", model.Unverified)
	require.NoError(t, err)
	refresh, err := f.tokens.Issue(security.RefreshToken, "u1", model.Verified)
	require.NoError(t, err)

	tests := []struct {
		header  string
		status  int
		message string
	}{
		{"", http.StatusUnauthorized, apperr.MsgAccessTokenRequired},
		{"Bearer ", http.StatusUnauthorized, apperr.MsgAccessTokenRequired},
		{verified, http.StatusUnauthorized, apperr.MsgAccessTokenRequired},
		{"Bearer nope", http.StatusUnauthorized, apperr.MsgTokenMalformed},
		{"Bearer " + refresh, http.StatusUnauthorized, apperr.MsgTokenSignature},
		{"Bearer " + unverified, http.StatusForbidden, apperr.MsgUserNotVerified},
		{"Bearer " + verified, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		h := http.Header{}
		if tt.header != "" {
			h.Set("Authorization", tt.header)
		}

		status, body := serve(t, r, "", h)
		assert.Equal(t, tt.status, status, tt.header)
		if tt.message != "" {
			assert.Equal(t, tt.message, body["message"], tt.header)
			assert.NotContains(t, body, "errors")
		}
	}

	assert.Equal(t, "u1", userID)
}

func TestRequireRefreshToken(t *testing.T) {
	f := newGuards(t)
	ctx := context.Background()

	r := newEngine(JSONBody(), f.guards.RequireRefreshToken(), func(c *gin.Context) {
		assert.Equal(t, "u1", Claims(c, KeyRefreshToken).UserID)
		c.Status(http.StatusNoContent)
	})

	token, err := f.tokens.Issue(security.RefreshToken, "u1", model.Verified)
	require.NoError(t, err)

	status, body := serve(t, r, `{"refresh_token":"`+token+`"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.MsgRefreshTokenNotExist, body["message"])

	require.NoError(t, f.store.InsertRefreshToken(ctx, &model.RefreshToken{
		ID:        "rt1",
		Token:     token,
		UserID:    "u1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	status, _ = serve(t, r, `{"refresh_token":"`+token+`"}`, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = serve(t, r, `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.MsgRefreshTokenRequired, body["message"])
}

func TestRequireEmailVerifyToken(t *testing.T) {
	f := newGuards(t)
	ctx := context.Background()

	r := newEngine(JSONBody(), f.guards.RequireEmailVerifyToken(), func(c *gin.Context) {
		a, _ := c.Get(KeyAccount)
		assert.Equal(t, "u1", a.(*model.Account).ID)
		c.Status(http.StatusNoContent)
	})

	orphan, err := f.tokens.Issue(security.EmailVerifyToken, "ghost", model.Unverified)
	require.NoError(t, err)

	status, _ := serve(t, r, `{"email_verify_token":"`+orphan+`"}`, nil)
	assert.Equal(t, http.StatusNotFound, status)

	token, err := f.tokens.Issue(security.EmailVerifyToken, "u1", model.Unverified)
	require.NoError(t, err)
	stale, err := f.tokens.Issue(security.EmailVerifyToken, "u1", model.Unverified)
	require.NoError(t, err)

	require.NoError(t, f.store.InsertAccount(ctx, &model.Account{
		ID:               "u1",
		Email:            "harry@hogwarts.edu",
		PasswordHash:     "x",
		EmailVerifyToken: token,
	}))

	status, body := serve(t, r, `{"email_verify_token":"`+stale+`"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.MsgEmailVerifyTokenUsed, body["message"])

	status, _ = serve(t, r, `{"email_verify_token":"`+token+`"}`, nil)
	assert.Equal(t, http.StatusNoContent, status)
}
