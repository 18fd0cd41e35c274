package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/internal/store/storetest"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	accounts *Accounts
	store    *store.GormStore
	tokens   *security.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	h, err := security.NewHasher("pepper")
	require.NoError(t, err)
	h.Memory = 8 * 1024
	h.Iterations = 1

	tokens, err := security.NewIssuer(security.TokenConfig{
		Access:         security.KindConfig{Secret: "access", TTL: 15 * time.Minute},
		Refresh:        security.KindConfig{Secret: "refresh", TTL: 100 * 24 * time.Hour},
		EmailVerify:    security.KindConfig{Secret: "email", TTL: 7 * 24 * time.Hour},
		ForgotPassword: security.KindConfig{Secret: "forgot", TTL: 7 * 24 * time.Hour},
	})
	require.NoError(t, err)

	s := storetest.NewSQLite(t)

	return &fixture{
		accounts: NewAccounts(s, h, tokens),
		store:    s,
		tokens:   tokens,
	}
}

func (f *fixture) register(t *testing.T, email string) (string, *TokenPair) {
	t.Helper()

	pair, err := f.accounts.Register(context.Background(), RegisterInput{
		Name:     "Harry",
		Email:    email,
		Password: "Secret1!",
	})
	require.NoError(t, err)

	claims, err := f.tokens.Verify(pair.AccessToken, security.AccessToken)
	require.NoError(t, err)

	return claims.UserID, pair
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	ae, ok := apperr.As(err)
	require.True(t, ok, "expected a typed error, got %v", err)
	return ae.Status
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, pair := f.register(t, "harry@hogwarts.edu")

	claims, err := f.tokens.Verify(pair.AccessToken, security.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.Unverified, claims.Verify)

	a, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "harry@hogwarts.edu", a.Email)
	assert.NotEqual(t, "Secret1!", a.PasswordHash)
	assert.NotEmpty(t, a.EmailVerifyToken)
	assert.Equal(t, model.Unverified, a.Verify)

	ev, err := f.tokens.Verify(a.EmailVerifyToken, security.EmailVerifyToken)
	require.NoError(t, err)
	assert.Equal(t, userID, ev.UserID)

	rt, err := f.store.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, rt.UserID)
}

func TestRegisterDuplicateEmailIsConflict(t *testing.T) {
	f := newFixture(t)

	f.register(t, "harry@hogwarts.edu")

	_, err := f.accounts.Register(context.Background(), RegisterInput{
		Name:     "Other",
		Email:    "harry@hogwarts.edu",
		Password: "Secret1!",
	})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := f.register(t, "harry@hogwarts.edu")

	a, err := f.accounts.Authenticate(ctx, "harry@hogwarts.edu", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, userID, a.ID)

	_, err = f.accounts.Authenticate(ctx, "harry@hogwarts.edu", "Wrong1!")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = f.accounts.Authenticate(ctx, "nobody@hogwarts.edu", "Secret1!")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := f.register(t, "harry@hogwarts.edu")

	before, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)

	pair, err := f.accounts.VerifyEmail(ctx, userID, before.EmailVerifyToken)
	require.NoError(t, err)

	claims, err := f.tokens.Verify(pair.AccessToken, security.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.Verified, claims.Verify)

	a, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.Verified, a.Verify)
	assert.Empty(t, a.EmailVerifyToken)

	sent, err := f.accounts.ResendVerifyEmail(ctx, userID)
	require.NoError(t, err)
	assert.False(t, sent)

	_, err = f.accounts.VerifyEmail(ctx, userID, before.EmailVerifyToken)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

// drainSessions deletes every stored refresh record and returns how many
// there were
func (f *fixture) drainSessions(t *testing.T) int64 {
	t.Helper()

	n, err := f.store.DeleteExpiredRefreshTokens(context.Background(), time.Now().AddDate(1000, 0, 0))
	require.NoError(t, err)

	return n
}

func TestVerifyEmailConsumesTokenOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := f.register(t, "harry@hogwarts.edu")
	a, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := f.accounts.VerifyEmail(ctx, userID, a.EmailVerifyToken)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	for _, err := range errs {
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	}

	// One session from registering, one from the winning verification
	assert.Equal(t, int64(2), f.drainSessions(t))
}

func TestVerifyEmailStaleTokenLeavesNoSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := f.register(t, "harry@hogwarts.edu")
	stale, err := f.tokens.Issue(security.EmailVerifyToken, userID, model.Unverified)
	require.NoError(t, err)

	pair, err := f.accounts.VerifyEmail(ctx, userID, stale)
	assert.Nil(t, pair)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	a, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.Unverified, a.Verify)
	assert.NotEmpty(t, a.EmailVerifyToken)

	assert.Equal(t, int64(1), f.drainSessions(t))
}

func TestResendVerifyEmailRotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := f.register(t, "harry@hogwarts.edu")
	before, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)

	sent, err := f.accounts.ResendVerifyEmail(ctx, userID)
	require.NoError(t, err)
	assert.True(t, sent)

	after, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, before.EmailVerifyToken, after.EmailVerifyToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.register(t, "harry@hogwarts.edu")

	require.NoError(t, f.accounts.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.accounts.Logout(ctx, pair.RefreshToken))

	_, err := f.store.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshTokenRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.register(t, "harry@hogwarts.edu")

	old, err := f.tokens.Verify(pair.RefreshToken, security.RefreshToken)
	require.NoError(t, err)

	rotated, err := f.accounts.RefreshToken(ctx, pair.RefreshToken, old)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = f.store.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, store.ErrNotFound)

	next, err := f.tokens.Verify(rotated.RefreshToken, security.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, old.ExpiresAt.Unix(), next.ExpiresAt.Unix())

	rec, err := f.store.RefreshToken(ctx, rotated.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, old.ExpiresAt.Unix(), rec.ExpiresAt.Unix())

	_, err = f.accounts.RefreshToken(ctx, pair.RefreshToken, old)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestRefreshTokenRotatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.register(t, "harry@hogwarts.edu")
	claims, err := f.tokens.Verify(pair.RefreshToken, security.RefreshToken)
	require.NoError(t, err)

	const n = 8
	results := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.accounts.RefreshToken(ctx, pair.RefreshToken, claims)
		}()
	}
	wg.Wait()

	oks := 0
	for _, err := range results {
		if err == nil {
			oks++
			continue
		}
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	}

	assert.Equal(t, 1, oks)
	assert.Equal(t, int64(1), f.drainSessions(t))
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := f.register(t, "harry@hogwarts.edu")

	require.NoError(t, f.accounts.ForgotPassword(ctx, userID, model.Unverified))

	a, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, a.ForgotPasswordToken)

	_, err = f.tokens.Verify(a.ForgotPasswordToken, security.ForgotPasswordToken)
	require.NoError(t, err)

	require.NoError(t, f.accounts.ResetPassword(ctx, userID, a.ForgotPasswordToken, "NewSecret2@"))

	a, err = f.store.AccountByID(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, a.ForgotPasswordToken)

	_, err = f.accounts.Authenticate(ctx, "harry@hogwarts.edu", "NewSecret2@")
	assert.NoError(t, err)

	assert.Error(t, f.accounts.ResetPassword(ctx, "missing", "x", "NewSecret2@"))
}

func TestResetPasswordConsumesTokenOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := f.register(t, "harry@hogwarts.edu")
	require.NoError(t, f.accounts.ForgotPassword(ctx, userID, model.Unverified))

	a, err := f.store.AccountByID(ctx, userID)
	require.NoError(t, err)

	const n = 8
	results := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.accounts.ResetPassword(ctx, userID, a.ForgotPasswordToken, "NewSecret2@")
		}()
	}
	wg.Wait()

	oks := 0
	for _, err := range results {
		if err == nil {
			oks++
			continue
		}
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	}

	assert.Equal(t, 1, oks)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := f.register(t, "harry@hogwarts.edu")

	ok, err := f.accounts.CheckPassword(ctx, userID, "Secret1!")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.accounts.ChangePassword(ctx, userID, "Changed3#"))

	ok, err = f.accounts.CheckPassword(ctx, userID, "Secret1!")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFollow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.register(t, "a@hogwarts.edu")
	b, _ := f.register(t, "b@hogwarts.edu")

	created, err := f.accounts.Follow(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.accounts.Follow(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.accounts.Follow(ctx, a, a)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	_, err = f.accounts.Follow(ctx, a, "missing")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	deleted, err := f.accounts.Unfollow(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.accounts.Unfollow(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestUpdateMeAndProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.register(t, "a@hogwarts.edu")
	b, _ := f.register(t, "b@hogwarts.edu")

	name := "the_chosen"
	bio := "Lives under the stairs"
	acc, err := f.accounts.UpdateMe(ctx, a, model.AccountPatch{Username: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, bio, acc.Bio)

	_, err = f.accounts.UpdateMe(ctx, b, model.AccountPatch{Username: &name})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	taken, err := f.accounts.UsernameTaken(ctx, name, b)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = f.accounts.UsernameTaken(ctx, name, a)
	require.NoError(t, err)
	assert.False(t, taken)

	p, err := f.accounts.Profile(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, a, p.ID)
	assert.Equal(t, name, p.Username)

	_, err = f.accounts.Profile(ctx, "nobody")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestPurgeExpiredTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair := f.register(t, "harry@hogwarts.edu")

	n, err := PurgeExpiredTokens(ctx, f.store, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = PurgeExpiredTokens(ctx, f.store, time.Now().Add(101*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.store.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTokenCleanupRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)

	_, err := TokenCleanup("not a schedule", f.store)
	assert.Error(t, err)

	c, err := TokenCleanup("@daily", f.store)
	require.NoError(t, err)
	c.Stop()
}
