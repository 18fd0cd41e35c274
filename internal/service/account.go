package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/apperr"
	"bitwise74/account-api/pkg/security"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RegisterInput struct {
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// Accounts implements the account state transitions. Request validation
// and authentication happen before any of these are called.
type Accounts struct {
	store  store.Store
	hasher *security.Hasher
	tokens *security.Issuer
	now    func() time.Time
}

func NewAccounts(s store.Store, h *security.Hasher, t *security.Issuer) *Accounts {
	return &Accounts{
		store:  s,
		hasher: h,
		tokens: t,
		now:    time.Now,
	}
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(apperr.MsgUserNotFound).Wrap(err)
	}

	return err
}

// signPair signs an access and a refresh token concurrently
func (s *Accounts) signPair(userID string, verify model.VerifyState, refreshExp time.Time) (*TokenPair, error) {
	var (
		pair TokenPair
		g    errgroup.Group
	)

	g.Go(func() (err error) {
		pair.AccessToken, err = s.tokens.Issue(security.AccessToken, userID, verify)
		return err
	})

	g.Go(func() (err error) {
		pair.RefreshToken, err = s.tokens.IssueUntil(security.RefreshToken, userID, verify, refreshExp)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to sign tokens, %w", err)
	}

	return &pair, nil
}

// saveSession records the refresh token of pair
func (s *Accounts) saveSession(ctx context.Context, userID string, pair *TokenPair, issuedAt, exp time.Time) error {
	id, err := gonanoid.Generate(idCharset, 16)
	if err != nil {
		return fmt.Errorf("failed to generate session ID, %w", err)
	}

	err = s.store.InsertRefreshToken(ctx, &model.RefreshToken{
		ID:        id,
		UserID:    userID,
		Token:     pair.RefreshToken,
		IssuedAt:  issuedAt,
		ExpiresAt: exp,
	})
	if err != nil {
		return fmt.Errorf("failed to save refresh token, %w", err)
	}

	return nil
}

func (s *Accounts) refreshExpiry(exp time.Time) time.Time {
	if exp.IsZero() {
		return s.now().Add(s.tokens.TTL(security.RefreshToken))
	}

	return exp
}

// issuePair signs a token pair and records the refresh session. A zero
// refreshExp means a fresh session.
func (s *Accounts) issuePair(ctx context.Context, userID string, verify model.VerifyState, refreshExp time.Time) (*TokenPair, error) {
	now := s.now()
	refreshExp = s.refreshExpiry(refreshExp)

	pair, err := s.signPair(userID, verify, refreshExp)
	if err != nil {
		return nil, err
	}

	if err := s.saveSession(ctx, userID, pair, now, refreshExp); err != nil {
		return nil, err
	}

	return pair, nil
}

// Register creates an unverified account and logs it in
func (s *Accounts) Register(ctx context.Context, in RegisterInput) (*TokenPair, error) {
	userID, err := gonanoid.Generate(idCharset, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID, %w", err)
	}

	emailToken, err := s.tokens.Issue(security.EmailVerifyToken, userID, model.Unverified)
	if err != nil {
		return nil, fmt.Errorf("failed to sign email verify token, %w", err)
	}

	now := s.now()
	err = s.store.InsertAccount(ctx, &model.Account{
		ID:               userID,
		Email:            in.Email,
		PasswordHash:     s.hasher.Hash(in.Password),
		Name:             in.Name,
		DateOfBirth:      in.DateOfBirth,
		Verify:           model.Unverified,
		EmailVerifyToken: emailToken,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		// Lost the race against another registration with the same email
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict(apperr.MsgEmailAlreadyExists).Wrap(err)
		}

		return nil, fmt.Errorf("failed to create account, %w", err)
	}

	zap.L().Debug("Account registered, email verification pending", zap.String("userID", userID))

	return s.issuePair(ctx, userID, model.Unverified, time.Time{})
}

// Authenticate checks credentials. A mismatch is reported the same way
// whether the email exists or not.
func (s *Accounts) Authenticate(ctx context.Context, email, password string) (*model.Account, error) {
	a, err := s.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized(apperr.MsgEmailOrPasswordBad)
		}

		return nil, err
	}

	if !s.hasher.Compare(password, a.PasswordHash) {
		return nil, apperr.Unauthorized(apperr.MsgEmailOrPasswordBad)
	}

	return a, nil
}

func (s *Accounts) Login(ctx context.Context, userID string, verify model.VerifyState) (*TokenPair, error) {
	return s.issuePair(ctx, userID, verify, time.Time{})
}

// Logout ends the session. Unknown tokens are ignored.
func (s *Accounts) Logout(ctx context.Context, refreshToken string) error {
	if _, err := s.store.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to delete refresh token, %w", err)
	}

	return nil
}

// RefreshToken rotates a session. The new refresh token keeps the old
// expiry so a session can't be extended forever. Only the request that
// actually deletes the old record gets a new pair.
func (s *Accounts) RefreshToken(ctx context.Context, old string, claims *security.Claims) (*TokenPair, error) {
	a, err := s.store.AccountByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized(apperr.MsgUserNotFound).Wrap(err)
		}

		return nil, err
	}

	deleted, err := s.store.DeleteRefreshToken(ctx, old)
	if err != nil {
		return nil, fmt.Errorf("failed to delete refresh token, %w", err)
	}

	if !deleted {
		return nil, apperr.Unauthorized(apperr.MsgRefreshTokenNotExist)
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	return s.issuePair(ctx, a.ID, a.Verify, exp)
}

// VerifyEmail consumes token, marks the account verified and returns tokens
// carrying the new state. Access tokens issued earlier still say Unverified
// until they expire. The session is recorded only once the token is
// consumed, a stale or already used token yields no session.
func (s *Accounts) VerifyEmail(ctx context.Context, userID, token string) (*TokenPair, error) {
	var (
		pair *TokenPair
		now  = s.now()
		exp  = s.refreshExpiry(time.Time{})
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		pair, err = s.signPair(userID, model.Verified, exp)
		return err
	})

	g.Go(func() error {
		verified := model.Verified
		empty := ""

		_, err := s.store.UpdateAccount(gctx, userID, model.AccountPatch{
			Verify:             &verified,
			EmailVerifyToken:   &empty,
			IfEmailVerifyToken: &token,
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.Unauthorized(apperr.MsgEmailVerifyTokenUsed).Wrap(err)
			}

			return fmt.Errorf("failed to verify account, %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.saveSession(ctx, userID, pair, now, exp); err != nil {
		return nil, err
	}

	return pair, nil
}

// ResendVerifyEmail rotates the email verify token, invalidating the old
// one. It reports false if the account is already verified.
func (s *Accounts) ResendVerifyEmail(ctx context.Context, userID string) (bool, error) {
	a, err := s.store.AccountByID(ctx, userID)
	if err != nil {
		return false, notFound(err)
	}

	if a.Verify == model.Verified {
		return false, nil
	}

	token, err := s.tokens.Issue(security.EmailVerifyToken, userID, a.Verify)
	if err != nil {
		return false, fmt.Errorf("failed to sign email verify token, %w", err)
	}

	if _, err := s.store.UpdateAccount(ctx, userID, model.AccountPatch{EmailVerifyToken: &token}); err != nil {
		return false, fmt.Errorf("failed to save email verify token, %w", notFound(err))
	}

	zap.L().Debug("Email verify token reissued", zap.String("userID", userID))

	return true, nil
}

// ForgotPassword stores a fresh forgot password token on the account. The
// token is persisted before this returns.
func (s *Accounts) ForgotPassword(ctx context.Context, userID string, verify model.VerifyState) error {
	token, err := s.tokens.Issue(security.ForgotPasswordToken, userID, verify)
	if err != nil {
		return fmt.Errorf("failed to sign forgot password token, %w", err)
	}

	if _, err := s.store.UpdateAccount(ctx, userID, model.AccountPatch{ForgotPasswordToken: &token}); err != nil {
		return fmt.Errorf("failed to save forgot password token, %w", notFound(err))
	}

	zap.L().Debug("Forgot password token issued", zap.String("userID", userID))

	return nil
}

// ResetPassword consumes the forgot password token and sets a new password.
// Fails with 401 if token is no longer the one stored on the account.
func (s *Accounts) ResetPassword(ctx context.Context, userID, token, password string) error {
	hash := s.hasher.Hash(password)
	empty := ""

	_, err := s.store.UpdateAccount(ctx, userID, model.AccountPatch{
		PasswordHash:          &hash,
		ForgotPasswordToken:   &empty,
		IfForgotPasswordToken: &token,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthorized(apperr.MsgForgotTokenInvalid).Wrap(err)
		}

		return fmt.Errorf("failed to reset password, %w", err)
	}

	return nil
}

// ChangePassword expects the old password to be checked already
func (s *Accounts) ChangePassword(ctx context.Context, userID, password string) error {
	hash := s.hasher.Hash(password)

	if _, err := s.store.UpdateAccount(ctx, userID, model.AccountPatch{PasswordHash: &hash}); err != nil {
		return fmt.Errorf("failed to change password, %w", notFound(err))
	}

	return nil
}

// CheckPassword reports whether password is the account's current one
func (s *Accounts) CheckPassword(ctx context.Context, userID, password string) (bool, error) {
	a, err := s.store.AccountByID(ctx, userID)
	if err != nil {
		return false, notFound(err)
	}

	return s.hasher.Compare(password, a.PasswordHash), nil
}

func (s *Accounts) Me(ctx context.Context, userID string) (*model.Account, error) {
	a, err := s.store.AccountByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}

	return a, nil
}

func (s *Accounts) UpdateMe(ctx context.Context, userID string, p model.AccountPatch) (*model.Account, error) {
	a, err := s.store.UpdateAccount(ctx, userID, p)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict(apperr.MsgUsernameTaken).Wrap(err)
		}

		return nil, notFound(err)
	}

	return a, nil
}

func (s *Accounts) Profile(ctx context.Context, username string) (*model.PublicProfile, error) {
	a, err := s.store.AccountByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err)
	}

	p := a.Public()
	return &p, nil
}

// Follow reports whether a new edge was created. Following someone twice is
// not an error.
func (s *Accounts) Follow(ctx context.Context, followerID, followedID string) (bool, error) {
	if followerID == followedID {
		return false, apperr.Validation(map[string]apperr.FieldError{
			"followed_user_id": {Message: apperr.MsgCannotFollowSelf, Value: followedID, Location: "body"},
		})
	}

	if _, err := s.store.AccountByID(ctx, followedID); err != nil {
		return false, notFound(err)
	}

	following, err := s.store.IsFollowing(ctx, followerID, followedID)
	if err != nil {
		return false, fmt.Errorf("failed to check follow, %w", err)
	}

	if following {
		return false, nil
	}

	// The unique edge still settles a concurrent follow
	created, err := s.store.InsertFollow(ctx, &model.Follow{
		FollowerID: followerID,
		FollowedID: followedID,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to follow, %w", err)
	}

	return created, nil
}

// Unfollow reports whether an edge was removed. Unfollowing someone who
// isn't followed is not an error.
func (s *Accounts) Unfollow(ctx context.Context, followerID, followedID string) (bool, error) {
	deleted, err := s.store.DeleteFollow(ctx, followerID, followedID)
	if err != nil {
		return false, fmt.Errorf("failed to unfollow, %w", err)
	}

	return deleted, nil
}

// EmailExists is used by the register and forgot password validators
func (s *Accounts) EmailExists(ctx context.Context, email string) (*model.Account, bool, error) {
	a, err := s.store.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return a, true, nil
}

// UsernameTaken reports whether someone other than userID uses username
func (s *Accounts) UsernameTaken(ctx context.Context, username, userID string) (bool, error) {
	a, err := s.store.AccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return a.ID != userID, nil
}
