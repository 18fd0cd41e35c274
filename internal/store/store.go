// Package store persists accounts, refresh-token records and follow edges.
// Uniqueness is enforced by the backing database, not by callers.
package store

import (
	"context"
	"errors"
	"time"

	"bitwise74/account-api/internal/model"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("record already exists")
	ErrUnavailable = errors.New("store unavailable")
)

type Store interface {
	InsertAccount(ctx context.Context, a *model.Account) error
	AccountByID(ctx context.Context, id string) (*model.Account, error)
	AccountByEmail(ctx context.Context, email string) (*model.Account, error)
	AccountByUsername(ctx context.Context, username string) (*model.Account, error)
	// UpdateAccount applies p, touches updated_at and returns the new state.
	// ErrNotFound when no account matches the id and p.Conditions.
	UpdateAccount(ctx context.Context, id string, p model.AccountPatch) (*model.Account, error)

	InsertRefreshToken(ctx context.Context, t *model.RefreshToken) error
	RefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
	// DeleteRefreshToken reports whether this call removed the record
	DeleteRefreshToken(ctx context.Context, token string) (bool, error)
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)

	// InsertFollow reports whether a new edge was created
	InsertFollow(ctx context.Context, f *model.Follow) (bool, error)
	// DeleteFollow reports whether an edge was removed
	DeleteFollow(ctx context.Context, followerID, followedID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefaultTimeout bounds a single round trip when none is configured
const DefaultTimeout = 5 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}

	return context.WithTimeout(ctx, d)
}

// timeoutErr turns deadline and cancellation failures into ErrUnavailable
func timeoutErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrUnavailable, err)
	}

	return err
}
