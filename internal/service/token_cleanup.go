package service

import (
	"context"
	"fmt"
	"time"

	"bitwise74/account-api/internal/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PurgeExpiredTokens deletes refresh token records whose token can no longer
// verify anyway
func PurgeExpiredTokens(ctx context.Context, s store.Store, now time.Time) (int64, error) {
	n, err := s.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens, %w", err)
	}

	return n, nil
}

// TokenCleanup schedules PurgeExpiredTokens with a cron spec like "@daily".
// The returned scheduler is already running, stop it on shutdown.
func TokenCleanup(spec string, s store.Store) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		n, err := PurgeExpiredTokens(context.Background(), s, time.Now())
		if err != nil {
			zap.L().Error("Failed to cleanup refresh tokens", zap.Error(err))
			return
		}

		if n > 0 {
			zap.L().Debug("Cleaned up expired refresh tokens", zap.Int64("count", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q, %w", spec, err)
	}

	c.Start()
	zap.L().Debug("Token cleanup attached", zap.String("schedule", spec))

	return c, nil
}
