package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitwise74/account-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore backs the store with postgres or sqlite
type GormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewGorm(db *gorm.DB, timeout time.Duration) *GormStore {
	return &GormStore{db: db, timeout: timeout}
}

func (s *GormStore) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}

	return timeoutErr(err)
}

func (s *GormStore) InsertAccount(ctx context.Context, a *model.Account) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.wrap(s.db.WithContext(ctx).Create(a).Error)
}

func (s *GormStore) accountBy(ctx context.Context, column, value string) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var a model.Account
	err := s.db.WithContext(ctx).
		Where(column+" = ?", value).
		First(&a).
		Error
	if err != nil {
		return nil, s.wrap(err)
	}

	return &a, nil
}

func (s *GormStore) AccountByID(ctx context.Context, id string) (*model.Account, error) {
	return s.accountBy(ctx, "id", id)
}

func (s *GormStore) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.accountBy(ctx, "email", email)
}

func (s *GormStore) AccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.accountBy(ctx, "username", username)
}

func (s *GormStore) UpdateAccount(ctx context.Context, id string, p model.AccountPatch) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var a model.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.Account{}).Where("id = ?", id)
		for k, v := range p.Conditions() {
			q = q.Where(k+" = ?", v)
		}

		r := q.Updates(p.Fields(time.Now()))
		if r.Error != nil {
			return r.Error
		}

		if r.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Where("id = ?", id).First(&a).Error
	})
	if err != nil {
		return nil, s.wrap(err)
	}

	return &a, nil
}

func (s *GormStore) InsertRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.wrap(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormStore) RefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var t model.RefreshToken
	err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&t).
		Error
	if err != nil {
		return nil, s.wrap(err)
	}

	return &t, nil
}

func (s *GormStore) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	r := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&model.RefreshToken{})
	if r.Error != nil {
		return false, s.wrap(r.Error)
	}

	return r.RowsAffected > 0, nil
}

func (s *GormStore) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	r := s.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&model.RefreshToken{})

	return r.RowsAffected, s.wrap(r.Error)
}

func (s *GormStore) InsertFollow(ctx context.Context, f *model.Follow) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	r := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(f)
	if r.Error != nil {
		return false, s.wrap(r.Error)
	}

	return r.RowsAffected > 0, nil
}

func (s *GormStore) DeleteFollow(ctx context.Context, followerID, followedID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	r := s.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&model.Follow{})
	if r.Error != nil {
		return false, s.wrap(r.Error)
	}

	return r.RowsAffected > 0, nil
}

func (s *GormStore) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&n).
		Error

	return n > 0, s.wrap(err)
}

func (s *GormStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return timeoutErr(sqlDB.PingContext(ctx))
}

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
