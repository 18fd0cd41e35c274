package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitwise74/account-api/internal/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection         = "users"
	refreshTokensCollection = "refresh_tokens"
	followersCollection     = "followers"
)

// MongoStore backs the store with a MongoDB database
type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration

	users     *mongo.Collection
	refreshes *mongo.Collection
	followers *mongo.Collection
}

func NewMongo(db *mongo.Database, timeout time.Duration) *MongoStore {
	return &MongoStore{
		db:        db,
		timeout:   timeout,
		users:     db.Collection(usersCollection),
		refreshes: db.Collection(refreshTokensCollection),
		followers: db.Collection(followersCollection),
	}
}

// EnsureIndexes creates the unique indexes the store relies on. Safe to
// call on every startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "username", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes, %w", err)
	}

	_, err = s.refreshes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create refresh token indexes, %w", err)
	}

	_, err = s.followers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "follower_id", Value: 1}, {Key: "followed_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create follower indexes, %w", err)
	}

	return nil
}

func (s *MongoStore) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case mongo.IsTimeout(err):
		return errors.Join(ErrUnavailable, err)
	}

	return timeoutErr(err)
}

func (s *MongoStore) InsertAccount(ctx context.Context, a *model.Account) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	_, err := s.users.InsertOne(ctx, a)
	return s.wrap(err)
}

func (s *MongoStore) accountBy(ctx context.Context, filter bson.D) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var a model.Account
	if err := s.users.FindOne(ctx, filter).Decode(&a); err != nil {
		return nil, s.wrap(err)
	}

	return &a, nil
}

func (s *MongoStore) AccountByID(ctx context.Context, id string) (*model.Account, error) {
	return s.accountBy(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.accountBy(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *MongoStore) AccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.accountBy(ctx, bson.D{{Key: "username", Value: username}})
}

func (s *MongoStore) UpdateAccount(ctx context.Context, id string, p model.AccountPatch) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	set := bson.D{}
	for k, v := range p.Fields(time.Now()) {
		set = append(set, bson.E{Key: k, Value: v})
	}

	filter := bson.D{{Key: "_id", Value: id}}
	for k, v := range p.Conditions() {
		filter = append(filter, bson.E{Key: k, Value: v})
	}

	var a model.Account
	err := s.users.FindOneAndUpdate(ctx,
		filter,
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if err != nil {
		return nil, s.wrap(err)
	}

	return &a, nil
}

func (s *MongoStore) InsertRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.refreshes.InsertOne(ctx, t)
	return s.wrap(err)
}

func (s *MongoStore) RefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var t model.RefreshToken
	if err := s.refreshes.FindOne(ctx, bson.D{{Key: "token", Value: token}}).Decode(&t); err != nil {
		return nil, s.wrap(err)
	}

	return &t, nil
}

func (s *MongoStore) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.refreshes.DeleteOne(ctx, bson.D{{Key: "token", Value: token}})
	if err != nil {
		return false, s.wrap(err)
	}

	return r.DeletedCount > 0, nil
}

func (s *MongoStore) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.refreshes.DeleteMany(ctx, bson.D{
		{Key: "expires_at", Value: bson.D{{Key: "$lt", Value: before}}},
	})
	if err != nil {
		return 0, s.wrap(err)
	}

	return r.DeletedCount, nil
}

func followFilter(followerID, followedID string) bson.D {
	return bson.D{
		{Key: "follower_id", Value: followerID},
		{Key: "followed_id", Value: followedID},
	}
}

func (s *MongoStore) InsertFollow(ctx context.Context, f *model.Follow) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	// Upsert keeps repeated follows idempotent without a read first
	r, err := s.followers.UpdateOne(ctx,
		followFilter(f.FollowerID, f.FollowedID),
		bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: f.CreatedAt}}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		// Two concurrent upserts can both miss and one loses on the unique index
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}

		return false, s.wrap(err)
	}

	return r.UpsertedCount > 0, nil
}

func (s *MongoStore) DeleteFollow(ctx context.Context, followerID, followedID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.followers.DeleteOne(ctx, followFilter(followerID, followedID))
	if err != nil {
		return false, s.wrap(err)
	}

	return r.DeletedCount > 0, nil
}

func (s *MongoStore) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.followers.CountDocuments(ctx, followFilter(followerID, followedID), options.Count().SetLimit(1))
	if err != nil {
		return false, s.wrap(err)
	}

	return n > 0, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.wrap(s.db.Client().Ping(ctx, nil))
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}
