package model

import "time"

type Follow struct {
	FollowerID string    `gorm:"primaryKey" bson:"follower_id"`
	FollowedID string    `gorm:"primaryKey" bson:"followed_id"`
	CreatedAt  time.Time `bson:"created_at"`
}
