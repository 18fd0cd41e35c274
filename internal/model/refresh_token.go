package model

import "time"

// RefreshToken is one active session. Deleting the row ends the session.
type RefreshToken struct {
	ID        string    `gorm:"primaryKey" bson:"_id"`
	UserID    string    `gorm:"index;not null" bson:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" bson:"token"`
	IssuedAt  time.Time `bson:"issued_at"`
	ExpiresAt time.Time `gorm:"index" bson:"expires_at"`
}
