// Package model defines the persisted records. Every struct carries both gorm
// and bson tags so the same types back the SQL and the document store, and
// the column names match the document field names.
package model

import (
	"fmt"
	"time"
)

type VerifyState int

const (
	Unverified VerifyState = iota
	Verified
	Banned
)

var verifyStateNames = map[VerifyState]string{
	Unverified: "Unverified",
	Verified:   "Verified",
	Banned:     "Banned",
}

func (s VerifyState) String() string {
	if n, ok := verifyStateNames[s]; ok {
		return n
	}

	return fmt.Sprintf("VerifyState(%d)", int(s))
}

func (s VerifyState) MarshalText() ([]byte, error) {
	n, ok := verifyStateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown verify state %d", int(s))
	}

	return []byte(n), nil
}

func (s *VerifyState) UnmarshalText(b []byte) error {
	for k, n := range verifyStateNames {
		if n == string(b) {
			*s = k
			return nil
		}
	}

	return fmt.Errorf("unknown verify state %q", string(b))
}

type Account struct {
	ID           string `gorm:"primaryKey" bson:"_id" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" bson:"email" json:"email"`
	PasswordHash string `gorm:"not null" bson:"password_hash" json:"-"`
	Name         string `bson:"name" json:"name"`

	DateOfBirth *time.Time `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	Bio         string     `bson:"bio" json:"bio"`
	Location    string     `bson:"location" json:"location"`
	Website     string     `bson:"website" json:"website"`
	Avatar      string     `bson:"avatar" json:"avatar"`
	CoverPhoto  string     `bson:"cover_photo" json:"cover_photo"`
	// Nil until the user picks one, so the unique index ignores unset rows
	Username *string `gorm:"uniqueIndex" bson:"username,omitempty" json:"username,omitempty"`

	Verify VerifyState `gorm:"not null;default:0" bson:"verify" json:"verification_state"`

	// Single-use token strings. Empty once consumed.
	EmailVerifyToken    string `bson:"email_verify_token" json:"-"`
	ForgotPasswordToken string `bson:"forgot_password_token" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PublicProfile is what other users get to see
type PublicProfile struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Username    string      `json:"username"`
	DateOfBirth *time.Time  `json:"date_of_birth,omitempty"`
	Bio         string      `json:"bio"`
	Location    string      `json:"location"`
	Website     string      `json:"website"`
	Avatar      string      `json:"avatar"`
	CoverPhoto  string      `json:"cover_photo"`
	Verify      VerifyState `json:"verification_state"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (a *Account) Public() PublicProfile {
	p := PublicProfile{
		ID:          a.ID,
		Name:        a.Name,
		DateOfBirth: a.DateOfBirth,
		Bio:         a.Bio,
		Location:    a.Location,
		Website:     a.Website,
		Avatar:      a.Avatar,
		CoverPhoto:  a.CoverPhoto,
		Verify:      a.Verify,
		CreatedAt:   a.CreatedAt,
	}
	if a.Username != nil {
		p.Username = *a.Username
	}

	return p
}

// AccountPatch lists the columns an update may touch. Nil fields are left
// alone.
type AccountPatch struct {
	Name        *string
	DateOfBirth *time.Time
	Bio         *string
	Location    *string
	Website     *string
	Avatar      *string
	CoverPhoto  *string
	Username    *string

	PasswordHash        *string
	Verify              *VerifyState
	EmailVerifyToken    *string
	ForgotPasswordToken *string

	// Preconditions. The update only applies while the stored single-use
	// token still equals these.
	IfEmailVerifyToken    *string
	IfForgotPasswordToken *string
}

// Conditions returns the column/field values the stored row must still have
func (p AccountPatch) Conditions() map[string]any {
	c := map[string]any{}

	if p.IfEmailVerifyToken != nil {
		c["email_verify_token"] = *p.IfEmailVerifyToken
	}

	if p.IfForgotPasswordToken != nil {
		c["forgot_password_token"] = *p.IfForgotPasswordToken
	}

	return c
}

// Fields returns the column/field names to set, always including updated_at
func (p AccountPatch) Fields(now time.Time) map[string]any {
	f := map[string]any{"updated_at": now}

	set := func(k string, v *string) {
		if v != nil {
			f[k] = *v
		}
	}

	set("name", p.Name)
	set("bio", p.Bio)
	set("location", p.Location)
	set("website", p.Website)
	set("avatar", p.Avatar)
	set("cover_photo", p.CoverPhoto)
	set("username", p.Username)
	set("password_hash", p.PasswordHash)
	set("email_verify_token", p.EmailVerifyToken)
	set("forgot_password_token", p.ForgotPasswordToken)

	if p.DateOfBirth != nil {
		f["date_of_birth"] = *p.DateOfBirth
	}

	if p.Verify != nil {
		f["verify"] = int(*p.Verify)
	}

	return f
}
