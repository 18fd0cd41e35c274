package security

import (
	"errors"
	"fmt"
	"time"

	"bitwise74/account-api/internal/model"

	"github.com/golang-jwt/jwt/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Kind int

// Zero is left unused so a payload without token_type never matches a kind
const (
	AccessToken Kind = iota + 1
	RefreshToken
	ForgotPasswordToken
	EmailVerifyToken
)

func (k Kind) String() string {
	switch k {
	case AccessToken:
		return "access"
	case RefreshToken:
		return "refresh"
	case ForgotPasswordToken:
		return "forgot_password"
	case EmailVerifyToken:
		return "email_verify"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenKind      = errors.New("token kind mismatch")
)

type Claims struct {
	UserID    string            `json:"user_id"`
	TokenType Kind              `json:"token_type"`
	Verify    model.VerifyState `json:"verify"`
	jwt.RegisteredClaims
}

type KindConfig struct {
	Secret string
	TTL    time.Duration
}

type TokenConfig struct {
	Access         KindConfig
	Refresh        KindConfig
	EmailVerify    KindConfig
	ForgotPassword KindConfig
}

// Issuer signs and verifies the four token kinds, each with its own secret
// and lifetime.
type Issuer struct {
	kinds map[Kind]KindConfig
	now   func() time.Time
}

func NewIssuer(cfg TokenConfig) (*Issuer, error) {
	kinds := map[Kind]KindConfig{
		AccessToken:         cfg.Access,
		RefreshToken:        cfg.Refresh,
		EmailVerifyToken:    cfg.EmailVerify,
		ForgotPasswordToken: cfg.ForgotPassword,
	}

	seen := make(map[string]Kind, len(kinds))
	for k, c := range kinds {
		if c.Secret == "" {
			return nil, fmt.Errorf("no secret provided for %s tokens", k)
		}

		if c.TTL <= 0 {
			return nil, fmt.Errorf("ttl for %s tokens must be bigger than 0", k)
		}

		if other, ok := seen[c.Secret]; ok {
			return nil, fmt.Errorf("%s and %s tokens share a secret", other, k)
		}
		seen[c.Secret] = k
	}

	return &Issuer{kinds: kinds, now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) TTL(kind Kind) time.Duration {
	return i.kinds[kind].TTL
}

// Issue signs a token of the given kind that expires after the kind's TTL
func (i *Issuer) Issue(kind Kind, userID string, verify model.VerifyState) (string, error) {
	c, ok := i.kinds[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %d", int(kind))
	}

	return i.IssueUntil(kind, userID, verify, i.now().Add(c.TTL))
}

// IssueUntil signs a token with an explicit expiry. Refresh rotation uses it
// so a rotated session never outlives the original one.
func (i *Issuer) IssueUntil(kind Kind, userID string, verify model.VerifyState, exp time.Time) (string, error) {
	c, ok := i.kinds[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %d", int(kind))
	}

	if userID == "" {
		return "", errors.New("no user ID provided")
	}

	// Two tokens for the same user in the same second must still differ,
	// refresh records are unique by token string
	jti, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate token ID, %w", err)
	}

	now := i.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		TokenType: kind,
		Verify:    verify,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	return t.SignedString([]byte(c.Secret))
}

// Verify checks signature, expiry and payload of tokenStr against kind.
// Returned errors are one of the ErrToken* values, possibly wrapped.
func (i *Issuer) Verify(tokenStr string, kind Kind) (*Claims, error) {
	c, ok := i.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown token kind %d", int(kind))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return []byte(c.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrTokenSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrTokenMalformed)
	}

	if claims.TokenType != kind {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrTokenKind, kind, claims.TokenType)
	}

	return claims, nil
}
