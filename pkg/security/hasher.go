// Package security contains everything related to the security of user data
package security

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/argon2"
)

// Hasher derives password digests with argon2id using one server-wide
// secret as the salt. The same password always yields the same digest for a
// given secret and parameters, so digests can be compared directly.
type Hasher struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32

	secret []byte
}

func NewHasher(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, errors.New("no password secret provided")
	}

	return &Hasher{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		KeyLength:   32,
		secret:      []byte(secret),
	}, nil
}

// Hash returns the hex encoded digest of p
func (h *Hasher) Hash(p string) string {
	key := argon2.IDKey([]byte(p), h.secret, h.Iterations, h.Memory, h.Parallelism, h.KeyLength)
	return hex.EncodeToString(key)
}

// Compare reports whether p hashes to digest
func (h *Hasher) Compare(p, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Hash(p)), []byte(digest)) == 1
}
