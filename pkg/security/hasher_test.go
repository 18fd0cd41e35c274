package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHasher(t *testing.T, secret string) *Hasher {
	t.Helper()

	h, err := NewHasher(secret)
	require.NoError(t, err)

	// Keep tests fast
	h.Memory = 1024
	h.Iterations = 1
	h.Parallelism = 1

	return h
}

func TestHasherIsDeterministic(t *testing.T) {
	h := newTestHasher(t, "pepper")

	assert.Equal(t, h.Hash("Secret1!"), h.Hash("Secret1!"))
	assert.NotEqual(t, "Secret1!", h.Hash("Secret1!"))
}

func TestHasherDistinguishesInputs(t *testing.T) {
	h := newTestHasher(t, "pepper")

	seen := map[string]string{}
	for _, p := range []string{"a", "b", "Secret1!", "Secret1?", "secret1!", "", " ", "Secret1! "} {
		d := h.Hash(p)
		if prev, ok := seen[d]; ok {
			t.Fatalf("collision between %q and %q", prev, p)
		}
		seen[d] = p
	}
}

func TestHasherSecretChangesDigest(t *testing.T) {
	a := newTestHasher(t, "pepper")
	b := newTestHasher(t, "salt")

	assert.NotEqual(t, a.Hash("Secret1!"), b.Hash("Secret1!"))
}

func TestHasherCompare(t *testing.T) {
	h := newTestHasher(t, "pepper")
	d := h.Hash("Secret1!")

	assert.True(t, h.Compare("Secret1!", d))
	assert.False(t, h.Compare("Secret1?", d))
	assert.False(t, h.Compare("Secret1!", ""))
}

func TestNewHasherRequiresSecret(t *testing.T) {
	_, err := NewHasher("")
	assert.Error(t, err)
}
