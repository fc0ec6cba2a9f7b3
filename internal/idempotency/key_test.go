package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyAcceptsValidKeys(t *testing.T) {
	for _, raw := range []string{
		"abc123",
		"a",
		"9b2f1c1e-0f6a-4a08-a3c1-3c1b6d9a1a77",
		strings.Repeat("x", MaxKeyLength),
	} {
		key, err := NewKey(raw)
		require.NoError(t, err, "key %q should be valid", raw)
		assert.Equal(t, raw, key.String())
	}
}

func TestNewKeyRejectsEmptyKey(t *testing.T) {
	_, err := NewKey("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewKeyRejectsOverlongKey(t *testing.T) {
	_, err := NewKey(strings.Repeat("x", MaxKeyLength+1))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewKeyRejectsUnsafeCharacters(t *testing.T) {
	for _, raw := range []string{
		"has space",
		"tab\tkey",
		"newline\nkey",
		"ctrl\x00key",
		"émoji",
	} {
		_, err := NewKey(raw)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q should be rejected", raw)
	}
}
