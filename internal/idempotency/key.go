package idempotency

import (
	"errors"
	"fmt"
)

// MaxKeyLength bounds caller-supplied idempotency keys.
const MaxKeyLength = 50

// ErrInvalidKey marks a malformed idempotency key. This is a client input
// error and is raised before any transaction is opened.
var ErrInvalidKey = errors.New("invalid idempotency key")

// Key is a validated idempotency key. Construct via NewKey.
type Key struct {
	value string
}

// NewKey validates a caller-supplied key: non-empty, at most MaxKeyLength
// characters, printable ASCII with no whitespace.
func NewKey(raw string) (Key, error) {
	if raw == "" {
		return Key{}, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if len(raw) > MaxKeyLength {
		return Key{}, fmt.Errorf("%w: key exceeds %d characters", ErrInvalidKey, MaxKeyLength)
	}
	for _, r := range raw {
		if r < '!' || r > '~' {
			return Key{}, fmt.Errorf("%w: key contains unsafe character %q", ErrInvalidKey, r)
		}
	}
	return Key{value: raw}, nil
}

// String returns the raw key.
func (k Key) String() string {
	return k.value
}
