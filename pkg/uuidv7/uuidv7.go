// Package uuidv7 issues time-ordered UUIDs (RFC 9562 version 7) for audit
// entry ids and idempotency keys, where insertion order should follow
// creation order.
package uuidv7

import "github.com/google/uuid"

// New returns a UUIDv7.
func New() (uuid.UUID, error) {
	return uuid.NewV7()
}

// NewString returns a UUIDv7 string.
func NewString() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
