package authcore

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used when none is configured
const DefaultHashCost = 10

// CredentialHasher turns passwords into self-contained digests and checks them.
type CredentialHasher interface {
	// Hash returns a digest embedding its own salt and cost
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext produced digest.
	// Malformed digests yield false.
	Verify(plaintext, digest string) bool
}

// BcryptHasher hashes passwords with bcrypt
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher with the given cost, clamped to bcrypt's range
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultHashCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidInput)
	}
	cost := h.Cost
	if cost == 0 {
		cost = DefaultHashCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
