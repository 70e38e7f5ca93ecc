package authcore_test

import (
	"errors"
	"strings"
	"testing"

	ac "github.com/panyam/authcore"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	hasher := ac.NewBcryptHasher(bcrypt.MinCost)

	digest, err := hasher.Hash("hunter22")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if digest == "hunter22" || strings.Contains(digest, "hunter22") {
		t.Fatal("digest must not contain the plaintext")
	}
	if !hasher.Verify("hunter22", digest) {
		t.Error("Verify() should accept the original password")
	}
	if hasher.Verify("hunter23", digest) {
		t.Error("Verify() should reject a different password")
	}

	// Salted: same input, different digest, both verify
	again, err := hasher.Hash("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if again == digest {
		t.Error("two hashes of the same password should differ")
	}
	if !hasher.Verify("hunter22", again) {
		t.Error("second digest should verify too")
	}
}

func TestBcryptHasherMalformedDigest(t *testing.T) {
	hasher := ac.NewBcryptHasher(bcrypt.MinCost)
	for _, digest := range []string{"", "not-a-digest", "$2a$10$short"} {
		if hasher.Verify("anything", digest) {
			t.Errorf("Verify() accepted malformed digest %q", digest)
		}
	}
}

func TestBcryptHasherCost(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, ac.DefaultHashCost},
		{1, bcrypt.MinCost},
		{12, 12},
		{99, bcrypt.MaxCost},
	}
	for _, tt := range tests {
		if got := ac.NewBcryptHasher(tt.in).Cost; got != tt.want {
			t.Errorf("NewBcryptHasher(%d).Cost = %d, want %d", tt.in, got, tt.want)
		}
	}

	digest, err := ac.NewBcryptHasher(5).Hash("password")
	if err != nil {
		t.Fatal(err)
	}
	if cost, _ := bcrypt.Cost([]byte(digest)); cost != 5 {
		t.Errorf("digest cost = %d, want 5", cost)
	}
}

func TestBcryptHasherTooLong(t *testing.T) {
	_, err := ac.NewBcryptHasher(bcrypt.MinCost).Hash(strings.Repeat("a", 73))
	if !errors.Is(err, ac.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
