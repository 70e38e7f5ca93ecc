// Package storetest is a conformance suite run against every
// authcore.AccountStore implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/panyam/authcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) authcore.AccountStore

// Run exercises the store contract
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s authcore.AccountStore)
	}{
		{"CreateLocal", testCreateLocal},
		{"CreateProvider", testCreateProvider},
		{"EmailIsNormalized", testEmailNormalized},
		{"DuplicateEmail", testDuplicateEmail},
		{"DuplicateIdentity", testDuplicateIdentity},
		{"SameProviderIDOtherProvider", testSameProviderIDOtherProvider},
		{"RejectsInvalidAccounts", testRejectsInvalid},
		{"NotFound", testNotFound},
		{"Update", testUpdate},
		{"UpdateEmailCollision", testUpdateEmailCollision},
		{"Delete", testDelete},
		{"ConcurrentCreate", testConcurrentCreate},
		{"ConcurrentIdentityCreate", testConcurrentIdentityCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func localAccount(email string) *authcore.Account {
	return &authcore.Account{
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuM1Wq1dTrvJ7p1Q9b1o2Vx8H0j6o2Gm2",
		DisplayName:  "Local User",
		Provider:     authcore.ProviderLocal,
	}
}

func googleAccount(email, providerID string) *authcore.Account {
	return &authcore.Account{
		Email:           email,
		DisplayName:     "Google User",
		ProfileImageURL: "https://example.com/p.png",
		Provider:        authcore.ProviderGoogle,
		ProviderID:      providerID,
	}
}

func testCreateLocal(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	in := localAccount("alice@example.com")
	created, err := s.Create(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Empty(t, in.ID, "input must not be mutated")

	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)
	assert.Equal(t, in.PasswordHash, byID.PasswordHash)
	assert.Equal(t, authcore.ProviderLocal, byID.Provider)
	assert.Empty(t, byID.ProviderID)
	assert.Equal(t, "Local User", byID.DisplayName)

	byEmail, err := s.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func testCreateProvider(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	created, err := s.Create(ctx, googleAccount("bob@example.com", "g-1"))
	require.NoError(t, err)

	got, err := s.FindByProviderIdentity(ctx, authcore.ProviderGoogle, "g-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "https://example.com/p.png", got.ProfileImageURL)
	assert.False(t, got.HasPassword())

	_, err = s.FindByProviderIdentity(ctx, authcore.ProviderApple, "g-1")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound)
}

func testEmailNormalized(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	created, err := s.Create(ctx, localAccount("  Mixed.Case@Example.COM "))
	require.NoError(t, err)
	assert.Equal(t, "mixed.case@example.com", created.Email)

	got, err := s.FindByEmail(ctx, "MIXED.case@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func testDuplicateEmail(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, localAccount("dup@example.com"))
	require.NoError(t, err)

	_, err = s.Create(ctx, localAccount("DUP@example.com"))
	assert.ErrorIs(t, err, authcore.ErrDuplicateAccount)

	// A provider account may not take an email a local account owns
	_, err = s.Create(ctx, googleAccount("dup@example.com", "g-dup"))
	assert.ErrorIs(t, err, authcore.ErrDuplicateAccount)
	_, err = s.FindByProviderIdentity(ctx, authcore.ProviderGoogle, "g-dup")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound, "failed create must leave nothing behind")
}

func testDuplicateIdentity(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, googleAccount("one@example.com", "g-same"))
	require.NoError(t, err)

	_, err = s.Create(ctx, googleAccount("two@example.com", "g-same"))
	assert.ErrorIs(t, err, authcore.ErrDuplicateAccount)
	_, err = s.FindByEmail(ctx, "two@example.com")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound, "failed create must leave nothing behind")
}

func testSameProviderIDOtherProvider(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, googleAccount("g@example.com", "shared-id"))
	require.NoError(t, err)

	apple := googleAccount("a@example.com", "shared-id")
	apple.Provider = authcore.ProviderApple
	_, err = s.Create(ctx, apple)
	require.NoError(t, err)
}

func testRejectsInvalid(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	cases := map[string]*authcore.Account{
		"no email":             {PasswordHash: "x", Provider: authcore.ProviderLocal},
		"local without digest": {Email: "a@example.com", Provider: authcore.ProviderLocal},
		"google without id":    {Email: "b@example.com", Provider: authcore.ProviderGoogle},
		"google with digest":   {Email: "c@example.com", Provider: authcore.ProviderGoogle, ProviderID: "g", PasswordHash: "x"},
		"unknown provider":     {Email: "d@example.com", Provider: "github", ProviderID: "1"},
	}
	for name, account := range cases {
		_, err := s.Create(ctx, account)
		assert.ErrorIs(t, err, authcore.ErrInvalidInput, name)
	}
}

func testNotFound(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	_, err := s.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound)
	_, err = s.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound)
	_, err = s.FindByProviderIdentity(ctx, authcore.ProviderGoogle, "none")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound)
	_, err = s.Update(ctx, "00000000-0000-0000-0000-000000000000", authcore.AccountUpdate{})
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound)
	_, err = s.Delete(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound)
}

func testUpdate(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	created, err := s.Create(ctx, localAccount("upd@example.com"))
	require.NoError(t, err)

	name := "Renamed"
	email := "New@Example.com"
	updated, err := s.Update(ctx, created.ID, authcore.AccountUpdate{DisplayName: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.DisplayName)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, created.PasswordHash, updated.PasswordHash)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	got, err := s.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = s.FindByEmail(ctx, "upd@example.com")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound, "old email must be released")

	_, err = s.Create(ctx, localAccount("upd@example.com"))
	assert.NoError(t, err)
}

func testUpdateEmailCollision(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	a, err := s.Create(ctx, localAccount("a@example.com"))
	require.NoError(t, err)
	_, err = s.Create(ctx, localAccount("b@example.com"))
	require.NoError(t, err)

	taken := "b@example.com"
	_, err = s.Update(ctx, a.ID, authcore.AccountUpdate{Email: &taken})
	assert.ErrorIs(t, err, authcore.ErrDuplicateAccount)

	got, err := s.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
}

func testDelete(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	created, err := s.Create(ctx, googleAccount("del@example.com", "g-del"))
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = s.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound)
	_, err = s.FindByEmail(ctx, "del@example.com")
	assert.ErrorIs(t, err, authcore.ErrAccountNotFound)

	// Both the email and the identity can be claimed again
	_, err = s.Create(ctx, googleAccount("del@example.com", "g-del"))
	assert.NoError(t, err)
}

// raceCreate runs n concurrent creates and returns how many succeeded
func raceCreate(t *testing.T, n int, create func() error) (succeeded int) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		bad []error
	)
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := create()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, authcore.ErrDuplicateAccount):
			default:
				bad = append(bad, err)
			}
		}()
	}
	close(start)
	wg.Wait()
	for _, err := range bad {
		t.Errorf("unexpected error: %v", err)
	}
	return ok
}

func testConcurrentCreate(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	ok := raceCreate(t, 8, func() error {
		_, err := s.Create(ctx, localAccount("race@example.com"))
		return err
	})
	assert.Equal(t, 1, ok)
}

func testConcurrentIdentityCreate(t *testing.T, s authcore.AccountStore) {
	ctx := context.Background()
	var (
		mu sync.Mutex
		i  int
	)
	ok := raceCreate(t, 8, func() error {
		mu.Lock()
		i++
		email := "racer" + string(rune('a'+i)) + "@example.com"
		mu.Unlock()
		_, err := s.Create(ctx, googleAccount(email, "g-race"))
		return err
	})
	assert.Equal(t, 1, ok)
}
