package authcore

import "context"

// AccountStore is the durable record of accounts.
//
// Implementations must enforce email and (provider, providerId) uniqueness
// atomically inside Create and Update; a prior lookup by the caller is only a
// shortcut for friendlier errors. Emails are passed through NormalizeEmail on
// every write and lookup.
type AccountStore interface {
	// Create inserts a new account, assigning its ID and timestamps.
	// Returns ErrDuplicateAccount if the email or provider identity is taken.
	Create(ctx context.Context, account *Account) (*Account, error)

	// FindByEmail returns ErrAccountNotFound if no account owns the email
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByProviderIdentity looks up an account by the provider's subject id
	FindByProviderIdentity(ctx context.Context, provider Provider, providerID string) (*Account, error)

	// FindByID returns ErrAccountNotFound if the id is unknown
	FindByID(ctx context.Context, id string) (*Account, error)

	// Update applies a partial update and returns the new state
	Update(ctx context.Context, id string, update AccountUpdate) (*Account, error)

	// Delete removes the account and returns its last state
	Delete(ctx context.Context, id string) (*Account, error)
}
