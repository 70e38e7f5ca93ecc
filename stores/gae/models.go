//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"
	"github.com/panyam/authcore"
)

// AccountEntity is the Datastore entity for accounts. Key name is the account id.
type AccountEntity struct {
	Key             *datastore.Key `datastore:"__key__"`
	Email           string         `datastore:"email"`
	PasswordHash    string         `datastore:"password_hash,noindex"`
	DisplayName     string         `datastore:"display_name,noindex"`
	ProfileImageURL string         `datastore:"profile_image_url,noindex"`
	Provider        string         `datastore:"provider"`
	ProviderID      string         `datastore:"provider_id"`
	CreatedAt       time.Time      `datastore:"created_at"`
	UpdatedAt       time.Time      `datastore:"updated_at"`
}

func (e *AccountEntity) ToAccount() *authcore.Account {
	return &authcore.Account{
		ID:              e.Key.Name,
		Email:           e.Email,
		PasswordHash:    e.PasswordHash,
		DisplayName:     e.DisplayName,
		ProfileImageURL: e.ProfileImageURL,
		Provider:        authcore.Provider(e.Provider),
		ProviderID:      e.ProviderID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func AccountToEntity(a *authcore.Account, key *datastore.Key) *AccountEntity {
	return &AccountEntity{
		Key:             key,
		Email:           a.Email,
		PasswordHash:    a.PasswordHash,
		DisplayName:     a.DisplayName,
		ProfileImageURL: a.ProfileImageURL,
		Provider:        string(a.Provider),
		ProviderID:      a.ProviderID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// MarkerEntity claims a unique value (an email or a provider identity) for an
// account. Its key name is the claimed value, so two accounts can never hold
// the same marker.
type MarkerEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
}
