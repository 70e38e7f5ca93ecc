package authcore

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies where an account's identity comes from
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

// ParseProvider maps a provider name onto the closed provider set
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderLocal, ProviderGoogle, ProviderApple:
		return p, nil
	case "":
		return ProviderLocal, nil
	default:
		return "", fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, name)
	}
}

// IsFederated returns true for providers that vouch for identities externally
func (p Provider) IsFederated() bool {
	return p == ProviderGoogle || p == ProviderApple
}

func (p Provider) String() string { return string(p) }

// Account is a user identity record, either local or linked to a provider
type Account struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"` // only set for local accounts
	DisplayName     string    `json:"name,omitempty"`
	ProfileImageURL string    `json:"profile_image,omitempty"`
	Provider        Provider  `json:"provider"`
	ProviderID      string    `json:"provider_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can log in with a local password
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// Public returns the outward projection of the account
func (a *Account) Public() PublicUser {
	return PublicUser{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.DisplayName,
		ProfileImage: a.ProfileImageURL,
		Provider:     a.Provider,
		CreatedAt:    a.CreatedAt,
	}
}

// Clone returns a copy that callers may mutate freely
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

// PublicUser is the only representation of an account handed to callers.
// It never carries the password digest.
type PublicUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	Provider     Provider  `json:"provider"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AccountUpdate lists the mutable fields of an account. Nil fields are left as is.
type AccountUpdate struct {
	Email           *string
	PasswordHash    *string
	DisplayName     *string
	ProfileImageURL *string
}

// IsEmpty returns true if the update would not touch any field
func (u AccountUpdate) IsEmpty() bool {
	return u.Email == nil && u.PasswordHash == nil && u.DisplayName == nil && u.ProfileImageURL == nil
}

// Apply copies the set fields onto the account and bumps UpdatedAt
func (u AccountUpdate) Apply(a *Account, now time.Time) {
	if u.Email != nil {
		a.Email = NormalizeEmail(*u.Email)
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.DisplayName != nil {
		a.DisplayName = *u.DisplayName
	}
	if u.ProfileImageURL != nil {
		a.ProfileImageURL = *u.ProfileImageURL
	}
	a.UpdatedAt = now
}

// NormalizeEmail is the single email canonicalization used by every store:
// surrounding whitespace is dropped and the address is lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IdentityKey builds the lookup key of a provider-linked identity
func IdentityKey(provider Provider, providerID string) string {
	return string(provider) + ":" + providerID
}

// CheckInvariants validates an account before it is inserted
func (a *Account) CheckInvariants() error {
	if a.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	switch a.Provider {
	case ProviderLocal:
		if a.PasswordHash == "" {
			return fmt.Errorf("%w: local accounts need a password", ErrInvalidInput)
		}
		if a.ProviderID != "" {
			return fmt.Errorf("%w: local accounts have no provider id", ErrInvalidInput)
		}
	case ProviderGoogle, ProviderApple:
		if a.ProviderID == "" {
			return fmt.Errorf("%w: provider id is required for %s accounts", ErrInvalidInput, a.Provider)
		}
		if a.PasswordHash != "" {
			return fmt.Errorf("%w: %s accounts cannot carry a password", ErrInvalidInput, a.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, a.Provider)
	}
	return nil
}
