//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	"github.com/panyam/authcore"
)

// AccountModel is the GORM model for accounts
type AccountModel struct {
	ID              string    `gorm:"primaryKey;size:64"`
	Email           string    `gorm:"size:254;not null;uniqueIndex:idx_accounts_email"`
	PasswordHash    string    `gorm:"size:255"`
	DisplayName     string    `gorm:"size:100"`
	ProfileImageURL string    `gorm:"size:2048"`
	Provider        string    `gorm:"size:16;not null;uniqueIndex:idx_accounts_identity,priority:1"`
	ProviderID      *string   `gorm:"size:255;uniqueIndex:idx_accounts_identity,priority:2"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

// ToAccount converts the model to an authcore.Account
func (m *AccountModel) ToAccount() *authcore.Account {
	out := &authcore.Account{
		ID:              m.ID,
		Email:           m.Email,
		PasswordHash:    m.PasswordHash,
		DisplayName:     m.DisplayName,
		ProfileImageURL: m.ProfileImageURL,
		Provider:        authcore.Provider(m.Provider),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.ProviderID != nil {
		out.ProviderID = *m.ProviderID
	}
	return out
}

// FromAccount builds a model from an authcore.Account
func FromAccount(a *authcore.Account) *AccountModel {
	m := &AccountModel{
		ID:              a.ID,
		Email:           a.Email,
		PasswordHash:    a.PasswordHash,
		DisplayName:     a.DisplayName,
		ProfileImageURL: a.ProfileImageURL,
		Provider:        string(a.Provider),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.ProviderID != "" {
		providerID := a.ProviderID
		m.ProviderID = &providerID
	}
	return m
}
