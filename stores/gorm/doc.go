//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based authcore.AccountStore.
// It supports any database that GORM supports (PostgreSQL, MySQL, SQLite, etc.)
// and is suitable for production deployments requiring relational database storage.
//
// # Database Schema
//
// AutoMigrate creates a single "accounts" table with:
//   - a unique index on email
//   - a unique index on (provider, provider_id); provider_id is NULL for
//     local accounts so they never collide with each other
//
// Uniqueness is enforced by the database, so concurrent creates of the same
// email or provider identity leave exactly one row.
//
// # Usage
//
//	db, _ := gorm.Open(sqlite.Open("auth.db"), &gorm.Config{TranslateError: true})
//	gormstore.AutoMigrate(db)
//	accounts := gormstore.NewAccountStore(db)
package gorm
