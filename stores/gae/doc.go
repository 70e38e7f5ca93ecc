//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of authcore.AccountStore.
// It is designed for deployment on Google Cloud Platform and supports multi-tenancy
// through Datastore namespaces.
//
// # Datastore Kinds
//
//   - Account: account records, keyed by account id
//   - AccountEmail: one marker per email, keyed by the normalized email
//   - AccountIdentity: one marker per provider identity, keyed by "provider:id"
//
// Markers are written in the same transaction as the account they point to,
// which is what makes emails and provider identities unique.
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	accounts := gae.NewAccountStore(client, "")  // default namespace
package gae
