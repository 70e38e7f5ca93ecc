package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/datastore"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/panyam/authcore"
	"github.com/panyam/authcore/stores"
	gaestore "github.com/panyam/authcore/stores/gae"
	gormstore "github.com/panyam/authcore/stores/gorm"
)

// openStore returns the configured account store and a func releasing it
func openStore(ctx context.Context, cfg *authcore.Config) (authcore.AccountStore, func(), error) {
	switch cfg.Store {
	case "fs":
		if err := os.MkdirAll(cfg.StorePath, 0o700); err != nil {
			return nil, nil, err
		}
		return stores.NewFSAccountStore(cfg.StorePath), func() {}, nil

	case "sqlite":
		if err := os.MkdirAll(cfg.StorePath, 0o700); err != nil {
			return nil, nil, err
		}
		dsn := filepath.Join(cfg.StorePath, "accounts.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		if err := gormstore.AutoMigrate(db); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return gormstore.NewAccountStore(db), func() { sqlDB.Close() }, nil

	case "datastore":
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			return nil, nil, err
		}
		return gaestore.NewAccountStore(client, cfg.DatastoreNamespace), func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
