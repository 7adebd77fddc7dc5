package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pennyworth/tally/internal/common"
	"github.com/pennyworth/tally/internal/storage"
)

// openStorage opens (and migrates) the sqlite database from config.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "tally", "tally.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// requireOwner resolves the owner id from flag or config.
func requireOwner(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if owner := viper.GetString("owner"); owner != "" {
		return owner, nil
	}
	return "", common.NewUserError("no owner specified: pass --owner or set 'owner' in config", common.ErrMissingConfig)
}
