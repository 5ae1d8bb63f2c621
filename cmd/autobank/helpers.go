package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/autobank/internal/bank"
	"github.com/Veraticus/autobank/internal/config"
	"github.com/Veraticus/autobank/internal/service"
	"github.com/Veraticus/autobank/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/autobank/autobank.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initBankClient builds a bank client. In demo mode no credentials are
// needed; otherwise the OAuth token provider is loaded from config.
func initBankClient(demo bool) (bank.Client, error) {
	if demo {
		return bank.NewDemoClient(), nil
	}

	cfg := config.LoadBankConfig()
	provider, err := bank.NewFileTokenProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bank credentials: %w", err)
	}

	return bank.NewRESTClient(provider), nil
}
