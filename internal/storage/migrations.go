package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS rules (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT,
					enabled INTEGER NOT NULL DEFAULT 1,
					trigger_account_key TEXT NOT NULL,
					conditions TEXT NOT NULL,
					actions TEXT NOT NULL,
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS tracked_transactions (
					id TEXT PRIMARY KEY,
					account_key TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					first_seen_at INTEGER NOT NULL,
					last_updated_at INTEGER NOT NULL,
					settled INTEGER NOT NULL DEFAULT 0,
					raw_data TEXT NOT NULL
				)`,
				`CREATE INDEX idx_tracked_transactions_account ON tracked_transactions(account_key)`,
				`CREATE INDEX idx_tracked_transactions_settled ON tracked_transactions(settled)`,

				`CREATE TABLE IF NOT EXISTS rule_transaction_log (
					id TEXT PRIMARY KEY,
					rule_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					transaction_fingerprint TEXT NOT NULL,
					action_taken TEXT NOT NULL,
					processed_at INTEGER NOT NULL,
					UNIQUE(rule_id, transaction_id, transaction_fingerprint)
				)`,
				`CREATE INDEX idx_rule_transaction_log_rule ON rule_transaction_log(rule_id)`,

				`CREATE TABLE IF NOT EXISTS rule_executions (
					id TEXT PRIMARY KEY,
					rule_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					transfer_payment_id TEXT,
					amount REAL NOT NULL,
					from_account TEXT NOT NULL,
					to_account TEXT NOT NULL,
					status TEXT NOT NULL,
					error_message TEXT,
					executed_at INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_rule_executions_rule ON rule_executions(rule_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add audit log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS audit_log (
					id TEXT PRIMARY KEY,
					timestamp INTEGER NOT NULL,
					event_type TEXT NOT NULL,
					actor TEXT NOT NULL,
					resource_type TEXT,
					resource_id TEXT,
					details TEXT NOT NULL,
					ip_address TEXT,
					user_agent TEXT
				)`,
				`CREATE INDEX idx_audit_log_timestamp ON audit_log(timestamp)`,
				`CREATE INDEX idx_audit_log_event_type ON audit_log(event_type)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
