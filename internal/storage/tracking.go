package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
)

// GetTrackedTransaction returns the last-seen record for a transaction id,
// or common.ErrNotFound if the transaction has never been tracked.
func (s *SQLiteStorage) GetTrackedTransaction(ctx context.Context, id string) (*model.TrackedTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var tracked model.TrackedTransaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_key, fingerprint, first_seen_at, last_updated_at, settled, raw_data
		FROM tracked_transactions
		WHERE id = ?
	`, id).Scan(&tracked.ID, &tracked.AccountKey, &tracked.Fingerprint,
		&tracked.FirstSeenAt, &tracked.LastUpdatedAt, &tracked.Settled, &tracked.RawData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tracked transaction %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query tracked transaction: %w", err)
	}

	return &tracked, nil
}

// UpsertTrackedTransaction inserts or updates the tracked record for a
// transaction id. first_seen_at is preserved on update.
func (s *SQLiteStorage) UpsertTrackedTransaction(ctx context.Context, tracked *model.TrackedTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if tracked == nil {
		return fmt.Errorf("%w: tracked", ErrNilParameter)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracked_transactions (id, account_key, fingerprint, first_seen_at, last_updated_at, settled, raw_data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			last_updated_at = excluded.last_updated_at,
			settled = excluded.settled,
			raw_data = excluded.raw_data
	`, tracked.ID, tracked.AccountKey, tracked.Fingerprint,
		tracked.FirstSeenAt, tracked.LastUpdatedAt, tracked.Settled, tracked.RawData)
	if err != nil {
		return fmt.Errorf("failed to upsert tracked transaction: %w", err)
	}

	return nil
}

// HasProcessed reports whether the idempotency ledger already has a row for
// the (rule, transaction, fingerprint) triple.
func (s *SQLiteStorage) HasProcessed(ctx context.Context, ruleID, transactionID, fingerprint string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM rule_transaction_log
		WHERE rule_id = ? AND transaction_id = ? AND transaction_fingerprint = ?
	`, ruleID, transactionID, fingerprint).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query processing log: %w", err)
	}

	return count > 0, nil
}

// RecordProcessing appends a row to the idempotency ledger. The unique
// constraint on the triple makes a duplicate insert fail.
func (s *SQLiteStorage) RecordProcessing(ctx context.Context, entry *model.RuleTransactionLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_transaction_log (id, rule_id, transaction_id, transaction_fingerprint, action_taken, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.RuleID, entry.TransactionID,
		entry.TransactionFingerprint, entry.ActionTaken, entry.ProcessedAt)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("ledger entry for rule %s, transaction %s: %w",
				entry.RuleID, entry.TransactionID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to record processing: %w", err)
	}

	return nil
}
