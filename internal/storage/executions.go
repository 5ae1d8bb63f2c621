package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
)

// RecordExecution appends an execution history row.
func (s *SQLiteStorage) RecordExecution(ctx context.Context, execution *model.RuleExecution) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if execution == nil {
		return fmt.Errorf("%w: execution", ErrNilParameter)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_executions (id, rule_id, transaction_id, transfer_payment_id, amount, from_account, to_account, status, error_message, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, execution.ID, execution.RuleID, execution.TransactionID,
		nullable(execution.TransferPaymentID), execution.Amount,
		execution.FromAccount, execution.ToAccount, execution.Status,
		nullable(execution.ErrorMessage), execution.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	return nil
}

// GetExecution returns a single execution by id.
func (s *SQLiteStorage) GetExecution(ctx context.Context, id string) (*model.RuleExecution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, executionSelect+` WHERE id = ?`, id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution %s: %w", id, common.ErrNotFound)
		}
		return nil, err
	}
	return execution, nil
}

// GetRuleExecutions returns the execution history for one rule, newest first.
func (s *SQLiteStorage) GetRuleExecutions(ctx context.Context, ruleID string) ([]model.RuleExecution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ruleID, "ruleID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, executionSelect+` WHERE rule_id = ? ORDER BY executed_at DESC`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanExecutions(rows)
}

// ListExecutions returns recent executions across all rules, newest first.
func (s *SQLiteStorage) ListExecutions(ctx context.Context, limit int) ([]model.RuleExecution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, executionSelect+` ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanExecutions(rows)
}

const executionSelect = `
	SELECT id, rule_id, transaction_id, transfer_payment_id, amount, from_account, to_account, status, error_message, executed_at
	FROM rule_executions`

func scanExecution(row rowScanner) (*model.RuleExecution, error) {
	var execution model.RuleExecution
	var paymentID, errorMessage sql.NullString

	err := row.Scan(&execution.ID, &execution.RuleID, &execution.TransactionID,
		&paymentID, &execution.Amount, &execution.FromAccount, &execution.ToAccount,
		&execution.Status, &errorMessage, &execution.ExecutedAt)
	if err != nil {
		return nil, err
	}

	execution.TransferPaymentID = paymentID.String
	execution.ErrorMessage = errorMessage.String

	return &execution, nil
}

func scanExecutions(rows *sql.Rows) ([]model.RuleExecution, error) {
	var executions []model.RuleExecution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, *execution)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return executions, nil
}

// nullable converts an empty string to a NULL column value.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
