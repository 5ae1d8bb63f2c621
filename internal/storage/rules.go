package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
)

// ListRules returns all rules ordered by creation time, newest first.
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, enabled, trigger_account_key, conditions, actions, created_at, updated_at
		FROM rules
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRules(rows)
}

// GetRule returns a single rule by id.
func (s *SQLiteStorage) GetRule(ctx context.Context, id string) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, enabled, trigger_account_key, conditions, actions, created_at, updated_at
		FROM rules
		WHERE id = ?
	`, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
		}
		return nil, err
	}
	return rule, nil
}

// GetEnabledRulesByAccount returns all enabled rules grouped by their trigger
// account key. The per-account ordering is the store's creation order.
func (s *SQLiteStorage) GetEnabledRulesByAccount(ctx context.Context) (map[string][]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, enabled, trigger_account_key, conditions, actions, created_at, updated_at
		FROM rules
		WHERE enabled = 1
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]model.Rule)
	for _, rule := range rules {
		grouped[rule.TriggerAccountKey] = append(grouped[rule.TriggerAccountKey], rule)
	}
	return grouped, nil
}

// CreateRule inserts a new rule.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	conditions, actions, err := marshalRuleTrees(rule)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (id, name, description, enabled, trigger_account_key, conditions, actions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.Name, rule.Description, rule.Enabled, rule.TriggerAccountKey,
		conditions, actions, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("rule %s: %w", rule.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// UpdateRule replaces an existing rule's mutable fields.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	conditions, actions, err := marshalRuleTrees(rule)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules
		SET name = ?, description = ?, enabled = ?, trigger_account_key = ?, conditions = ?, actions = ?, updated_at = ?
		WHERE id = ?
	`, rule.Name, rule.Description, rule.Enabled, rule.TriggerAccountKey,
		conditions, actions, rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, common.ErrNotFound)
	}

	return nil
}

// DeleteRule removes a rule by id.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}

	return nil
}

// SetRuleEnabled flips a rule's enabled flag.
func (s *SQLiteStorage) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?
	`, enabled, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set rule enabled: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}

	return nil
}

func marshalRuleTrees(rule *model.Rule) (conditions, actions string, err error) {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal actions: %w", err)
	}
	return string(conditionsJSON), string(actionsJSON), nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var rule model.Rule
	var description sql.NullString
	var conditions, actions string

	err := row.Scan(&rule.ID, &rule.Name, &description, &rule.Enabled,
		&rule.TriggerAccountKey, &conditions, &actions, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String

	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions for rule %s: %w", rule.ID, err)
	}

	return &rule, nil
}

func scanRules(rows *sql.Rows) ([]model.Rule, error) {
	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}
