// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/autobank/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Rule operations
	ListRules(ctx context.Context) ([]model.Rule, error)
	GetRule(ctx context.Context, id string) (*model.Rule, error)
	CreateRule(ctx context.Context, rule *model.Rule) error
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, id string) error
	SetRuleEnabled(ctx context.Context, id string, enabled bool) error
	GetEnabledRulesByAccount(ctx context.Context) (map[string][]model.Rule, error)

	// Transaction tracking
	GetTrackedTransaction(ctx context.Context, id string) (*model.TrackedTransaction, error)
	UpsertTrackedTransaction(ctx context.Context, tracked *model.TrackedTransaction) error

	// Idempotency ledger
	HasProcessed(ctx context.Context, ruleID, transactionID, fingerprint string) (bool, error)
	RecordProcessing(ctx context.Context, entry *model.RuleTransactionLog) error

	// Execution history
	RecordExecution(ctx context.Context, execution *model.RuleExecution) error
	GetExecution(ctx context.Context, id string) (*model.RuleExecution, error)
	GetRuleExecutions(ctx context.Context, ruleID string) ([]model.RuleExecution, error)
	ListExecutions(ctx context.Context, limit int) ([]model.RuleExecution, error)

	// Audit log
	LogAudit(ctx context.Context, entry *model.AuditEntry) error
	QueryAudit(ctx context.Context, limit int) ([]model.AuditEntry, error)
	GetAuditEntry(ctx context.Context, id string) (*model.AuditEntry, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
