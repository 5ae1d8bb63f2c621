// Package engine implements the rule engine that evaluates bank
// transactions against user rules and executes the resulting transfers.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/autobank/internal/bank"
	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
	"github.com/Veraticus/autobank/internal/service"
)

// RuleEngine orchestrates one evaluation cycle: fetch transactions for
// every account that has enabled rules, decide per transaction whether
// each rule should run, and execute actions at most once per
// (rule, transaction, fingerprint).
type RuleEngine struct {
	storage service.Storage
	bank    bank.Client
	logger  *slog.Logger
}

// New creates a rule engine with the given dependencies.
func New(storage service.Storage, bankClient bank.Client, logger *slog.Logger) *RuleEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{
		storage: storage,
		bank:    bankClient,
		logger:  logger,
	}
}

// CycleStats summarizes a single evaluation cycle.
type CycleStats struct {
	AccountsPolled      int
	AccountsFailed      int
	TransactionsSeen    int
	RulesMatched        int
	TransfersExecuted   int
	TransfersFailed     int
	TransactionsSkipped int
}

// EvaluateAll runs one full evaluation cycle. A failure to fetch one
// account's transactions does not stop the others; a failure in one rule
// or transaction does not stop the rest.
func (e *RuleEngine) EvaluateAll(ctx context.Context) (*CycleStats, error) {
	rulesByAccount, err := e.storage.GetEnabledRulesByAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load enabled rules: %w", err)
	}

	stats := &CycleStats{}
	if len(rulesByAccount) == 0 {
		e.logger.Debug("no enabled rules, nothing to evaluate")
		return stats, nil
	}

	for accountKey, rules := range rulesByAccount {
		resp, err := e.bank.GetTransactions(ctx, accountKey)
		if err != nil {
			e.logger.Error("failed to fetch transactions",
				"account_key", accountKey, "error", err)
			stats.AccountsFailed++
			continue
		}
		stats.AccountsPolled++

		for _, apiErr := range resp.Errors {
			e.logger.Warn("bank reported error with transaction listing",
				"account_key", accountKey, "code", apiErr.Code, "message", apiErr.Message)
		}

		for i := range resp.Transactions {
			tx := &resp.Transactions[i]
			tx.AccountKey = accountKey
			e.evaluateTransaction(ctx, tx, rules, stats)
		}
		stats.TransactionsSeen += len(resp.Transactions)
	}

	e.logger.Info("evaluation cycle complete",
		"accounts_polled", stats.AccountsPolled,
		"accounts_failed", stats.AccountsFailed,
		"transactions", stats.TransactionsSeen,
		"transfers_executed", stats.TransfersExecuted,
		"transfers_failed", stats.TransfersFailed)

	return stats, nil
}

// evaluateTransaction runs every rule against one transaction. Errors are
// logged and isolated per rule.
func (e *RuleEngine) evaluateTransaction(ctx context.Context, tx *model.Transaction, rules []model.Rule, stats *CycleStats) {
	fingerprint := tx.Fingerprint()

	decision, err := e.decide(ctx, tx, fingerprint)
	if err != nil {
		e.logger.Error("failed to decide on transaction",
			"transaction_id", tx.ID, "error", err)
		return
	}

	if decision.Outcome != model.DecisionProcess {
		e.logger.Debug("skipping transaction",
			"transaction_id", tx.ID, "reason", decision.Reason)
		return
	}

	if err := e.trackTransaction(ctx, tx, fingerprint); err != nil {
		e.logger.Error("failed to track transaction",
			"transaction_id", tx.ID, "error", err)
		return
	}

	for i := range rules {
		if err := e.evaluateRule(ctx, &rules[i], tx, fingerprint, stats); err != nil {
			e.logger.Error("rule evaluation failed",
				"rule_id", rules[i].ID, "transaction_id", tx.ID, "error", err)
		}
	}
}

// decide determines whether a transaction should be processed this cycle.
// New transactions and transactions whose fingerprint changed since last
// sighting are processed; everything else is skipped.
func (e *RuleEngine) decide(ctx context.Context, tx *model.Transaction, fingerprint string) (model.ProcessingDecision, error) {
	tracked, err := e.storage.GetTrackedTransaction(ctx, tx.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return model.Process(), nil
		}
		return model.ProcessingDecision{}, fmt.Errorf("failed to look up tracked transaction: %w", err)
	}

	if tracked.Fingerprint != fingerprint {
		return model.Process(), nil
	}
	return model.Skip("already processed this version"), nil
}

// trackTransaction records the transaction's current fingerprint and raw
// payload so subsequent cycles can detect changes.
func (e *RuleEngine) trackTransaction(ctx context.Context, tx *model.Transaction, fingerprint string) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	now := time.Now().Unix()
	tracked := &model.TrackedTransaction{
		ID:            tx.ID,
		AccountKey:    tx.AccountKey,
		Fingerprint:   fingerprint,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
		Settled:       tx.Settled(),
		RawData:       string(raw),
	}
	if err := e.storage.UpsertTrackedTransaction(ctx, tracked); err != nil {
		return fmt.Errorf("failed to upsert tracked transaction: %w", err)
	}
	return nil
}

// evaluateRule checks the idempotency ledger, evaluates the rule's
// conditions, and either records a skip or executes the rule's actions.
func (e *RuleEngine) evaluateRule(ctx context.Context, rule *model.Rule, tx *model.Transaction, fingerprint string, stats *CycleStats) error {
	processed, err := e.storage.HasProcessed(ctx, rule.ID, tx.ID, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to check processing ledger: %w", err)
	}
	if processed {
		return nil
	}

	if !rule.Matches(tx) {
		stats.TransactionsSkipped++
		entry := &model.RuleTransactionLog{
			ID:                     uuid.NewString(),
			RuleID:                 rule.ID,
			TransactionID:          tx.ID,
			TransactionFingerprint: fingerprint,
			ActionTaken:            model.ActionTakenSkipped,
			ProcessedAt:            time.Now().Unix(),
		}
		if err := e.storage.RecordProcessing(ctx, entry); err != nil {
			return fmt.Errorf("failed to record skip: %w", err)
		}
		return nil
	}

	stats.RulesMatched++
	e.logger.Info("rule matched",
		"rule_id", rule.ID, "rule_name", rule.Name,
		"transaction_id", tx.ID, "description", tx.DisplayDescription(),
		"amount", tx.Amount)

	status := model.ExecutionStatusSuccess
	for i := range rule.Actions {
		actionStatus, err := e.executeAction(ctx, rule, &rule.Actions[i], tx)
		if err != nil {
			e.logger.Error("action execution failed",
				"rule_id", rule.ID, "transaction_id", tx.ID, "error", err)
		}
		if actionStatus == model.ExecutionStatusFailed {
			status = model.ExecutionStatusFailed
		}
	}

	entry := &model.RuleTransactionLog{
		ID:                     uuid.NewString(),
		RuleID:                 rule.ID,
		TransactionID:          tx.ID,
		TransactionFingerprint: fingerprint,
		ActionTaken:            model.ActionTakenExecuted(status),
		ProcessedAt:            time.Now().Unix(),
	}
	if err := e.storage.RecordProcessing(ctx, entry); err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	if status == model.ExecutionStatusSuccess {
		stats.TransfersExecuted++
	} else {
		stats.TransfersFailed++
	}
	return nil
}

// executeAction performs a single action and records the outcome. The
// execution record is written whether the transfer succeeds or fails;
// failed transfers are not retried on later cycles.
func (e *RuleEngine) executeAction(ctx context.Context, rule *model.Rule, action *model.Action, tx *model.Transaction) (string, error) {
	if action.Type != model.ActionTransfer {
		return model.ExecutionStatusFailed, e.recordFailure(ctx, rule, tx, nil, 0,
			fmt.Sprintf("unknown action type %q", action.Type))
	}

	accounts, err := e.bank.GetAccounts(ctx)
	if err != nil {
		return model.ExecutionStatusFailed, e.recordFailure(ctx, rule, tx, nil, 0,
			fmt.Sprintf("failed to fetch accounts: %v", err))
	}
	for _, apiErr := range accounts.Errors {
		e.logger.Warn("bank reported error with account listing",
			"rule_id", rule.ID, "code", apiErr.Code, "message", apiErr.Message)
	}

	from, err := resolveAccountRef(&action.FromAccount, tx.AccountKey, accounts.Accounts)
	if err != nil {
		return model.ExecutionStatusFailed, e.recordFailure(ctx, rule, tx, nil, 0,
			fmt.Sprintf("source account: %v", err))
	}
	to, err := resolveAccountRef(&action.ToAccount, tx.AccountKey, accounts.Accounts)
	if err != nil {
		return model.ExecutionStatusFailed, e.recordFailure(ctx, rule, tx, nil, 0,
			fmt.Sprintf("destination account: %v", err))
	}

	amount := action.Amount.Resolve(tx)
	if amount <= 0 {
		return model.ExecutionStatusFailed, e.recordFailure(ctx, rule, tx, nil, amount,
			fmt.Sprintf("resolved amount %.2f is not positive", amount))
	}

	req := model.TransferRequest{
		Amount:       fmt.Sprintf("%.2f", amount),
		DueDate:      time.Now().Format("2006-01-02"),
		Message:      action.Message,
		FromAccount:  from.AccountNumber,
		ToAccount:    to.AccountNumber,
		CurrencyCode: tx.CurrencyCode,
	}

	resp, err := e.bank.CreateTransfer(ctx, req)
	if err != nil {
		return model.ExecutionStatusFailed, e.recordFailure(ctx, rule, tx, &req, amount,
			fmt.Sprintf("transfer request failed: %v", err))
	}
	if len(resp.Errors) > 0 {
		return model.ExecutionStatusFailed, e.recordFailure(ctx, rule, tx, &req, amount,
			fmt.Sprintf("bank rejected transfer: %s", formatAPIErrors(resp.Errors)))
	}

	e.logger.Info("transfer executed",
		"rule_id", rule.ID, "transaction_id", tx.ID,
		"amount", req.Amount,
		"from", from.AccountNumber, "to", to.AccountNumber,
		"payment_id", resp.PaymentID)

	exec := &model.RuleExecution{
		ID:                uuid.NewString(),
		RuleID:            rule.ID,
		TransactionID:     tx.ID,
		TransferPaymentID: resp.PaymentID,
		Amount:            amount,
		FromAccount:       req.FromAccount,
		ToAccount:         req.ToAccount,
		Status:            model.ExecutionStatusSuccess,
		ExecutedAt:        time.Now().Unix(),
	}
	if err := e.storage.RecordExecution(ctx, exec); err != nil {
		return model.ExecutionStatusSuccess, fmt.Errorf("failed to record execution: %w", err)
	}
	return model.ExecutionStatusSuccess, nil
}

// recordFailure writes a failed execution record. The request may be nil
// when the failure happened before a transfer request was built.
func (e *RuleEngine) recordFailure(ctx context.Context, rule *model.Rule, tx *model.Transaction, req *model.TransferRequest, amount float64, reason string) error {
	e.logger.Warn("transfer failed",
		"rule_id", rule.ID, "transaction_id", tx.ID, "reason", reason)

	exec := &model.RuleExecution{
		ID:            uuid.NewString(),
		RuleID:        rule.ID,
		TransactionID: tx.ID,
		Amount:        amount,
		Status:        model.ExecutionStatusFailed,
		ErrorMessage:  reason,
		ExecutedAt:    time.Now().Unix(),
	}
	if req != nil {
		exec.FromAccount = req.FromAccount
		exec.ToAccount = req.ToAccount
	}
	if err := e.storage.RecordExecution(ctx, exec); err != nil {
		return fmt.Errorf("failed to record failed execution: %w", err)
	}
	return nil
}

// resolveAccountRef maps an account reference to a concrete account from
// the live account list.
func resolveAccountRef(ref *model.AccountRef, triggerKey string, accounts []model.Account) (*model.Account, error) {
	switch ref.Type {
	case model.AccountRefTrigger:
		for i := range accounts {
			if accounts[i].Key == triggerKey {
				return &accounts[i], nil
			}
		}
		return nil, fmt.Errorf("trigger account %s not found", triggerKey)
	case model.AccountRefByKey:
		for i := range accounts {
			if accounts[i].Key == ref.Key {
				return &accounts[i], nil
			}
		}
		return nil, fmt.Errorf("account with key %s not found", ref.Key)
	case model.AccountRefByNumber:
		for i := range accounts {
			if accounts[i].AccountNumber == ref.Number {
				return &accounts[i], nil
			}
		}
		return nil, fmt.Errorf("account with number %s not found", ref.Number)
	default:
		return nil, fmt.Errorf("unknown account reference type %q", ref.Type)
	}
}

func formatAPIErrors(errs []model.APIError) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return out
}
