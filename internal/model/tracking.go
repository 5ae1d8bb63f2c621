package model

import "fmt"

// TrackedTransaction is the last-known state of a transaction id, used to
// decide whether a freshly fetched transaction needs (re)processing.
type TrackedTransaction struct {
	ID            string `json:"id"`
	AccountKey    string `json:"account_key"`
	Fingerprint   string `json:"fingerprint"`
	FirstSeenAt   int64  `json:"first_seen_at"`
	LastUpdatedAt int64  `json:"last_updated_at"`
	Settled       bool   `json:"settled"`
	RawData       string `json:"raw_data"`
}

// Ledger action_taken values.
const (
	ActionTakenSkipped = "skipped"
)

// ActionTakenExecuted returns the ledger action_taken value for an executed
// action with the given outcome status.
func ActionTakenExecuted(status string) string {
	return fmt.Sprintf("executed:%s", status)
}

// RuleTransactionLog is a row in the idempotency ledger. The triple
// (rule id, transaction id, fingerprint) is unique: once a row exists, the
// rule never acts again for that exact transaction content.
type RuleTransactionLog struct {
	ID                     string `json:"id"`
	RuleID                 string `json:"rule_id"`
	TransactionID          string `json:"transaction_id"`
	TransactionFingerprint string `json:"transaction_fingerprint"`
	ActionTaken            string `json:"action_taken"`
	ProcessedAt            int64  `json:"processed_at"`
}

// Execution statuses.
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
)

// RuleExecution is the audit record of one attempted transfer. Rows are
// append-only and never deduplicated; the ledger, not this table, carries the
// at-most-once guarantee.
type RuleExecution struct {
	ID                string  `json:"id"`
	RuleID            string  `json:"rule_id"`
	TransactionID     string  `json:"transaction_id"`
	TransferPaymentID string  `json:"transfer_payment_id,omitempty"`
	Amount            float64 `json:"amount"`
	FromAccount       string  `json:"from_account"`
	ToAccount         string  `json:"to_account"`
	Status            string  `json:"status"`
	ErrorMessage      string  `json:"error_message,omitempty"`
	ExecutedAt        int64   `json:"executed_at"`
}

// DecisionOutcome enumerates processing decision results.
type DecisionOutcome int

// Processing decision outcomes.
const (
	DecisionProcess DecisionOutcome = iota
	DecisionSkip
	DecisionWait
)

// ProcessingDecision is the tri-state result of comparing a transaction's
// current fingerprint against its tracked state.
type ProcessingDecision struct {
	Outcome DecisionOutcome
	Reason  string
}

// Process decides the transaction should be (re)processed.
func Process() ProcessingDecision {
	return ProcessingDecision{Outcome: DecisionProcess}
}

// Skip decides the transaction has already been handled in this state.
func Skip(reason string) ProcessingDecision {
	return ProcessingDecision{Outcome: DecisionSkip, Reason: reason}
}

// Wait decides the transaction should be deferred until more data arrives.
func Wait(reason string) ProcessingDecision {
	return ProcessingDecision{Outcome: DecisionWait, Reason: reason}
}
