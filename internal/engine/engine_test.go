package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/autobank/internal/bank"
	"github.com/Veraticus/autobank/internal/model"
	"github.com/Veraticus/autobank/internal/testutil"
)

func demoAccounts() *model.AccountData {
	return &model.AccountData{
		Accounts: []model.Account{
			{Key: "checking-1", AccountNumber: "12345678901", Name: "Brukskonto"},
			{Key: "savings-1", AccountNumber: "12345678902", Name: "Sparekonto"},
		},
	}
}

func netflixTransaction() model.Transaction {
	tx := testutil.NewTransaction("tx-netflix", "NETFLIX.COM 866-579-7172", -179.00)
	return tx
}

func netflixRule(t *testing.T, store interface {
	CreateRule(ctx context.Context, rule *model.Rule) error
}) *model.Rule {
	t.Helper()

	rule := testutil.NewRule("checking-1",
		[]model.Condition{
			model.DescriptionMatches("NETFLIX", true),
			model.IsSettled(),
		},
		[]model.Action{
			{
				Type:        model.ActionTransfer,
				FromAccount: model.TriggerAccount(),
				ToAccount:   model.ByKey("savings-1"),
				Amount:      model.TransactionAmountAbs(),
				Message:     "streaming offset",
			},
		},
	)
	require.NoError(t, store.CreateRule(context.Background(), rule))
	return rule
}

func TestEvaluateAllExecutesMatchingTransfer(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := netflixRule(t, store)

	mock := &bank.MockClient{
		GetAccountsFn: func(_ context.Context) (*model.AccountData, error) {
			return demoAccounts(), nil
		},
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			return &model.TransactionResponse{Transactions: []model.Transaction{netflixTransaction()}}, nil
		},
	}

	stats, err := New(store, mock, nil).EvaluateAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.AccountsPolled)
	assert.Equal(t, 1, stats.TransfersExecuted)
	require.Len(t, mock.Transfers, 1)
	assert.Equal(t, "179.00", mock.Transfers[0].Amount)
	assert.Equal(t, "12345678901", mock.Transfers[0].FromAccount)
	assert.Equal(t, "12345678902", mock.Transfers[0].ToAccount)
	assert.Equal(t, "streaming offset", mock.Transfers[0].Message)

	executions, err := store.GetRuleExecutions(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, model.ExecutionStatusSuccess, executions[0].Status)
	assert.Equal(t, "mock-payment-id", executions[0].TransferPaymentID)
}

func TestEvaluateAllIsIdempotent(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := netflixRule(t, store)

	mock := &bank.MockClient{
		GetAccountsFn: func(_ context.Context) (*model.AccountData, error) {
			return demoAccounts(), nil
		},
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			return &model.TransactionResponse{Transactions: []model.Transaction{netflixTransaction()}}, nil
		},
	}

	ruleEngine := New(store, mock, nil)
	for i := 0; i < 3; i++ {
		_, err := ruleEngine.EvaluateAll(ctx)
		require.NoError(t, err)
	}

	assert.Len(t, mock.Transfers, 1, "the same transaction must never transfer twice")

	executions, err := store.GetRuleExecutions(ctx, rule.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestEvaluateAllReprocessesWhenTransactionSettles(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	netflixRule(t, store)

	tx := netflixTransaction()
	tx.BookingStatus = model.BookingStatusPending

	mock := &bank.MockClient{
		GetAccountsFn: func(_ context.Context) (*model.AccountData, error) {
			return demoAccounts(), nil
		},
	}
	mock.GetTransactionsFn = func(_ context.Context, _ string) (*model.TransactionResponse, error) {
		return &model.TransactionResponse{Transactions: []model.Transaction{tx}}, nil
	}

	ruleEngine := New(store, mock, nil)

	// Pending: the settled condition fails, so the rule records a skip.
	_, err := ruleEngine.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, mock.Transfers)

	// The transaction settles: new fingerprint, rule fires.
	tx.BookingStatus = model.BookingStatusBooked
	_, err = ruleEngine.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Len(t, mock.Transfers, 1)

	// Third cycle with no change stays quiet.
	_, err = ruleEngine.EvaluateAll(ctx)
	require.NoError(t, err)
	assert.Len(t, mock.Transfers, 1)
}

func TestEvaluateAllFailedTransferIsNotRetried(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := netflixRule(t, store)

	attempts := 0
	mock := &bank.MockClient{
		GetAccountsFn: func(_ context.Context) (*model.AccountData, error) {
			return demoAccounts(), nil
		},
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			return &model.TransactionResponse{Transactions: []model.Transaction{netflixTransaction()}}, nil
		},
		CreateTransferFn: func(_ context.Context, _ model.TransferRequest) (*model.TransferResponse, error) {
			attempts++
			return &model.TransferResponse{
				Errors: []model.APIError{{Code: "INSUFFICIENT_FUNDS", Message: "not enough money"}},
			}, nil
		},
	}

	ruleEngine := New(store, mock, nil)
	for i := 0; i < 2; i++ {
		_, err := ruleEngine.EvaluateAll(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, attempts, "a failed transfer is recorded, not retried")

	executions, err := store.GetRuleExecutions(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, model.ExecutionStatusFailed, executions[0].Status)
	assert.Contains(t, executions[0].ErrorMessage, "INSUFFICIENT_FUNDS")
}

func TestEvaluateAllAccountResolutionFailure(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testutil.NewRule("checking-1",
		nil,
		[]model.Action{
			{
				Type:        model.ActionTransfer,
				FromAccount: model.TriggerAccount(),
				ToAccount:   model.ByKey("does-not-exist"),
				Amount:      model.Fixed(100),
			},
		},
	)
	require.NoError(t, store.CreateRule(ctx, rule))

	mock := &bank.MockClient{
		GetAccountsFn: func(_ context.Context) (*model.AccountData, error) {
			return demoAccounts(), nil
		},
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			return &model.TransactionResponse{Transactions: []model.Transaction{netflixTransaction()}}, nil
		},
	}

	stats, err := New(store, mock, nil).EvaluateAll(ctx)
	require.NoError(t, err)

	assert.Empty(t, mock.Transfers, "no transfer without a resolvable destination")
	assert.Equal(t, 1, stats.TransfersFailed)

	executions, err := store.GetRuleExecutions(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, model.ExecutionStatusFailed, executions[0].Status)
	assert.Contains(t, executions[0].ErrorMessage, "does-not-exist")
}

func TestEvaluateAllLogsAccountListingErrors(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	netflixRule(t, store)

	mock := &bank.MockClient{
		GetAccountsFn: func(_ context.Context) (*model.AccountData, error) {
			data := demoAccounts()
			data.Errors = []model.APIError{{Code: "PARTIAL_RESULT", Message: "one account provider timed out"}}
			return data, nil
		},
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			return &model.TransactionResponse{Transactions: []model.Transaction{netflixTransaction()}}, nil
		},
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	_, err := New(store, mock, logger).EvaluateAll(ctx)
	require.NoError(t, err)

	assert.Len(t, mock.Transfers, 1, "soft listing errors do not block resolvable transfers")
	assert.Contains(t, logs.String(), "PARTIAL_RESULT")
}

func TestEvaluateAllRefusesNonPositiveAmount(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testutil.NewRule("checking-1",
		nil,
		[]model.Action{
			{
				Type:        model.ActionTransfer,
				FromAccount: model.TriggerAccount(),
				ToAccount:   model.ByKey("savings-1"),
				Amount:      model.TransactionAmount(),
			},
		},
	)
	require.NoError(t, store.CreateRule(ctx, rule))

	mock := &bank.MockClient{
		GetAccountsFn: func(_ context.Context) (*model.AccountData, error) {
			return demoAccounts(), nil
		},
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			// Signed amount of a purchase is negative.
			return &model.TransactionResponse{Transactions: []model.Transaction{netflixTransaction()}}, nil
		},
	}

	_, err := New(store, mock, nil).EvaluateAll(ctx)
	require.NoError(t, err)

	assert.Empty(t, mock.Transfers)

	executions, err := store.GetRuleExecutions(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Contains(t, executions[0].ErrorMessage, "not positive")
}

func TestEvaluateAllIsolatesAccountFetchFailures(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	okRule := netflixRule(t, store)
	badRule := testutil.NewRule("broken-account",
		nil,
		[]model.Action{
			{
				Type:        model.ActionTransfer,
				FromAccount: model.TriggerAccount(),
				ToAccount:   model.ByKey("savings-1"),
				Amount:      model.Fixed(100),
			},
		},
	)
	require.NoError(t, store.CreateRule(ctx, badRule))

	mock := &bank.MockClient{
		GetAccountsFn: func(_ context.Context) (*model.AccountData, error) {
			return demoAccounts(), nil
		},
		GetTransactionsFn: func(_ context.Context, accountKey string) (*model.TransactionResponse, error) {
			if accountKey == "broken-account" {
				return nil, fmt.Errorf("connection reset")
			}
			return &model.TransactionResponse{Transactions: []model.Transaction{netflixTransaction()}}, nil
		},
	}

	stats, err := New(store, mock, nil).EvaluateAll(ctx)
	require.NoError(t, err, "one failing account must not abort the cycle")

	assert.Equal(t, 1, stats.AccountsPolled)
	assert.Equal(t, 1, stats.AccountsFailed)
	assert.Len(t, mock.Transfers, 1)

	executions, err := store.GetRuleExecutions(ctx, okRule.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestEvaluateAllRecordsSkipForNonMatchingRules(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	rule := testutil.NewRule("checking-1",
		[]model.Condition{model.DescriptionMatches("SPOTIFY", false)},
		[]model.Action{
			{
				Type:        model.ActionTransfer,
				FromAccount: model.TriggerAccount(),
				ToAccount:   model.ByKey("savings-1"),
				Amount:      model.Fixed(100),
			},
		},
	)
	require.NoError(t, store.CreateRule(ctx, rule))

	mock := &bank.MockClient{
		GetTransactionsFn: func(_ context.Context, _ string) (*model.TransactionResponse, error) {
			return &model.TransactionResponse{Transactions: []model.Transaction{netflixTransaction()}}, nil
		},
	}

	stats, err := New(store, mock, nil).EvaluateAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TransactionsSkipped)
	assert.Empty(t, mock.Transfers)
	assert.Zero(t, mock.GetAccountsCalls, "no account lookup for non-matching rules")

	tx := netflixTransaction()
	processed, err := store.HasProcessed(ctx, rule.ID, tx.ID, tx.Fingerprint())
	require.NoError(t, err)
	assert.True(t, processed, "the skip is recorded in the ledger")
}

func TestEvaluateAllNoEnabledRules(t *testing.T) {
	store := testutil.SetupTestDB(t)

	mock := &bank.MockClient{}
	stats, err := New(store, mock, nil).EvaluateAll(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.AccountsPolled)
	assert.Empty(t, mock.GetTransactionsCalls)
}

func TestResolveAccountRef(t *testing.T) {
	accounts := demoAccounts().Accounts

	tests := []struct {
		name    string
		ref     model.AccountRef
		wantKey string
		wantErr bool
	}{
		{name: "trigger account", ref: model.TriggerAccount(), wantKey: "checking-1"},
		{name: "by key", ref: model.ByKey("savings-1"), wantKey: "savings-1"},
		{name: "by number", ref: model.ByNumber("12345678902"), wantKey: "savings-1"},
		{name: "unknown key", ref: model.ByKey("nope"), wantErr: true},
		{name: "unknown number", ref: model.ByNumber("000"), wantErr: true},
		{name: "unknown ref type", ref: model.AccountRef{Type: "nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := resolveAccountRef(&tt.ref, "checking-1", accounts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, account.Key)
		})
	}
}
