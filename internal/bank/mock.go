package bank

import (
	"context"
	"sync"

	"github.com/Veraticus/autobank/internal/model"
)

// MockClient implements Client for testing. Set the Fn fields to control
// behavior; calls are recorded for assertions.
type MockClient struct {
	mu sync.Mutex

	GetAccountsFn     func(ctx context.Context) (*model.AccountData, error)
	GetTransactionsFn func(ctx context.Context, accountKey string) (*model.TransactionResponse, error)
	CreateTransferFn  func(ctx context.Context, req model.TransferRequest) (*model.TransferResponse, error)

	GetAccountsCalls     int
	GetTransactionsCalls []string
	Transfers            []model.TransferRequest
}

var _ Client = (*MockClient)(nil)

// GetAccounts implements Client.
func (m *MockClient) GetAccounts(ctx context.Context) (*model.AccountData, error) {
	m.mu.Lock()
	m.GetAccountsCalls++
	m.mu.Unlock()

	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx)
	}
	return &model.AccountData{}, nil
}

// GetTransactions implements Client.
func (m *MockClient) GetTransactions(ctx context.Context, accountKey string) (*model.TransactionResponse, error) {
	m.mu.Lock()
	m.GetTransactionsCalls = append(m.GetTransactionsCalls, accountKey)
	m.mu.Unlock()

	if m.GetTransactionsFn != nil {
		return m.GetTransactionsFn(ctx, accountKey)
	}
	return &model.TransactionResponse{}, nil
}

// CreateTransfer implements Client.
func (m *MockClient) CreateTransfer(ctx context.Context, req model.TransferRequest) (*model.TransferResponse, error) {
	m.mu.Lock()
	m.Transfers = append(m.Transfers, req)
	m.mu.Unlock()

	if m.CreateTransferFn != nil {
		return m.CreateTransferFn(ctx, req)
	}
	return &model.TransferResponse{PaymentID: "mock-payment-id", Status: "ACCEPTED"}, nil
}
