// Package bank provides the client for the bank's REST API.
package bank

import (
	"context"

	"github.com/Veraticus/autobank/internal/model"
)

// Client defines the contract for the bank data source.
// This interface allows for easy mocking in tests and swapping data sources.
type Client interface {
	GetAccounts(ctx context.Context) (*model.AccountData, error)
	GetTransactions(ctx context.Context, accountKey string) (*model.TransactionResponse, error)
	CreateTransfer(ctx context.Context, transfer model.TransferRequest) (*model.TransferResponse, error)
}

// TokenProvider supplies a valid OAuth access token for API calls.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}
