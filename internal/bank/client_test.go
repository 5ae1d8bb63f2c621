package bank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
)

func TestGetAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/personal/banking/accounts", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("includeCreditCardAccounts"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Accept"), "application/vnd.sparebank1.v1+json")

		_ = json.NewEncoder(w).Encode(model.AccountData{
			Accounts: []model.Account{{Key: "checking-1", AccountNumber: "12345678901"}},
		})
	}))
	defer srv.Close()

	client := NewRESTClient(StaticTokenProvider("test-token"), WithBaseURL(srv.URL))

	data, err := client.GetAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, data.Accounts, 1)
	assert.Equal(t, "checking-1", data.Accounts[0].Key)
}

func TestGetTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/personal/banking/transactions", r.URL.Path)
		assert.Equal(t, "checking-1", r.URL.Query().Get("accountKey"))

		_ = json.NewEncoder(w).Encode(model.TransactionResponse{
			Transactions: []model.Transaction{{ID: "tx-1", Amount: -179}},
		})
	}))
	defer srv.Close()

	client := NewRESTClient(StaticTokenProvider("test-token"), WithBaseURL(srv.URL))

	resp, err := client.GetTransactions(context.Background(), "checking-1")
	require.NoError(t, err)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, "tx-1", resp.Transactions[0].ID)

	_, err = client.GetTransactions(context.Background(), "")
	assert.Error(t, err)
}

func TestGetRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(model.AccountData{})
	}))
	defer srv.Close()

	client := NewRESTClient(StaticTokenProvider("test-token"), WithBaseURL(srv.URL))

	_, err := client.GetAccounts(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewRESTClient(StaticTokenProvider("test-token"), WithBaseURL(srv.URL))

	_, err := client.GetAccounts(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnauthorizedSurfacesTokenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewRESTClient(StaticTokenProvider("expired"), WithBaseURL(srv.URL))

	_, err := client.GetAccounts(context.Background())
	assert.ErrorIs(t, err, common.ErrNoToken)
}

func TestCreateTransfer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/personal/banking/transfer/debit", r.URL.Path)

		var req model.TransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "179.00", req.Amount)

		_ = json.NewEncoder(w).Encode(model.TransferResponse{PaymentID: "pay-1", Status: "ACCEPTED"})
	}))
	defer srv.Close()

	client := NewRESTClient(StaticTokenProvider("test-token"), WithBaseURL(srv.URL))

	resp, err := client.CreateTransfer(context.Background(), model.TransferRequest{
		Amount:      "179.00",
		FromAccount: "12345678901",
		ToAccount:   "12345678902",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", resp.PaymentID)
}

func TestCreateTransferIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRESTClient(StaticTokenProvider("test-token"), WithBaseURL(srv.URL))

	_, err := client.CreateTransfer(context.Background(), model.TransferRequest{Amount: "1.00"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a transfer must never be submitted twice")
}
