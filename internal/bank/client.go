package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
)

const (
	defaultBaseURL = "https://api.sparebank1.no"
	acceptHeader   = "application/vnd.sparebank1.v1+json; charset=utf-8"

	accountsPath     = "/personal/banking/accounts"
	transactionsPath = "/personal/banking/transactions"
	transferPath     = "/personal/banking/transfer/debit"

	requestTimeout = 30 * time.Second
	maxRetryTime   = 45 * time.Second
)

// RESTClient talks to the bank's REST API. All requests carry a bearer
// token from the TokenProvider and retry transient failures with
// exponential backoff.
type RESTClient struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
}

// ClientOption configures a RESTClient.
type ClientOption func(*RESTClient)

// WithBaseURL overrides the API base URL; used against test servers.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *RESTClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RESTClient) {
		c.httpClient = client
	}
}

// NewRESTClient creates a bank API client.
func NewRESTClient(tokens TokenProvider, opts ...ClientOption) *RESTClient {
	c := &RESTClient{
		baseURL:    defaultBaseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAccounts fetches all accounts, credit cards included.
func (c *RESTClient) GetAccounts(ctx context.Context) (*model.AccountData, error) {
	query := url.Values{"includeCreditCardAccounts": {"true"}}

	var data model.AccountData
	if err := c.get(ctx, accountsPath, query, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	return &data, nil
}

// GetTransactions fetches recent transactions for a single account.
func (c *RESTClient) GetTransactions(ctx context.Context, accountKey string) (*model.TransactionResponse, error) {
	if accountKey == "" {
		return nil, fmt.Errorf("account key cannot be empty")
	}
	query := url.Values{"accountKey": {accountKey}}

	var data model.TransactionResponse
	if err := c.get(ctx, transactionsPath, query, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for account %s: %w", accountKey, err)
	}

	return &data, nil
}

// CreateTransfer submits a transfer between the user's own accounts.
// Transfers are never retried; a timed-out request may still have been
// accepted by the bank.
func (c *RESTClient) CreateTransfer(ctx context.Context, req model.TransferRequest) (*model.TransferResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, transferPath, nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp model.TransferResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	return &resp, nil
}

// get performs a GET with retry on transient (5xx and transport) errors.
func (c *RESTClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	operation := func() error {
		req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		return c.do(req, out)
	}

	policy := backoff.WithContext(
		backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(maxRetryTime)), ctx)

	return backoff.Retry(operation, policy)
}

func (c *RESTClient) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

func (c *RESTClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrBankConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: server returned %d", common.ErrBankConnection, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return backoff.Permanent(fmt.Errorf("%w: unauthorized", common.ErrNoToken))
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("bank API returned %d: %s", resp.StatusCode, string(body)))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return nil
}
