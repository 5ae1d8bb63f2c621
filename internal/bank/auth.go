package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"github.com/Veraticus/autobank/internal/common"
)

// OAuth endpoints of the bank.
const (
	authURL  = "https://api.sparebank1.no/oauth/authorize"
	tokenURL = "https://api.sparebank1.no/oauth/token" //nolint:gosec // endpoint, not a credential
	// redirectURL is registered with the bank for the local auth flow.
	redirectURL = "http://localhost:8321"
)

// AuthConfig holds the OAuth client credentials.
type AuthConfig struct {
	ClientID             string
	ClientSecret         string
	FinancialInstitution string
	TokenFile            string
}

// Validate ensures all required fields are present.
func (c *AuthConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: bank client ID", common.ErrMissingConfig)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("%w: bank client secret", common.ErrMissingConfig)
	}
	if c.FinancialInstitution == "" {
		return fmt.Errorf("%w: financial institution", common.ErrMissingConfig)
	}
	if c.TokenFile == "" {
		return fmt.Errorf("%w: token file path", common.ErrMissingConfig)
	}
	return nil
}

// FileTokenProvider keeps OAuth tokens in a JSON file and refreshes them
// through the standard oauth2 token source when they expire.
type FileTokenProvider struct {
	conf      *oauth2.Config
	tokenFile string
	finInst   string

	mu    sync.Mutex
	token *oauth2.Token
}

// NewFileTokenProvider creates a token provider backed by cfg.TokenFile.
// A missing token file is not an error; authentication happens later via
// the auth flow.
func NewFileTokenProvider(cfg AuthConfig) (*FileTokenProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := &FileTokenProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokenFile: cfg.TokenFile,
		finInst:   cfg.FinancialInstitution,
	}

	token, err := provider.readTokenFile()
	if err != nil {
		return nil, err
	}
	provider.token = token

	return provider, nil
}

// AuthorizationURL returns the URL the user must visit to authorize access.
func (p *FileTokenProvider) AuthorizationURL(state string) string {
	return p.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("finInst", p.finInst))
}

// ExchangeCode trades an authorization code for tokens and persists them.
func (p *FileTokenProvider) ExchangeCode(ctx context.Context, code string) error {
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token

	return p.writeTokenFile(token)
}

// AccessToken returns a valid access token, refreshing and persisting it
// when the cached one has expired.
func (p *FileTokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == nil {
		return "", common.ErrNoToken
	}

	// TokenSource refreshes only when needed.
	fresh, err := p.conf.TokenSource(ctx, p.token).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	if fresh.AccessToken != p.token.AccessToken {
		p.token = fresh
		if err := p.writeTokenFile(fresh); err != nil {
			return "", err
		}
	}

	return fresh.AccessToken, nil
}

func (p *FileTokenProvider) readTokenFile() (*oauth2.Token, error) {
	data, err := os.ReadFile(p.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return &token, nil
}

func (p *FileTokenProvider) writeTokenFile(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.tokenFile), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(p.tokenFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// StaticTokenProvider returns a fixed token; used in tests.
type StaticTokenProvider string

// AccessToken implements TokenProvider.
func (t StaticTokenProvider) AccessToken(_ context.Context) (string, error) {
	return string(t), nil
}
