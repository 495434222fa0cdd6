package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotConfigured is returned when client id, secret or token URL is missing.
var ErrNotConfigured = errors.New("catalog client credentials are not configured")

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
}

// Credential is the short-lived client-level bearer credential handed to clients.
type Credential struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	Expiry      time.Time
}

// Exchanger obtains client-level credentials from the catalog provider.
type Exchanger interface {
	Exchange(ctx context.Context) (*Credential, error)
}

// ClientCredentialsExchanger performs an OAuth2 client-credentials grant on
// every call. It keeps no token cache.
type ClientCredentialsExchanger struct {
	cfg    *clientcredentials.Config
	client *http.Client
	now    func() time.Time
}

func NewClientCredentialsExchanger(cfg Config) *ClientCredentialsExchanger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClientCredentialsExchanger{
		cfg: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (e *ClientCredentialsExchanger) Exchange(ctx context.Context) (*Credential, error) {
	if e.cfg.ClientID == "" || e.cfg.ClientSecret == "" || e.cfg.TokenURL == "" {
		return nil, ErrNotConfigured
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	tok, err := e.cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("client credentials grant: %w", err)
	}

	cred := &Credential{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
	}
	if !tok.Expiry.IsZero() {
		cred.ExpiresIn = int64(tok.Expiry.Sub(e.now()).Round(time.Second) / time.Second)
	}
	return cred, nil
}
