package songfeed

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuthConfig holds client-credentials settings for feeds that require a
// bearer token.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Enabled reports whether enough settings are present to request tokens.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.TokenURL != ""
}

// NewHTTPClient returns base unchanged when OAuth is not configured, and an
// http.Client that attaches refreshed bearer tokens otherwise. Token requests
// use base as their transport.
func NewHTTPClient(ctx context.Context, base *http.Client, cfg OAuthConfig) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	if !cfg.Enabled() {
		return base
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := cc.Client(ctx)
	client.Timeout = base.Timeout
	return client
}
