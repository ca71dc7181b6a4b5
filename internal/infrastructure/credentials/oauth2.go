package credentials

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2 obtains an access token with the client credentials grant and
// reuses it until it expires.
type OAuth2 struct {
	config *clientcredentials.Config

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewOAuth2 creates a client-credentials provider.
func NewOAuth2(clientID, clientSecret, tokenURL string, scopes []string) *OAuth2 {
	return &OAuth2{config: &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}}
}

// Token returns a cached access token, fetching a new one when needed.
// Refreshes keep the values of the first call's context but not its
// cancellation.
func (o *OAuth2) Token(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.source == nil {
		o.source = oauth2.ReuseTokenSource(nil, o.config.TokenSource(context.WithoutCancel(ctx)))
	}
	source := o.source
	o.mu.Unlock()

	tok, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to fetch oauth2 token: %w", err)
	}
	return nonEmpty(tok.AccessToken)
}
