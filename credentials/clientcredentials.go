package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/attestly/trustedsign/interfaces"
)

// tokenRefreshMargin is how long before expiry a cached token is considered
// stale and refreshed.
const tokenRefreshMargin = 2 * time.Minute

// ClientSecretCredential acquires bearer tokens via the OAuth2
// client-credentials grant. Tokens are cached until shortly before expiry;
// concurrent callers share one cached token.
type ClientSecretCredential struct {
	clientID     string
	clientSecret string
	tokenURL     string

	mu     sync.Mutex
	cached interfaces.AccessToken
}

// NewClientSecretCredential creates a credential for the given token
// endpoint. For an AAD tenant the endpoint is
// https://login.microsoftonline.com/{tenant}/oauth2/v2.0/token.
func NewClientSecretCredential(tokenURL, clientID, clientSecret string) (*ClientSecretCredential, error) {
	if tokenURL == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: token URL, client id and client secret are required", interfaces.ErrCredential)
	}
	return &ClientSecretCredential{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
	}, nil
}

// GetToken implements interfaces.TokenCredential.
func (c *ClientSecretCredential) GetToken(ctx context.Context, scopes []string) (interfaces.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached.Token != "" && time.Until(c.cached.ExpiresOn) > tokenRefreshMargin {
		return c.cached, nil
	}

	cfg := clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     c.tokenURL,
		Scopes:       scopes,
	}
	token, err := cfg.Token(ctx)
	if err != nil {
		return interfaces.AccessToken{}, fmt.Errorf("%w: token request failed: %v", interfaces.ErrCredential, err)
	}

	c.cached = interfaces.AccessToken{Token: token.AccessToken, ExpiresOn: token.Expiry}
	return c.cached, nil
}
