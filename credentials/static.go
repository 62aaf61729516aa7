package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/attestly/trustedsign/interfaces"
)

// StaticCredential returns a fixed, pre-acquired bearer token. The token is
// handed out as-is for every scope; expiry is reported but not enforced.
type StaticCredential struct {
	token     string
	expiresOn time.Time
}

// NewStaticCredential wraps an existing bearer token. A zero expiresOn
// reports a token that never expires.
func NewStaticCredential(token string, expiresOn time.Time) (*StaticCredential, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", interfaces.ErrCredential)
	}
	return &StaticCredential{token: token, expiresOn: expiresOn}, nil
}

// GetToken implements interfaces.TokenCredential.
func (c *StaticCredential) GetToken(ctx context.Context, scopes []string) (interfaces.AccessToken, error) {
	return interfaces.AccessToken{Token: c.token, ExpiresOn: c.expiresOn}, nil
}
