package pipeline

import (
	"fmt"
	"net/http"

	"github.com/attestly/trustedsign/interfaces"
)

// AuthorizationPolicy injects a bearer token acquired from a TokenCredential
// into every outbound request.
//
// The policy holds only the shared credential reference and the fixed scope
// string, so it is safe to reuse across concurrent requests. Token
// acquisition failures are wrapped with interfaces.ErrCredential and
// propagate to the caller without any retry here; caching and refresh are
// the credential provider's concern.
type AuthorizationPolicy struct {
	credential interfaces.TokenCredential
	scope      string
}

// NewAuthorizationPolicy creates an authorization policy for the given
// credential and scope.
func NewAuthorizationPolicy(credential interfaces.TokenCredential, scope string) *AuthorizationPolicy {
	return &AuthorizationPolicy{credential: credential, scope: scope}
}

// Do implements Policy.
func (p *AuthorizationPolicy) Do(req *http.Request, next Next) (*http.Response, error) {
	token, err := p.credential.GetToken(req.Context(), []string{p.scope})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrCredential, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	return next(req)
}
