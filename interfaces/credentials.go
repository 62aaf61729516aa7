package interfaces

import (
	"context"
	"time"
)

// AccessToken is a bearer token together with its expiry as reported by the
// identity provider that issued it.
type AccessToken struct {
	// Token is the opaque bearer token value.
	Token string

	// ExpiresOn is the instant after which the token is no longer valid.
	ExpiresOn time.Time
}

// TokenCredential acquires access tokens for a set of scopes. It is the only
// capability this repository requires from an identity provider.
//
// Implementations must be safe for concurrent use; callers may share a single
// credential across any number of in-flight requests. Whether tokens are
// cached between calls is up to the implementation.
type TokenCredential interface {
	// GetToken returns a token valid for the given scopes. Failures are
	// reported to callers as authentication errors and are never retried by
	// this repository.
	GetToken(ctx context.Context, scopes []string) (AccessToken, error)
}
