package pipeline

import "net/http"

// UserAgentPolicy stamps a fixed User-Agent header on outbound requests
// unless the caller already set one.
type UserAgentPolicy struct {
	userAgent string
}

// NewUserAgentPolicy creates a user-agent policy.
func NewUserAgentPolicy(userAgent string) *UserAgentPolicy {
	return &UserAgentPolicy{userAgent: userAgent}
}

// Do implements Policy.
func (p *UserAgentPolicy) Do(req *http.Request, next Next) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	return next(req)
}
