package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestly/trustedsign/interfaces"
)

type staticCredential struct {
	token string
	err   error
	calls int
}

func (c *staticCredential) GetToken(ctx context.Context, scopes []string) (interfaces.AccessToken, error) {
	c.calls++
	if c.err != nil {
		return interfaces.AccessToken{}, c.err
	}
	return interfaces.AccessToken{
		Token:     c.token,
		ExpiresOn: time.Now().Add(time.Hour),
	}, nil
}

func TestPipeline_PolicyOrder(t *testing.T) {
	var order []string
	mk := func(name string) Policy {
		return PolicyFunc(func(req *http.Request, next Next) (*http.Response, error) {
			order = append(order, name)
			return next(req)
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.Client(), mk("first"), mk("second"), mk("third"))
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := p.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestAuthorizationPolicy_SetsBearerHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cred := &staticCredential{token: "test-token"}
	p := New(srv.Client(), NewAuthorizationPolicy(cred, "https://signing.example/.default"))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := p.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, 1, cred.calls)
}

func TestAuthorizationPolicy_CredentialErrorNotRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	cred := &staticCredential{err: errors.New("identity provider unavailable")}
	p := New(srv.Client(),
		NewRetryPolicy(RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond}),
		NewAuthorizationPolicy(cred, "scope"),
	)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = p.Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrCredential)
	assert.Equal(t, 0, hits, "request must not reach the transport")
	assert.Equal(t, 1, cred.calls, "credential failures must not be retried")
}

func TestRetryPolicy_RetriesServerErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.Client(), NewRetryPolicy(RetryOptions{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := p.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, hits)
}

func TestRetryPolicy_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(srv.Client(), NewRetryPolicy(RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := p.Do(req)
	require.NoError(t, err, "a response, even retryable, is handed back after the budget")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 3, hits)
}

func TestRetryPolicy_NetworkErrorWrapsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	// Close immediately so every connection attempt fails.
	srv.Close()

	p := New(nil, NewRetryPolicy(RetryOptions{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = p.Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrTransport)
}

func TestRetryPolicy_ReplaysRequestBody(t *testing.T) {
	var bodies []string
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		bodies = append(bodies, string(buf[:n]))
		if hits == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.Client(), NewRetryPolicy(RetryOptions{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL,
		bytes.NewReader([]byte(`{"digest":"abc"}`)))
	require.NoError(t, err)

	resp, err := p.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1], "retried request must carry the same body")
}

func TestUserAgentPolicy(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	p := New(srv.Client(), NewUserAgentPolicy(fmt.Sprintf("trustedsign/%s", "test")))
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := p.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "trustedsign/test", gotUA)
}
