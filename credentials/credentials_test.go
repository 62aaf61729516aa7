package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestly/trustedsign/interfaces"
)

func TestStaticCredential(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	cred, err := NewStaticCredential("secret-token", expiry)
	require.NoError(t, err)

	token, err := cred.GetToken(context.Background(), []string{"scope-a"})
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token.Token)
	assert.Equal(t, expiry, token.ExpiresOn)
}

func TestStaticCredential_RejectsEmptyToken(t *testing.T) {
	_, err := NewStaticCredential("", time.Time{})
	assert.ErrorIs(t, err, interfaces.ErrCredential)
}

func TestClientSecretCredential(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "issued-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	cred, err := NewClientSecretCredential(server.URL, "client-id", "client-secret")
	require.NoError(t, err)

	token, err := cred.GetToken(context.Background(), []string{"https://codesigning.azure.net/.default"})
	require.NoError(t, err)
	assert.Equal(t, "issued-token", token.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresOn, time.Minute)

	// Second call within the expiry window serves the cache.
	_, err = cred.GetToken(context.Background(), []string{"https://codesigning.azure.net/.default"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests.Load())
}

func TestClientSecretCredential_EndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	cred, err := NewClientSecretCredential(server.URL, "client-id", "bad-secret")
	require.NoError(t, err)

	_, err = cred.GetToken(context.Background(), nil)
	assert.ErrorIs(t, err, interfaces.ErrCredential)
}

func TestVaultIdentityCredential(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/v1/identity/oidc/token/signing", r.URL.Path)
		assert.Equal(t, "vault-token", r.Header.Get("X-Vault-Token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"token":     "vault-issued-jwt",
				"client_id": "signing",
				"ttl":       3600,
			},
		})
	}))
	defer server.Close()

	cred, err := NewVaultIdentityCredential(server.URL, "vault-token", "signing")
	require.NoError(t, err)

	token, err := cred.GetToken(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "vault-issued-jwt", token.Token)

	_, err = cred.GetToken(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests.Load(), "second call must be served from cache")
}

func TestVaultIdentityCredential_MissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer server.Close()

	cred, err := NewVaultIdentityCredential(server.URL, "vault-token", "signing")
	require.NoError(t, err)

	_, err = cred.GetToken(context.Background(), nil)
	assert.ErrorIs(t, err, interfaces.ErrCredential)
}

func TestVaultIdentityCredential_RequiresRole(t *testing.T) {
	_, err := NewVaultIdentityCredential("http://127.0.0.1:8200", "tok", "")
	assert.ErrorIs(t, err, interfaces.ErrCredential)
}
