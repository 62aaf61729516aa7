package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/attestly/trustedsign/interfaces"
)

// VaultIdentityCredential acquires signed identity tokens from HashiCorp
// Vault's OIDC identity provider. The Vault token used to authenticate to
// Vault itself comes from the client's configuration (VAULT_TOKEN or an
// explicit SetToken). Issued tokens are cached until shortly before expiry.
type VaultIdentityCredential struct {
	client *api.Client
	role   string

	mu     sync.Mutex
	cached interfaces.AccessToken
}

// NewVaultIdentityCredential creates a credential backed by the Vault OIDC
// role at identity/oidc/token/{role}. An empty address uses the client
// defaults (VAULT_ADDR).
func NewVaultIdentityCredential(address, vaultToken, role string) (*VaultIdentityCredential, error) {
	if role == "" {
		return nil, fmt.Errorf("%w: vault role is required", interfaces.ErrCredential)
	}

	config := api.DefaultConfig()
	if address != "" {
		config.Address = address
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create vault client: %v", interfaces.ErrCredential, err)
	}
	if vaultToken != "" {
		client.SetToken(vaultToken)
	}

	return &VaultIdentityCredential{client: client, role: role}, nil
}

// GetToken implements interfaces.TokenCredential. The scopes are encoded in
// the Vault role's token template, so the requested scopes are ignored.
func (c *VaultIdentityCredential) GetToken(ctx context.Context, scopes []string) (interfaces.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached.Token != "" && time.Until(c.cached.ExpiresOn) > tokenRefreshMargin {
		return c.cached, nil
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, "identity/oidc/token/"+c.role)
	if err != nil {
		return interfaces.AccessToken{}, fmt.Errorf("%w: vault token read failed: %v", interfaces.ErrCredential, err)
	}
	if secret == nil || secret.Data == nil {
		return interfaces.AccessToken{}, fmt.Errorf("%w: vault returned no token for role %s", interfaces.ErrCredential, c.role)
	}

	token, ok := secret.Data["token"].(string)
	if !ok || token == "" {
		return interfaces.AccessToken{}, fmt.Errorf("%w: vault response carries no token", interfaces.ErrCredential)
	}

	expiresOn := time.Now().Add(time.Hour)
	if raw, ok := secret.Data["ttl"].(json.Number); ok {
		if seconds, err := raw.Int64(); err == nil && seconds > 0 {
			expiresOn = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}

	c.cached = interfaces.AccessToken{Token: token, ExpiresOn: expiresOn}
	return c.cached, nil
}
