// Package credentials provides TokenCredential implementations for the
// signing client: a static token for tests and pre-acquired tokens, an
// OAuth2 client-credentials flow against a token endpoint, and identity
// tokens issued by HashiCorp Vault's OIDC provider.
package credentials
