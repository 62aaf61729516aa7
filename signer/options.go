package signer

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/attestly/trustedsign/interfaces"
	"github.com/attestly/trustedsign/pipeline"
)

const (
	// DefaultTimeAuthorityURL is the RFC 3161 timestamp authority used when
	// none is configured.
	DefaultTimeAuthorityURL = "http://timestamp.digicert.com"

	// DefaultAlgorithm is the signature algorithm used when none is
	// configured. It matches the RSA key material issued by the signing
	// service's certificate profiles.
	DefaultAlgorithm = interfaces.AlgPS384

	// SignatureReserveSize is the byte budget reported to embedders for the
	// signature block, sized for a full chain plus timestamp countersignature.
	SignatureReserveSize = 20000
)

// TrustSettings carries the verification material for one signer instance.
// Two signers with different anchors can coexist in one process.
type TrustSettings struct {
	// Anchors holds PEM trust anchors. When set, the chain fetched at
	// construction must verify against them, and they are exposed through
	// TrustedSigner.TrustAnchors for downstream verifiers.
	Anchors []byte
}

// SigningOptions configures a TrustedSigner.
type SigningOptions struct {
	// Endpoint is the base URL of the signing service. Required.
	Endpoint *url.URL

	// Account is the code-signing account name. Required.
	Account string

	// CertificateProfile is the certificate profile to sign under. Required.
	CertificateProfile string

	// Algorithm overrides DefaultAlgorithm when set.
	Algorithm interfaces.SigningAlg

	// TimeAuthorityURL overrides DefaultTimeAuthorityURL when set. An
	// explicit "-" disables timestamping.
	TimeAuthorityURL string

	// APIVersion and Scope are passed through to the client and default
	// there.
	APIVersion string
	Scope      string

	// Retry configures the transport retry policy.
	Retry pipeline.RetryOptions

	// Trust carries verification material for downstream consumers.
	Trust TrustSettings

	// HTTPClient overrides the transport.
	HTTPClient *http.Client

	// Log defaults to slog.Default.
	Log *slog.Logger
}

// NewSigningOptions returns options with the defaults applied.
func NewSigningOptions(endpoint *url.URL, account, certificateProfile string) SigningOptions {
	return SigningOptions{
		Endpoint:           endpoint,
		Account:            account,
		CertificateProfile: certificateProfile,
		Algorithm:          DefaultAlgorithm,
		TimeAuthorityURL:   DefaultTimeAuthorityURL,
	}
}
