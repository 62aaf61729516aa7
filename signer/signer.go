package signer

import (
	"context"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
	"log/slog"

	"github.com/attestly/trustedsign/api/signhandler"
	"github.com/attestly/trustedsign/interfaces"
	"github.com/attestly/trustedsign/manifest"
)

// TrustedSigner signs content digests through a remote signing service.
// The certificate chain is fetched once during construction and cached; a
// signer whose chain could not be fetched is never handed out.
//
// TrustedSigner is immutable after construction and safe for concurrent use.
type TrustedSigner struct {
	client           *signhandler.Client
	algorithm        interfaces.SigningAlg
	certificates     [][]byte
	trustAnchors     []byte
	timeAuthorityURL string
	log              *slog.Logger
}

var _ manifest.Signer = (*TrustedSigner)(nil)

// NewTrustedSigner builds a signer for the configured account and
// certificate profile, fetching and normalizing the certificate chain up
// front. Construction fails if the chain cannot be fetched, so a returned
// signer always has certificates to hand to an embedder.
func NewTrustedSigner(ctx context.Context, credential interfaces.TokenCredential, opts SigningOptions) (*TrustedSigner, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = DefaultAlgorithm
	}
	if opts.TimeAuthorityURL == "" {
		opts.TimeAuthorityURL = DefaultTimeAuthorityURL
	}
	if opts.TimeAuthorityURL == "-" {
		opts.TimeAuthorityURL = ""
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	client, err := signhandler.NewClient(opts.Endpoint, credential, signhandler.ClientOptions{
		Account:            opts.Account,
		CertificateProfile: opts.CertificateProfile,
		APIVersion:         opts.APIVersion,
		Scope:              opts.Scope,
		Retry:              opts.Retry,
		HTTPClient:         opts.HTTPClient,
		Log:                opts.Log,
	})
	if err != nil {
		return nil, err
	}

	certificates, err := client.Certificates(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch certificate chain: %w", err)
	}

	if len(opts.Trust.Anchors) > 0 {
		if err := verifyAgainstAnchors(certificates, opts.Trust.Anchors); err != nil {
			return nil, err
		}
	}

	opts.Log.Info("Signer initialized",
		slog.String("account", opts.Account),
		slog.String("profile", opts.CertificateProfile),
		slog.String("algorithm", opts.Algorithm.String()),
		slog.Int("chainLength", len(certificates)))

	return &TrustedSigner{
		client:           client,
		algorithm:        opts.Algorithm,
		certificates:     certificates,
		trustAnchors:     opts.Trust.Anchors,
		timeAuthorityURL: opts.TimeAuthorityURL,
		log:              opts.Log,
	}, nil
}

// verifyAgainstAnchors checks that the leaf-first chain builds to one of the
// PEM trust anchors.
func verifyAgainstAnchors(chain [][]byte, anchors []byte) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", interfaces.ErrCertificateChainInvalid)
	}

	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(anchors) {
		return fmt.Errorf("%w: no usable trust anchors configured", interfaces.ErrCertificateChainInvalid)
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return fmt.Errorf("%w: could not parse leaf certificate: %v", interfaces.ErrCertificateChainInvalid, err)
	}

	intermediates := x509.NewCertPool()
	for _, der := range chain[1:] {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("%w: could not parse intermediate: %v", interfaces.ErrCertificateChainInvalid, err)
		}
		intermediates.AddCert(cert)
	}

	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return fmt.Errorf("%w: chain does not verify against configured anchors: %v", interfaces.ErrCertificateChainInvalid, err)
	}
	return nil
}

// Sign digests data with the configured algorithm's hash and has the remote
// service sign the digest. Algorithms other than PS384 are rejected before
// any network call; the service's certificate profiles only carry RSA keys.
func (s *TrustedSigner) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if s.algorithm != interfaces.AlgPS384 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnsupportedAlgorithm, s.algorithm)
	}

	digest := sha512.Sum384(data)
	return s.client.Sign(ctx, s.algorithm, digest[:])
}

// Algorithm returns the configured signature algorithm.
func (s *TrustedSigner) Algorithm() interfaces.SigningAlg {
	return s.algorithm
}

// Certificates returns a copy of the cached chain, leaf first.
func (s *TrustedSigner) Certificates() [][]byte {
	chain := make([][]byte, len(s.certificates))
	copy(chain, s.certificates)
	return chain
}

// ReserveSize returns the byte budget embedders should reserve for the
// signature block.
func (s *TrustedSigner) ReserveSize() int {
	return SignatureReserveSize
}

// TimeAuthorityURL returns the configured timestamp authority, or the empty
// string when timestamping is disabled.
func (s *TrustedSigner) TimeAuthorityURL() string {
	return s.timeAuthorityURL
}

// TrustAnchors returns the PEM trust anchors this signer was configured
// with, or nil when none were set. Verifiers of this signer's output should
// use the same anchors.
func (s *TrustedSigner) TrustAnchors() []byte {
	if len(s.trustAnchors) == 0 {
		return nil
	}
	anchors := make([]byte, len(s.trustAnchors))
	copy(anchors, s.trustAnchors)
	return anchors
}
