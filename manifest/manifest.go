package manifest

import (
	"context"
	"io"

	"github.com/attestly/trustedsign/interfaces"
)

// Signer is the signing capability a manifest embedder consumes. It is
// implemented by signer.TrustedSigner; alternative implementations (local
// keys, HSMs) only need to satisfy this interface.
//
// Implementations must be safe for concurrent use: Sign calls are
// independent and share no mutable state beyond the cached certificate
// chain.
type Signer interface {
	// Sign computes the configured digest over data and returns the
	// signature bytes.
	Sign(ctx context.Context, data []byte) ([]byte, error)

	// Algorithm returns the configured signature algorithm.
	Algorithm() interfaces.SigningAlg

	// Certificates returns the signer's certificate chain, DER-encoded and
	// ordered leaf first. The chain is fetched once at construction and
	// cached for the signer's lifetime.
	Certificates() [][]byte

	// ReserveSize returns the byte budget an embedder should reserve for
	// the signature block before the final digest-and-sign pass.
	ReserveSize() int

	// TimeAuthorityURL returns the RFC 3161 timestamp authority endpoint,
	// or the empty string when none is configured.
	TimeAuthorityURL() string
}

// Embedder binds a signature produced by a Signer into an output document
// for the given input content.
type Embedder interface {
	// Embed reads content from in, signs it with signer, and writes the
	// resulting signed document to out. The format is the content's media
	// type or file extension, used to label the output.
	Embed(ctx context.Context, format string, in io.Reader, out io.Writer, signer Signer) error
}
