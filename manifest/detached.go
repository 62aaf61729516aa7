package manifest

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/attestly/trustedsign/interfaces"
)

// Envelope is the detached signing result: everything a verifier needs to
// check the signature and certificate chain, without the content container.
type Envelope struct {
	// Format is the media type or extension of the signed content.
	Format string `json:"format"`

	// Algorithm is the signature algorithm's wire name.
	Algorithm string `json:"algorithm"`

	// Digest is the hash of the content under the algorithm's digest
	// function.
	Digest []byte `json:"digest"`

	// Signature is the raw signature over the digest.
	Signature []byte `json:"signature"`

	// CertificateChain holds the DER certificates, leaf first.
	CertificateChain [][]byte `json:"certificateChain"`

	// TimeAuthorityURL is the configured timestamp authority, if any.
	TimeAuthorityURL string `json:"timeAuthorityURL,omitempty"`

	// SignedAt records when the envelope was produced.
	SignedAt time.Time `json:"signedAt"`
}

// Detached is an Embedder that writes an Envelope as JSON instead of
// embedding the signature into the content itself.
type Detached struct{}

// NewDetached creates a detached-envelope embedder.
func NewDetached() *Detached {
	return &Detached{}
}

// Embed implements Embedder.
func (d *Detached) Embed(ctx context.Context, format string, in io.Reader, out io.Writer, signer Signer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("could not read content: %w", err)
	}

	alg := signer.Algorithm()
	hash := alg.HashFunc()
	if hash == 0 {
		return fmt.Errorf("%w: %s has no digest function", interfaces.ErrUnsupportedAlgorithm, alg)
	}

	hasher := hash.New()
	hasher.Write(data)
	digest := hasher.Sum(nil)

	signature, err := signer.Sign(ctx, data)
	if err != nil {
		return fmt.Errorf("signature failure: %w", err)
	}

	env := Envelope{
		Format:           format,
		Algorithm:        alg.String(),
		Digest:           digest,
		Signature:        signature,
		CertificateChain: signer.Certificates(),
		TimeAuthorityURL: signer.TimeAuthorityURL(),
		SignedAt:         time.Now().UTC(),
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("could not write envelope: %w", err)
	}
	return nil
}

// Verify checks a detached envelope: the signature must verify against the
// leaf certificate, the recomputed content digest must match when content is
// provided, and the certificate chain must build to one of the PEM trust
// anchors when anchors are provided. A nil content or anchors skips the
// respective check.
func Verify(envelope []byte, content io.Reader, anchors []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(envelope, &env); err != nil {
		return nil, fmt.Errorf("could not parse envelope: %w", err)
	}

	alg, err := interfaces.ParseSigningAlg(env.Algorithm)
	if err != nil {
		return nil, err
	}
	hash := alg.HashFunc()
	if hash == 0 {
		return nil, fmt.Errorf("%w: cannot verify %s", interfaces.ErrUnsupportedAlgorithm, alg)
	}

	if content != nil {
		hasher := hash.New()
		if _, err := io.Copy(hasher, content); err != nil {
			return nil, fmt.Errorf("could not read content: %w", err)
		}
		if !bytes.Equal(hasher.Sum(nil), env.Digest) {
			return nil, fmt.Errorf("content digest does not match envelope")
		}
	}

	if len(env.CertificateChain) == 0 {
		return nil, fmt.Errorf("%w: envelope carries no certificates", interfaces.ErrCertificateChainInvalid)
	}
	leaf, err := x509.ParseCertificate(env.CertificateChain[0])
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse leaf certificate: %v", interfaces.ErrCertificateChainInvalid, err)
	}

	switch pub := leaf.PublicKey.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPSS(pub, hash, env.Digest, env.Signature, nil); err != nil {
			return nil, fmt.Errorf("signature verification failed: %w", err)
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, env.Digest, env.Signature) {
			return nil, fmt.Errorf("signature verification failed")
		}
	default:
		return nil, fmt.Errorf("%w: leaf certificate key type %T", interfaces.ErrUnsupportedAlgorithm, pub)
	}

	if anchors != nil {
		if err := verifyChain(leaf, env.CertificateChain[1:], anchors); err != nil {
			return nil, err
		}
	}

	return &env, nil
}

func verifyChain(leaf *x509.Certificate, intermediatesDER [][]byte, anchors []byte) error {
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(anchors) {
		return fmt.Errorf("no usable trust anchors provided")
	}

	intermediates := x509.NewCertPool()
	for _, der := range intermediatesDER {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("%w: could not parse intermediate: %v", interfaces.ErrCertificateChainInvalid, err)
		}
		intermediates.AddCert(cert)
	}

	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrCertificateChainInvalid, err)
	}
	return nil
}
