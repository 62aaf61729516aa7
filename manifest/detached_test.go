package manifest

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestly/trustedsign/interfaces"
)

// localSigner implements Signer with an in-memory RSA key, standing in for
// the remote-backed TrustedSigner.
type localSigner struct {
	key   *rsa.PrivateKey
	chain [][]byte
	calls int
}

func (s *localSigner) Sign(ctx context.Context, data []byte) ([]byte, error) {
	s.calls++
	digest := sha512.Sum384(data)
	return rsa.SignPSS(rand.Reader, s.key, crypto.SHA384, digest[:], nil)
}

func (s *localSigner) Algorithm() interfaces.SigningAlg { return interfaces.AlgPS384 }
func (s *localSigner) Certificates() [][]byte           { return s.chain }
func (s *localSigner) ReserveSize() int                 { return 20000 }
func (s *localSigner) TimeAuthorityURL() string         { return "http://timestamp.example" }

func newLocalSigner(t *testing.T) (*localSigner, []byte) {
	t.Helper()

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Test Signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &leafKey.PublicKey, caKey)
	require.NoError(t, err)

	anchors := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})
	return &localSigner{key: leafKey, chain: [][]byte{leafDER}}, anchors
}

func TestDetached_EmbedVerifyRoundTrip(t *testing.T) {
	signer, anchors := newLocalSigner(t)
	content := []byte("the content being signed")

	var out bytes.Buffer
	err := NewDetached().Embed(context.Background(), "image/png", bytes.NewReader(content), &out, signer)
	require.NoError(t, err)

	env, err := Verify(out.Bytes(), bytes.NewReader(content), anchors)
	require.NoError(t, err)
	assert.Equal(t, "image/png", env.Format)
	assert.Equal(t, "ps384", env.Algorithm)
	assert.Equal(t, "http://timestamp.example", env.TimeAuthorityURL)
	assert.Equal(t, 1, signer.calls)
}

func TestDetached_VerifyWithoutContentOrAnchors(t *testing.T) {
	signer, _ := newLocalSigner(t)
	content := []byte("content")

	var out bytes.Buffer
	require.NoError(t, NewDetached().Embed(context.Background(), "txt", bytes.NewReader(content), &out, signer))

	_, err := Verify(out.Bytes(), nil, nil)
	assert.NoError(t, err)
}

func TestVerify_RejectsTamperedContent(t *testing.T) {
	signer, _ := newLocalSigner(t)
	content := []byte("original content")

	var out bytes.Buffer
	require.NoError(t, NewDetached().Embed(context.Background(), "txt", bytes.NewReader(content), &out, signer))

	_, err := Verify(out.Bytes(), bytes.NewReader([]byte("tampered content")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest does not match")
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	signer, _ := newLocalSigner(t)
	content := []byte("content")

	var out bytes.Buffer
	require.NoError(t, NewDetached().Embed(context.Background(), "txt", bytes.NewReader(content), &out, signer))

	var env Envelope
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	env.Signature[0] ^= 0xff
	mangled, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = Verify(mangled, bytes.NewReader(content), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed")
}

func TestVerify_RejectsUntrustedChain(t *testing.T) {
	signer, _ := newLocalSigner(t)
	_, otherAnchors := newLocalSigner(t)
	content := []byte("content")

	var out bytes.Buffer
	require.NoError(t, NewDetached().Embed(context.Background(), "txt", bytes.NewReader(content), &out, signer))

	_, err := Verify(out.Bytes(), bytes.NewReader(content), otherAnchors)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrCertificateChainInvalid)
}
