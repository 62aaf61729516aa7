package httpserver

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
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestly/trustedsign/interfaces"
	"github.com/attestly/trustedsign/manifest"
)

type localSigner struct {
	key   *rsa.PrivateKey
	chain [][]byte
}

func (s *localSigner) Sign(ctx context.Context, data []byte) ([]byte, error) {
	digest := sha512.Sum384(data)
	return rsa.SignPSS(rand.Reader, s.key, crypto.SHA384, digest[:], nil)
}

func (s *localSigner) Algorithm() interfaces.SigningAlg { return interfaces.AlgPS384 }
func (s *localSigner) Certificates() [][]byte           { return s.chain }
func (s *localSigner) ReserveSize() int                 { return 20000 }
func (s *localSigner) TimeAuthorityURL() string         { return "" }

func newLocalSigner(t *testing.T) *localSigner {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Server Test Signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	return &localSigner{key: key, chain: [][]byte{der}}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(newLocalSigner(t), manifest.NewDetached(), nil, log)

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      log,
		DrainDuration:            10 * time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, handler)
	require.NoError(t, err)
	return srv
}

func execRequest(t *testing.T, srv *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, req)
	return rec
}

func TestServer_SignAndVerify(t *testing.T) {
	srv := newTestServer(t)
	content := []byte("content to sign")

	req := httptest.NewRequest(http.MethodPost, "/api/sign", bytes.NewReader(content))
	req.Header.Set("X-Content-Format", "image/jpeg")
	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The signed document round-trips through local verification.
	env, err := manifest.Verify(rec.Body.Bytes(), bytes.NewReader(content), nil)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", env.Format)

	// And through the verify endpoint.
	verifyRec := execRequest(t, srv, http.MethodPost, "/api/verify", bytes.NewReader(rec.Body.Bytes()))
	require.Equal(t, http.StatusOK, verifyRec.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(verifyRec.Body.Bytes(), &result))
	assert.Equal(t, "valid", result["status"])
	assert.Equal(t, "image/jpeg", result["format"])
}

func TestServer_SignRejectsEmptyBody(t *testing.T) {
	srv := newTestServer(t)

	rec := execRequest(t, srv, http.MethodPost, "/api/sign", bytes.NewReader(nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_VerifyRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)

	rec := execRequest(t, srv, http.MethodPost, "/api/verify", bytes.NewReader([]byte("not an envelope")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_HealthAndDrain(t *testing.T) {
	srv := newTestServer(t)

	rec := execRequest(t, srv, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = execRequest(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = execRequest(t, srv, http.MethodGet, "/drain", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = execRequest(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = execRequest(t, srv, http.MethodGet, "/undrain", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = execRequest(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
