package signhandler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestly/trustedsign/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_CertChainContentType(t *testing.T) {
	handler, err := NewHandler("acct", "profile", testLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		"/codesigningaccounts/acct/certificateprofiles/profile/sign/certchain", nil)
	rec := httptest.NewRecorder()
	handler.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypePKCS7, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestHandler_UnknownAccountIsNotFound(t *testing.T) {
	handler, err := NewHandler("acct", "profile", testLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		"/codesigningaccounts/other/certificateprofiles/profile/sign/certchain", nil)
	rec := httptest.NewRecorder()
	handler.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_SubmitValidation(t *testing.T) {
	handler, err := NewHandler("acct", "profile", testLogger())
	require.NoError(t, err)
	router := handler.Router()

	post := func(body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost,
			"/codesigningaccounts/acct/certificateprofiles/profile/sign", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("malformed body", func(t *testing.T) {
		rec := post([]byte("{"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		body, _ := json.Marshal(SigningRequest{SignatureAlgorithm: "rot13", Digest: ""})
		rec := post(body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("digest length mismatch", func(t *testing.T) {
		body, _ := json.Marshal(SigningRequest{
			SignatureAlgorithm: "ps384",
			Digest:             base64.StdEncoding.EncodeToString([]byte("short")),
		})
		rec := post(body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("valid request", func(t *testing.T) {
		body, _ := json.Marshal(SigningRequest{
			SignatureAlgorithm: "ps384",
			Digest:             base64.StdEncoding.EncodeToString(make([]byte, 48)),
		})
		rec := post(body)
		require.Equal(t, http.StatusOK, rec.Code)

		var status SigningStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, interfaces.StatusSucceeded, status.Status)
		require.NotNil(t, status.Signature)
	})
}

func TestHandler_UnknownOperationReportsNotFound(t *testing.T) {
	handler, err := NewHandler("acct", "profile", testLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		"/codesigningaccounts/acct/certificateprofiles/profile/sign/no-such-operation", nil)
	rec := httptest.NewRecorder()
	handler.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status SigningStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, interfaces.StatusNotFound, status.Status)
}
