package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/attestly/trustedsign/manifest"
	"github.com/attestly/trustedsign/metrics"
)

const (
	// maxBodySize is the maximum allowed request body size (64MB), sized
	// for the content being signed rather than a control-plane payload.
	maxBodySize = 64 * 1024 * 1024

	// formatHeader carries the content's media type for signing requests.
	// Content-Type would describe the request body framing instead.
	formatHeader = "X-Content-Format"
)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// Handler processes signing and verification requests. It wraps a
// manifest.Signer with an embedder; the signer owns the remote service
// communication and the certificate chain.
type Handler struct {
	signer   manifest.Signer
	embedder manifest.Embedder
	anchors  []byte
	log      *slog.Logger
}

// NewHandler creates a request handler. The anchors are optional PEM trust
// roots used by verification; without them only the signature itself is
// checked.
func NewHandler(signer manifest.Signer, embedder manifest.Embedder, anchors []byte, log *slog.Logger) *Handler {
	return &Handler{
		signer:   signer,
		embedder: embedder,
		anchors:  anchors,
		log:      log,
	}
}

// HandleSign signs the request body and responds with the signed document.
// The content format comes from the X-Content-Format header and defaults to
// octet-stream.
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	metrics.SignRequests.Inc()

	format := r.Header.Get(formatHeader)
	if format == "" {
		format = "application/octet-stream"
	}

	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	content, err := io.ReadAll(body)
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("could not read content: %w", err)})
		return
	}
	if len(content) == 0 {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("empty content")})
		return
	}

	var signed bytes.Buffer
	if err := h.embedder.Embed(r.Context(), format, bytes.NewReader(content), &signed, h.signer); err != nil {
		metrics.SignFailures.Inc()
		h.log.Error("Signing failed", slog.String("format", format), "err", err)
		h.writeError(w, &RequestError{StatusCode: http.StatusBadGateway, Err: fmt.Errorf("signing failed: %w", err)})
		return
	}

	h.log.Info("Signed content",
		slog.String("format", format),
		slog.Int("contentSize", len(content)),
		slog.Int("signedSize", signed.Len()))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(signed.Bytes())
}

// HandleVerify checks a detached envelope from the request body and echoes
// the parsed envelope on success. The content digest is not recomputed;
// callers with the content verify locally via the manifest package.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	metrics.VerifyRequests.Inc()

	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	envelope, err := io.ReadAll(body)
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("could not read envelope: %w", err)})
		return
	}

	env, err := manifest.Verify(envelope, nil, h.anchors)
	if err != nil {
		h.log.Info("Verification rejected", "err", err)
		h.writeError(w, &RequestError{StatusCode: http.StatusUnprocessableEntity, Err: err})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "valid",
		"format":    env.Format,
		"algorithm": env.Algorithm,
		"signedAt":  env.SignedAt,
	})
}

// writeError sends a plain-text error response with the given status.
func (h *Handler) writeError(w http.ResponseWriter, reqErr *RequestError) {
	http.Error(w, reqErr.Error(), reqErr.StatusCode)
}
