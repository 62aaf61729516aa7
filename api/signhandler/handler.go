package signhandler

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/smallstep/pkcs7"

	"github.com/attestly/trustedsign/interfaces"
)

// Handler is an in-process implementation of the signing service protocol
// backed by a generated RSA certificate profile. It exists for local
// development and tests; it keeps operations in memory and signs with
// RSA-PSS under the requested algorithm's hash.
type Handler struct {
	account string
	profile string
	log     *slog.Logger

	key     *rsa.PrivateKey
	bundle  []byte // PKCS#7 bundle: leaf, intermediate, root (unordered)
	rootPEM []byte

	// PendingPolls is how many times an operation reports a pending status
	// before it succeeds. Zero makes the initial submission succeed
	// immediately. Set before serving requests.
	PendingPolls int

	// FailStatus, when set, makes every submitted operation finish with
	// that status instead of Succeeded. Set before serving requests.
	FailStatus interfaces.OperationStatus

	mu  sync.Mutex
	ops map[string]*operation
}

type operation struct {
	remaining int
	alg       interfaces.SigningAlg
	digest    []byte
}

// NewHandler generates a three-certificate RSA profile (root, intermediate,
// leaf) for the given account and certificate profile and returns a handler
// serving the signing protocol for it.
func NewHandler(account, profile string, log *slog.Logger) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}

	key, bundle, rootPEM, err := generateProfile(profile)
	if err != nil {
		return nil, fmt.Errorf("could not generate certificate profile: %w", err)
	}

	return &Handler{
		account: account,
		profile: profile,
		log:     log,
		key:     key,
		bundle:  bundle,
		rootPEM: rootPEM,
		ops:     make(map[string]*operation),
	}, nil
}

// Roots returns the PEM-encoded root certificate of the generated profile,
// for use as a trust anchor when verifying this handler's signatures.
func (h *Handler) Roots() []byte {
	roots := make([]byte, len(h.rootPEM))
	copy(roots, h.rootPEM)
	return roots
}

// Router returns an http.Handler serving the signing protocol routes.
func (h *Handler) Router() http.Handler {
	mux := chi.NewRouter()
	base := fmt.Sprintf("/codesigningaccounts/%s/certificateprofiles/%s", h.account, h.profile)
	mux.Get(base+"/sign/certchain", h.handleCertChain)
	mux.Post(base+"/sign", h.handleSubmit)
	mux.Get(base+"/sign/{operation_id}", h.handleStatus)
	return mux
}

func (h *Handler) handleCertChain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", ContentTypePKCS7)
	w.WriteHeader(http.StatusOK)
	w.Write(h.bundle)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SigningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed signing request", http.StatusBadRequest)
		return
	}

	alg, err := interfaces.ParseSigningAlg(req.SignatureAlgorithm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	digest, err := base64.StdEncoding.DecodeString(req.Digest)
	if err != nil {
		http.Error(w, "digest is not valid base64", http.StatusBadRequest)
		return
	}
	if len(digest) != alg.DigestSize() {
		http.Error(w, "digest length does not match algorithm", http.StatusBadRequest)
		return
	}

	op := &operation{remaining: h.PendingPolls, alg: alg, digest: digest}
	id := uuid.New().String()

	h.mu.Lock()
	h.ops[id] = op
	h.mu.Unlock()

	h.log.Debug("Created signing operation",
		slog.String("operation", id),
		slog.String("algorithm", alg.String()))

	h.writeStatus(w, id, op)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operation_id")

	h.mu.Lock()
	op, ok := h.ops[id]
	h.mu.Unlock()

	if !ok {
		h.writeJSON(w, SigningStatus{OperationID: id, Status: interfaces.StatusNotFound})
		return
	}

	h.writeStatus(w, id, op)
}

// writeStatus advances the operation's state machine by one observation and
// renders the result.
func (h *Handler) writeStatus(w http.ResponseWriter, id string, op *operation) {
	h.mu.Lock()
	pending := op.remaining > 0
	if pending {
		op.remaining--
	}
	h.mu.Unlock()

	if pending {
		h.writeJSON(w, SigningStatus{OperationID: id, Status: interfaces.StatusInProgress})
		return
	}

	if h.FailStatus != "" {
		h.writeJSON(w, SigningStatus{OperationID: id, Status: h.FailStatus})
		return
	}

	signature, err := h.signDigest(op.alg, op.digest)
	if err != nil {
		h.log.Error("Signing failed", "err", err, slog.String("operation", id))
		h.writeJSON(w, SigningStatus{OperationID: id, Status: interfaces.StatusFailed})
		return
	}

	encoded := base64.StdEncoding.EncodeToString(signature)
	h.writeJSON(w, SigningStatus{
		OperationID: id,
		Status:      interfaces.StatusSucceeded,
		Signature:   &encoded,
	})
}

func (h *Handler) signDigest(alg interfaces.SigningAlg, digest []byte) ([]byte, error) {
	hash := alg.HashFunc()
	switch alg {
	case interfaces.AlgPS256, interfaces.AlgPS384, interfaces.AlgPS512:
		return rsa.SignPSS(rand.Reader, h.key, hash, digest, nil)
	default:
		return nil, fmt.Errorf("%w: profile key does not support %s", interfaces.ErrUnsupportedAlgorithm, alg)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status SigningStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Error("Could not encode status response", "err", err)
	}
}

// generateProfile creates a root -> intermediate -> leaf RSA chain and packs
// the certificates into a PKCS#7 bundle in scrambled order, the way real
// service bundles arrive. Also returns the root as PEM for trust bootstrap.
func generateProfile(profile string) (*rsa.PrivateKey, []byte, []byte, error) {
	rootKey, rootCert, err := issueCertificate("Dev Signing Root CA", true, nil, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	intKey, intCert, err := issueCertificate("Dev Signing Intermediate CA", true, rootCert, rootKey)
	if err != nil {
		return nil, nil, nil, err
	}
	leafKey, leafCert, err := issueCertificate(profile, false, intCert, intKey)
	if err != nil {
		return nil, nil, nil, err
	}

	sd, err := pkcs7.NewSignedData(nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not create PKCS#7 structure: %w", err)
	}
	for _, cert := range []*x509.Certificate{intCert, leafCert, rootCert} {
		sd.AddCertificate(cert)
	}
	bundle, err := sd.Finish()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not serialize PKCS#7 bundle: %w", err)
	}

	rootPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootCert.Raw})
	return leafKey, bundle, rootPEM, nil
}

func issueCertificate(cn string, isCA bool, parent *x509.Certificate, parentKey *rsa.PrivateKey) (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("could not generate RSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		BasicConstraintsValid: true,
		IsCA:                  isCA,
	}
	if isCA {
		template.KeyUsage |= x509.KeyUsageCertSign
	}

	signerCert := template
	signerKey := key
	if parent != nil {
		signerCert = parent
		signerKey = parentKey
	}

	der, err := x509.CreateCertificate(rand.Reader, template, signerCert, &key.PublicKey, signerKey)
	if err != nil {
		return nil, nil, fmt.Errorf("could not issue certificate %q: %w", cn, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}
