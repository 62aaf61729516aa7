package interfaces

import (
	"crypto"
	"fmt"
	"strings"
)

// SigningAlg identifies a signature algorithm using the lowercase COSE-style
// names shared with the content-provenance ecosystem ("ps384", "es256", ...).
type SigningAlg string

// Supported signature algorithm identifiers.
const (
	AlgES256   SigningAlg = "es256"
	AlgES384   SigningAlg = "es384"
	AlgES512   SigningAlg = "es512"
	AlgPS256   SigningAlg = "ps256"
	AlgPS384   SigningAlg = "ps384"
	AlgPS512   SigningAlg = "ps512"
	AlgEd25519 SigningAlg = "ed25519"
)

// ParseSigningAlg converts a string into a SigningAlg. Matching is
// case-insensitive. Returns ErrUnsupportedAlgorithm for unknown names.
func ParseSigningAlg(s string) (SigningAlg, error) {
	switch alg := SigningAlg(strings.ToLower(s)); alg {
	case AlgES256, AlgES384, AlgES512, AlgPS256, AlgPS384, AlgPS512, AlgEd25519:
		return alg, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
}

// String returns the wire name of the algorithm.
func (a SigningAlg) String() string {
	return string(a)
}

// HashFunc returns the digest function associated with the algorithm, or 0
// for algorithms that sign the message directly (ed25519).
func (a SigningAlg) HashFunc() crypto.Hash {
	switch a {
	case AlgES256, AlgPS256:
		return crypto.SHA256
	case AlgES384, AlgPS384:
		return crypto.SHA384
	case AlgES512, AlgPS512:
		return crypto.SHA512
	default:
		return 0
	}
}

// DigestSize returns the size in bytes of the digest the remote service
// expects for this algorithm, or 0 when the algorithm has no pre-hash.
func (a SigningAlg) DigestSize() int {
	if h := a.HashFunc(); h != 0 {
		return h.Size()
	}
	return 0
}

// OperationStatus is the state of a long-running signing operation as
// reported by the remote service.
type OperationStatus string

// Operation statuses known to the service protocol. Any other value received
// on the wire is treated as terminal.
const (
	StatusInProgress OperationStatus = "InProgress"
	StatusRunning    OperationStatus = "Running"
	StatusSucceeded  OperationStatus = "Succeeded"
	StatusFailed     OperationStatus = "Failed"
	StatusTimedOut   OperationStatus = "TimedOut"
	StatusNotFound   OperationStatus = "NotFound"
)

// Pending reports whether the operation is still running and should be
// polled again.
func (s OperationStatus) Pending() bool {
	return s == StatusInProgress || s == StatusRunning
}

// String returns the wire representation of the status.
func (s OperationStatus) String() string {
	return string(s)
}
