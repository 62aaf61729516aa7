package interfaces

import "errors"

// Error sentinels reported by the signing components. Callers should match
// them with errors.Is; wrapped messages carry the diagnostic context
// (operation id, observed status, certificate names).
var (
	// ErrCredential indicates token acquisition failed. The failure is
	// surfaced immediately and never retried by this repository.
	ErrCredential = errors.New("credential token acquisition failed")

	// ErrTransport indicates a network or HTTP-level failure that survived
	// the transport retry policy.
	ErrTransport = errors.New("transport request failed")

	// ErrServiceRejected indicates the service reported a terminal
	// non-success status for a signing operation.
	ErrServiceRejected = errors.New("signing operation rejected by service")

	// ErrPollExhausted indicates the bounded poll loop ended without the
	// operation reaching a terminal status. Distinct from a
	// service-reported failure.
	ErrPollExhausted = errors.New("signing operation polling exhausted")

	// ErrCertificateChainInvalid indicates the certificate bundle is
	// missing, empty, cyclic, ambiguous, or otherwise unparsable.
	ErrCertificateChainInvalid = errors.New("invalid certificate chain")

	// ErrUnsupportedAlgorithm indicates a digest or signature was requested
	// for an algorithm this implementation does not support.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// Storage error sentinels.
var (
	// ErrBlobNotFound is returned when the requested blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrBackendUnavailable is returned when a storage backend cannot be
	// reached.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned for malformed storage location URIs.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)
