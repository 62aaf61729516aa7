package signhandler

import "github.com/attestly/trustedsign/interfaces"

// Protocol defaults. Both are deployment-fixed but overridable through
// ClientOptions.
const (
	// DefaultAPIVersion is the service API version spoken by this package.
	DefaultAPIVersion = "2022-06-15-preview"

	// DefaultScope is the audience used for token acquisition.
	DefaultScope = "https://codesigning.azure.net/.default"

	// ContentTypePKCS7 is the media type of the certificate-chain response.
	ContentTypePKCS7 = "application/pkcs7-mime"
)

// SigningRequest is the wire payload submitted to create a signing
// operation. Digest is base64-encoded and its decoded length must match the
// declared algorithm's hash output size.
type SigningRequest struct {
	SignatureAlgorithm string `json:"signatureAlgorithm"`
	Digest             string `json:"digest"`
}

// SigningStatus is the wire representation of a long-running signing
// operation. Signature is present if and only if Status is Succeeded.
type SigningStatus struct {
	OperationID        string                     `json:"operationId"`
	Status             interfaces.OperationStatus `json:"status"`
	Signature          *string                    `json:"signature,omitempty"`
	SigningCertificate *string                    `json:"signingCertificate,omitempty"`
}
