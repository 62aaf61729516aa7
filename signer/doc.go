// Package signer adapts the remote signing client to the manifest.Signer
// contract: a fixed algorithm, a certificate chain fetched once at
// construction, and per-call digest-and-sign against the service.
package signer
