// Package certchain reconstructs an ordered X.509 certificate chain from the
// unordered bundle a remote signing service returns embedded in a PKCS#7
// (CMS) signed-data structure.
//
// The signed content of the envelope is ignored; only the embedded
// certificate set matters. The normalizer orders the set leaf-first by
// following issuer links, detects cycles, missing links, and ambiguous
// branches, and excludes the self-signed root from the result per the
// content-provenance certificate-chain convention.
package certchain
