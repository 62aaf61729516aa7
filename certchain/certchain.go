package certchain

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/smallstep/pkcs7"

	"github.com/attestly/trustedsign/interfaces"
)

// CertificateChain owns a raw PKCS#7 signed-data blob until it is normalized
// into an ordered certificate list. Instances are cheap and single-use:
// create one per bundle, convert, discard.
type CertificateChain struct {
	raw []byte
}

// New wraps raw PKCS#7 signed-data bytes for normalization.
func New(raw []byte) *CertificateChain {
	return &CertificateChain{raw: raw}
}

// Certificates parses the bundle and returns the DER-encoded certificates
// ordered leaf-first. The self-signed root, when present, is excluded from
// the result; a single-certificate bundle is returned as-is. All structural
// problems (unparsable envelope, empty set, missing link, cycle, duplicate
// issuer) surface as interfaces.ErrCertificateChainInvalid.
func (c *CertificateChain) Certificates() ([][]byte, error) {
	p7, err := pkcs7.Parse(c.raw)
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse PKCS#7 envelope: %v", interfaces.ErrCertificateChainInvalid, err)
	}
	if len(p7.Certificates) == 0 {
		return nil, fmt.Errorf("%w: bundle contains no certificates", interfaces.ErrCertificateChainInvalid)
	}

	ordered, err := sortCertificates(p7.Certificates)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(ordered))
	for _, cert := range ordered {
		out = append(out, cert.Raw)
	}
	return out, nil
}

// sortCertificates orders the set root-first by walking issuer links, then
// drops the self-signed root and reverses to leaf-first.
func sortCertificates(certs []*x509.Certificate) ([]*x509.Certificate, error) {
	if len(certs) == 1 {
		return certs, nil
	}

	subjectOf := make(map[string]*x509.Certificate, len(certs))
	issuerOf := make(map[string]*x509.Certificate, len(certs))

	// list accumulates the chain root-first.
	list := make([]*x509.Certificate, 0, len(certs))

	for _, cert := range certs {
		subject := cert.Subject.String()
		issuer := cert.Issuer.String()

		if subject == issuer {
			// Self-signed root.
			if len(list) > 0 {
				return nil, fmt.Errorf("%w: multiple self-signed certificates (%q and %q)",
					interfaces.ErrCertificateChainInvalid, list[0].Subject.String(), subject)
			}
			list = append(list, cert)
		} else {
			// issuerOf maps an issuer name to the certificate issued by
			// it, one step below the issuer in the chain. Two
			// certificates claiming the same issuer would mean two
			// reconstructable branches.
			if _, dup := issuerOf[issuer]; dup {
				return nil, fmt.Errorf("%w: duplicate issuer %q, chain is ambiguous",
					interfaces.ErrCertificateChainInvalid, issuer)
			}
			issuerOf[issuer] = cert
		}

		subjectOf[subject] = cert
	}

	// No self-signed root: seed with the certificate whose issuer is not
	// any certificate's subject, the top of the chain.
	if len(list) == 0 {
		for issuer, cert := range issuerOf {
			if _, ok := subjectOf[issuer]; !ok {
				list = append(list, cert)
				break
			}
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no root or top-most certificate found, chain is cyclic",
			interfaces.ErrCertificateChainInvalid)
	}

	for len(list) < len(certs) {
		last := list[len(list)-1]
		child, ok := issuerOf[last.Subject.String()]
		if !ok {
			return nil, fmt.Errorf("%w: no certificate issued by %q, chain link missing",
				interfaces.ErrCertificateChainInvalid, last.Subject.String())
		}
		list = append(list, child)
	}

	// Exclude the root from the output per the provenance chain convention.
	if list[0].Subject.String() == list[0].Issuer.String() {
		list = list[1:]
	}

	// Reverse the root-first accumulation into leaf-first order.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// EncodePEM renders DER certificates as a concatenated PEM bundle, leaf
// first, for display and interchange.
func EncodePEM(chain [][]byte) []byte {
	var out []byte
	for _, der := range chain {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)
	}
	return out
}
