package pki

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

// Parse decodes a single PEM-encoded certificate block, parses it, and
// checks that it is currently time-valid. It is the entry point for turning
// wire bytes and on-disk certificates back into a usable *x509.Certificate.
func Parse(certPEM []byte) (*x509.Certificate, error) {
	return ParseAt(certPEM, time.Now())
}

// ParseAt is Parse with the time-validity check pinned to now, for tests and
// callers that need a deterministic clock.
func ParseAt(certPEM []byte, now time.Time) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%w: no CERTIFICATE PEM block found", ErrPayloadInvalid)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %v", ErrPayloadInvalid, err)
	}
	if now.Before(cert.NotBefore) {
		return nil, fmt.Errorf("%w: %q not valid until %s", ErrCertExpired, cert.Subject.String(), cert.NotBefore)
	}
	if now.After(cert.NotAfter) {
		return nil, fmt.Errorf("%w: %q expired %s", ErrCertExpired, cert.Subject.String(), cert.NotAfter)
	}
	return cert, nil
}

// ParseAll decodes every CERTIFICATE PEM block in data, in order. Used for
// decoding a cert path that was encoded with EncodeCertPath.
func ParseAll(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse certificate in path: %v", ErrPayloadInvalid, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: no CERTIFICATE PEM blocks found", ErrPayloadInvalid)
	}
	return certs, nil
}

// EncodePEM wraps a single DER certificate in a PEM CERTIFICATE block.
func EncodePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// EncodeCertPath concatenates certs into a single PEM document, leaf first,
// matching the order buildCertPath assembles: leaf, then each
// issuer up to and including the root.
func EncodeCertPath(certs []*x509.Certificate) []byte {
	var buf bytes.Buffer
	for _, c := range certs {
		buf.Write(EncodePEM(c.Raw))
	}
	return buf.Bytes()
}

// BuildCertPath walks from leaf up through parents, using lookupIssuer to
// find each certificate's issuer, stopping when a certificate is its own
// issuer (the root) or lookupIssuer returns ok=false. The returned slice is
// ordered leaf-first, root-last.
func BuildCertPath(leaf *x509.Certificate, lookupIssuer func(issuerSubjectKeyID []byte, issuer string) (*x509.Certificate, bool)) ([]*x509.Certificate, error) {
	path := []*x509.Certificate{leaf}
	current := leaf
	for {
		if bytes.Equal(current.RawIssuer, current.RawSubject) {
			break
		}
		next, ok := lookupIssuer(current.AuthorityKeyId, current.Issuer.String())
		if !ok {
			return nil, fmt.Errorf("%w: issuer not found for %q", ErrChainInvalid, current.Subject.String())
		}
		path = append(path, next)
		current = next
	}
	return path, nil
}
