// Package nodeidentity loads a node's already-issued legal-identity
// certificate, its private key, and the zone's trust anchor from disk. It
// never generates keys: a node enrolls with its zone out of band (an
// operator-run CSR/issuance step) and arrives at this loader already holding
// a signed certificate.
package nodeidentity

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/andrea-athirat/corda/internal/pki"
)

// Identity is everything the network-map client/updater needs to sign
// outgoing payloads and authenticate the zone's.
type Identity struct {
	Cert             *x509.Certificate
	Key              crypto.Signer
	IntermediateCert *x509.Certificate
	TrustRoot        *x509.Certificate
}

// Load reads a PEM certificate from certPath, its private key from keyPath,
// and the zone's trust anchor certificate from trustRootPath.
// intermediateCertPath is the zone's node CA certificate that issued Cert; it
// is carried in every envelope this identity signs so a verifier can build a
// path from Cert to trustRootPath without holding the node CA cert out of
// band. Pass an empty string when Cert is issued directly by the root.
func Load(certPath, keyPath, trustRootPath, intermediateCertPath string) (*Identity, error) {
	cert, err := loadCert(certPath)
	if err != nil {
		return nil, fmt.Errorf("load node identity cert: %w", err)
	}
	key, err := loadKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load node identity key: %w", err)
	}
	trustRoot, err := loadCert(trustRootPath)
	if err != nil {
		return nil, fmt.Errorf("load zone trust root: %w", err)
	}
	var intermediate *x509.Certificate
	if intermediateCertPath != "" {
		intermediate, err = loadCert(intermediateCertPath)
		if err != nil {
			return nil, fmt.Errorf("load node CA intermediate cert: %w", err)
		}
	}
	return &Identity{Cert: cert, Key: key, IntermediateCert: intermediate, TrustRoot: trustRoot}, nil
}

func loadCert(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return pki.Parse(data)
}

func loadKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decode %q: no PEM block found", path)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%q: key type %T does not implement crypto.Signer", path, key)
	}
	return signer, nil
}
