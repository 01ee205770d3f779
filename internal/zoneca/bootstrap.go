// Package zoneca loads or creates the certificate hierarchy a zone server
// needs to run: a self-signed root of trust, a node CA that signs
// participants' legal-identity certificates, and the leaf NETWORK_MAP
// certificate the zone signs its published network map with. It persists
// the hierarchy to disk so a restarted zone keeps the same identity.
package zoneca

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrea-athirat/corda/internal/pki"
)

const (
	rootCertFile   = "root.crt"
	rootKeyFile    = "root.key"
	nodeCACertFile = "node-ca.crt"
	nodeCAKeyFile  = "node-ca.key"
	mapCertFile    = "network-map.crt"
	mapKeyFile     = "network-map.key"
)

// Bundle is a zone's full certificate hierarchy.
type Bundle struct {
	RootCert   *x509.Certificate
	RootKey    crypto.Signer
	NodeCACert *x509.Certificate
	NodeCAKey  crypto.Signer
	MapCert    *x509.Certificate
	MapKey     crypto.Signer
}

// LoadOrCreate reads a zone's certificate hierarchy from dir, generating and
// persisting a fresh one (rooted at a freshly minted CommonName) on first run.
func LoadOrCreate(dir, subject string) (*Bundle, error) {
	if b, err := load(dir); err == nil {
		return b, nil
	}
	return create(dir, subject)
}

func load(dir string) (*Bundle, error) {
	rootCert, rootKey, err := readPair(dir, rootCertFile, rootKeyFile)
	if err != nil {
		return nil, err
	}
	nodeCACert, nodeCAKey, err := readPair(dir, nodeCACertFile, nodeCAKeyFile)
	if err != nil {
		return nil, err
	}
	mapCert, mapKey, err := readPair(dir, mapCertFile, mapKeyFile)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		RootCert: rootCert, RootKey: rootKey,
		NodeCACert: nodeCACert, NodeCAKey: nodeCAKey,
		MapCert: mapCert, MapKey: mapKey,
	}, nil
}

func create(dir, subject string) (*Bundle, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cert dir %q: %w", dir, err)
	}

	root, err := pki.CreateSelfSignedRoot(pkix.Name{CommonName: subject + " Root CA"}, pki.DefaultScheme, pki.DefaultValidity)
	if err != nil {
		return nil, fmt.Errorf("create root CA: %w", err)
	}
	nodeCA, err := pki.CreateCertificate(pki.TypeNodeCA, pkix.Name{CommonName: subject + " Node CA"}, pki.DefaultScheme, root.Cert, root.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		return nil, fmt.Errorf("create node CA: %w", err)
	}
	mapCert, err := pki.CreateCertificate(pki.TypeNetworkMap, pkix.Name{CommonName: subject + " Network Map"}, pki.DefaultScheme, nodeCA.Cert, nodeCA.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		return nil, fmt.Errorf("create network map cert: %w", err)
	}

	if err := writePair(dir, rootCertFile, rootKeyFile, root); err != nil {
		return nil, err
	}
	if err := writePair(dir, nodeCACertFile, nodeCAKeyFile, nodeCA); err != nil {
		return nil, err
	}
	if err := writePair(dir, mapCertFile, mapKeyFile, mapCert); err != nil {
		return nil, err
	}

	return &Bundle{
		RootCert: root.Cert, RootKey: root.KeyPair.Private,
		NodeCACert: nodeCA.Cert, NodeCAKey: nodeCA.KeyPair.Private,
		MapCert: mapCert.Cert, MapKey: mapCert.KeyPair.Private,
	}, nil
}

func writePair(dir, certFile, keyFile string, issued *pki.Issued) error {
	certPEM := pki.EncodePEM(issued.Cert.Raw)
	if err := os.WriteFile(filepath.Join(dir, certFile), certPEM, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", certFile, err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(issued.KeyPair.Private)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", keyFile, err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(filepath.Join(dir, keyFile), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", keyFile, err)
	}
	return nil
}

func readPair(dir, certFile, keyFile string) (*x509.Certificate, crypto.Signer, error) {
	certPEM, err := os.ReadFile(filepath.Join(dir, certFile))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", certFile, err)
	}
	keyPEM, err := os.ReadFile(filepath.Join(dir, keyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", keyFile, err)
	}
	cert, err := pki.Parse(certPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", certFile, err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, nil, fmt.Errorf("decode %s: no PEM block found", keyFile)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", keyFile, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, nil, fmt.Errorf("%s: key type %T does not implement crypto.Signer", keyFile, key)
	}
	return cert, signer, nil
}
