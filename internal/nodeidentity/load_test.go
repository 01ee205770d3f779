package nodeidentity_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrea-athirat/corda/internal/nodeidentity"
	"github.com/andrea-athirat/corda/internal/pki"
)

func writeCert(t *testing.T, path string, cert *x509.Certificate) {
	t.Helper()
	block := &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write cert %q: %v", path, err)
	}
}

func writeKey(t *testing.T, path string, kp *pki.KeyPair) {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(kp.Private)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key %q: %v", path, err)
	}
}

func TestLoad_roundTrips(t *testing.T) {
	dir := t.TempDir()

	root, err := pki.CreateSelfSignedRootAt(pkix.Name{CommonName: "Test Zone Root"}, pki.DefaultScheme, pki.DefaultValidity, time.Now())
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	nodeCA, err := pki.CreateCertificateAt(pki.TypeNodeCA, pkix.Name{CommonName: "Test Zone Node CA"}, pki.DefaultScheme, root.Cert, root.KeyPair.Private, pki.DefaultValidity, time.Now())
	if err != nil {
		t.Fatalf("create node CA: %v", err)
	}
	leaf, err := pki.CreateCertificateAt(pki.TypeLegalIdentity, pkix.Name{CommonName: "O=Test Node,L=London,C=GB"}, pki.DefaultScheme, nodeCA.Cert, nodeCA.KeyPair.Private, pki.DefaultValidity, time.Now())
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}

	certPath := filepath.Join(dir, "identity.crt")
	keyPath := filepath.Join(dir, "identity.key")
	trustRootPath := filepath.Join(dir, "trust-root.crt")
	intermediatePath := filepath.Join(dir, "node-ca.crt")

	writeCert(t, certPath, leaf.Cert)
	writeKey(t, keyPath, leaf.KeyPair)
	writeCert(t, trustRootPath, root.Cert)
	writeCert(t, intermediatePath, nodeCA.Cert)

	identity, err := nodeidentity.Load(certPath, keyPath, trustRootPath, intermediatePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if identity.Cert.Subject.CommonName != leaf.Cert.Subject.CommonName {
		t.Errorf("cert subject = %q, want %q", identity.Cert.Subject.CommonName, leaf.Cert.Subject.CommonName)
	}
	if identity.TrustRoot.Subject.CommonName != "Test Zone Root" {
		t.Errorf("trust root subject = %q, want %q", identity.TrustRoot.Subject.CommonName, "Test Zone Root")
	}
	if identity.IntermediateCert == nil || identity.IntermediateCert.Subject.CommonName != "Test Zone Node CA" {
		t.Errorf("intermediate cert = %v, want %q", identity.IntermediateCert, "Test Zone Node CA")
	}
	if identity.Key == nil {
		t.Fatal("key is nil")
	}
}

func TestLoad_withoutIntermediate(t *testing.T) {
	dir := t.TempDir()

	root, err := pki.CreateSelfSignedRootAt(pkix.Name{CommonName: "Test Zone Root"}, pki.DefaultScheme, pki.DefaultValidity, time.Now())
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	leaf, err := pki.CreateCertificateAt(pki.TypeLegalIdentity, pkix.Name{CommonName: "O=Test Node,L=London,C=GB"}, pki.DefaultScheme, root.Cert, root.KeyPair.Private, pki.DefaultValidity, time.Now())
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}

	certPath := filepath.Join(dir, "identity.crt")
	keyPath := filepath.Join(dir, "identity.key")
	trustRootPath := filepath.Join(dir, "trust-root.crt")

	writeCert(t, certPath, leaf.Cert)
	writeKey(t, keyPath, leaf.KeyPair)
	writeCert(t, trustRootPath, root.Cert)

	identity, err := nodeidentity.Load(certPath, keyPath, trustRootPath, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if identity.IntermediateCert != nil {
		t.Errorf("expected no intermediate cert, got %v", identity.IntermediateCert)
	}
}

func TestLoad_missingCert(t *testing.T) {
	dir := t.TempDir()
	_, err := nodeidentity.Load(filepath.Join(dir, "missing.crt"), filepath.Join(dir, "missing.key"), filepath.Join(dir, "missing-root.crt"), "")
	if err == nil {
		t.Fatal("expected error for missing cert file, got nil")
	}
}

func TestLoad_malformedKey(t *testing.T) {
	dir := t.TempDir()

	root, err := pki.CreateSelfSignedRootAt(pkix.Name{CommonName: "Test Zone Root"}, pki.DefaultScheme, pki.DefaultValidity, time.Now())
	if err != nil {
		t.Fatalf("create root: %v", err)
	}

	certPath := filepath.Join(dir, "identity.crt")
	keyPath := filepath.Join(dir, "identity.key")
	trustRootPath := filepath.Join(dir, "trust-root.crt")

	writeCert(t, certPath, root.Cert)
	writeCert(t, trustRootPath, root.Cert)
	if err := os.WriteFile(keyPath, []byte("not a pem file"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	if _, err := nodeidentity.Load(certPath, keyPath, trustRootPath, ""); err == nil {
		t.Fatal("expected error for malformed key file, got nil")
	}
}
