package pki_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/andrea-athirat/corda/internal/pki"
)

func TestParse_roundTripsWithEncodePEM(t *testing.T) {
	root := newTestRoot(t)
	encoded := pki.EncodePEM(root.DER)

	parsed, err := pki.Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.SerialNumber.Cmp(root.Cert.SerialNumber) != 0 {
		t.Error("parsed certificate serial does not match original")
	}
}

func TestParse_rejectsGarbage(t *testing.T) {
	if _, err := pki.Parse([]byte("not a certificate")); err == nil {
		t.Error("expected error parsing garbage input")
	}
}

func TestEncodeCertPath_andParseAll(t *testing.T) {
	root := newTestRoot(t)
	nodeCA, err := pki.CreateCertificate(pki.TypeNodeCA, pkix.Name{CommonName: "node CA"}, pki.SchemeECDSASecp256r1SHA256, root.Cert, root.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("issue node CA: %v", err)
	}

	encoded := pki.EncodeCertPath([]*x509.Certificate{nodeCA.Cert, root.Cert})
	decoded, err := pki.ParseAll(encoded)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("ParseAll: got %d certificates, want 2", len(decoded))
	}
	if decoded[0].SerialNumber.Cmp(nodeCA.Cert.SerialNumber) != 0 {
		t.Error("first decoded certificate is not the node CA (leaf-first ordering expected)")
	}
	if decoded[1].SerialNumber.Cmp(root.Cert.SerialNumber) != 0 {
		t.Error("second decoded certificate is not the root")
	}
}

func TestBuildCertPath(t *testing.T) {
	root := newTestRoot(t)
	nodeCA, err := pki.CreateCertificate(pki.TypeNodeCA, pkix.Name{CommonName: "node CA"}, pki.SchemeECDSASecp256r1SHA256, root.Cert, root.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("issue node CA: %v", err)
	}
	leaf, err := pki.CreateCertificate(pki.TypeTLS, pkix.Name{CommonName: "node tls"}, pki.DefaultScheme, nodeCA.Cert, nodeCA.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("issue leaf: %v", err)
	}

	byIssuer := map[string]*x509.Certificate{
		nodeCA.Cert.Subject.String(): nodeCA.Cert,
		root.Cert.Subject.String():   root.Cert,
	}
	path, err := pki.BuildCertPath(leaf.Cert, func(_ []byte, issuer string) (*x509.Certificate, bool) {
		c, ok := byIssuer[issuer]
		return c, ok
	})
	if err != nil {
		t.Fatalf("BuildCertPath: %v", err)
	}
	if len(path) != 3 {
		t.Fatalf("BuildCertPath: got %d certs, want 3 (leaf, nodeCA, root)", len(path))
	}
	if path[0] != leaf.Cert || path[1] != nodeCA.Cert || path[2] != root.Cert {
		t.Error("BuildCertPath: unexpected ordering")
	}
}
