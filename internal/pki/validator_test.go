package pki_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"testing"

	"github.com/andrea-athirat/corda/internal/pki"
)

func buildChain(t *testing.T) (leaf *pki.Issued, nodeCA *pki.Issued, root *pki.Issued) {
	t.Helper()
	root = newTestRoot(t)
	var err error
	nodeCA, err = pki.CreateCertificate(pki.TypeNodeCA, pkix.Name{CommonName: "node CA"}, pki.SchemeECDSASecp256r1SHA256, root.Cert, root.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("issue node CA: %v", err)
	}
	leaf, err = pki.CreateCertificate(pki.TypeTLS, pkix.Name{CommonName: "node tls"}, pki.DefaultScheme, nodeCA.Cert, nodeCA.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("issue leaf: %v", err)
	}
	return leaf, nodeCA, root
}

func TestValidate_validChain(t *testing.T) {
	leaf, nodeCA, root := buildChain(t)
	if _, err := pki.Validate([]*x509.Certificate{leaf.Cert, nodeCA.Cert}, root.Cert); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate_untrustedRootRejected(t *testing.T) {
	leaf, nodeCA, _ := buildChain(t)
	otherRoot := newTestRoot(t)
	if _, err := pki.Validate([]*x509.Certificate{leaf.Cert, nodeCA.Cert}, otherRoot.Cert); err == nil {
		t.Error("expected validation to fail against an unrelated trust anchor")
	}
}

func TestVerifyRoleBound_matchingRole(t *testing.T) {
	leaf, nodeCA, root := buildChain(t)
	err := pki.VerifyRoleBound(leaf.Cert, []*x509.Certificate{leaf.Cert, nodeCA.Cert}, root.Cert, pki.RoleTLS)
	if err != nil {
		t.Errorf("VerifyRoleBound: %v", err)
	}
}

func TestVerifyRoleBound_wrongRoleRejected(t *testing.T) {
	leaf, nodeCA, root := buildChain(t)
	err := pki.VerifyRoleBound(leaf.Cert, []*x509.Certificate{leaf.Cert, nodeCA.Cert}, root.Cert, pki.RoleNetworkMap)
	if err == nil {
		t.Fatal("expected WrongRoleError")
	}
	var wr *pki.WrongRoleError
	if !errors.As(err, &wr) {
		t.Fatalf("expected *WrongRoleError, got %T: %v", err, err)
	}
	if wr.Actual != pki.RoleTLS || wr.Expected != pki.RoleNetworkMap {
		t.Errorf("WrongRoleError fields: got actual=%v expected=%v", wr.Actual, wr.Expected)
	}
}

func TestValidate_singleElementChainAgainstRoot(t *testing.T) {
	root := newTestRoot(t)
	leaf, err := pki.CreateCertificate(pki.TypeNetworkMap, pkix.Name{CommonName: "zone network map"}, pki.DefaultScheme, root.Cert, root.KeyPair.Private, pki.DefaultValidity)
	if err != nil {
		t.Fatalf("issue leaf: %v", err)
	}
	if _, err := pki.Validate([]*x509.Certificate{leaf.Cert}, root.Cert); err != nil {
		t.Errorf("Validate with a 1-element chain: %v", err)
	}
}

func TestVerifyRoleBound_rootHasNoRole(t *testing.T) {
	root := newTestRoot(t)
	err := pki.VerifyRoleBound(root.Cert, []*x509.Certificate{root.Cert}, root.Cert, pki.RoleTLS)
	if err == nil {
		t.Fatal("expected error: root certificate carries no role")
	}
}
