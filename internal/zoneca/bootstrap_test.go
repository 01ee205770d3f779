package zoneca_test

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrea-athirat/corda/internal/pki"
	"github.com/andrea-athirat/corda/internal/zoneca"
)

func TestLoadOrCreate_createsHierarchyOnDisk(t *testing.T) {
	dir := t.TempDir()

	b, err := zoneca.LoadOrCreate(dir, "Test Zone")
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	for _, name := range []string{"root.crt", "root.key", "node-ca.crt", "node-ca.key", "network-map.crt", "network-map.key"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	if _, err := pki.Validate([]*x509.Certificate{b.MapCert, b.NodeCACert}, b.RootCert); err != nil {
		t.Errorf("map cert does not chain to root: %v", err)
	}
	if role, ok, err := pki.ExtractRole(b.MapCert); err != nil || !ok || role != pki.RoleNetworkMap {
		t.Errorf("expected network map cert to carry RoleNetworkMap, got role=%v ok=%v err=%v", role, ok, err)
	}
}

func TestLoadOrCreate_idempotent(t *testing.T) {
	dir := t.TempDir()

	first, err := zoneca.LoadOrCreate(dir, "Test Zone")
	if err != nil {
		t.Fatal(err)
	}
	second, err := zoneca.LoadOrCreate(dir, "Test Zone")
	if err != nil {
		t.Fatal(err)
	}

	if first.RootCert.SerialNumber.Cmp(second.RootCert.SerialNumber) != 0 {
		t.Error("second LoadOrCreate minted a new root instead of loading the existing one")
	}
}
