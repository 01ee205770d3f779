package pki_test

import (
	"testing"

	"github.com/andrea-athirat/corda/internal/pki"
)

func TestGenerateKeyPair_bothSchemes(t *testing.T) {
	for _, scheme := range []pki.Scheme{pki.SchemeEDDSAEd25519SHA512, pki.SchemeECDSASecp256r1SHA256} {
		kp, err := pki.GenerateKeyPair(scheme)
		if err != nil {
			t.Fatalf("GenerateKeyPair(%v): %v", scheme, err)
		}
		if kp.Private == nil || kp.Public == nil {
			t.Errorf("GenerateKeyPair(%v): nil key material", scheme)
		}
	}
}

func TestGenerateKeyPair_unsupportedScheme(t *testing.T) {
	_, err := pki.GenerateKeyPair(pki.Scheme(99))
	if err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
