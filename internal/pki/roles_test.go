package pki_test

import (
	"testing"

	"github.com/andrea-athirat/corda/internal/pki"
)

func TestPolicyFor_rootHasNoRole(t *testing.T) {
	p := pki.PolicyFor(pki.TypeRootCA)
	if p.Role != nil {
		t.Errorf("ROOT_CA policy: expected nil role, got %v", *p.Role)
	}
	if !p.IsCA {
		t.Error("ROOT_CA policy: expected IsCA=true")
	}
}

func TestPolicyFor_everyTypeHasAnEntry(t *testing.T) {
	types := []pki.Type{
		pki.TypeRootCA, pki.TypeIntermediateCA, pki.TypeNodeCA,
		pki.TypeLegalIdentity, pki.TypeTLS, pki.TypeNetworkMap,
		pki.TypeServiceIdentity, pki.TypeConfidentialLegalIdentity,
	}
	for _, typ := range types {
		p := pki.PolicyFor(typ)
		if p.Type != typ {
			t.Errorf("PolicyFor(%v).Type = %v", typ, p.Type)
		}
	}
}

func TestRoleExtension_roundTrip(t *testing.T) {
	for _, r := range []pki.Role{
		pki.RoleIntermediateCA, pki.RoleNetworkMap, pki.RoleServiceIdentity,
		pki.RoleNodeCA, pki.RoleTLS, pki.RoleLegalIdentity,
		pki.RoleConfidentialLegalIdentity,
	} {
		ext, err := pki.RoleExtension(r)
		if err != nil {
			t.Fatalf("RoleExtension(%v): %v", r, err)
		}
		if ext.Critical {
			t.Errorf("role extension for %v must not be critical", r)
		}
		if !ext.Id.Equal(pki.RoleExtensionOID) {
			t.Errorf("role extension OID mismatch for %v", r)
		}
	}
}

func TestRoleNumbering_matchesSpec(t *testing.T) {
	cases := map[pki.Role]byte{
		pki.RoleIntermediateCA:         1,
		pki.RoleNetworkMap:             2,
		pki.RoleServiceIdentity:        3,
		pki.RoleNodeCA:                 4,
		pki.RoleTLS:                    5,
		pki.RoleLegalIdentity:          6,
		pki.RoleConfidentialLegalIdentity: 7,
	}
	for role, want := range cases {
		if byte(role) != want {
			t.Errorf("role %v: got numeric value %d, want %d", role, byte(role), want)
		}
	}
}
