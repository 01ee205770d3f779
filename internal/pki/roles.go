package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// Type enumerates the certificate types the zone's PKI issues. ROOT_CA
// carries no Role (it is the trust anchor and is never role-checked).
type Type int

const (
	TypeRootCA Type = iota
	TypeIntermediateCA
	TypeNodeCA
	TypeLegalIdentity
	TypeTLS
	TypeNetworkMap
	TypeServiceIdentity
	TypeConfidentialLegalIdentity
)

func (t Type) String() string {
	switch t {
	case TypeRootCA:
		return "ROOT_CA"
	case TypeIntermediateCA:
		return "INTERMEDIATE_CA"
	case TypeNodeCA:
		return "NODE_CA"
	case TypeLegalIdentity:
		return "LEGAL_IDENTITY"
	case TypeTLS:
		return "TLS"
	case TypeNetworkMap:
		return "NETWORK_MAP"
	case TypeServiceIdentity:
		return "SERVICE_IDENTITY"
	case TypeConfidentialLegalIdentity:
		return "CONFIDENTIAL_LEGAL_IDENTITY"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Role is the enumerated tag carried inside the platform role extension.
// ROOT_CA is intentionally absent: a root certificate carries no role
// extension at all.
type Role byte

const (
	RoleIntermediateCA         Role = 1
	RoleNetworkMap             Role = 2
	RoleServiceIdentity        Role = 3
	RoleNodeCA                 Role = 4
	RoleTLS                    Role = 5
	RoleLegalIdentity          Role = 6
	RoleConfidentialLegalIdentity Role = 7
)

func (r Role) String() string {
	switch r {
	case RoleIntermediateCA:
		return "INTERMEDIATE_CA"
	case RoleNetworkMap:
		return "NETWORK_MAP"
	case RoleServiceIdentity:
		return "SERVICE_IDENTITY"
	case RoleNodeCA:
		return "NODE_CA"
	case RoleTLS:
		return "TLS"
	case RoleLegalIdentity:
		return "LEGAL_IDENTITY"
	case RoleConfidentialLegalIdentity:
		return "CONFIDENTIAL_LEGAL_IDENTITY"
	default:
		return fmt.Sprintf("Role(%d)", byte(r))
	}
}

// RoleExtensionOID is the platform-reserved object identifier carrying the
// role tag on every issued certificate. The arc is unregistered but fixed
// for this codebase so every issued certificate and every verifier agree on
// it.
var RoleExtensionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 55213, 1, 1}

// Policy is the per-type record in the certificate type matrix: key usage
// bits, extended key usages, the CA flag, and the optional role tag.
type Policy struct {
	Type        Type
	KeyUsage    x509.KeyUsage
	ExtKeyUsage []x509.ExtKeyUsage
	IsCA        bool
	Role        *Role // nil only for ROOT_CA
}

// ekuAll is the fixed EKU sequence carried by every issued type: serverAuth,
// clientAuth, anyExtendedKeyUsage.
var ekuAll = []x509.ExtKeyUsage{
	x509.ExtKeyUsageServerAuth,
	x509.ExtKeyUsageClientAuth,
	x509.ExtKeyUsageAny,
}

func rolePtr(r Role) *Role { return &r }

// catalog is the pure certificate-type policy table. It is never mutated at
// runtime.
var catalog = map[Type]Policy{
	TypeRootCA: {
		Type:        TypeRootCA,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtKeyUsage: ekuAll,
		IsCA:        true,
		Role:        nil,
	},
	TypeIntermediateCA: {
		Type:        TypeIntermediateCA,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtKeyUsage: ekuAll,
		IsCA:        true,
		Role:        rolePtr(RoleIntermediateCA),
	},
	TypeNodeCA: {
		Type:        TypeNodeCA,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtKeyUsage: ekuAll,
		IsCA:        true,
		Role:        rolePtr(RoleNodeCA),
	},
	TypeLegalIdentity: {
		Type:        TypeLegalIdentity,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage: ekuAll,
		IsCA:        true,
		Role:        rolePtr(RoleLegalIdentity),
	},
	TypeTLS: {
		Type:        TypeTLS,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageKeyAgreement,
		ExtKeyUsage: ekuAll,
		IsCA:        false,
		Role:        rolePtr(RoleTLS),
	},
	TypeNetworkMap: {
		Type:        TypeNetworkMap,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: ekuAll,
		IsCA:        false,
		Role:        rolePtr(RoleNetworkMap),
	},
	TypeServiceIdentity: {
		Type:        TypeServiceIdentity,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: ekuAll,
		IsCA:        false,
		Role:        rolePtr(RoleServiceIdentity),
	},
	TypeConfidentialLegalIdentity: {
		Type:        TypeConfidentialLegalIdentity,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: ekuAll,
		IsCA:        false,
		Role:        rolePtr(RoleConfidentialLegalIdentity),
	},
}

// PolicyFor returns the certificate policy for t. Every Type constant above
// has an entry; a missing one is a programming error.
func PolicyFor(t Type) Policy {
	p, ok := catalog[t]
	if !ok {
		panic(fmt.Sprintf("pki: no policy registered for type %v", t))
	}
	return p
}

// RoleExtension builds the non-critical role extension for r, encoding the
// role tag as a single ASN.1 INTEGER.
func RoleExtension(r Role) (pkix.Extension, error) {
	val, err := asn1.Marshal(int(r))
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("marshal role extension: %w", err)
	}
	return pkix.Extension{Id: RoleExtensionOID, Critical: false, Value: val}, nil
}

// ExtractRole scans cert's extensions for the platform role OID and decodes
// the ASN.1 INTEGER it carries. Returns ok=false when the certificate has no
// role extension (expected for ROOT_CA certificates).
func ExtractRole(cert *x509.Certificate) (role Role, ok bool, err error) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(RoleExtensionOID) {
			continue
		}
		var tag int
		if _, err := asn1.Unmarshal(ext.Value, &tag); err != nil {
			return 0, false, fmt.Errorf("decode role extension: %w", err)
		}
		return Role(tag), true, nil
	}
	return 0, false, nil
}
