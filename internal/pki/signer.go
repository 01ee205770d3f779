package pki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
)

// Scheme identifies a signature scheme this toolkit knows how to generate
// keys for and sign with. Only two schemes are supported; anything else is
// PayloadInvalid at the call site.
type Scheme int

const (
	SchemeEDDSAEd25519SHA512 Scheme = iota
	SchemeECDSASecp256r1SHA256
)

func (s Scheme) String() string {
	switch s {
	case SchemeEDDSAEd25519SHA512:
		return "EDDSA_ED25519_SHA512"
	case SchemeECDSASecp256r1SHA256:
		return "ECDSA_SECP256R1_SHA256"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// DefaultScheme is used for TLS leaves and certificate signing requests when
// the caller does not pick one explicitly.
const DefaultScheme = SchemeECDSASecp256r1SHA256

// KeyPair bundles a generated private key with the x509.SignatureAlgorithm
// it must be issued under.
type KeyPair struct {
	Scheme     Scheme
	Private    crypto.Signer
	Public     crypto.PublicKey
	SigAlgo    x509.SignatureAlgorithm
}

// GenerateKeyPair creates a fresh key pair for scheme.
func GenerateKeyPair(scheme Scheme) (*KeyPair, error) {
	switch scheme {
	case SchemeEDDSAEd25519SHA512:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		return &KeyPair{Scheme: scheme, Private: priv, Public: pub, SigAlgo: x509.PureEd25519}, nil
	case SchemeECDSASecp256r1SHA256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ecdsa p256 key: %w", err)
		}
		return &KeyPair{Scheme: scheme, Private: priv, Public: &priv.PublicKey, SigAlgo: x509.ECDSAWithSHA256}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported signature scheme %v", ErrPayloadInvalid, scheme)
	}
}

// schemeFromPublicKey infers the Scheme and signature algorithm a public key
// implies. createCertificateWithKey applies it to the issuer's public key to
// pick the algorithm the issued certificate is signed with.
func schemeFromPublicKey(pub crypto.PublicKey) (Scheme, x509.SignatureAlgorithm, error) {
	switch pub.(type) {
	case ed25519.PublicKey:
		return SchemeEDDSAEd25519SHA512, x509.PureEd25519, nil
	case *ecdsa.PublicKey:
		return SchemeECDSASecp256r1SHA256, x509.ECDSAWithSHA256, nil
	default:
		return 0, 0, fmt.Errorf("%w: unsupported public key type %T", ErrPayloadInvalid, pub)
	}
}
