// Package wire implements the minimal serialization framework the network
// map talks over: opaque payload bytes carried alongside a detached
// signature and the certificate that produced it.
package wire

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"fmt"

	"github.com/andrea-athirat/corda/internal/pki"
)

// SignedWith is a generic envelope binding raw payload bytes to a detached
// signature over those bytes, the certificate whose key produced it, and the
// intermediate certificates (leaf's issuer, its issuer's issuer, and so on,
// stopping short of the root) needed to build a path from SignerCert up to a
// verifier's trust anchor. Payload is never introspected by this package —
// callers decode T themselves once they've checked the signature.
type SignedWith[T any] struct {
	Payload           []byte
	Signature         []byte
	SignerCert        *x509.Certificate
	IntermediateCerts []*x509.Certificate
}

// Sign produces a SignedWith envelope over payload using signer, whose
// public key must be ed25519 or ecdsa P-256 (the two schemes pki.Scheme
// supports). intermediates carries the certificate chain between signerCert
// and the verifier's trust anchor, leaf-issuer first, when signerCert was not
// issued directly by the root.
func Sign[T any](payload []byte, signer crypto.Signer, signerCert *x509.Certificate, intermediates ...*x509.Certificate) (*SignedWith[T], error) {
	sig, err := signBytes(payload, signer)
	if err != nil {
		return nil, err
	}
	return &SignedWith[T]{Payload: payload, Signature: sig, SignerCert: signerCert, IntermediateCerts: intermediates}, nil
}

// SignValue encodes v and signs the result in one step.
func SignValue[T any](v T, signer crypto.Signer, signerCert *x509.Certificate, intermediates ...*x509.Certificate) (*SignedWith[T], error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return Sign[T](payload, signer, signerCert, intermediates...)
}

func signBytes(payload []byte, signer crypto.Signer) ([]byte, error) {
	switch signer.Public().(type) {
	case ed25519.PublicKey:
		sig, err := signer.Sign(rand.Reader, payload, crypto.Hash(0))
		if err != nil {
			return nil, fmt.Errorf("%w: ed25519 sign: %v", pki.ErrIssuanceFailed, err)
		}
		return sig, nil
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(payload)
		sig, err := signer.Sign(rand.Reader, digest[:], crypto.SHA256)
		if err != nil {
			return nil, fmt.Errorf("%w: ecdsa sign: %v", pki.ErrIssuanceFailed, err)
		}
		return sig, nil
	default:
		return nil, fmt.Errorf("%w: unsupported signer public key type %T", pki.ErrPayloadInvalid, signer.Public())
	}
}

// Verify checks the envelope's signature against its carried SignerCert's
// public key. It does not validate the certificate's chain or role — callers
// combine this with pki.VerifyRoleBound for the full chain-and-role check
// before trusting the payload.
func (s *SignedWith[T]) Verify() error {
	pub := s.SignerCert.PublicKey
	switch key := pub.(type) {
	case ed25519.PublicKey:
		if !ed25519.Verify(key, s.Payload, s.Signature) {
			return fmt.Errorf("%w: ed25519 signature verification failed", pki.ErrPayloadInvalid)
		}
		return nil
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(s.Payload)
		if !ecdsa.VerifyASN1(key, digest[:], s.Signature) {
			return fmt.Errorf("%w: ecdsa signature verification failed", pki.ErrPayloadInvalid)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported signer cert public key type %T", pki.ErrPayloadInvalid, pub)
	}
}

// envelopeOnWire is the JSON shape SignedWith actually carries: certificates
// as DER bytes rather than *x509.Certificate, whose PublicKey field doesn't
// survive a default json.Marshal/Unmarshal round trip.
type envelopeOnWire struct {
	Payload           []byte   `json:"payload"`
	Signature         []byte   `json:"signature"`
	SignerCert        []byte   `json:"signerCert,omitempty"`
	IntermediateCerts [][]byte `json:"intermediateCerts,omitempty"`
}

// MarshalJSON encodes the envelope with its certificates as DER bytes.
func (s SignedWith[T]) MarshalJSON() ([]byte, error) {
	aux := envelopeOnWire{Payload: s.Payload, Signature: s.Signature}
	if s.SignerCert != nil {
		aux.SignerCert = s.SignerCert.Raw
	}
	for _, c := range s.IntermediateCerts {
		aux.IntermediateCerts = append(aux.IntermediateCerts, c.Raw)
	}
	return json.Marshal(aux)
}

// UnmarshalJSON decodes an envelope whose certificates were carried as DER
// bytes, parsing them back into *x509.Certificate values.
func (s *SignedWith[T]) UnmarshalJSON(data []byte) error {
	var aux envelopeOnWire
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("%w: decode envelope: %v", pki.ErrPayloadInvalid, err)
	}
	s.Payload = aux.Payload
	s.Signature = aux.Signature
	s.SignerCert = nil
	s.IntermediateCerts = nil
	if len(aux.SignerCert) > 0 {
		cert, err := x509.ParseCertificate(aux.SignerCert)
		if err != nil {
			return fmt.Errorf("%w: parse signer certificate: %v", pki.ErrPayloadInvalid, err)
		}
		s.SignerCert = cert
	}
	for _, der := range aux.IntermediateCerts {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("%w: parse intermediate certificate: %v", pki.ErrPayloadInvalid, err)
		}
		s.IntermediateCerts = append(s.IntermediateCerts, cert)
	}
	return nil
}

// Chain returns the certificate path this envelope carries: SignerCert
// followed by its IntermediateCerts, in the leaf-first order pki.Validate
// and pki.VerifyRoleBound expect.
func (s *SignedWith[T]) Chain() []*x509.Certificate {
	chain := make([]*x509.Certificate, 0, 1+len(s.IntermediateCerts))
	chain = append(chain, s.SignerCert)
	chain = append(chain, s.IntermediateCerts...)
	return chain
}
