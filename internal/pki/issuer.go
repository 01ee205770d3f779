package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"
)

// maxSerialBits bounds generated serial numbers to 63 bits rather than the
// full 128/160 bits many CAs use: a 64th bit would risk a DER INTEGER
// sign-extension byte on encode/decode round trips, and every consumer of
// these certificates compares serials as signed Go integers.
const maxSerialBits = 63

// DefaultValidityDays is the window issuance falls back to when a caller
// does not specify one: valid from the anchor day for 3650 days.
const DefaultValidityDays = 3650

// Validity expresses a certificate's lifetime as an offset, in whole days,
// from the anchor (today truncated to midnight UTC). NotBeforeDays is
// usually 0; NotAfterDays defaults to DefaultValidityDays.
type Validity struct {
	NotBeforeDays int
	NotAfterDays  int
}

// DefaultValidity is (0, 3650 days).
var DefaultValidity = Validity{NotBeforeDays: 0, NotAfterDays: DefaultValidityDays}

func (v Validity) resolve() Validity {
	if v.NotAfterDays == 0 && v.NotBeforeDays == 0 {
		return DefaultValidity
	}
	return v
}

// anchor truncates now to midnight UTC, the fixed reference point every
// validity window in this package is computed from.
func anchor(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (v Validity) window(now time.Time) (notBefore, notAfter time.Time) {
	a := anchor(now)
	v = v.resolve()
	return a.AddDate(0, 0, v.NotBeforeDays), a.AddDate(0, 0, v.NotAfterDays)
}

// randomSerial generates a cryptographically random serial number strictly
// less than 2^63.
func randomSerial() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), maxSerialBits)
	serial, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("%w: generate serial: %v", ErrIssuanceFailed, err)
	}
	return serial, nil
}

// Issued bundles the result of any issuance call: the parsed leaf
// certificate, its DER bytes, and — for issuance calls that generated the
// key pair themselves — the private key.
type Issued struct {
	Cert    *x509.Certificate
	DER     []byte
	KeyPair *KeyPair // nil when the caller supplied their own public key or CSR
}

// buildPartial assembles the certificate template fields common to every
// issuance path: serial number, validity window, and (for non-root types)
// the role extension. Callers fill in Subject, IsCA/KeyUsage/ExtKeyUsage
// from the catalog entry and the issuer-specific fields (AuthorityKeyId,
// etc.) before calling x509.CreateCertificate.
func buildPartial(certType Type, subject pkix.Name, validity Validity, now time.Time) (*x509.Certificate, error) {
	policy := PolicyFor(certType)

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	notBefore, notAfter := validity.window(now)

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              policy.KeyUsage,
		ExtKeyUsage:           policy.ExtKeyUsage,
		BasicConstraintsValid: true,
		IsCA:                  policy.IsCA,
	}

	if policy.Role != nil {
		ext, err := RoleExtension(*policy.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
		}
		tmpl.ExtraExtensions = append(tmpl.ExtraExtensions, ext)
	}

	return tmpl, nil
}

// CreateSelfSignedRoot creates a new ROOT_CA certificate, generating its own
// key pair with scheme, signed by itself.
func CreateSelfSignedRoot(subject pkix.Name, scheme Scheme, validity Validity) (*Issued, error) {
	return CreateSelfSignedRootAt(subject, scheme, validity, time.Now())
}

// CreateSelfSignedRootAt is CreateSelfSignedRoot with an explicit reference
// time, exposed for deterministic tests.
func CreateSelfSignedRootAt(subject pkix.Name, scheme Scheme, validity Validity, now time.Time) (*Issued, error) {
	kp, err := GenerateKeyPair(scheme)
	if err != nil {
		return nil, err
	}
	tmpl, err := buildPartial(TypeRootCA, subject, validity, now)
	if err != nil {
		return nil, err
	}
	tmpl.SignatureAlgorithm = kp.SigAlgo
	tmpl.AuthorityKeyId = nil

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, kp.Public, kp.Private)
	if err != nil {
		return nil, fmt.Errorf("%w: create self-signed root: %v", ErrIssuanceFailed, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse issued root: %v", ErrIssuanceFailed, err)
	}
	return &Issued{Cert: cert, DER: der, KeyPair: kp}, nil
}

// CreateCertificate issues certType under issuerCert/issuerKey, generating a
// fresh key pair for the subject with scheme. This is the overload used when
// the caller has no CSR — e.g. issuing a node CA directly under a root the
// caller also controls.
func CreateCertificate(certType Type, subject pkix.Name, scheme Scheme, issuerCert *x509.Certificate, issuerKey crypto.Signer, validity Validity) (*Issued, error) {
	return CreateCertificateAt(certType, subject, scheme, issuerCert, issuerKey, validity, time.Now())
}

// CreateCertificateAt is CreateCertificate with an explicit reference time.
func CreateCertificateAt(certType Type, subject pkix.Name, scheme Scheme, issuerCert *x509.Certificate, issuerKey crypto.Signer, validity Validity, now time.Time) (*Issued, error) {
	kp, err := GenerateKeyPair(scheme)
	if err != nil {
		return nil, err
	}
	cert, der, err := createCertificateWithKey(certType, subject, kp.Public, issuerCert, issuerKey, validity, now)
	if err != nil {
		return nil, err
	}
	return &Issued{Cert: cert, DER: der, KeyPair: kp}, nil
}

// CreateCertificateFromCSR issues certType under issuerCert/issuerKey for the
// subject and public key carried in csr, after verifying the CSR's
// self-signature. This is the overload used when a node or service supplied
// its own certificate signing request.
func CreateCertificateFromCSR(certType Type, csr *x509.CertificateRequest, issuerCert *x509.Certificate, issuerKey crypto.Signer, validity Validity) (*Issued, error) {
	return CreateCertificateFromCSRAt(certType, csr, issuerCert, issuerKey, validity, time.Now())
}

// CreateCertificateFromCSRAt is CreateCertificateFromCSR with an explicit
// reference time.
func CreateCertificateFromCSRAt(certType Type, csr *x509.CertificateRequest, issuerCert *x509.Certificate, issuerKey crypto.Signer, validity Validity, now time.Time) (*Issued, error) {
	if err := csr.CheckSignature(); err != nil {
		return nil, fmt.Errorf("%w: CSR signature invalid: %v", ErrPayloadInvalid, err)
	}
	cert, der, err := createCertificateWithKey(certType, csr.Subject, csr.PublicKey, issuerCert, issuerKey, validity, now)
	if err != nil {
		return nil, err
	}
	return &Issued{Cert: cert, DER: der}, nil
}

func createCertificateWithKey(certType Type, subject pkix.Name, pub crypto.PublicKey, issuerCert *x509.Certificate, issuerKey crypto.Signer, validity Validity, now time.Time) (*x509.Certificate, []byte, error) {
	_, sigAlgo, err := schemeFromPublicKey(issuerKey.Public())
	if err != nil {
		return nil, nil, err
	}

	tmpl, err := buildPartial(certType, subject, validity, now)
	if err != nil {
		return nil, nil, err
	}
	if tmpl.NotBefore.Before(issuerCert.NotBefore) {
		tmpl.NotBefore = issuerCert.NotBefore
	}
	if tmpl.NotAfter.After(issuerCert.NotAfter) {
		tmpl.NotAfter = issuerCert.NotAfter
	}
	if !tmpl.NotBefore.Before(tmpl.NotAfter) {
		return nil, nil, fmt.Errorf("%w: requested validity window does not overlap issuer %q's window (issuer valid %s to %s)", ErrIssuanceFailed, issuerCert.Subject, issuerCert.NotBefore, issuerCert.NotAfter)
	}
	tmpl.SignatureAlgorithm = sigAlgo
	tmpl.AuthorityKeyId = issuerCert.SubjectKeyId

	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuerCert, pub, issuerKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create certificate: %v", ErrIssuanceFailed, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse issued certificate: %v", ErrIssuanceFailed, err)
	}
	return cert, der, nil
}

// emailAddressOID is the PKCS#9 emailAddress attribute OID (1.2.840.113549.1.9.1),
// the same attribute Bouncy Castle names BCStyle.E.
var emailAddressOID = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}

// CreateCertificateSigningRequest generates a key pair under scheme and
// builds a self-signed CSR for subject, for a node or service that wants to
// submit its public key for signing without handing over its private key.
// When email is non-empty it is carried in the CSR's subject as an
// emailAddress attribute, UTF8String-encoded.
func CreateCertificateSigningRequest(subject pkix.Name, scheme Scheme, email string) (*x509.CertificateRequest, *KeyPair, error) {
	kp, err := GenerateKeyPair(scheme)
	if err != nil {
		return nil, nil, err
	}
	if email != "" {
		subject.ExtraNames = append(subject.ExtraNames, pkix.AttributeTypeAndValue{
			Type: emailAddressOID,
			Value: asn1.RawValue{
				Tag:   asn1.TagUTF8String,
				Class: asn1.ClassUniversal,
				Bytes: []byte(email),
			},
		})
	}
	tmpl := &x509.CertificateRequest{
		Subject:            subject,
		SignatureAlgorithm: kp.SigAlgo,
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, tmpl, kp.Private)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create CSR: %v", ErrIssuanceFailed, err)
	}
	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse generated CSR: %v", ErrIssuanceFailed, err)
	}
	return csr, kp, nil
}
