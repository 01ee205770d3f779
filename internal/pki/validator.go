package pki

import (
	"crypto/x509"
	"fmt"
	"time"
)

// Validate checks that chain (leaf first, root last, as produced by
// BuildCertPath) verifies up to trustAnchor. Signatures, expiry, the CA flag
// and path-length constraints are enforced; any extended key usage is
// accepted, key-usage bits are not checked, and revocation (CRL/OCSP) is not
// checked.
func Validate(chain []*x509.Certificate, trustAnchor *x509.Certificate) ([][]*x509.Certificate, error) {
	return ValidateAt(chain, trustAnchor, time.Now())
}

// ValidateAt is Validate with an explicit reference time, for deterministic
// tests around certificate expiry boundaries.
func ValidateAt(chain []*x509.Certificate, trustAnchor *x509.Certificate, now time.Time) ([][]*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, &ChainInvalidError{Reason: "empty chain"}
	}

	roots := x509.NewCertPool()
	roots.AddCert(trustAnchor)

	intermediates := x509.NewCertPool()
	if len(chain) > 1 {
		for _, c := range chain[1 : len(chain)-1] {
			intermediates.AddCert(c)
		}
		if !chain[len(chain)-1].Equal(trustAnchor) {
			intermediates.AddCert(chain[len(chain)-1])
		}
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	verified, err := chain[0].Verify(opts)
	if err != nil {
		return nil, &ChainInvalidError{Reason: "verify", Err: err}
	}
	return verified, nil
}

// VerifyRoleBound validates leaf's chain up to trustAnchor and additionally
// checks that leaf carries expectedRole in its role extension.
// A certificate with no role extension — e.g. a root — never satisfies this
// check.
func VerifyRoleBound(leaf *x509.Certificate, chain []*x509.Certificate, trustAnchor *x509.Certificate, expectedRole Role) error {
	if _, err := Validate(chain, trustAnchor); err != nil {
		return err
	}
	actual, ok, err := ExtractRole(leaf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	if !ok {
		return &WrongRoleError{Expected: expectedRole, HasRole: false}
	}
	if actual != expectedRole {
		return &WrongRoleError{Expected: expectedRole, Actual: actual, HasRole: true}
	}
	return nil
}
