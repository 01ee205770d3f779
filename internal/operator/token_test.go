package operator_test

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/andrea-athirat/corda/internal/operator"
)

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	return key
}

func TestTokenIssuer_issueAndVerify(t *testing.T) {
	ti := operator.NewTokenIssuer(newTestKey(t), "https://zone.example", time.Hour)
	acct := &operator.Account{ID: uuid.New(), Email: "ops@zone.example", Role: "operator"}

	token, err := ti.Issue(acct)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected a 3-part JWT, got %d parts", len(parts))
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Email != acct.Email {
		t.Errorf("Email: got %q, want %q", claims.Email, acct.Email)
	}
	if claims.Type != "session" {
		t.Errorf("Type: got %q, want %q", claims.Type, "session")
	}
}

func TestTokenIssuer_Verify_expired(t *testing.T) {
	ti := operator.NewTokenIssuer(newTestKey(t), "https://zone.example", time.Nanosecond)
	token, err := ti.Issue(&operator.Account{ID: uuid.New(), Email: "ops@zone.example", Role: "operator"})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)

	if _, err := ti.Verify(token); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestTokenIssuer_oauthStateRoundTrip(t *testing.T) {
	ti := operator.NewTokenIssuer(newTestKey(t), "https://zone.example", time.Hour)

	state, err := ti.IssueOAuthState("github")
	if err != nil {
		t.Fatalf("IssueOAuthState: %v", err)
	}
	provider, err := ti.VerifyOAuthState(state)
	if err != nil {
		t.Fatalf("VerifyOAuthState: %v", err)
	}
	if provider != "github" {
		t.Errorf("provider: got %q, want %q", provider, "github")
	}
}

func TestTokenIssuer_Verify_rejectsOAuthStateAsSession(t *testing.T) {
	ti := operator.NewTokenIssuer(newTestKey(t), "https://zone.example", time.Hour)
	state, err := ti.IssueOAuthState("google")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ti.Verify(state); err == nil {
		t.Error("expected an oauth-state token to be rejected by Verify")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := operator.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !operator.CheckPassword(hash, "correct horse battery staple") {
		t.Error("expected CheckPassword to accept the original password")
	}
	if operator.CheckPassword(hash, "wrong password") {
		t.Error("expected CheckPassword to reject a wrong password")
	}
}
