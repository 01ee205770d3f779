package operator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/email"
)

// ErrInvalidCredentials is returned by Login on a bad email/password pair.
var ErrInvalidCredentials = fmt.Errorf("operator: invalid email or password")

// Service wires account storage, password checks, and session issuance into
// the console's login flows.
type Service struct {
	store  *Store
	tokens *TokenIssuer
	sso    *SSO
	mailer email.EmailSender
	logger *zap.Logger
}

// NewService creates a Service. sso may be nil if no OAuth providers are configured.
func NewService(store *Store, tokens *TokenIssuer, sso *SSO, logger *zap.Logger) *Service {
	return &Service{store: store, tokens: tokens, sso: sso, mailer: email.NewNoopSender(logger), logger: logger}
}

// SetMailer overrides the account-notification mailer, nil-safe default is a
// no-op sender installed by NewService.
func (s *Service) SetMailer(mailer email.EmailSender) {
	if mailer != nil {
		s.mailer = mailer
	}
}

// Register creates a new password-authenticated operator account and sends a
// best-effort welcome email: failure to deliver it never fails account
// creation, the operator can still log in.
func (s *Service) Register(ctx context.Context, emailAddr, password string) (*Account, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acct, err := s.store.Create(ctx, emailAddr, hash)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.Send(ctx, acct.Email, "Welcome to the zone operator console",
		"Your operator account has been created. You can now sign in to approve network parameter changes."); err != nil {
		s.logger.Warn("failed to send operator welcome email", zap.String("email", acct.Email), zap.Error(err))
	}
	return acct, nil
}

// Login authenticates a password login and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	acct, err := s.store.ByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if acct.PasswordHash == "" || !CheckPassword(acct.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(acct)
}

// BeginSSOLogin starts an OAuth login flow, returning the provider's
// authorization URL.
func (s *Service) BeginSSOLogin(provider SSOProvider) (string, error) {
	if s.sso == nil {
		return "", fmt.Errorf("operator: no SSO providers configured")
	}
	return s.sso.BeginLogin(provider)
}

// CompleteSSOLogin finishes an OAuth login flow: verifies state, exchanges
// code, provisions or finds the account by email, and issues a session.
func (s *Service) CompleteSSOLogin(ctx context.Context, state, code string) (string, error) {
	if s.sso == nil {
		return "", fmt.Errorf("operator: no SSO providers configured")
	}
	email, err := s.sso.HandleCallback(ctx, state, code)
	if err != nil {
		return "", err
	}
	acct, err := s.store.EnsureFromSSO(ctx, email)
	if err != nil {
		return "", fmt.Errorf("provision sso account: %w", err)
	}
	s.logger.Info("operator sso login", zap.String("email", acct.Email))
	return s.tokens.Issue(acct)
}
