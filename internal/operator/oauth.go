package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// SSOProvider names a configured OAuth login provider.
type SSOProvider string

const (
	ProviderGitHub SSOProvider = "github"
	ProviderGoogle SSOProvider = "google"
)

// SSOConfig is an operator console OAuth login provider: the oauth2 client
// config plus the endpoint used to fetch the authenticated user's email.
type SSOConfig struct {
	OAuth2   *oauth2.Config
	EmailURL string
}

// NewGitHubSSO builds the GitHub login provider config.
func NewGitHubSSO(clientID, clientSecret, redirectURL string) *SSOConfig {
	return &SSOConfig{
		OAuth2: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		EmailURL: "https://api.github.com/user/emails",
	}
}

// NewGoogleSSO builds the Google login provider config.
func NewGoogleSSO(clientID, clientSecret, redirectURL string) *SSOConfig {
	return &SSOConfig{
		OAuth2: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email"},
			Endpoint:     google.Endpoint,
		},
		EmailURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// SSO coordinates login across multiple configured providers, tying each
// flow's state parameter to a TokenIssuer-signed JWT so the callback can
// verify which provider started it without server-side session storage.
type SSO struct {
	providers map[SSOProvider]*SSOConfig
	tokens    *TokenIssuer
	client    *http.Client
}

// NewSSO creates an SSO coordinator. providers maps provider name to config
// and is used as given; NewSSO does not check client IDs or secrets.
func NewSSO(tokens *TokenIssuer, providers map[SSOProvider]*SSOConfig) *SSO {
	return &SSO{providers: providers, tokens: tokens, client: &http.Client{}}
}

// BeginLogin returns the provider's authorization URL carrying a freshly
// signed state token.
func (s *SSO) BeginLogin(provider SSOProvider) (string, error) {
	cfg, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("operator: unconfigured SSO provider %q", provider)
	}
	state, err := s.tokens.IssueOAuthState(string(provider))
	if err != nil {
		return "", fmt.Errorf("issue oauth state: %w", err)
	}
	return cfg.OAuth2.AuthCodeURL(state), nil
}

// HandleCallback validates state, exchanges code for a token, and fetches
// the authenticated user's email from the provider.
func (s *SSO) HandleCallback(ctx context.Context, state, code string) (email string, err error) {
	provider, err := s.tokens.VerifyOAuthState(state)
	if err != nil {
		return "", fmt.Errorf("oauth callback: %w", err)
	}
	cfg, ok := s.providers[SSOProvider(provider)]
	if !ok {
		return "", fmt.Errorf("operator: unconfigured SSO provider %q", provider)
	}

	tok, err := cfg.OAuth2.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange oauth code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.EmailURL, nil)
	if err != nil {
		return "", fmt.Errorf("build user-info request: %w", err)
	}
	tok.SetAuthHeader(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read user-info body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("operator: user-info request failed: status %d", resp.StatusCode)
	}

	return parseEmail(SSOProvider(provider), body)
}

func parseEmail(provider SSOProvider, body []byte) (string, error) {
	switch provider {
	case ProviderGitHub:
		var entries []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := json.Unmarshal(body, &entries); err != nil {
			return "", fmt.Errorf("decode github emails: %w", err)
		}
		for _, e := range entries {
			if e.Primary && e.Verified {
				return e.Email, nil
			}
		}
		return "", fmt.Errorf("operator: no verified primary github email")
	case ProviderGoogle:
		var info struct {
			Email         string `json:"email"`
			VerifiedEmail bool   `json:"verified_email"`
		}
		if err := json.Unmarshal(body, &info); err != nil {
			return "", fmt.Errorf("decode google userinfo: %w", err)
		}
		if !info.VerifiedEmail {
			return "", fmt.Errorf("operator: google email not verified")
		}
		return info.Email, nil
	default:
		return "", fmt.Errorf("operator: unknown provider %q", provider)
	}
}
