// Package auth provides two distinct, deliberately separate auth
// mechanisms: OAuth device/PKCE login against upstream AI providers (this
// file, adapted from the teacher — needed by pkg/providers to refresh
// Claude/OpenAI subscription tokens), and the WebSocket session bearer
// token the spec names in §9 (session_token.go).
package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// OAuthProviderConfig describes one upstream provider's OAuth endpoints and
// client identity.
type OAuthProviderConfig struct {
	Issuer           string
	ClientID         string
	Scopes           string
	Originator       string
	Port             int
	Provider         string
	TokenEndpoint    string // path, default "/oauth/token"
	AuthorizeBaseURL string // overrides Issuer for the authorize redirect
}

func (c OAuthProviderConfig) tokenEndpointURL() string {
	ep := c.TokenEndpoint
	if ep == "" {
		ep = "/oauth/token"
	}
	return strings.TrimRight(c.Issuer, "/") + ep
}

// PKCECodes carries a PKCE code-verifier/challenge pair for one login attempt.
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// AuthCredential is a stored provider credential, either API-key or OAuth.
type AuthCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Provider     string    `json:"provider"`
	AuthMethod   string    `json:"auth_method"` // "oauth" | "api_key"
	AccountID    string    `json:"account_id,omitempty"`
}

// NeedsRefresh reports whether the credential is at or near expiry.
func (c *AuthCredential) NeedsRefresh() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(60 * time.Second).After(c.ExpiresAt)
}

// AnthropicOAuthConfig returns the OAuth configuration for Claude
// subscription login.
func AnthropicOAuthConfig() OAuthProviderConfig {
	return OAuthProviderConfig{
		Issuer:           "https://console.anthropic.com",
		ClientID:         "9d1c250a-e61b-44d9-88ed-5944d1962f5e",
		Scopes:           "org:create_api_key user:profile user:inference",
		Port:             8080,
		Provider:         "anthropic",
		TokenEndpoint:    "/v1/oauth/token",
		AuthorizeBaseURL: "https://claude.ai",
	}
}

// OpenAIOAuthConfig returns the OAuth configuration for ChatGPT/Codex
// subscription login.
func OpenAIOAuthConfig() OAuthProviderConfig {
	return OAuthProviderConfig{
		Issuer:     "https://auth.openai.com",
		ClientID:   "app_EMoamEEZ73f0CkXaXp7hrann",
		Scopes:     "openid profile email offline_access",
		Originator: "codex_cli_rs",
		Port:       1455,
		Provider:   "openai",
	}
}

// BuildAuthorizeURL constructs the browser-facing authorize URL for a login
// attempt. OpenAI-specific query params (id_token_add_organizations,
// codex_cli_simplified_flow, originator) are only emitted for
// cfg.Provider == "openai".
func BuildAuthorizeURL(cfg OAuthProviderConfig, pkce PKCECodes, state, redirectURI string) string {
	base := cfg.AuthorizeBaseURL
	if base == "" {
		base = cfg.Issuer
	}
	base = strings.TrimRight(base, "/")

	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("code_challenge", pkce.CodeChallenge)
	q.Set("code_challenge_method", "S256")
	q.Set("state", state)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	if cfg.Scopes != "" {
		q.Set("scope", cfg.Scopes)
	}

	if cfg.Provider == "openai" {
		q.Set("id_token_add_organizations", "true")
		q.Set("codex_cli_simplified_flow", "true")
		if cfg.Originator != "" {
			q.Set("originator", cfg.Originator)
		}
	}

	return base + "/oauth/authorize?" + q.Encode()
}

// exchangeCodeForTokens trades an authorization code for tokens. Anthropic's
// token endpoint expects a JSON body; every other provider here expects
// form-urlencoded, matching each vendor's documented token endpoint.
func exchangeCodeForTokens(cfg OAuthProviderConfig, code, verifier, redirectURI string) (*AuthCredential, error) {
	req, err := buildTokenRequest(cfg, map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"client_id":     cfg.ClientID,
		"redirect_uri":  redirectURI,
		"code_verifier": verifier,
	})
	if err != nil {
		return nil, err
	}
	return doTokenRequest(req, cfg.Provider)
}

// RefreshAccessToken exchanges a stored refresh token for a new access token.
func RefreshAccessToken(cred *AuthCredential, cfg OAuthProviderConfig) (*AuthCredential, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("credential for %s has no refresh token", cred.Provider)
	}

	req, err := buildTokenRequest(cfg, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": cred.RefreshToken,
		"client_id":     cfg.ClientID,
	})
	if err != nil {
		return nil, err
	}

	refreshed, err := doTokenRequest(req, cred.Provider)
	if err != nil {
		return nil, err
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cred.RefreshToken
	}
	return refreshed, nil
}

func buildTokenRequest(cfg OAuthProviderConfig, fields map[string]string) (*http.Request, error) {
	endpoint := cfg.tokenEndpointURL()

	if cfg.Provider == "anthropic" {
		body, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func doTokenRequest(req *http.Request, provider string) (*AuthCredential, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed: status %d: %s", resp.StatusCode, string(body))
	}

	return parseTokenResponse(body, provider)
}

func parseTokenResponse(body []byte, provider string) (*AuthCredential, error) {
	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		IDToken      string `json:"id_token"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if raw.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	cred := &AuthCredential{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		Provider:     provider,
		AuthMethod:   "oauth",
	}
	if raw.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(time.Duration(raw.ExpiresIn) * time.Second)
	}

	if id, ok := decodeJWTAccountID(raw.AccessToken); ok {
		cred.AccountID = id
	} else if id, ok := decodeJWTAccountID(raw.IDToken); ok {
		cred.AccountID = id
	}

	return cred, nil
}

// decodeJWTAccountID extracts the nested chatgpt_account_id claim from a
// compact JWT's payload segment without verifying its signature — this is a
// best-effort read of a token we already trust (just received it over TLS
// from the token endpoint), not an authorization decision.
func decodeJWTAccountID(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return "", false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", false
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", false
	}
	authClaim, ok := claims["https://api.openai.com/auth"].(map[string]interface{})
	if !ok {
		return "", false
	}
	id, ok := authClaim["chatgpt_account_id"].(string)
	return id, ok
}

// DeviceCodeResponse is the initial response of a device-authorization flow.
type DeviceCodeResponse struct {
	DeviceAuthID string
	UserCode     string
	Interval     int
}

func parseDeviceCodeResponse(body []byte) (*DeviceCodeResponse, error) {
	var raw struct {
		DeviceAuthID string          `json:"device_auth_id"`
		UserCode     string          `json:"user_code"`
		Interval     json.RawMessage `json:"interval"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse device code response: %w", err)
	}

	interval, err := parseFlexibleInt(raw.Interval)
	if err != nil {
		return nil, fmt.Errorf("parse interval: %w", err)
	}

	return &DeviceCodeResponse{DeviceAuthID: raw.DeviceAuthID, UserCode: raw.UserCode, Interval: interval}, nil
}

// parseFlexibleInt accepts either a JSON number or a numeric JSON string —
// some provider device-auth endpoints emit "interval" as a string.
func parseFlexibleInt(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("interval %q is not numeric", s)
		}
		return v, nil
	}
	return 0, fmt.Errorf("interval is neither a number nor a numeric string")
}
