package wsbridge

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerTokenPrefersAuthorizationHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	r.Header.Set("Authorization", "Bearer header-token")

	if got := bearerToken(r); got != "header-token" {
		t.Fatalf("bearerToken = %q, want header-token to win over the query param", got)
	}
}

func TestBearerTokenFallsBackToQueryParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)

	if got := bearerToken(r); got != "query-token" {
		t.Fatalf("bearerToken = %q, want query-token", got)
	}
}

func TestBearerTokenEmptyWhenNeitherPresent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)

	if got := bearerToken(r); got != "" {
		t.Fatalf("bearerToken = %q, want empty", got)
	}
}

func TestNewUpgraderAllowsWildcard(t *testing.T) {
	up := newUpgrader([]string{"*"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://anything.example")

	if !up.CheckOrigin(r) {
		t.Fatalf("CheckOrigin rejected an origin under a wildcard allow-list")
	}
}

func TestNewUpgraderRejectsUnlistedOrigin(t *testing.T) {
	up := newUpgrader([]string{"https://app.example"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://evil.example")

	if up.CheckOrigin(r) {
		t.Fatalf("CheckOrigin allowed an origin outside the allow-list")
	}
}

func TestNewUpgraderAllowsMissingOriginHeader(t *testing.T) {
	up := newUpgrader([]string{"https://app.example"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)

	if !up.CheckOrigin(r) {
		t.Fatalf("CheckOrigin rejected a request with no Origin header (non-browser client)")
	}
}

func TestNewUpgraderDefaultsToLocalhostWhenEmpty(t *testing.T) {
	up := newUpgrader(nil)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "http://localhost:5173")

	if !up.CheckOrigin(r) {
		t.Fatalf("CheckOrigin rejected a default-allowed localhost origin")
	}
}
