package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/epitrello/epitrello/internal/auth"
)

// --- Auth URL tests ---

func TestNewGitHubProvider_AuthURL(t *testing.T) {
	t.Parallel()

	p := auth.NewGitHubProvider("github-client-id", "github-secret", "https://example.com/gh-callback")
	authURL := p.AuthorizationURL("gh-state")

	require.NotEmpty(t, authURL)
	assert.Contains(t, authURL, "github.com/login/oauth/authorize")
	assert.Contains(t, authURL, "client_id=github-client-id")
	assert.Contains(t, authURL, "state=gh-state")
	assert.Contains(t, authURL, "redirect_uri="+url.QueryEscape("https://example.com/gh-callback"))
	assert.Contains(t, authURL, "response_type=code")
}

func TestNewMicrosoftProvider_AuthURL(t *testing.T) {
	t.Parallel()

	p := auth.NewMicrosoftProvider("ms-client-id", "ms-secret", "common", "https://example.com/ms-callback")
	authURL := p.AuthorizationURL("ms-state")

	require.NotEmpty(t, authURL)
	assert.Contains(t, authURL, "login.microsoftonline.com/common")
	assert.Contains(t, authURL, "client_id=ms-client-id")
	assert.Contains(t, authURL, "state=ms-state")
}

func TestMicrosoftProvider_TenantScopesEndpoint(t *testing.T) {
	t.Parallel()

	p := auth.NewMicrosoftProvider("id", "sec", "my-tenant-id", "https://example.com/cb")
	assert.Contains(t, p.AuthURL, "my-tenant-id")
	assert.Contains(t, p.TokenURL, "my-tenant-id")
}

func TestGitHubProvider_AuthURL_ContainsScopes(t *testing.T) {
	t.Parallel()

	p := auth.NewGitHubProvider("cid", "csec", "https://example.com/cb")
	authURL := p.AuthorizationURL("s")

	assert.Contains(t, authURL, "scope=")
	assert.Contains(t, authURL, "read")
	assert.Contains(t, authURL, "user")
}

// --- ExchangeCode tests ---
//
// ExchangeCode does two HTTP calls: the token exchange (POST to TokenURL,
// handled by the oauth2 library) and the user info fetch (GET to
// UserInfoURL). The oauth2 library supports context-based HTTP client
// injection via oauth2.HTTPClient and the user-info client is derived from
// the same context, so one redirecting RoundTripper covers both: token
// requests and user-info requests are routed by path to a single test
// server.

// redirectTransport redirects all HTTP requests to a test server.
type redirectTransport struct {
	targetBaseURL string
}

func (tr *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	newURL := tr.targetBaseURL + req.URL.Path
	if req.URL.RawQuery != "" {
		newURL += "?" + req.URL.RawQuery
	}

	newReq, err := http.NewRequestWithContext(req.Context(), req.Method, newURL, req.Body)
	if err != nil {
		return nil, err
	}
	newReq.Header = req.Header

	return http.DefaultTransport.RoundTrip(newReq)
}

// oauthCtx returns a context with an HTTP client that routes all provider
// requests to the given test server URL.
func oauthCtx(t *testing.T, serverURL string) context.Context {
	t.Helper()
	client := &http.Client{Transport: &redirectTransport{targetBaseURL: serverURL}}
	return context.WithValue(t.Context(), oauth2.HTTPClient, client)
}

// newProviderServer returns an httptest server that answers token exchange
// requests with a valid token and everything else with userInfo.
func newProviderServer(t *testing.T, userInfo http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "token") {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"access_token": "fake-access-token",
				"token_type":   "Bearer",
			})
			return
		}
		userInfo(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonHandler(payload any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func TestGitHubProvider_ExchangeCode_HappyPath(t *testing.T) {
	t.Parallel()

	srv := newProviderServer(t, jsonHandler(map[string]any{
		"id":         42,
		"login":      "octocat",
		"name":       "The Octocat",
		"email":      "octocat@github.com",
		"avatar_url": "https://avatars.githubusercontent.com/u/42",
	}))
	ctx := oauthCtx(t, srv.URL)

	p := auth.NewGitHubProvider("test-id", "test-secret", "https://example.com/cb")

	providerID, email, name, avatarURL, err := p.ExchangeCode(ctx, "gh-valid-code")

	require.NoError(t, err)
	assert.Equal(t, "42", providerID)
	assert.Equal(t, "octocat@github.com", email)
	assert.Equal(t, "The Octocat", name)
	assert.Equal(t, "https://avatars.githubusercontent.com/u/42", avatarURL)
}

func TestGitHubProvider_ExchangeCode_FallsBackToLogin(t *testing.T) {
	t.Parallel()

	srv := newProviderServer(t, jsonHandler(map[string]any{
		"id":         99,
		"login":      "anonymous-dev",
		"name":       "",
		"email":      "anon@dev.io",
		"avatar_url": "",
	}))
	ctx := oauthCtx(t, srv.URL)

	p := auth.NewGitHubProvider("test-id", "test-secret", "https://example.com/cb")

	_, _, name, _, err := p.ExchangeCode(ctx, "code")

	require.NoError(t, err)
	assert.Equal(t, "anonymous-dev", name, "should fall back to login when name is empty")
}

func TestMicrosoftProvider_ExchangeCode_HappyPath(t *testing.T) {
	t.Parallel()

	srv := newProviderServer(t, jsonHandler(map[string]string{
		"id":                "ms-abc-123",
		"displayName":       "Alice Martin",
		"mail":              "alice.martin@epita.fr",
		"userPrincipalName": "alice.martin_epita.fr#EXT#@example.onmicrosoft.com",
	}))
	ctx := oauthCtx(t, srv.URL)

	p := auth.NewMicrosoftProvider("test-id", "test-secret", "common", "https://example.com/cb")

	providerID, email, name, avatarURL, err := p.ExchangeCode(ctx, "ms-valid-code")

	require.NoError(t, err)
	assert.Equal(t, "ms-abc-123", providerID)
	assert.Equal(t, "alice.martin@epita.fr", email)
	assert.Equal(t, "Alice Martin", name)
	assert.Empty(t, avatarURL)
}

func TestMicrosoftProvider_ExchangeCode_FallsBackToPrincipalName(t *testing.T) {
	t.Parallel()

	srv := newProviderServer(t, jsonHandler(map[string]string{
		"id":                "ms-no-mailbox",
		"displayName":       "Bob",
		"mail":              "",
		"userPrincipalName": "bob@example.onmicrosoft.com",
	}))
	ctx := oauthCtx(t, srv.URL)

	p := auth.NewMicrosoftProvider("test-id", "test-secret", "common", "https://example.com/cb")

	_, email, _, _, err := p.ExchangeCode(ctx, "code")

	require.NoError(t, err)
	assert.Equal(t, "bob@example.onmicrosoft.com", email)
}

func TestExchangeCode_InvalidCode_TokenError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "code is expired or invalid",
		})
	}))
	t.Cleanup(srv.Close)
	ctx := oauthCtx(t, srv.URL)

	p := auth.NewGitHubProvider("test-id", "test-secret", "https://example.com/cb")

	_, _, _, _, err := p.ExchangeCode(ctx, "bad-code")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.ExchangeCode")
}

func TestExchangeCode_UserInfoHTTPError(t *testing.T) {
	t.Parallel()

	srv := newProviderServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := oauthCtx(t, srv.URL)

	p := auth.NewGitHubProvider("test-id", "test-secret", "https://example.com/cb")

	_, _, _, _, err := p.ExchangeCode(ctx, "valid-code")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "user info returned 500")
}

func TestExchangeCode_MalformedResponse(t *testing.T) {
	t.Parallel()

	srv := newProviderServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{not valid json`))
	})
	ctx := oauthCtx(t, srv.URL)

	p := auth.NewGitHubProvider("test-id", "test-secret", "https://example.com/cb")

	_, _, _, _, err := p.ExchangeCode(ctx, "valid-code")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parseGitHubUserInfo")
}
