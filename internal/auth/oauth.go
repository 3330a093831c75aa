package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/microsoft"
)

// OAuthProvider holds the configuration for an OAuth2 identity provider.
type OAuthProvider struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	RedirectURL  string

	// oauthConfig is the compiled oauth2.Config.
	oauthConfig *oauth2.Config
}

// NewGitHubProvider returns an OAuth2 configuration for GitHub.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	p := &OAuthProvider{
		Name:         "github",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      github.Endpoint.AuthURL,
		TokenURL:     github.Endpoint.TokenURL,
		UserInfoURL:  "https://api.github.com/user",
		Scopes:       []string{"read:user", "user:email"},
		RedirectURL:  redirectURL,
	}
	p.oauthConfig = p.buildConfig()
	return p
}

// NewMicrosoftProvider returns an OAuth2 configuration for Microsoft.
// tenant is an Azure AD tenant ID or "common" for any account.
func NewMicrosoftProvider(clientID, clientSecret, tenant, redirectURL string) *OAuthProvider {
	endpoint := microsoft.AzureADEndpoint(tenant)
	p := &OAuthProvider{
		Name:         "microsoft",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      endpoint.AuthURL,
		TokenURL:     endpoint.TokenURL,
		UserInfoURL:  "https://graph.microsoft.com/v1.0/me",
		Scopes:       []string{"User.Read"},
		RedirectURL:  redirectURL,
	}
	p.oauthConfig = p.buildConfig()
	return p
}

func (p *OAuthProvider) buildConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
		Scopes:      p.Scopes,
		RedirectURL: p.RedirectURL,
	}
}

// AuthorizationURL returns the OAuth2 authorization URL with the given state parameter.
func (p *OAuthProvider) AuthorizationURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for tokens and fetches user info.
// Returns the provider-side user ID, email, display name, and avatar URL.
func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) (providerID, email, name, avatarURL string, err error) {
	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", "", "", "", fmt.Errorf("auth.ExchangeCode: %w", err)
	}

	client := p.oauthConfig.Client(ctx, token)

	resp, err := client.Get(p.UserInfoURL)
	if err != nil {
		return "", "", "", "", fmt.Errorf("auth.ExchangeCode: fetching user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", "", "", fmt.Errorf("auth.ExchangeCode: user info returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", "", "", fmt.Errorf("auth.ExchangeCode: reading user info: %w", err)
	}

	switch p.Name {
	case "github":
		return parseGitHubUserInfo(body)
	case "microsoft":
		return parseMicrosoftUserInfo(body)
	default:
		return "", "", "", "", fmt.Errorf("auth.ExchangeCode: unsupported provider %q", p.Name)
	}
}

type gitHubUserInfo struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func parseGitHubUserInfo(data []byte) (providerID, email, name, avatarURL string, err error) {
	var info gitHubUserInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", "", "", "", fmt.Errorf("auth.parseGitHubUserInfo: %w", err)
	}

	displayName := info.Name
	if displayName == "" {
		displayName = info.Login
	}

	return fmt.Sprintf("%d", info.ID), info.Email, displayName, info.AvatarURL, nil
}

type microsoftUserInfo struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func parseMicrosoftUserInfo(data []byte) (providerID, email, name, avatarURL string, err error) {
	var info microsoftUserInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", "", "", "", fmt.Errorf("auth.parseMicrosoftUserInfo: %w", err)
	}

	// Graph omits "mail" for accounts without a mailbox; the principal
	// name is an address-shaped fallback.
	address := info.Mail
	if address == "" {
		address = info.UserPrincipalName
	}

	return info.ID, address, info.DisplayName, "", nil
}
