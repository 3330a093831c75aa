package v1

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/epitrello/epitrello/internal/auth"
)

type RegisterInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"8" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
		Username string `json:"username,omitempty" maxLength:"255" doc:"Display name, defaults to the email local part"`
	}
}

type SessionOutput struct {
	Body struct {
		User  *UserResponse `json:"user"`
		Token string        `json:"token"`
	}
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type ListProvidersOutput struct {
	Body struct {
		Providers []string `json:"providers"`
	}
}

type OAuthStartInput struct {
	Provider string `path:"provider" doc:"OAuth provider name"`
}

type OAuthStartOutput struct {
	Body struct {
		AuthorizationURL string `json:"authorization_url"`
		State            string `json:"state"`
	}
}

type OAuthCallbackInput struct {
	Provider string `path:"provider" doc:"OAuth provider name"`
	Code     string `query:"code" required:"true" doc:"Authorization code"`
	State    string `query:"state" doc:"Opaque state echoed back by the provider"`
}

func RegisterAuthRoutes(api huma.API, authSvc AuthService, providers map[string]OAuthExchanger) {
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Register a new account",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RegisterInput) (*SessionOutput, error) {
		user, err := authSvc.Register(ctx, input.Body.Email, input.Body.Password, input.Body.Username)
		if err != nil {
			if errors.Is(err, auth.ErrUserAlreadyExists) {
				return nil, huma.Error409Conflict("an account with this email already exists")
			}
			return nil, huma.Error500InternalServerError("failed to register user", err)
		}

		// Registration does not log the user in by itself; reuse the login
		// path so a single code path mints session tokens.
		_, token, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to open session", err)
		}

		out := &SessionOutput{}
		out.Body.User = toUserResponse(user)
		out.Body.Token = token
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
		user, token, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return nil, huma.Error401Unauthorized("invalid email or password")
			}
			return nil, huma.Error500InternalServerError("failed to log in", err)
		}

		out := &SessionOutput{}
		out.Body.User = toUserResponse(user)
		out.Body.Token = token
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-oauth-providers",
		Method:      http.MethodGet,
		Path:        "/auth/providers",
		Summary:     "List enabled OAuth providers",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, _ *struct{}) (*ListProvidersOutput, error) {
		names := make([]string, 0, len(providers))
		for name := range providers {
			names = append(names, name)
		}
		sort.Strings(names)

		out := &ListProvidersOutput{}
		out.Body.Providers = names
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "oauth-start",
		Method:      http.MethodGet,
		Path:        "/auth/oauth/{provider}",
		Summary:     "Begin an OAuth login",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *OAuthStartInput) (*OAuthStartOutput, error) {
		provider, ok := providers[input.Provider]
		if !ok {
			return nil, huma.Error404NotFound("unknown OAuth provider")
		}

		// The SPA stores the state and checks it against the callback
		// redirect before posting the code back here.
		state, err := randomState()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to generate state", err)
		}

		out := &OAuthStartOutput{}
		out.Body.AuthorizationURL = provider.AuthorizationURL(state)
		out.Body.State = state
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "oauth-callback",
		Method:      http.MethodGet,
		Path:        "/auth/oauth/{provider}/callback",
		Summary:     "Complete an OAuth login",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *OAuthCallbackInput) (*SessionOutput, error) {
		provider, ok := providers[input.Provider]
		if !ok {
			return nil, huma.Error404NotFound("unknown OAuth provider")
		}

		providerID, email, name, avatarURL, err := provider.ExchangeCode(ctx, input.Code)
		if err != nil {
			return nil, huma.Error401Unauthorized("OAuth exchange failed")
		}

		user, token, err := authSvc.LoginWithOAuth(ctx, auth.OAuthIdentity{
			Provider:   input.Provider,
			ProviderID: providerID,
			Email:      email,
			Name:       name,
			AvatarURL:  avatarURL,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to resolve OAuth account", err)
		}

		out := &SessionOutput{}
		out.Body.User = toUserResponse(user)
		out.Body.Token = token
		return out, nil
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
