package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/epitrello/epitrello/internal/domain"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserAlreadyExists  = errors.New("auth: user already exists")
	ErrUserNotFound       = errors.New("auth: user not found")
)

// Service provides authentication operations.
type Service struct {
	userRepo  domain.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
}

// NewService creates a new auth service.
func NewService(userRepo domain.UserRepository, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Register creates a new user with email/password. Returns the created user.
// The password is hashed with bcrypt before storage.
func (s *Service) Register(ctx context.Context, email, password, username string) (*domain.User, error) {
	email = normalizeEmail(email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("auth.Register: %w", ErrUserAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.UserRoleStudent,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	return user, nil
}

// Login validates email/password and returns the user with a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	// OAuth-only accounts carry no hash and cannot log in with a password.
	if user.PasswordHash == "" {
		return nil, "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	token, err := IssueSessionToken(s.jwtSecret, user.ID, string(user.Role), s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("auth.Login: %w", err)
	}

	return user, token, nil
}

// OAuthIdentity is the profile returned by an OAuth provider exchange.
type OAuthIdentity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// LoginWithOAuth resolves an external identity to a local account and
// returns it with a session token. Resolution order: existing provider
// link, then email match (linking the provider), then a fresh account.
func (s *Service) LoginWithOAuth(ctx context.Context, identity OAuthIdentity) (*domain.User, string, error) {
	user, err := s.resolveOAuthUser(ctx, identity)
	if err != nil {
		return nil, "", fmt.Errorf("auth.LoginWithOAuth: %w", err)
	}

	token, err := IssueSessionToken(s.jwtSecret, user.ID, string(user.Role), s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("auth.LoginWithOAuth: %w", err)
	}

	return user, token, nil
}

func (s *Service) resolveOAuthUser(ctx context.Context, identity OAuthIdentity) (*domain.User, error) {
	if identity.ProviderID == "" {
		return nil, fmt.Errorf("provider %q returned no user id", identity.Provider)
	}

	link, err := s.userRepo.GetOAuthLink(ctx, identity.Provider, identity.ProviderID)
	if err == nil {
		user, err := s.userRepo.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, ErrUserNotFound
		}
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	email := normalizeEmail(identity.Email)
	if email != "" {
		user, err := s.userRepo.GetByEmail(ctx, email)
		if err == nil {
			if err := s.linkProvider(ctx, user.ID, identity); err != nil {
				return nil, err
			}
			return user, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	username := identity.Name
	if username == "" && email != "" {
		username, _, _ = strings.Cut(email, "@")
	}

	user := &domain.User{
		ID:                uuid.New(),
		Username:          username,
		Email:             email,
		Role:              domain.UserRoleStudent,
		ProfilePictureURL: identity.AvatarURL,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.linkProvider(ctx, user.ID, identity); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) linkProvider(ctx context.Context, userID uuid.UUID, identity OAuthIdentity) error {
	return s.userRepo.CreateOAuthLink(ctx, &domain.UserOAuthLink{
		Provider:   identity.Provider,
		ProviderID: identity.ProviderID,
		UserID:     userID,
	})
}

// GetUser returns a user by ID (for middleware use).
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.GetUser: %w", err)
	}

	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
