package domain

import (
	"context"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleApe     UserRole = "ape"
	UserRoleStudent UserRole = "student"
)

// NormalizeUserRole maps unknown role strings to the default student role.
func NormalizeUserRole(value string) UserRole {
	switch UserRole(value) {
	case UserRoleAdmin, UserRoleApe, UserRoleStudent:
		return UserRole(value)
	default:
		return UserRoleStudent
	}
}

type User struct {
	ID                uuid.UUID
	Username          string
	Email             string
	PasswordHash      string // bcrypt, empty for OAuth-only users
	Role              UserRole
	ProfilePictureURL string
	Boards            []uuid.UUID
}

// DisplayName returns the label shown for this user in history feeds:
// username, then email, then the raw id.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID.String()
}

type UserOAuthLink struct {
	Provider   string // "github", "microsoft"
	ProviderID string
	UserID     uuid.UUID
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context) ([]*User, error)

	// OAuth links
	CreateOAuthLink(ctx context.Context, link *UserOAuthLink) error
	GetOAuthLink(ctx context.Context, provider, providerID string) (*UserOAuthLink, error)
}
