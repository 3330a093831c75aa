package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/epitrello/epitrello/internal/domain"
)

type UserRepo struct {
	client *redis.Client
}

func NewUserRepo(client *redis.Client) *UserRepo {
	return &UserRepo{client: client}
}

// storedUser keeps the original on-disk field names so existing records
// stay readable.
type storedUser struct {
	ID                uuid.UUID   `json:"uuid"`
	Username          string      `json:"username"`
	Email             string      `json:"email"`
	PasswordHash      string      `json:"password_hash,omitempty"`
	Role              string      `json:"role,omitempty"`
	ProfilePictureURL string      `json:"profile_picture_url,omitempty"`
	Boards            []uuid.UUID `json:"boards,omitempty"`
}

func userKey(id uuid.UUID) string { return "user:" + id.String() }

func userEmailKey(email string) string {
	return "user:email:" + strings.ToLower(strings.TrimSpace(email))
}

func oauthLinkKey(provider, providerID string) string {
	return "oauth:" + provider + ":" + providerID
}

func toStoredUser(u *domain.User) storedUser {
	return storedUser{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Role:              string(u.Role),
		ProfilePictureURL: u.ProfilePictureURL,
		Boards:            u.Boards,
	}
}

func (s storedUser) toDomain() *domain.User {
	return &domain.User{
		ID:                s.ID,
		Username:          s.Username,
		Email:             s.Email,
		PasswordHash:      s.PasswordHash,
		Role:              domain.NormalizeUserRole(s.Role),
		ProfilePictureURL: s.ProfilePictureURL,
		Boards:            s.Boards,
	}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if err := r.write(ctx, u); err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	if err := r.write(ctx, u); err != nil {
		return fmt.Errorf("userRepo.Update: %w", err)
	}
	return nil
}

func (r *UserRepo) write(ctx context.Context, u *domain.User) error {
	payload, err := json.Marshal(toStoredUser(u))
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, userKey(u.ID), payload, 0).Err(); err != nil {
		return err
	}

	if u.Email != "" {
		if err := r.client.Set(ctx, userEmailKey(u.Email), u.ID.String(), 0).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	raw, err := r.client.Get(ctx, userKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}

	var stored storedUser
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: decode: %w", err)
	}
	return stored.toDomain(), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	rawID, err := r.client.Get(ctx, userEmailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByEmail: corrupt index: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) List(ctx context.Context) ([]*domain.User, error) {
	ids, err := scanRecordIDs(ctx, r.client, "user:")
	if err != nil {
		return nil, fmt.Errorf("userRepo.List: %w", err)
	}

	users := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		user, getErr := r.GetByID(ctx, id)
		if errors.Is(getErr, domain.ErrNotFound) {
			continue // deleted between scan and read
		}
		if getErr != nil {
			return nil, fmt.Errorf("userRepo.List: %w", getErr)
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *UserRepo) CreateOAuthLink(ctx context.Context, link *domain.UserOAuthLink) error {
	key := oauthLinkKey(link.Provider, link.ProviderID)
	if err := r.client.Set(ctx, key, link.UserID.String(), 0).Err(); err != nil {
		return fmt.Errorf("userRepo.CreateOAuthLink: %w", err)
	}
	return nil
}

func (r *UserRepo) GetOAuthLink(ctx context.Context, provider, providerID string) (*domain.UserOAuthLink, error) {
	rawID, err := r.client.Get(ctx, oauthLinkKey(provider, providerID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("userRepo.GetOAuthLink: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetOAuthLink: %w", err)
	}

	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetOAuthLink: corrupt link: %w", err)
	}

	return &domain.UserOAuthLink{Provider: provider, ProviderID: providerID, UserID: userID}, nil
}
