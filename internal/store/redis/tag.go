package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/epitrello/epitrello/internal/domain"
)

type TagRepo struct {
	client *redis.Client
}

func NewTagRepo(client *redis.Client) *TagRepo {
	return &TagRepo{client: client}
}

type storedTag struct {
	ID         uuid.UUID `json:"uuid"`
	Name       string    `json:"name"`
	Type       string    `json:"type,omitempty"`
	Attributes []string  `json:"attributes,omitempty"`
}

func tagKey(id uuid.UUID) string { return "tag:" + id.String() }

func (r *TagRepo) Create(ctx context.Context, t *domain.Tag) error {
	if err := r.write(ctx, t); err != nil {
		return fmt.Errorf("tagRepo.Create: %w", err)
	}
	return nil
}

func (r *TagRepo) Update(ctx context.Context, t *domain.Tag) error {
	if err := r.write(ctx, t); err != nil {
		return fmt.Errorf("tagRepo.Update: %w", err)
	}
	return nil
}

func (r *TagRepo) write(ctx context.Context, t *domain.Tag) error {
	payload, err := json.Marshal(storedTag{ID: t.ID, Name: t.Name, Type: t.Type, Attributes: t.Attributes})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, tagKey(t.ID), payload, 0).Err()
}

func (r *TagRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tag, error) {
	raw, err := r.client.Get(ctx, tagKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("tagRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tagRepo.GetByID: %w", err)
	}

	var stored storedTag
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("tagRepo.GetByID: decode: %w", err)
	}

	return &domain.Tag{ID: stored.ID, Name: stored.Name, Type: stored.Type, Attributes: stored.Attributes}, nil
}

func (r *TagRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, tagKey(id)).Err(); err != nil {
		return fmt.Errorf("tagRepo.Delete: %w", err)
	}
	return nil
}

func (r *TagRepo) List(ctx context.Context) ([]*domain.Tag, error) {
	ids, err := scanRecordIDs(ctx, r.client, "tag:")
	if err != nil {
		return nil, fmt.Errorf("tagRepo.List: %w", err)
	}

	tags := make([]*domain.Tag, 0, len(ids))
	for _, id := range ids {
		tag, getErr := r.GetByID(ctx, id)
		if errors.Is(getErr, domain.ErrNotFound) {
			continue
		}
		if getErr != nil {
			return nil, fmt.Errorf("tagRepo.List: %w", getErr)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
