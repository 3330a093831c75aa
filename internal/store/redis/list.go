package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/epitrello/epitrello/internal/domain"
)

// ListRepo stores lists as hashes ("list:<id>") with the board id as a
// plain field, so other readers can resolve a list's board or name with a
// single HGET.
type ListRepo struct {
	client *redis.Client
}

func NewListRepo(client *redis.Client) *ListRepo {
	return &ListRepo{client: client}
}

func listKey(id uuid.UUID) string { return "list:" + id.String() }

func (r *ListRepo) Create(ctx context.Context, l *domain.List) error {
	if err := r.write(ctx, l); err != nil {
		return fmt.Errorf("listRepo.Create: %w", err)
	}
	return nil
}

func (r *ListRepo) Update(ctx context.Context, l *domain.List) error {
	if err := r.write(ctx, l); err != nil {
		return fmt.Errorf("listRepo.Update: %w", err)
	}
	return nil
}

func (r *ListRepo) write(ctx context.Context, l *domain.List) error {
	cards, err := json.Marshal(l.Cards)
	if err != nil {
		return err
	}

	return r.client.HSet(ctx, listKey(l.ID), map[string]any{
		"name":  l.Name,
		"board": l.BoardID.String(),
		"cards": string(cards),
	}).Err()
}

func (r *ListRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.List, error) {
	fields, err := r.client.HGetAll(ctx, listKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("listRepo.GetByID: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("listRepo.GetByID: %w", domain.ErrNotFound)
	}

	boardID, err := uuid.Parse(fields["board"])
	if err != nil {
		return nil, fmt.Errorf("listRepo.GetByID: corrupt board field: %w", err)
	}

	var cards []uuid.UUID
	if raw := fields["cards"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &cards); err != nil {
			return nil, fmt.Errorf("listRepo.GetByID: corrupt cards field: %w", err)
		}
	}

	return &domain.List{
		ID:      id,
		BoardID: boardID,
		Name:    fields["name"],
		Cards:   cards,
	}, nil
}

func (r *ListRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, listKey(id)).Err(); err != nil {
		return fmt.Errorf("listRepo.Delete: %w", err)
	}
	return nil
}
