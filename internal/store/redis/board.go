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

type BoardRepo struct {
	client *redis.Client
}

func NewBoardRepo(client *redis.Client) *BoardRepo {
	return &BoardRepo{client: client}
}

type storedBoard struct {
	ID                 uuid.UUID   `json:"uuid"`
	Name               string      `json:"name"`
	Owner              uuid.UUID   `json:"owner"`
	Editors            []uuid.UUID `json:"editors,omitempty"`
	Viewers            []uuid.UUID `json:"viewers,omitempty"`
	Lists              []uuid.UUID `json:"lists,omitempty"`
	BackgroundImageURL string      `json:"background_image_url,omitempty"`
	Theme              string      `json:"theme,omitempty"`
}

func boardKey(id uuid.UUID) string { return "board:" + id.String() }

func (r *BoardRepo) Create(ctx context.Context, b *domain.Board) error {
	if err := r.write(ctx, b); err != nil {
		return fmt.Errorf("boardRepo.Create: %w", err)
	}
	return nil
}

func (r *BoardRepo) Update(ctx context.Context, b *domain.Board) error {
	if err := r.write(ctx, b); err != nil {
		return fmt.Errorf("boardRepo.Update: %w", err)
	}
	return nil
}

func (r *BoardRepo) write(ctx context.Context, b *domain.Board) error {
	payload, err := json.Marshal(storedBoard{
		ID:                 b.ID,
		Name:               b.Name,
		Owner:              b.Owner,
		Editors:            b.Editors,
		Viewers:            b.Viewers,
		Lists:              b.Lists,
		BackgroundImageURL: b.BackgroundImageURL,
		Theme:              b.Theme,
	})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, boardKey(b.ID), payload, 0).Err()
}

func (r *BoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	raw, err := r.client.Get(ctx, boardKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	var stored storedBoard
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: decode: %w", err)
	}

	return &domain.Board{
		ID:                 stored.ID,
		Name:               stored.Name,
		Owner:              stored.Owner,
		Editors:            stored.Editors,
		Viewers:            stored.Viewers,
		Lists:              stored.Lists,
		BackgroundImageURL: stored.BackgroundImageURL,
		Theme:              stored.Theme,
	}, nil
}

func (r *BoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	// The board's history list goes with it.
	if err := r.client.Del(ctx, boardKey(id), boardKey(id)+":history:v1").Err(); err != nil {
		return fmt.Errorf("boardRepo.Delete: %w", err)
	}
	return nil
}

func (r *BoardRepo) List(ctx context.Context) ([]*domain.Board, error) {
	ids, err := scanRecordIDs(ctx, r.client, "board:")
	if err != nil {
		return nil, fmt.Errorf("boardRepo.List: %w", err)
	}

	boards := make([]*domain.Board, 0, len(ids))
	for _, id := range ids {
		board, getErr := r.GetByID(ctx, id)
		if errors.Is(getErr, domain.ErrNotFound) {
			continue
		}
		if getErr != nil {
			return nil, fmt.Errorf("boardRepo.List: %w", getErr)
		}
		boards = append(boards, board)
	}
	return boards, nil
}

func (r *BoardRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.ListByMember: %w", err)
	}

	boards := make([]*domain.Board, 0)
	for _, board := range all {
		if _, ok := board.RoleOf(userID); ok {
			boards = append(boards, board)
		}
	}
	return boards, nil
}
