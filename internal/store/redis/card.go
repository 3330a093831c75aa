package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/epitrello/epitrello/internal/domain"
)

// CardRepo stores cards as hashes ("card:<id>"); the name and list fields
// stay plain strings so history rendering can HGET them directly.
type CardRepo struct {
	client *redis.Client
}

func NewCardRepo(client *redis.Client) *CardRepo {
	return &CardRepo{client: client}
}

func cardKey(id uuid.UUID) string { return "card:" + id.String() }

func (r *CardRepo) Create(ctx context.Context, c *domain.Card) error {
	if err := r.write(ctx, c); err != nil {
		return fmt.Errorf("cardRepo.Create: %w", err)
	}
	return nil
}

func (r *CardRepo) Update(ctx context.Context, c *domain.Card) error {
	if err := r.write(ctx, c); err != nil {
		return fmt.Errorf("cardRepo.Update: %w", err)
	}
	return nil
}

func (r *CardRepo) write(ctx context.Context, c *domain.Card) error {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return err
	}
	assignees, err := json.Marshal(c.Assignees)
	if err != nil {
		return err
	}
	checklist, err := json.Marshal(c.Checklist)
	if err != nil {
		return err
	}

	dueDate := ""
	if c.DueDate != nil {
		dueDate = c.DueDate.UTC().Format(time.RFC3339)
	}

	return r.client.HSet(ctx, cardKey(c.ID), map[string]any{
		"name":        c.Name,
		"list":        c.ListID.String(),
		"description": c.Description,
		"tags":        string(tags),
		"assignees":   string(assignees),
		"due_date":    dueDate,
		"checklist":   string(checklist),
	}).Err()
}

func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	fields, err := r.client.HGetAll(ctx, cardKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("cardRepo.GetByID: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("cardRepo.GetByID: %w", domain.ErrNotFound)
	}

	listID, err := uuid.Parse(fields["list"])
	if err != nil {
		return nil, fmt.Errorf("cardRepo.GetByID: corrupt list field: %w", err)
	}

	card := &domain.Card{
		ID:          id,
		ListID:      listID,
		Name:        fields["name"],
		Description: fields["description"],
	}

	if raw := fields["tags"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &card.Tags); err != nil {
			return nil, fmt.Errorf("cardRepo.GetByID: corrupt tags field: %w", err)
		}
	}
	if raw := fields["assignees"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &card.Assignees); err != nil {
			return nil, fmt.Errorf("cardRepo.GetByID: corrupt assignees field: %w", err)
		}
	}
	if raw := fields["checklist"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &card.Checklist); err != nil {
			return nil, fmt.Errorf("cardRepo.GetByID: corrupt checklist field: %w", err)
		}
	}
	if raw := fields["due_date"]; raw != "" {
		due, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return nil, fmt.Errorf("cardRepo.GetByID: corrupt due_date field: %w", parseErr)
		}
		card.DueDate = &due
	}

	return card, nil
}

func (r *CardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, cardKey(id)).Err(); err != nil {
		return fmt.Errorf("cardRepo.Delete: %w", err)
	}
	return nil
}
