package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChecklistItem is a single checkbox line on a card.
type ChecklistItem struct {
	Done bool   `json:"done"`
	Text string `json:"text"`
}

type Card struct {
	ID          uuid.UUID
	ListID      uuid.UUID
	Name        string
	Description string
	Tags        []uuid.UUID
	Assignees   []uuid.UUID
	DueDate     *time.Time // nullable
	Checklist   []ChecklistItem
}

type CardRepository interface {
	Create(ctx context.Context, c *Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*Card, error)
	Update(ctx context.Context, c *Card) error
	Delete(ctx context.Context, id uuid.UUID) error
}
