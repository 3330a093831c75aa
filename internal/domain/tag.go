package domain

import (
	"context"

	"github.com/google/uuid"
)

type Tag struct {
	ID         uuid.UUID
	Name       string
	Type       string
	Attributes []string
}

type TagRepository interface {
	Create(ctx context.Context, t *Tag) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tag, error)
	Update(ctx context.Context, t *Tag) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Tag, error)
}
