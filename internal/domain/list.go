package domain

import (
	"context"

	"github.com/google/uuid"
)

type List struct {
	ID      uuid.UUID
	BoardID uuid.UUID
	Name    string
	Cards   []uuid.UUID
}

type ListRepository interface {
	Create(ctx context.Context, l *List) error
	GetByID(ctx context.Context, id uuid.UUID) (*List, error)
	Update(ctx context.Context, l *List) error
	Delete(ctx context.Context, id uuid.UUID) error
}
