package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationBoardAdded  NotificationType = "board.added"
	NotificationCardDueDate NotificationType = "card.due_date"
)

// ParseNotificationType returns false for unrecognized type tags so that
// corrupt stored notifications can be filtered out on read.
func ParseNotificationType(value string) (NotificationType, bool) {
	switch NotificationType(value) {
	case NotificationBoardAdded, NotificationCardDueDate:
		return NotificationType(value), true
	default:
		return "", false
	}
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      NotificationType
	Title     string
	Message   string
	BoardID   string
	BoardName string
	CardID    string
	CardTitle string
	DueDate   string
	ActorID   string
	CreatedAt time.Time
	ReadAt    *time.Time // nil while unread
}

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
}
