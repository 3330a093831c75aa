package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/epitrello/epitrello/internal/domain"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationRepo stores notifications as hashes ("notification:<id>")
// and keeps a per-user id set ("user:<id>:notifications") for listing.
type NotificationRepo struct {
	client *redis.Client
}

func NewNotificationRepo(client *redis.Client) *NotificationRepo {
	return &NotificationRepo{client: client}
}

func notificationKey(id uuid.UUID) string { return "notification:" + id.String() }

func userNotificationsKey(userID uuid.UUID) string {
	return "user:" + userID.String() + ":notifications"
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	readAt := ""
	if n.ReadAt != nil {
		readAt = n.ReadAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, notificationKey(n.ID), map[string]any{
			"id":        n.ID.String(),
			"userId":    n.UserID.String(),
			"type":      string(n.Type),
			"title":     n.Title,
			"message":   n.Message,
			"boardId":   n.BoardID,
			"boardName": n.BoardName,
			"cardId":    n.CardID,
			"cardTitle": n.CardTitle,
			"dueDate":   n.DueDate,
			"actorId":   n.ActorID,
			"createdAt": n.CreatedAt.UTC().Format(time.RFC3339Nano),
			"readAt":    readAt,
		})
		pipe.SAdd(ctx, userNotificationsKey(n.UserID), n.ID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("notificationRepo.Create: %w", err)
	}
	return nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	ids, err := r.client.SMembers(ctx, userNotificationsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("notificationRepo.ListByUser: %w", err)
	}

	notifications := make([]*domain.Notification, 0, len(ids))
	for _, rawID := range ids {
		id, parseErr := uuid.Parse(rawID)
		if parseErr != nil {
			continue
		}
		n, getErr := r.get(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("notificationRepo.ListByUser: %w", getErr)
		}
		// Corrupt records and records that drifted to another user are
		// filtered, not fatal.
		if n == nil || n.UserID != userID {
			continue
		}
		notifications = append(notifications, n)
	}

	sort.Slice(notifications, func(i, j int) bool {
		if notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].ID.String() > notifications[j].ID.String()
		}
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})

	if len(notifications) > limit {
		notifications = notifications[:limit]
	}
	return notifications, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	n, err := r.get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("notificationRepo.MarkRead: %w", err)
	}
	if n == nil || n.UserID != userID {
		return false, nil
	}
	if n.ReadAt != nil {
		return true, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := r.client.HSet(ctx, notificationKey(id), "readAt", now).Err(); err != nil {
		return false, fmt.Errorf("notificationRepo.MarkRead: %w", err)
	}
	return true, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	ids, err := r.client.SMembers(ctx, userNotificationsKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("notificationRepo.MarkAllRead: %w", err)
	}

	updated := 0
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rawID := range ids {
		id, parseErr := uuid.Parse(rawID)
		if parseErr != nil {
			continue
		}
		n, getErr := r.get(ctx, id)
		if getErr != nil {
			return updated, fmt.Errorf("notificationRepo.MarkAllRead: %w", getErr)
		}
		if n == nil || n.UserID != userID || n.ReadAt != nil {
			continue
		}
		if err := r.client.HSet(ctx, notificationKey(id), "readAt", now).Err(); err != nil {
			return updated, fmt.Errorf("notificationRepo.MarkAllRead: %w", err)
		}
		updated++
	}
	return updated, nil
}

// get returns (nil, nil) for missing or schema-violating records so reads
// degrade per-item instead of failing the whole feed.
func (r *NotificationRepo) get(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	fields, err := r.client.HGetAll(ctx, notificationKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	notificationType, ok := domain.ParseNotificationType(fields["type"])
	if !ok {
		return nil, nil
	}
	userID, err := uuid.Parse(fields["userId"])
	if err != nil {
		return nil, nil
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["createdAt"])
	if err != nil {
		return nil, nil
	}
	if fields["title"] == "" || fields["message"] == "" {
		return nil, nil
	}

	n := &domain.Notification{
		ID:        id,
		UserID:    userID,
		Type:      notificationType,
		Title:     fields["title"],
		Message:   fields["message"],
		BoardID:   fields["boardId"],
		BoardName: fields["boardName"],
		CardID:    fields["cardId"],
		CardTitle: fields["cardTitle"],
		DueDate:   fields["dueDate"],
		ActorID:   fields["actorId"],
		CreatedAt: createdAt,
	}
	if raw := fields["readAt"]; raw != "" {
		readAt, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr == nil {
			n.ReadAt = &readAt
		}
	}
	return n, nil
}
