package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

type ListNotificationsInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum notifications to return"`
}

// NotificationResponse flattens a stored notification for the inbox view.
type NotificationResponse struct {
	ID        uuid.UUID `json:"uuid"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	BoardID   string    `json:"board_id,omitempty"`
	BoardName string    `json:"board_name,omitempty"`
	CardID    string    `json:"card_id,omitempty"`
	CardTitle string    `json:"card_title,omitempty"`
	DueDate   string    `json:"due_date,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

type ListNotificationsOutput struct {
	Body struct {
		Notifications []*NotificationResponse `json:"notifications"`
	}
}

type MarkReadInput struct {
	NotificationID uuid.UUID `path:"notificationID" doc:"Notification ID"`
}

type MarkReadOutput struct {
	Body struct {
		Read bool `json:"read"`
	}
}

type MarkAllReadOutput struct {
	Body struct {
		Updated int `json:"updated"`
	}
}

func RegisterNotificationRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List the current user's notifications",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *ListNotificationsInput) (*ListNotificationsOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		notifications, err := store.Notifications().ListByUser(ctx, userID, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list notifications", err)
		}

		out := &ListNotificationsOutput{}
		out.Body.Notifications = make([]*NotificationResponse, 0, len(notifications))
		for _, n := range notifications {
			out.Body.Notifications = append(out.Body.Notifications, &NotificationResponse{
				ID:        n.ID,
				Type:      string(n.Type),
				Title:     n.Title,
				Message:   n.Message,
				BoardID:   n.BoardID,
				BoardName: n.BoardName,
				CardID:    n.CardID,
				CardTitle: n.CardTitle,
				DueDate:   n.DueDate,
				ActorID:   n.ActorID,
				CreatedAt: n.CreatedAt,
				Read:      n.ReadAt != nil,
			})
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{notificationID}/read",
		Summary:     "Mark one notification as read",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *MarkReadInput) (*MarkReadOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		ok, err := store.Notifications().MarkRead(ctx, userID, input.NotificationID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to mark notification read", err)
		}
		if !ok {
			return nil, huma.Error404NotFound("notification not found")
		}

		out := &MarkReadOutput{}
		out.Body.Read = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-all-notifications-read",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification as read",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, _ *struct{}) (*MarkAllReadOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		updated, err := store.Notifications().MarkAllRead(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to mark notifications read", err)
		}

		out := &MarkAllReadOutput{}
		out.Body.Updated = updated
		return out, nil
	})
}
