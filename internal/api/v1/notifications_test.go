package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/epitrello/epitrello/internal/api/v1"
	"github.com/epitrello/epitrello/internal/domain"
)

func TestListNotifications(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	readAt := time.Now().UTC()
	stored := []*domain.Notification{
		{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      domain.NotificationBoardAdded,
			Title:     "Added to a board",
			Message:   "alice added you to \"Semester project\" as editor.",
			BoardID:   uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		},
		{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      domain.NotificationCardDueDate,
			Title:     "Due date set",
			CreatedAt: time.Now().UTC(),
			ReadAt:    &readAt,
		},
	}

	var gotLimit int
	store := &mockDataStore{notifications: &mockNotificationRepo{
		listByUserFunc: func(_ context.Context, id uuid.UUID, limit int) ([]*domain.Notification, error) {
			assert.Equal(t, userID, id)
			gotLimit = limit
			return stored, nil
		},
	}}

	_, api := humatest.New(t)
	v1.RegisterNotificationRoutes(api, store)

	resp := api.GetCtx(userCtx(userID), "/notifications")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 50, gotLimit, "default limit")

	var body struct {
		Notifications []struct {
			Type  string `json:"type"`
			Title string `json:"title"`
			Read  bool   `json:"read"`
		} `json:"notifications"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Notifications, 2)
	assert.Equal(t, "board.added", body.Notifications[0].Type)
	assert.False(t, body.Notifications[0].Read)
	assert.True(t, body.Notifications[1].Read)

	t.Run("explicit_limit", func(t *testing.T) {
		resp := api.GetCtx(userCtx(userID), "/notifications?limit=5")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 5, gotLimit)
	})
}

func TestMarkNotificationRead(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	notifID := uuid.New()

	store := &mockDataStore{notifications: &mockNotificationRepo{
		markReadFunc: func(_ context.Context, uid, id uuid.UUID) (bool, error) {
			assert.Equal(t, userID, uid)
			return id == notifID, nil
		},
	}}

	_, api := humatest.New(t)
	v1.RegisterNotificationRoutes(api, store)

	resp := api.PostCtx(userCtx(userID), "/notifications/"+notifID.String()+"/read", map[string]any{})
	assert.Equal(t, http.StatusOK, resp.Code)

	t.Run("not_owned", func(t *testing.T) {
		resp := api.PostCtx(userCtx(userID), "/notifications/"+uuid.NewString()+"/read", map[string]any{})
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestMarkAllNotificationsRead(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	store := &mockDataStore{notifications: &mockNotificationRepo{
		markAllReadFunc: func(_ context.Context, uid uuid.UUID) (int, error) {
			assert.Equal(t, userID, uid)
			return 3, nil
		},
	}}

	_, api := humatest.New(t)
	v1.RegisterNotificationRoutes(api, store)

	resp := api.PostCtx(userCtx(userID), "/notifications/read-all", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Updated int `json:"updated"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.Updated)
}
