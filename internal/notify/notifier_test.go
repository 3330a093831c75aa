package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	slacklib "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/notify"
)

type recordingRepo struct {
	created   []*domain.Notification
	createErr error
}

func (r *recordingRepo) Create(_ context.Context, n *domain.Notification) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, n)
	return nil
}

func (r *recordingRepo) ListByUser(context.Context, uuid.UUID, int) ([]*domain.Notification, error) {
	return nil, nil
}

func (r *recordingRepo) MarkRead(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (r *recordingRepo) MarkAllRead(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}

type recordingPusher struct {
	texts   []string
	pushErr error
}

func (p *recordingPusher) Push(_ context.Context, text string) error {
	if p.pushErr != nil {
		return p.pushErr
	}
	p.texts = append(p.texts, text)
	return nil
}

func TestBoardAdded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	actor := &domain.User{ID: uuid.New(), Username: "mallory"}
	board := &domain.Board{ID: uuid.New(), Name: "Semester Project"}
	target := uuid.New()

	t.Run("stores notification and pushes", func(t *testing.T) {
		t.Parallel()
		repo := &recordingRepo{}
		pusher := &recordingPusher{}
		n := notify.New(repo, pusher)

		err := n.BoardAdded(ctx, target, actor, board, domain.BoardRoleEditor)
		require.NoError(t, err)

		require.Len(t, repo.created, 1)
		got := repo.created[0]
		assert.Equal(t, target, got.UserID)
		assert.Equal(t, domain.NotificationBoardAdded, got.Type)
		assert.Equal(t, board.ID.String(), got.BoardID)
		assert.Equal(t, "Semester Project", got.BoardName)
		assert.Equal(t, actor.ID.String(), got.ActorID)
		assert.Contains(t, got.Message, "mallory")
		assert.Contains(t, got.Message, "editor")
		assert.Nil(t, got.ReadAt)

		require.Len(t, pusher.texts, 1)
		assert.Equal(t, got.Message, pusher.texts[0])
	})

	t.Run("works without a pusher", func(t *testing.T) {
		t.Parallel()
		repo := &recordingRepo{}
		n := notify.New(repo, nil)

		err := n.BoardAdded(ctx, target, actor, board, domain.BoardRoleViewer)
		require.NoError(t, err)
		assert.Len(t, repo.created, 1)
	})

	t.Run("push failure is swallowed", func(t *testing.T) {
		t.Parallel()
		repo := &recordingRepo{}
		pusher := &recordingPusher{pushErr: errors.New("slack down")}
		n := notify.New(repo, pusher)

		err := n.BoardAdded(ctx, target, actor, board, domain.BoardRoleEditor)
		require.NoError(t, err)
		assert.Len(t, repo.created, 1)
	})

	t.Run("storage failure is returned", func(t *testing.T) {
		t.Parallel()
		repo := &recordingRepo{createErr: errors.New("redis down")}
		n := notify.New(repo, nil)

		err := n.BoardAdded(ctx, target, actor, board, domain.BoardRoleEditor)
		assert.Error(t, err)
	})
}

func TestCardDueDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	actor := &domain.User{ID: uuid.New(), Username: "mallory"}
	board := &domain.Board{ID: uuid.New(), Name: "Semester Project"}
	due := time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC)
	card := &domain.Card{ID: uuid.New(), Name: "Ship the parser", DueDate: &due}
	target := uuid.New()

	t.Run("stores card fields", func(t *testing.T) {
		t.Parallel()
		repo := &recordingRepo{}
		n := notify.New(repo, nil)

		err := n.CardDueDate(ctx, target, actor, board, card)
		require.NoError(t, err)

		require.Len(t, repo.created, 1)
		got := repo.created[0]
		assert.Equal(t, domain.NotificationCardDueDate, got.Type)
		assert.Equal(t, card.ID.String(), got.CardID)
		assert.Equal(t, "Ship the parser", got.CardTitle)
		assert.Equal(t, due.Format(time.RFC3339), got.DueDate)
		assert.Contains(t, got.Message, "Sep 15, 2026")
	})

	t.Run("no-op without a due date", func(t *testing.T) {
		t.Parallel()
		repo := &recordingRepo{}
		n := notify.New(repo, nil)

		bare := &domain.Card{ID: uuid.New(), Name: "No deadline"}
		err := n.CardDueDate(ctx, target, actor, board, bare)
		require.NoError(t, err)
		assert.Empty(t, repo.created)
	})
}

type fakeSlackAPI struct {
	channel string
	text    string
	err     error
}

func (f *fakeSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.channel = channelID
	// MsgOption internals are private; recording the channel is enough to
	// prove routing, the body is covered by the notifier tests.
	_ = options
	f.text = "posted"
	return channelID, "123.456", nil
}

func TestSlackPusher(t *testing.T) {
	t.Parallel()

	t.Run("posts to configured channel", func(t *testing.T) {
		t.Parallel()
		api := &fakeSlackAPI{}
		p := notify.NewSlackPusher(api, "#boards")

		err := p.Push(context.Background(), "card moved")
		require.NoError(t, err)
		assert.Equal(t, "#boards", api.channel)
	})

	t.Run("wraps api errors", func(t *testing.T) {
		t.Parallel()
		api := &fakeSlackAPI{err: errors.New("rate limited")}
		p := notify.NewSlackPusher(api, "#boards")

		err := p.Push(context.Background(), "card moved")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notify.SlackPusher.Push")
	})
}
