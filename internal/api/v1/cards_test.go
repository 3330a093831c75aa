package v1_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/epitrello/epitrello/internal/api/v1"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/events"
)

func TestCreateCard(t *testing.T) {
	t.Parallel()

	f := newBoardFixture()
	list := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Todo"}
	store := f.store()
	var created *domain.Card
	cards := &mockCardRepo{
		createFunc: func(_ context.Context, c *domain.Card) error {
			created = c
			return nil
		},
	}
	store.cards = cards
	store.lists = listsByID(list)
	bus := &recordingBus{}

	_, api := humatest.New(t)
	v1.RegisterCardRoutes(api, store, checkerFor(store), bus, &recordingNotifier{})

	resp := api.PostCtx(userCtx(f.editor.ID), "/lists/"+list.ID.String()+"/cards", map[string]any{
		"name":        "Write report",
		"description": "Chapter 1 draft",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	require.NotNil(t, created)
	assert.Equal(t, "Write report", created.Name)
	assert.Equal(t, list.ID, created.ListID)
	assert.Contains(t, list.Cards, created.ID)

	inputs := bus.all()
	require.Len(t, inputs, 1)
	assert.Equal(t, events.SourceCard, inputs[0].Source)
	assert.Equal(t, "card.created", inputs[0].History.Action)

	t.Run("viewer_forbidden", func(t *testing.T) {
		resp := api.PostCtx(userCtx(f.viewer.ID), "/lists/"+list.ID.String()+"/cards", map[string]any{
			"name": "Nope",
		})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestUpdateCardDueDate(t *testing.T) {
	t.Parallel()

	f := newBoardFixture()
	card := &domain.Card{
		ID:        uuid.New(),
		Name:      "Write report",
		Assignees: []uuid.UUID{f.editor.ID, f.viewer.ID},
	}
	list := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Todo", Cards: []uuid.UUID{card.ID}}
	card.ListID = list.ID

	store := f.store()
	store.cards = cardsByID(card)
	store.lists = listsByID(list)
	notifier := &recordingNotifier{}

	_, api := humatest.New(t)
	v1.RegisterCardRoutes(api, store, checkerFor(store), &recordingBus{}, notifier)

	due := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	resp := api.PatchCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String(), map[string]any{
		"due_date": due.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	require.NotNil(t, card.DueDate)
	assert.True(t, card.DueDate.Equal(due))

	// The actor is assigned too but must not be notified about their own edit.
	require.Len(t, notifier.dueDates, 1)
	assert.Equal(t, f.viewer.ID, notifier.dueDates[0].userID)
	assert.Equal(t, card.ID, notifier.dueDates[0].cardID)

	t.Run("same_due_date_is_quiet", func(t *testing.T) {
		resp := api.PatchCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String(), map[string]any{
			"due_date": due.Format(time.RFC3339),
		})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, notifier.dueDates, 1, "unchanged due date must not re-notify")
	})

	t.Run("clear_due_date", func(t *testing.T) {
		resp := api.PatchCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String(), map[string]any{
			"due_date": "",
		})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Nil(t, card.DueDate)
		assert.Len(t, notifier.dueDates, 1, "clearing must not notify")
	})

	t.Run("invalid_due_date", func(t *testing.T) {
		resp := api.PatchCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String(), map[string]any{
			"due_date": "next tuesday",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestMoveCard(t *testing.T) {
	t.Parallel()

	t.Run("across_lists", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		card := &domain.Card{ID: uuid.New(), Name: "Write report"}
		source := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Todo", Cards: []uuid.UUID{card.ID}}
		existing := uuid.New()
		dest := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Done", Cards: []uuid.UUID{existing}}
		card.ListID = source.ID

		store := f.store()
		store.cards = cardsByID(card)
		store.lists = listsByID(source, dest)
		bus := &recordingBus{}

		_, api := humatest.New(t)
		v1.RegisterCardRoutes(api, store, checkerFor(store), bus, &recordingNotifier{})

		resp := api.PostCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String()+"/move", map[string]any{
			"list":     dest.ID.String(),
			"position": 0,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		assert.Empty(t, source.Cards)
		assert.Equal(t, []uuid.UUID{card.ID, existing}, dest.Cards)
		assert.Equal(t, dest.ID, card.ListID)

		inputs := bus.all()
		require.Len(t, inputs, 1)
		assert.Equal(t, "card.moved", inputs[0].History.Action)
		assert.Equal(t, "Done", inputs[0].History.Metadata["listName"])
	})

	t.Run("position_clamped", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		card := &domain.Card{ID: uuid.New(), Name: "Write report"}
		list := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Todo", Cards: []uuid.UUID{card.ID}}
		card.ListID = list.ID

		store := f.store()
		store.cards = cardsByID(card)
		store.lists = listsByID(list)

		_, api := humatest.New(t)
		v1.RegisterCardRoutes(api, store, checkerFor(store), &recordingBus{}, &recordingNotifier{})

		resp := api.PostCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String()+"/move", map[string]any{
			"list":     list.ID.String(),
			"position": 99,
		})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []uuid.UUID{card.ID}, list.Cards)
	})

	t.Run("across_boards_rejected", func(t *testing.T) {
		t.Parallel()

		f := newBoardFixture()
		card := &domain.Card{ID: uuid.New(), Name: "Write report"}
		source := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Todo", Cards: []uuid.UUID{card.ID}}
		foreign := &domain.List{ID: uuid.New(), BoardID: uuid.New(), Name: "Other"}
		card.ListID = source.ID

		store := f.store()
		store.cards = cardsByID(card)
		store.lists = listsByID(source, foreign)

		_, api := humatest.New(t)
		v1.RegisterCardRoutes(api, store, checkerFor(store), &recordingBus{}, &recordingNotifier{})

		resp := api.PostCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String()+"/move", map[string]any{
			"list":     foreign.ID.String(),
			"position": 0,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

func TestDeleteCard(t *testing.T) {
	t.Parallel()

	f := newBoardFixture()
	card := &domain.Card{ID: uuid.New(), Name: "Write report"}
	list := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Todo", Cards: []uuid.UUID{card.ID}}
	card.ListID = list.ID

	var deleted bool
	store := f.store()
	cards := cardsByID(card)
	cards.deleteFunc = func(_ context.Context, id uuid.UUID) error {
		deleted = true
		assert.Equal(t, card.ID, id)
		return nil
	}
	store.cards = cards
	store.lists = listsByID(list)
	bus := &recordingBus{}

	_, api := humatest.New(t)
	v1.RegisterCardRoutes(api, store, checkerFor(store), bus, &recordingNotifier{})

	resp := api.DeleteCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String())
	require.Equal(t, http.StatusOK, resp.Code)

	assert.True(t, deleted)
	assert.Empty(t, list.Cards)

	inputs := bus.all()
	require.Len(t, inputs, 1)
	assert.Equal(t, "card.deleted", inputs[0].History.Action)
}

func TestCardTags(t *testing.T) {
	t.Parallel()

	f := newBoardFixture()
	tag := &domain.Tag{ID: uuid.New(), Name: "urgent"}
	card := &domain.Card{ID: uuid.New(), Name: "Write report"}
	list := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Todo", Cards: []uuid.UUID{card.ID}}
	card.ListID = list.ID

	store := f.store()
	store.cards = cardsByID(card)
	store.lists = listsByID(list)
	store.tags = &mockTagRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Tag, error) {
			if id == tag.ID {
				return tag, nil
			}
			return nil, domain.ErrNotFound
		},
	}
	bus := &recordingBus{}

	_, api := humatest.New(t)
	v1.RegisterCardRoutes(api, store, checkerFor(store), bus, &recordingNotifier{})

	resp := api.PutCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String()+"/tags/"+tag.ID.String())
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, card.Tags, tag.ID)

	inputs := bus.all()
	require.Len(t, inputs, 1)
	assert.Equal(t, events.SourceTag, inputs[0].Source)
	assert.Equal(t, "tag.attached", inputs[0].History.Action)

	t.Run("attach_is_idempotent", func(t *testing.T) {
		resp := api.PutCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String()+"/tags/"+tag.ID.String())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, card.Tags, 1)
		assert.Len(t, bus.all(), 1, "re-attaching must not re-publish")
	})

	t.Run("unknown_tag", func(t *testing.T) {
		resp := api.PutCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String()+"/tags/"+uuid.NewString())
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("detach", func(t *testing.T) {
		resp := api.DeleteCtx(userCtx(f.editor.ID), "/cards/"+card.ID.String()+"/tags/"+tag.ID.String())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Empty(t, card.Tags)

		inputs := bus.all()
		require.Len(t, inputs, 2)
		assert.Equal(t, "tag.detached", inputs[1].History.Action)
	})
}
