package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/epitrello/epitrello/internal/api/v1"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/events"
	"github.com/epitrello/epitrello/internal/history"
)

type stubHistoryLog struct {
	entries  []history.Entry
	gotLimit int
}

func (s *stubHistoryLog) Entries(_ context.Context, _ string, limit int) []history.Entry {
	s.gotLimit = limit
	return s.entries
}

func TestGetBoardHistory(t *testing.T) {
	t.Parallel()

	f := newBoardFixture()
	card := &domain.Card{ID: uuid.New(), Name: "Final draft"}
	list := &domain.List{ID: uuid.New(), BoardID: f.board.ID, Name: "Todo", Cards: []uuid.UUID{card.ID}}
	card.ListID = list.ID
	f.board.Lists = []uuid.UUID{list.ID}

	deletedCardID := uuid.NewString()

	histLog := &stubHistoryLog{entries: []history.Entry{
		{
			ID:        "entry-1",
			BoardID:   f.board.ID.String(),
			ActorID:   f.editor.ID.String(),
			Source:    events.SourceCard,
			Action:    "card.moved",
			Message:   fmt.Sprintf("moved card %s to list %s", card.ID, list.ID),
			CreatedAt: "2026-08-30T10:00:00Z",
			Metadata:  map[string]string{"cardId": card.ID.String(), "cardName": "First draft"},
		},
		{
			ID:        "entry-2",
			BoardID:   f.board.ID.String(),
			ActorID:   f.owner.ID.String(),
			Source:    events.SourceCard,
			Action:    "card.deleted",
			Message:   fmt.Sprintf("deleted card %s from list %s", deletedCardID, list.ID),
			CreatedAt: "2026-08-30T09:00:00Z",
			Metadata:  map[string]string{"cardId": deletedCardID, "cardName": "Scrapped idea"},
		},
	}}

	store := f.store()
	store.lists = listsByID(list)
	store.cards = cardsByID(card)

	_, api := humatest.New(t)
	v1.RegisterHistoryRoutes(api, store, checkerFor(store), histLog)

	resp := api.GetCtx(userCtx(f.viewer.ID), "/boards/"+f.board.ID.String()+"/history?limit=20")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 20, histLog.gotLimit)

	var body struct {
		Entries []struct {
			ActorName string `json:"actor_name"`
			Action    string `json:"action"`
			Message   string `json:"message"`
		} `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Entries, 2)

	// Live entities resolve to their current names, not the snapshot taken
	// at write time.
	assert.Equal(t, "bob", body.Entries[0].ActorName)
	assert.Equal(t, `moved card Final draft to list Todo`, body.Entries[0].Message)

	// Deleted entities fall back to the metadata snapshot.
	assert.Equal(t, "alice", body.Entries[1].ActorName)
	assert.Equal(t, `deleted card Scrapped idea from list Todo`, body.Entries[1].Message)

	t.Run("outsider_forbidden", func(t *testing.T) {
		resp := api.GetCtx(userCtx(f.outsider.ID), "/boards/"+f.board.ID.String()+"/history")
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("unknown_board", func(t *testing.T) {
		resp := api.GetCtx(userCtx(f.viewer.ID), "/boards/"+uuid.NewString()+"/history")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}
