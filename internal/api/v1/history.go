package v1

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/epitrello/epitrello/internal/access"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/history"
)

type GetHistoryInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Limit   int       `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum entries to return"`
}

// HistoryEntryResponse is one audit entry with identifiers resolved to
// labels. Raw fields are kept alongside so clients can still link entities.
type HistoryEntryResponse struct {
	ID        string            `json:"id"`
	ActorID   string            `json:"actor_id,omitempty"`
	ActorName string            `json:"actor_name,omitempty"`
	Source    string            `json:"source"`
	Action    string            `json:"action"`
	Message   string            `json:"message"`
	CreatedAt string            `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type GetHistoryOutput struct {
	Body struct {
		Entries []*HistoryEntryResponse `json:"entries"`
	}
}

func RegisterHistoryRoutes(api huma.API, store DataStore, checker *access.Checker, histLog HistoryLog) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board-history",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/history",
		Summary:     "Get the recent activity feed of a board",
		Tags:        []string{"History"},
	}, func(ctx context.Context, input *GetHistoryInput) (*GetHistoryOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeView)
		if err != nil {
			return nil, accessError(err)
		}

		entries := histLog.Entries(ctx, board.ID.String(), input.Limit)
		labels := boardLabels(ctx, store, board, entries)

		out := &GetHistoryOutput{}
		out.Body.Entries = make([]*HistoryEntryResponse, 0, len(entries))
		for _, entry := range entries {
			out.Body.Entries = append(out.Body.Entries, &HistoryEntryResponse{
				ID:        entry.ID,
				ActorID:   entry.ActorID,
				ActorName: labels[entry.ActorID],
				Source:    string(entry.Source),
				Action:    entry.Action,
				Message:   resolveLabels(entry.Message, labels),
				CreatedAt: entry.CreatedAt,
				Metadata:  entry.Metadata,
			})
		}
		return out, nil
	})
}

// boardLabels builds the identifier-to-label table used to render history
// messages. Live entities resolve to their current names; deleted ones fall
// back to the name snapshots carried in entry metadata, so the older entries
// keep reading sensibly after a rename or delete.
func boardLabels(ctx context.Context, store DataStore, board *domain.Board, entries []history.Entry) map[string]string {
	labels := map[string]string{
		board.ID.String(): board.Name,
	}

	// Snapshots first so live lookups below can override them.
	for _, entry := range entries {
		for key, id := range entry.Metadata {
			name, ok := entry.Metadata[strings.TrimSuffix(key, "Id")+"Name"]
			if !ok || !strings.HasSuffix(key, "Id") {
				continue
			}
			labels[id] = name
		}
	}

	memberIDs := map[uuid.UUID]struct{}{board.Owner: {}}
	for _, id := range board.Editors {
		memberIDs[id] = struct{}{}
	}
	for _, id := range board.Viewers {
		memberIDs[id] = struct{}{}
	}
	for _, entry := range entries {
		if entry.ActorID == "" {
			continue
		}
		if id, err := uuid.Parse(entry.ActorID); err == nil {
			memberIDs[id] = struct{}{}
		}
	}
	for id := range memberIDs {
		if user, err := store.Users().GetByID(ctx, id); err == nil {
			labels[id.String()] = user.DisplayName()
		}
	}

	for _, listID := range board.Lists {
		list, err := store.Lists().GetByID(ctx, listID)
		if err != nil {
			continue
		}
		labels[list.ID.String()] = list.Name
		for _, cardID := range list.Cards {
			if card, err := store.Cards().GetByID(ctx, cardID); err == nil {
				labels[card.ID.String()] = card.Name
			}
		}
	}

	return labels
}

// resolveLabels substitutes every known identifier in the message with its
// label, longest identifier first so no identifier is clobbered by a
// replacement inside a longer one.
func resolveLabels(message string, labels map[string]string) string {
	if len(labels) == 0 {
		return message
	}
	ids := make([]string, 0, len(labels))
	for id, label := range labels {
		if id == "" || label == "" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) > len(ids[j])
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		message = strings.ReplaceAll(message, id, labels[id])
	}
	return message
}
