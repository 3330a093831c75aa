package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/epitrello/epitrello/internal/access"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/events"
)

type CreateListInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Name string `json:"name" minLength:"1" maxLength:"255" doc:"List name"`
	}
}

type ListOutput struct {
	Body *ListResponse
}

type GetListInput struct {
	ListID uuid.UUID `path:"listID" doc:"List ID"`
}

type UpdateListInput struct {
	ListID uuid.UUID `path:"listID" doc:"List ID"`
	Body   struct {
		Name  *string     `json:"name,omitempty" maxLength:"255" doc:"List name"`
		Cards []uuid.UUID `json:"cards,omitempty" doc:"Card order, must be a permutation of the current cards"`
	}
}

type DeleteListOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

func RegisterListRoutes(api huma.API, store DataStore, checker *access.Checker, bus EventBus) {
	huma.Register(api, huma.Operation{
		OperationID: "create-list",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/lists",
		Summary:     "Create a list on a board",
		Tags:        []string{"Lists"},
	}, func(ctx context.Context, input *CreateListInput) (*ListOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		list := &domain.List{
			ID:      uuid.New(),
			BoardID: board.ID,
			Name:    input.Body.Name,
		}
		if err := store.Lists().Create(ctx, list); err != nil {
			return nil, huma.Error500InternalServerError("failed to create list", err)
		}
		board.Lists = append(board.Lists, list.ID)
		if err := store.Boards().Update(ctx, board); err != nil {
			return nil, huma.Error500InternalServerError("failed to update board", err)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceList,
			History: &events.HistoryInput{
				Action:  "list.created",
				Message: fmt.Sprintf("created list %s", list.ID),
				Metadata: map[string]any{
					"listId":   list.ID.String(),
					"listName": list.Name,
				},
			},
		})

		return &ListOutput{Body: toListResponse(list)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-list",
		Method:      http.MethodGet,
		Path:        "/lists/{listID}",
		Summary:     "Get a list",
		Tags:        []string{"Lists"},
	}, func(ctx context.Context, input *GetListInput) (*ListOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		list, err := loadList(ctx, store, input.ListID)
		if err != nil {
			return nil, err
		}
		if _, _, err := checker.Require(ctx, list.BoardID, userID, access.ModeView); err != nil {
			return nil, accessError(err)
		}
		return &ListOutput{Body: toListResponse(list)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-list",
		Method:      http.MethodPatch,
		Path:        "/lists/{listID}",
		Summary:     "Rename a list or reorder its cards",
		Tags:        []string{"Lists"},
	}, func(ctx context.Context, input *UpdateListInput) (*ListOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		list, err := loadList(ctx, store, input.ListID)
		if err != nil {
			return nil, err
		}
		board, _, err := checker.Require(ctx, list.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		action := "list.updated"
		message := fmt.Sprintf("updated list %s", list.ID)
		if input.Body.Name != nil && *input.Body.Name != "" && *input.Body.Name != list.Name {
			action = "list.renamed"
			message = fmt.Sprintf("renamed list %s to %q", list.ID, *input.Body.Name)
			list.Name = *input.Body.Name
		}
		if input.Body.Cards != nil {
			if !samePermutation(list.Cards, input.Body.Cards) {
				return nil, huma.Error422UnprocessableEntity("cards must be a permutation of the current cards")
			}
			list.Cards = input.Body.Cards
		}
		if err := store.Lists().Update(ctx, list); err != nil {
			return nil, huma.Error500InternalServerError("failed to update list", err)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceList,
			History: &events.HistoryInput{
				Action:  action,
				Message: message,
				Metadata: map[string]any{
					"listId":   list.ID.String(),
					"listName": list.Name,
				},
			},
		})

		return &ListOutput{Body: toListResponse(list)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-list",
		Method:      http.MethodDelete,
		Path:        "/lists/{listID}",
		Summary:     "Delete a list and its cards",
		Tags:        []string{"Lists"},
	}, func(ctx context.Context, input *GetListInput) (*DeleteListOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		list, err := loadList(ctx, store, input.ListID)
		if err != nil {
			return nil, err
		}
		board, _, err := checker.Require(ctx, list.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		for _, cardID := range list.Cards {
			if err := store.Cards().Delete(ctx, cardID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error500InternalServerError("failed to delete cards", err)
			}
		}
		if err := store.Lists().Delete(ctx, list.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete list", err)
		}
		board.Lists = slices.DeleteFunc(board.Lists, func(id uuid.UUID) bool { return id == list.ID })
		if err := store.Boards().Update(ctx, board); err != nil {
			return nil, huma.Error500InternalServerError("failed to update board", err)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceList,
			History: &events.HistoryInput{
				Action:  "list.deleted",
				Message: fmt.Sprintf("deleted list %q with %d cards", list.Name, len(list.Cards)),
				Metadata: map[string]any{
					"listId":   list.ID.String(),
					"listName": list.Name,
				},
			},
		})

		out := &DeleteListOutput{}
		out.Body.Deleted = true
		return out, nil
	})
}

func loadList(ctx context.Context, store DataStore, listID uuid.UUID) (*domain.List, error) {
	list, err := store.Lists().GetByID(ctx, listID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("list not found")
		}
		return nil, huma.Error500InternalServerError("failed to load list", err)
	}
	return list, nil
}

// samePermutation reports whether b contains exactly the elements of a.
func samePermutation(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uuid.UUID]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}
