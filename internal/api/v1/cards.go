package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/epitrello/epitrello/internal/access"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/events"
)

type CreateCardInput struct {
	ListID uuid.UUID `path:"listID" doc:"List ID"`
	Body   struct {
		Name        string `json:"name" minLength:"1" maxLength:"255" doc:"Card name"`
		Description string `json:"description,omitempty" maxLength:"16384" doc:"Card description"`
	}
}

type CardOutput struct {
	Body *CardResponse
}

type GetCardInput struct {
	CardID uuid.UUID `path:"cardID" doc:"Card ID"`
}

type UpdateCardInput struct {
	CardID uuid.UUID `path:"cardID" doc:"Card ID"`
	Body   struct {
		Name        *string                `json:"name,omitempty" maxLength:"255" doc:"Card name"`
		Description *string                `json:"description,omitempty" maxLength:"16384" doc:"Card description"`
		Assignees   []uuid.UUID            `json:"assignees,omitempty" doc:"Assigned user IDs"`
		DueDate     *string                `json:"due_date,omitempty" doc:"RFC 3339 due date, empty string clears it"`
		Checklist   []domain.ChecklistItem `json:"checklist,omitempty" doc:"Checklist items"`
	}
}

type MoveCardInput struct {
	CardID uuid.UUID `path:"cardID" doc:"Card ID"`
	Body   struct {
		ListID   uuid.UUID `json:"list" doc:"Destination list ID"`
		Position int       `json:"position" minimum:"0" doc:"Index in the destination list, clamped to its length"`
	}
}

type DeleteCardOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

type CardTagInput struct {
	CardID uuid.UUID `path:"cardID" doc:"Card ID"`
	TagID  uuid.UUID `path:"tagID" doc:"Tag ID"`
}

func RegisterCardRoutes(api huma.API, store DataStore, checker *access.Checker, bus EventBus, notifier Notifier) {
	huma.Register(api, huma.Operation{
		OperationID: "create-card",
		Method:      http.MethodPost,
		Path:        "/lists/{listID}/cards",
		Summary:     "Create a card in a list",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *CreateCardInput) (*CardOutput, error) {
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

		card := &domain.Card{
			ID:          uuid.New(),
			ListID:      list.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
		}
		if err := store.Cards().Create(ctx, card); err != nil {
			return nil, huma.Error500InternalServerError("failed to create card", err)
		}
		list.Cards = append(list.Cards, card.ID)
		if err := store.Lists().Update(ctx, list); err != nil {
			return nil, huma.Error500InternalServerError("failed to update list", err)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceCard,
			History: &events.HistoryInput{
				Action:  "card.created",
				Message: fmt.Sprintf("created card %s in list %s", card.ID, list.ID),
				Metadata: map[string]any{
					"cardId":   card.ID.String(),
					"cardName": card.Name,
					"listId":   list.ID.String(),
					"listName": list.Name,
				},
			},
		})

		return &CardOutput{Body: toCardResponse(card)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-card",
		Method:      http.MethodGet,
		Path:        "/cards/{cardID}",
		Summary:     "Get a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *GetCardInput) (*CardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		card, list, err := loadCard(ctx, store, input.CardID)
		if err != nil {
			return nil, err
		}
		if _, _, err := checker.Require(ctx, list.BoardID, userID, access.ModeView); err != nil {
			return nil, accessError(err)
		}
		return &CardOutput{Body: toCardResponse(card)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-card",
		Method:      http.MethodPatch,
		Path:        "/cards/{cardID}",
		Summary:     "Update a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *UpdateCardInput) (*CardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		card, list, err := loadCard(ctx, store, input.CardID)
		if err != nil {
			return nil, err
		}
		board, _, err := checker.Require(ctx, list.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		if input.Body.Name != nil && *input.Body.Name != "" {
			card.Name = *input.Body.Name
		}
		if input.Body.Description != nil {
			card.Description = *input.Body.Description
		}
		if input.Body.Assignees != nil {
			card.Assignees = input.Body.Assignees
		}
		if input.Body.Checklist != nil {
			card.Checklist = input.Body.Checklist
		}

		dueDateChanged := false
		if input.Body.DueDate != nil {
			if *input.Body.DueDate == "" {
				dueDateChanged = card.DueDate != nil
				card.DueDate = nil
			} else {
				due, err := time.Parse(time.RFC3339, *input.Body.DueDate)
				if err != nil {
					return nil, huma.Error422UnprocessableEntity("due_date must be RFC 3339")
				}
				dueDateChanged = card.DueDate == nil || !card.DueDate.Equal(due)
				card.DueDate = &due
			}
		}

		if err := store.Cards().Update(ctx, card); err != nil {
			return nil, huma.Error500InternalServerError("failed to update card", err)
		}

		if dueDateChanged && card.DueDate != nil {
			notifyAssignees(ctx, store, notifier, userID, board, card)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceCard,
			History: &events.HistoryInput{
				Action:  "card.updated",
				Message: fmt.Sprintf("updated card %s", card.ID),
				Metadata: map[string]any{
					"cardId":   card.ID.String(),
					"cardName": card.Name,
				},
			},
		})

		return &CardOutput{Body: toCardResponse(card)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-card",
		Method:      http.MethodPost,
		Path:        "/cards/{cardID}/move",
		Summary:     "Move a card to a position in a list",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *MoveCardInput) (*CardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		card, source, err := loadCard(ctx, store, input.CardID)
		if err != nil {
			return nil, err
		}
		board, _, err := checker.Require(ctx, source.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		dest := source
		if input.Body.ListID != source.ID {
			dest, err = loadList(ctx, store, input.Body.ListID)
			if err != nil {
				return nil, err
			}
			if dest.BoardID != source.BoardID {
				return nil, huma.Error422UnprocessableEntity("cards cannot move between boards")
			}
		}

		source.Cards = slices.DeleteFunc(source.Cards, func(id uuid.UUID) bool { return id == card.ID })
		pos := min(input.Body.Position, len(dest.Cards))
		dest.Cards = slices.Insert(dest.Cards, pos, card.ID)
		card.ListID = dest.ID

		if err := store.Lists().Update(ctx, source); err != nil {
			return nil, huma.Error500InternalServerError("failed to update source list", err)
		}
		if dest != source {
			if err := store.Lists().Update(ctx, dest); err != nil {
				return nil, huma.Error500InternalServerError("failed to update destination list", err)
			}
		}
		if err := store.Cards().Update(ctx, card); err != nil {
			return nil, huma.Error500InternalServerError("failed to update card", err)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceCard,
			History: &events.HistoryInput{
				Action:  "card.moved",
				Message: fmt.Sprintf("moved card %s to list %s", card.ID, dest.ID),
				Metadata: map[string]any{
					"cardId":   card.ID.String(),
					"cardName": card.Name,
					"listId":   dest.ID.String(),
					"listName": dest.Name,
					"position": pos,
				},
			},
		})

		return &CardOutput{Body: toCardResponse(card)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-card",
		Method:      http.MethodDelete,
		Path:        "/cards/{cardID}",
		Summary:     "Delete a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *GetCardInput) (*DeleteCardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		card, list, err := loadCard(ctx, store, input.CardID)
		if err != nil {
			return nil, err
		}
		board, _, err := checker.Require(ctx, list.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		if err := store.Cards().Delete(ctx, card.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete card", err)
		}
		list.Cards = slices.DeleteFunc(list.Cards, func(id uuid.UUID) bool { return id == card.ID })
		if err := store.Lists().Update(ctx, list); err != nil {
			return nil, huma.Error500InternalServerError("failed to update list", err)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceCard,
			History: &events.HistoryInput{
				Action:  "card.deleted",
				Message: fmt.Sprintf("deleted card %q from list %s", card.Name, list.ID),
				Metadata: map[string]any{
					"cardId":   card.ID.String(),
					"cardName": card.Name,
					"listId":   list.ID.String(),
					"listName": list.Name,
				},
			},
		})

		out := &DeleteCardOutput{}
		out.Body.Deleted = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-card-tag",
		Method:      http.MethodPut,
		Path:        "/cards/{cardID}/tags/{tagID}",
		Summary:     "Attach a tag to a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *CardTagInput) (*CardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		card, list, err := loadCard(ctx, store, input.CardID)
		if err != nil {
			return nil, err
		}
		board, _, err := checker.Require(ctx, list.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		tag, err := store.Tags().GetByID(ctx, input.TagID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tag not found")
			}
			return nil, huma.Error500InternalServerError("failed to load tag", err)
		}

		if !slices.Contains(card.Tags, tag.ID) {
			card.Tags = append(card.Tags, tag.ID)
			if err := store.Cards().Update(ctx, card); err != nil {
				return nil, huma.Error500InternalServerError("failed to update card", err)
			}

			bus.Notify(ctx, events.UpdateInput{
				BoardID: board.ID.String(),
				ActorID: userID.String(),
				Source:  events.SourceTag,
				History: &events.HistoryInput{
					Action:  "tag.attached",
					Message: fmt.Sprintf("tagged card %s with %q", card.ID, tag.Name),
					Metadata: map[string]any{
						"cardId":   card.ID.String(),
						"cardName": card.Name,
						"tagId":    tag.ID.String(),
						"tagName":  tag.Name,
					},
				},
			})
		}

		return &CardOutput{Body: toCardResponse(card)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "detach-card-tag",
		Method:      http.MethodDelete,
		Path:        "/cards/{cardID}/tags/{tagID}",
		Summary:     "Detach a tag from a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *CardTagInput) (*CardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		card, list, err := loadCard(ctx, store, input.CardID)
		if err != nil {
			return nil, err
		}
		board, _, err := checker.Require(ctx, list.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		before := len(card.Tags)
		card.Tags = slices.DeleteFunc(card.Tags, func(id uuid.UUID) bool { return id == input.TagID })
		if len(card.Tags) != before {
			if err := store.Cards().Update(ctx, card); err != nil {
				return nil, huma.Error500InternalServerError("failed to update card", err)
			}

			tagName := input.TagID.String()
			if tag, err := store.Tags().GetByID(ctx, input.TagID); err == nil {
				tagName = tag.Name
			}
			bus.Notify(ctx, events.UpdateInput{
				BoardID: board.ID.String(),
				ActorID: userID.String(),
				Source:  events.SourceTag,
				History: &events.HistoryInput{
					Action:  "tag.detached",
					Message: fmt.Sprintf("removed tag %q from card %s", tagName, card.ID),
					Metadata: map[string]any{
						"cardId":   card.ID.String(),
						"cardName": card.Name,
						"tagId":    input.TagID.String(),
						"tagName":  tagName,
					},
				},
			})
		}

		return &CardOutput{Body: toCardResponse(card)}, nil
	})
}

// loadCard resolves a card and the list it sits on. The list carries the
// board reference every access check needs.
func loadCard(ctx context.Context, store DataStore, cardID uuid.UUID) (*domain.Card, *domain.List, error) {
	card, err := store.Cards().GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, huma.Error404NotFound("card not found")
		}
		return nil, nil, huma.Error500InternalServerError("failed to load card", err)
	}
	list, err := store.Lists().GetByID(ctx, card.ListID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, huma.Error404NotFound("card not found")
		}
		return nil, nil, huma.Error500InternalServerError("failed to load list", err)
	}
	return card, list, nil
}

// notifyAssignees fans a due date notification out to every assignee except
// the actor. Delivery failures never fail the card write.
func notifyAssignees(ctx context.Context, store DataStore, notifier Notifier, actorID uuid.UUID, board *domain.Board, card *domain.Card) {
	actor, err := store.Users().GetByID(ctx, actorID)
	if err != nil {
		log.Warn().Err(err).Str("card_id", card.ID.String()).Msg("due date notification skipped")
		return
	}
	for _, assignee := range card.Assignees {
		if assignee == actorID {
			continue
		}
		if err := notifier.CardDueDate(ctx, assignee, actor, board, card); err != nil {
			log.Warn().Err(err).Str("card_id", card.ID.String()).Msg("due date notification failed")
		}
	}
}
