package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/epitrello/epitrello/internal/access"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/events"
)

type ListBoardsOutput struct {
	Body struct {
		Owned  []access.BoardItem `json:"owned"`
		Shared []access.BoardItem `json:"shared"`
	}
}

type CreateBoardInput struct {
	Body struct {
		Name               string `json:"name" minLength:"1" maxLength:"255" doc:"Board name"`
		BackgroundImageURL string `json:"background_image_url,omitempty" maxLength:"2048" doc:"Background image URL"`
		Theme              string `json:"theme,omitempty" maxLength:"64" doc:"Board color theme"`
	}
}

type BoardOutput struct {
	Body *BoardResponse
}

type GetBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

// FullBoard is the aggregate the board page renders from: the board plus
// every list and card on it and the tags the cards reference.
type FullBoard struct {
	Board *BoardResponse  `json:"board"`
	Lists []*ListResponse `json:"lists"`
	Cards []*CardResponse `json:"cards"`
	Tags  []*TagResponse  `json:"tags"`
}

type FullBoardOutput struct {
	Body *FullBoard
}

type UpdateBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Name               *string `json:"name,omitempty" maxLength:"255" doc:"Board name"`
		BackgroundImageURL *string `json:"background_image_url,omitempty" maxLength:"2048" doc:"Background image URL"`
		Theme              *string `json:"theme,omitempty" maxLength:"64" doc:"Board color theme"`
	}
}

type DeleteBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

type DeleteBoardOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

type ClearBoardOutput struct {
	Body struct {
		ListsDeleted int `json:"lists_deleted"`
		CardsDeleted int `json:"cards_deleted"`
	}
}

type AddMemberInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	Body    struct {
		Email string `json:"email" minLength:"3" maxLength:"255" doc:"Email of the user to add"`
		Role  string `json:"role" enum:"editor,viewer" doc:"Board role to grant"`
	}
}

type RemoveMemberInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
	UserID  uuid.UUID `path:"userID" doc:"Member user ID"`
}

func RegisterBoardRoutes(api huma.API, store DataStore, checker *access.Checker, bus EventBus, notifier Notifier) {
	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards visible to the current user",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *struct{}) (*ListBoardsOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		owned, shared, err := checker.VisibleBoards(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list boards", err)
		}

		out := &ListBoardsOutput{}
		out.Body.Owned = owned
		out.Body.Shared = shared
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-board",
		Method:      http.MethodPost,
		Path:        "/boards",
		Summary:     "Create a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *CreateBoardInput) (*BoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board := &domain.Board{
			ID:                 uuid.New(),
			Name:               input.Body.Name,
			Owner:              userID,
			BackgroundImageURL: input.Body.BackgroundImageURL,
			Theme:              input.Body.Theme,
		}
		if err := store.Boards().Create(ctx, board); err != nil {
			return nil, huma.Error500InternalServerError("failed to create board", err)
		}
		addBoardToUser(ctx, store, userID, board.ID)

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceBoard,
			History: &events.HistoryInput{
				Action:   "board.created",
				Message:  fmt.Sprintf("created board %s", board.ID),
				Metadata: map[string]any{"boardName": board.Name},
			},
		})

		return &BoardOutput{Body: toBoardResponse(board)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}",
		Summary:     "Get a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*BoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeView)
		if err != nil {
			return nil, accessError(err)
		}
		return &BoardOutput{Body: toBoardResponse(board)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board-full",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/full",
		Summary:     "Get a board with all its lists, cards and tags",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*FullBoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeView)
		if err != nil {
			return nil, accessError(err)
		}

		full := &FullBoard{
			Board: toBoardResponse(board),
			Lists: []*ListResponse{},
			Cards: []*CardResponse{},
			Tags:  []*TagResponse{},
		}

		tagIDs := map[uuid.UUID]struct{}{}
		for _, listID := range board.Lists {
			list, err := store.Lists().GetByID(ctx, listID)
			if err != nil {
				// Dangling list references are skipped rather than failing
				// the whole page.
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, huma.Error500InternalServerError("failed to load lists", err)
			}
			full.Lists = append(full.Lists, toListResponse(list))

			for _, cardID := range list.Cards {
				card, err := store.Cards().GetByID(ctx, cardID)
				if err != nil {
					if errors.Is(err, domain.ErrNotFound) {
						continue
					}
					return nil, huma.Error500InternalServerError("failed to load cards", err)
				}
				full.Cards = append(full.Cards, toCardResponse(card))
				for _, tagID := range card.Tags {
					tagIDs[tagID] = struct{}{}
				}
			}
		}

		for tagID := range tagIDs {
			tag, err := store.Tags().GetByID(ctx, tagID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, huma.Error500InternalServerError("failed to load tags", err)
			}
			full.Tags = append(full.Tags, toTagResponse(tag))
		}
		slices.SortFunc(full.Tags, func(a, b *TagResponse) int {
			return slices.Compare(a.ID[:], b.ID[:])
		})

		return &FullBoardOutput{Body: full}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-board",
		Method:      http.MethodPatch,
		Path:        "/boards/{boardID}",
		Summary:     "Update board settings",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *UpdateBoardInput) (*BoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeEdit)
		if err != nil {
			return nil, accessError(err)
		}

		if input.Body.Name != nil && *input.Body.Name != "" {
			board.Name = *input.Body.Name
		}
		if input.Body.BackgroundImageURL != nil {
			board.BackgroundImageURL = *input.Body.BackgroundImageURL
		}
		if input.Body.Theme != nil {
			board.Theme = *input.Body.Theme
		}
		if err := store.Boards().Update(ctx, board); err != nil {
			return nil, huma.Error500InternalServerError("failed to update board", err)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceBoard,
			History: &events.HistoryInput{
				Action:   "board.updated",
				Message:  "updated board settings",
				Metadata: map[string]any{"boardName": board.Name},
			},
		})

		return &BoardOutput{Body: toBoardResponse(board)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board",
		Method:      http.MethodDelete,
		Path:        "/boards/{boardID}",
		Summary:     "Delete a board and everything on it",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *DeleteBoardInput) (*DeleteBoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeManage)
		if err != nil {
			return nil, accessError(err)
		}

		if _, _, err := deleteBoardContents(ctx, store, board); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete board contents", err)
		}
		if err := store.Boards().Delete(ctx, board.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete board", err)
		}

		removeBoardFromUser(ctx, store, board.Owner, board.ID)
		for _, memberID := range slices.Concat(board.Editors, board.Viewers) {
			removeBoardFromUser(ctx, store, memberID, board.ID)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceBoard,
			History: &events.HistoryInput{
				Action:   "board.deleted",
				Message:  fmt.Sprintf("deleted board %s", board.ID),
				Metadata: map[string]any{"boardName": board.Name},
			},
		})

		out := &DeleteBoardOutput{}
		out.Body.Deleted = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-board",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/clear",
		Summary:     "Remove every list and card from a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*ClearBoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeManage)
		if err != nil {
			return nil, accessError(err)
		}

		listsDeleted, cardsDeleted, err := deleteBoardContents(ctx, store, board)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to clear board", err)
		}
		board.Lists = nil
		if err := store.Boards().Update(ctx, board); err != nil {
			return nil, huma.Error500InternalServerError("failed to update board", err)
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceBoard,
			History: &events.HistoryInput{
				Action:  "board.cleared",
				Message: fmt.Sprintf("cleared the board, removing %d lists and %d cards", listsDeleted, cardsDeleted),
			},
		})

		out := &ClearBoardOutput{}
		out.Body.ListsDeleted = listsDeleted
		out.Body.CardsDeleted = cardsDeleted
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-board-member",
		Method:      http.MethodPut,
		Path:        "/boards/{boardID}/members",
		Summary:     "Share a board with another user",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *AddMemberInput) (*BoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeManage)
		if err != nil {
			return nil, accessError(err)
		}

		member, err := store.Users().GetByEmail(ctx, input.Body.Email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("no account with this email")
			}
			return nil, huma.Error500InternalServerError("failed to look up user", err)
		}
		if member.ID == board.Owner {
			return nil, huma.Error409Conflict("the owner already has full access")
		}

		role := domain.BoardRole(input.Body.Role)
		board.Editors = slices.DeleteFunc(board.Editors, func(id uuid.UUID) bool { return id == member.ID })
		board.Viewers = slices.DeleteFunc(board.Viewers, func(id uuid.UUID) bool { return id == member.ID })
		switch role {
		case domain.BoardRoleEditor:
			board.Editors = append(board.Editors, member.ID)
		case domain.BoardRoleViewer:
			board.Viewers = append(board.Viewers, member.ID)
		default:
			return nil, huma.Error422UnprocessableEntity("role must be editor or viewer")
		}
		if err := store.Boards().Update(ctx, board); err != nil {
			return nil, huma.Error500InternalServerError("failed to update board", err)
		}
		addBoardToUser(ctx, store, member.ID, board.ID)

		actor, err := store.Users().GetByID(ctx, userID)
		if err == nil {
			if err := notifier.BoardAdded(ctx, member.ID, actor, board, role); err != nil {
				log.Warn().Err(err).Str("board_id", board.ID.String()).Msg("board share notification failed")
			}
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceSharing,
			History: &events.HistoryInput{
				Action:  "member.added",
				Message: fmt.Sprintf("added %s as %s", member.ID, role),
				Metadata: map[string]any{
					"memberId":   member.ID.String(),
					"memberName": member.DisplayName(),
					"role":       string(role),
				},
			},
		})

		return &BoardOutput{Body: toBoardResponse(board)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-board-member",
		Method:      http.MethodDelete,
		Path:        "/boards/{boardID}/members/{userID}",
		Summary:     "Revoke a user's access to a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *RemoveMemberInput) (*BoardOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		board, _, err := checker.Require(ctx, input.BoardID, userID, access.ModeManage)
		if err != nil {
			return nil, accessError(err)
		}
		if input.UserID == board.Owner {
			return nil, huma.Error409Conflict("the owner cannot be removed")
		}

		before := len(board.Editors) + len(board.Viewers)
		board.Editors = slices.DeleteFunc(board.Editors, func(id uuid.UUID) bool { return id == input.UserID })
		board.Viewers = slices.DeleteFunc(board.Viewers, func(id uuid.UUID) bool { return id == input.UserID })
		if len(board.Editors)+len(board.Viewers) == before {
			return nil, huma.Error404NotFound("user is not a member of this board")
		}
		if err := store.Boards().Update(ctx, board); err != nil {
			return nil, huma.Error500InternalServerError("failed to update board", err)
		}
		removeBoardFromUser(ctx, store, input.UserID, board.ID)

		memberName := input.UserID.String()
		if member, err := store.Users().GetByID(ctx, input.UserID); err == nil {
			memberName = member.DisplayName()
		}

		bus.Notify(ctx, events.UpdateInput{
			BoardID: board.ID.String(),
			ActorID: userID.String(),
			Source:  events.SourceSharing,
			History: &events.HistoryInput{
				Action:  "member.removed",
				Message: fmt.Sprintf("removed %s from the board", input.UserID),
				Metadata: map[string]any{
					"memberId":   input.UserID.String(),
					"memberName": memberName,
				},
			},
		})

		return &BoardOutput{Body: toBoardResponse(board)}, nil
	})
}

// deleteBoardContents removes every list and card on the board. The board
// record itself is left to the caller.
func deleteBoardContents(ctx context.Context, store DataStore, board *domain.Board) (listsDeleted, cardsDeleted int, err error) {
	for _, listID := range board.Lists {
		list, err := store.Lists().GetByID(ctx, listID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return listsDeleted, cardsDeleted, err
		}
		for _, cardID := range list.Cards {
			if err := store.Cards().Delete(ctx, cardID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return listsDeleted, cardsDeleted, err
			}
			cardsDeleted++
		}
		if err := store.Lists().Delete(ctx, listID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return listsDeleted, cardsDeleted, err
		}
		listsDeleted++
	}
	return listsDeleted, cardsDeleted, nil
}

// addBoardToUser and removeBoardFromUser keep the per-user board index in
// step with board membership. Failures are logged, not surfaced: the board
// write already succeeded and the index self-heals on the next update.
func addBoardToUser(ctx context.Context, store DataStore, userID, boardID uuid.UUID) {
	user, err := store.Users().GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("board index update skipped")
		return
	}
	if slices.Contains(user.Boards, boardID) {
		return
	}
	user.Boards = append(user.Boards, boardID)
	if err := store.Users().Update(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("board index update failed")
	}
}

func removeBoardFromUser(ctx context.Context, store DataStore, userID, boardID uuid.UUID) {
	user, err := store.Users().GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("board index update skipped")
		return
	}
	next := slices.DeleteFunc(user.Boards, func(id uuid.UUID) bool { return id == boardID })
	if len(next) == len(user.Boards) {
		return
	}
	user.Boards = next
	if err := store.Users().Update(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("board index update failed")
	}
}
