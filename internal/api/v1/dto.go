package v1

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/server/middleware"
)

// UserResponse is the wire shape of a user. Password hashes never leave the
// server.
type UserResponse struct {
	ID                uuid.UUID   `json:"uuid"`
	Username          string      `json:"username"`
	Email             string      `json:"email"`
	Role              string      `json:"role"`
	ProfilePictureURL string      `json:"profile_picture_url,omitempty"`
	Boards            []uuid.UUID `json:"boards"`
}

func toUserResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Role:              string(u.Role),
		ProfilePictureURL: u.ProfilePictureURL,
		Boards:            emptyIfNil(u.Boards),
	}
}

type BoardResponse struct {
	ID                 uuid.UUID   `json:"uuid"`
	Name               string      `json:"name"`
	Owner              uuid.UUID   `json:"owner"`
	Editors            []uuid.UUID `json:"editors"`
	Viewers            []uuid.UUID `json:"viewers"`
	Lists              []uuid.UUID `json:"lists"`
	BackgroundImageURL string      `json:"background_image_url,omitempty"`
	Theme              string      `json:"theme,omitempty"`
}

func toBoardResponse(b *domain.Board) *BoardResponse {
	return &BoardResponse{
		ID:                 b.ID,
		Name:               b.Name,
		Owner:              b.Owner,
		Editors:            emptyIfNil(b.Editors),
		Viewers:            emptyIfNil(b.Viewers),
		Lists:              emptyIfNil(b.Lists),
		BackgroundImageURL: b.BackgroundImageURL,
		Theme:              b.Theme,
	}
}

type ListResponse struct {
	ID      uuid.UUID   `json:"uuid"`
	BoardID uuid.UUID   `json:"board"`
	Name    string      `json:"name"`
	Cards   []uuid.UUID `json:"cards"`
}

func toListResponse(l *domain.List) *ListResponse {
	return &ListResponse{
		ID:      l.ID,
		BoardID: l.BoardID,
		Name:    l.Name,
		Cards:   emptyIfNil(l.Cards),
	}
}

type CardResponse struct {
	ID          uuid.UUID              `json:"uuid"`
	ListID      uuid.UUID              `json:"list"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Tags        []uuid.UUID            `json:"tags"`
	Assignees   []uuid.UUID            `json:"assignees"`
	DueDate     *string                `json:"due_date,omitempty"`
	Checklist   []domain.ChecklistItem `json:"checklist"`
}

func toCardResponse(c *domain.Card) *CardResponse {
	resp := &CardResponse{
		ID:          c.ID,
		ListID:      c.ListID,
		Name:        c.Name,
		Description: c.Description,
		Tags:        emptyIfNil(c.Tags),
		Assignees:   emptyIfNil(c.Assignees),
		Checklist:   c.Checklist,
	}
	if resp.Checklist == nil {
		resp.Checklist = []domain.ChecklistItem{}
	}
	if c.DueDate != nil {
		due := c.DueDate.UTC().Format(time.RFC3339)
		resp.DueDate = &due
	}
	return resp
}

type TagResponse struct {
	ID         uuid.UUID `json:"uuid"`
	Name       string    `json:"name"`
	Type       string    `json:"type,omitempty"`
	Attributes []string  `json:"attributes"`
}

func toTagResponse(t *domain.Tag) *TagResponse {
	attrs := t.Attributes
	if attrs == nil {
		attrs = []string{}
	}
	return &TagResponse{
		ID:         t.ID,
		Name:       t.Name,
		Type:       t.Type,
		Attributes: attrs,
	}
}

func emptyIfNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

// currentUser reads the authenticated user id injected by the auth
// middleware.
func currentUser(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, huma.Error401Unauthorized("missing authenticated user")
	}
	return userID, nil
}

// accessError maps access check failures onto HTTP problem responses.
func accessError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("board not found")
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("insufficient board access")
	default:
		return huma.Error500InternalServerError("failed to resolve board access", err)
	}
}
