package domain

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// BoardRole is a user's relationship to a single board.
type BoardRole string

const (
	BoardRoleOwner  BoardRole = "owner"
	BoardRoleEditor BoardRole = "editor"
	BoardRoleViewer BoardRole = "viewer"
)

// CanView reports whether the role grants read access.
func (r BoardRole) CanView() bool {
	return r == BoardRoleOwner || r == BoardRoleEditor || r == BoardRoleViewer
}

// CanEdit reports whether the role grants write access to lists/cards/tags.
func (r BoardRole) CanEdit() bool {
	return r == BoardRoleOwner || r == BoardRoleEditor
}

// CanManage reports whether the role grants sharing/deletion rights.
func (r BoardRole) CanManage() bool {
	return r == BoardRoleOwner
}

type Board struct {
	ID                 uuid.UUID
	Name               string
	Owner              uuid.UUID
	Editors            []uuid.UUID
	Viewers            []uuid.UUID
	Lists              []uuid.UUID
	BackgroundImageURL string
	Theme              string
}

// RoleOf resolves the board role of a user from direct membership.
// Global roles (admin, ape) are layered on top by the access package.
func (b *Board) RoleOf(userID uuid.UUID) (BoardRole, bool) {
	if b.Owner == userID {
		return BoardRoleOwner, true
	}
	if slices.Contains(b.Editors, userID) {
		return BoardRoleEditor, true
	}
	if slices.Contains(b.Viewers, userID) {
		return BoardRoleViewer, true
	}
	return "", false
}

type BoardRepository interface {
	Create(ctx context.Context, b *Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*Board, error)
	Update(ctx context.Context, b *Board) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Board, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]*Board, error)
}
