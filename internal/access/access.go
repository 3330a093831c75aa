// Package access resolves what a user may do on a board. Handlers call it
// before mutating records and before publishing events; the event/history
// core itself never authorizes.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/epitrello/epitrello/internal/domain"
)

// Mode is the access level a handler demands.
type Mode string

const (
	ModeView   Mode = "view"
	ModeEdit   Mode = "edit"
	ModeManage Mode = "manage"
)

type Checker struct {
	boards domain.BoardRepository
	users  domain.UserRepository
}

func NewChecker(boards domain.BoardRepository, users domain.UserRepository) *Checker {
	return &Checker{boards: boards, users: users}
}

// Resolve returns the board and the user's effective role on it. Direct
// membership wins; otherwise global roles apply: admins own every board,
// and "ape" users (teaching assistants) get editor access on boards owned
// by students.
func (c *Checker) Resolve(ctx context.Context, boardID, userID uuid.UUID) (*domain.Board, domain.BoardRole, bool, error) {
	board, err := c.boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, "", false, fmt.Errorf("access.Checker.Resolve: %w", err)
	}

	if role, ok := board.RoleOf(userID); ok {
		return board, role, true, nil
	}

	user, err := c.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return board, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("access.Checker.Resolve: %w", err)
	}

	switch user.Role {
	case domain.UserRoleAdmin:
		return board, domain.BoardRoleOwner, true, nil
	case domain.UserRoleApe:
		owner, ownerErr := c.users.GetByID(ctx, board.Owner)
		if ownerErr != nil && !errors.Is(ownerErr, domain.ErrNotFound) {
			return nil, "", false, fmt.Errorf("access.Checker.Resolve: %w", ownerErr)
		}
		if owner != nil && owner.Role == domain.UserRoleStudent {
			return board, domain.BoardRoleEditor, true, nil
		}
	}

	return board, "", false, nil
}

// Require resolves the user's role and enforces the demanded mode,
// returning domain.ErrForbidden when the role is insufficient.
func (c *Checker) Require(ctx context.Context, boardID, userID uuid.UUID, mode Mode) (*domain.Board, domain.BoardRole, error) {
	board, role, ok, err := c.Resolve(ctx, boardID, userID)
	if err != nil {
		return nil, "", err
	}

	allowed := false
	if ok {
		switch mode {
		case ModeView:
			allowed = role.CanView()
		case ModeEdit:
			allowed = role.CanEdit()
		case ModeManage:
			allowed = role.CanManage()
		}
	}
	if !allowed {
		return nil, "", fmt.Errorf("access.Checker.Require: %s on board %s: %w", mode, boardID, domain.ErrForbidden)
	}

	return board, role, nil
}

// BoardItem is one row of a user's board index.
type BoardItem struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Owner     uuid.UUID        `json:"owner"`
	OwnerName string           `json:"ownerName"`
	Role      domain.BoardRole `json:"role"`
}

// VisibleBoards lists the boards a user can open: owned, shared with, and
// (for admins and apes) globally visible per their role.
func (c *Checker) VisibleBoards(ctx context.Context, userID uuid.UUID) (owned, shared []BoardItem, err error) {
	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("access.Checker.VisibleBoards: %w", err)
	}

	var boards []*domain.Board
	if user.Role == domain.UserRoleAdmin || user.Role == domain.UserRoleApe {
		boards, err = c.boards.List(ctx)
	} else {
		boards, err = c.boards.ListByMember(ctx, userID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("access.Checker.VisibleBoards: %w", err)
	}

	owned = make([]BoardItem, 0)
	shared = make([]BoardItem, 0)
	ownerNames := map[uuid.UUID]string{userID: user.DisplayName()}

	for _, board := range boards {
		_, role, ok, resolveErr := c.resolveOnBoard(ctx, board, user)
		if resolveErr != nil {
			return nil, nil, fmt.Errorf("access.Checker.VisibleBoards: %w", resolveErr)
		}
		if !ok {
			continue
		}

		ownerName, cached := ownerNames[board.Owner]
		if !cached {
			owner, ownerErr := c.users.GetByID(ctx, board.Owner)
			if ownerErr != nil && !errors.Is(ownerErr, domain.ErrNotFound) {
				return nil, nil, fmt.Errorf("access.Checker.VisibleBoards: %w", ownerErr)
			}
			ownerName = "Unknown"
			if owner != nil {
				ownerName = owner.DisplayName()
			}
			ownerNames[board.Owner] = ownerName
		}

		item := BoardItem{ID: board.ID, Name: board.Name, Owner: board.Owner, OwnerName: ownerName, Role: role}
		if board.Owner == userID {
			owned = append(owned, item)
		} else {
			shared = append(shared, item)
		}
	}

	return owned, shared, nil
}

// resolveOnBoard is Resolve without the board fetch, for listing paths
// that already hold the record.
func (c *Checker) resolveOnBoard(ctx context.Context, board *domain.Board, user *domain.User) (*domain.Board, domain.BoardRole, bool, error) {
	if role, ok := board.RoleOf(user.ID); ok {
		return board, role, true, nil
	}

	switch user.Role {
	case domain.UserRoleAdmin:
		return board, domain.BoardRoleOwner, true, nil
	case domain.UserRoleApe:
		owner, err := c.users.GetByID(ctx, board.Owner)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, "", false, err
		}
		if owner != nil && owner.Role == domain.UserRoleStudent {
			return board, domain.BoardRoleEditor, true, nil
		}
	}
	return board, "", false, nil
}
