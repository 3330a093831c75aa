package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/epitrello/epitrello/internal/domain"
)

// Pusher forwards a notification summary to an external channel.
// Implementations must be safe for concurrent use.
type Pusher interface {
	Push(ctx context.Context, text string) error
}

// Notifier records in-app notifications and optionally mirrors them to an
// external pusher. Push failures are logged, never surfaced: the stored
// notification is the source of truth.
type Notifier struct {
	notifications domain.NotificationRepository
	pusher        Pusher // nil when no external channel is configured
}

func New(notifications domain.NotificationRepository, pusher Pusher) *Notifier {
	return &Notifier{notifications: notifications, pusher: pusher}
}

// BoardAdded notifies a user that an actor shared a board with them.
func (n *Notifier) BoardAdded(ctx context.Context, userID uuid.UUID, actor *domain.User, board *domain.Board, role domain.BoardRole) error {
	notification := &domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      domain.NotificationBoardAdded,
		Title:     "Added to a board",
		Message:   fmt.Sprintf("%s added you to %q as %s.", actor.DisplayName(), board.Name, role),
		BoardID:   board.ID.String(),
		BoardName: board.Name,
		ActorID:   actor.ID.String(),
		CreatedAt: time.Now().UTC(),
	}

	if err := n.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("notify.Notifier.BoardAdded: %w", err)
	}

	n.push(ctx, notification.Message)
	return nil
}

// CardDueDate notifies a user about a due date set on a card assigned to them.
func (n *Notifier) CardDueDate(ctx context.Context, userID uuid.UUID, actor *domain.User, board *domain.Board, card *domain.Card) error {
	if card.DueDate == nil {
		return nil
	}

	notification := &domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      domain.NotificationCardDueDate,
		Title:     "Card due date",
		Message:   fmt.Sprintf("%q on %q is due %s.", card.Name, board.Name, card.DueDate.UTC().Format("Jan 2, 2006")),
		BoardID:   board.ID.String(),
		BoardName: board.Name,
		CardID:    card.ID.String(),
		CardTitle: card.Name,
		DueDate:   card.DueDate.UTC().Format(time.RFC3339),
		ActorID:   actor.ID.String(),
		CreatedAt: time.Now().UTC(),
	}

	if err := n.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("notify.Notifier.CardDueDate: %w", err)
	}

	n.push(ctx, notification.Message)
	return nil
}

func (n *Notifier) push(ctx context.Context, text string) {
	if n.pusher == nil {
		return
	}
	if err := n.pusher.Push(ctx, text); err != nil {
		log.Warn().Err(err).Msg("notification push failed")
	}
}
