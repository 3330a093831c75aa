package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/epitrello/epitrello/internal/auth"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/events"
	"github.com/epitrello/epitrello/internal/history"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *redis.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Boards() domain.BoardRepository
	Lists() domain.ListRepository
	Cards() domain.CardRepository
	Tags() domain.TagRepository
	Notifications() domain.NotificationRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, password, username string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	LoginWithOAuth(ctx context.Context, identity auth.OAuthIdentity) (*domain.User, string, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// OAuthExchanger abstracts one configured OAuth provider for handler testing.
// *auth.OAuthProvider satisfies this interface.
type OAuthExchanger interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (providerID, email, name, avatarURL string, err error)
}

// EventBus abstracts board event publication for handler testing.
// *events.Bus satisfies this interface.
type EventBus interface {
	Notify(ctx context.Context, input events.UpdateInput)
}

// HistoryLog abstracts the bounded audit log read path for handler testing.
// *history.Log satisfies this interface.
type HistoryLog interface {
	Entries(ctx context.Context, boardID string, limit int) []history.Entry
}

// Notifier abstracts per-user notification delivery for handler testing.
// *notify.Notifier satisfies this interface.
type Notifier interface {
	BoardAdded(ctx context.Context, userID uuid.UUID, actor *domain.User, board *domain.Board, role domain.BoardRole) error
	CardDueDate(ctx context.Context, userID uuid.UUID, actor *domain.User, board *domain.Board, card *domain.Card) error
}
