package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/epitrello/epitrello/internal/domain"
)

// Store is the schema-less Redis record store. Every domain record lives
// under its own key (user:<id>, board:<id>, ...); board history uses one
// bounded list per board; realtime fan-out uses pub/sub.
type Store struct {
	client        *redis.Client
	users         *UserRepo
	boards        *BoardRepo
	lists         *ListRepo
	cards         *CardRepo
	tags          *TagRepo
	notifications *NotificationRepo
	pubsub        *PubSub
	history       *HistoryStore
}

func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Store{
		client:        client,
		users:         NewUserRepo(client),
		boards:        NewBoardRepo(client),
		lists:         NewListRepo(client),
		cards:         NewCardRepo(client),
		tags:          NewTagRepo(client),
		notifications: NewNotificationRepo(client),
		pubsub:        NewPubSub(client),
		history:       NewHistoryStore(client),
	}, nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("redis.Store.Close: %w", err)
	}
	return nil
}

func (s *Store) Users() domain.UserRepository                 { return s.users }
func (s *Store) Boards() domain.BoardRepository               { return s.boards }
func (s *Store) Lists() domain.ListRepository                 { return s.lists }
func (s *Store) Cards() domain.CardRepository                 { return s.cards }
func (s *Store) Tags() domain.TagRepository                   { return s.tags }
func (s *Store) Notifications() domain.NotificationRepository { return s.notifications }

// PubSub exposes the broadcast primitive consumed by the event bus.
func (s *Store) PubSub() *PubSub { return s.pubsub }

// History exposes the bounded-list primitive consumed by the history log.
func (s *Store) History() *HistoryStore { return s.history }
