package v1_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/epitrello/epitrello/internal/access"
	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/events"
	"github.com/epitrello/epitrello/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject user/role into context for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID) context.Context {
	return roleCtx(userID, middleware.RoleStudent)
}

func roleCtx(userID uuid.UUID, role string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, role)
	return ctx
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users         *mockUserRepo
	boards        *mockBoardRepo
	lists         *mockListRepo
	cards         *mockCardRepo
	tags          *mockTagRepo
	notifications *mockNotificationRepo
}

func (m *mockDataStore) Users() domain.UserRepository                 { return m.users }
func (m *mockDataStore) Boards() domain.BoardRepository               { return m.boards }
func (m *mockDataStore) Lists() domain.ListRepository                 { return m.lists }
func (m *mockDataStore) Cards() domain.CardRepository                 { return m.cards }
func (m *mockDataStore) Tags() domain.TagRepository                   { return m.tags }
func (m *mockDataStore) Notifications() domain.NotificationRepository { return m.notifications }

// checkerFor builds a real access checker over the mock repositories so
// handler tests exercise the same role resolution as production.
func checkerFor(store *mockDataStore) *access.Checker {
	return access.NewChecker(store.boards, store.users)
}

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc          func(ctx context.Context, u *domain.User) error
	getByIDFunc         func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc      func(ctx context.Context, email string) (*domain.User, error)
	updateFunc          func(ctx context.Context, u *domain.User) error
	listFunc            func(ctx context.Context) ([]*domain.User, error)
	createOAuthLinkFunc func(ctx context.Context, link *domain.UserOAuthLink) error
	getOAuthLinkFunc    func(ctx context.Context, provider, providerID string) (*domain.UserOAuthLink, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.getByIDFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	if m.updateFunc == nil {
		return nil
	}
	return m.updateFunc(ctx, u)
}

func (m *mockUserRepo) List(ctx context.Context) ([]*domain.User, error) {
	return m.listFunc(ctx)
}

func (m *mockUserRepo) CreateOAuthLink(ctx context.Context, link *domain.UserOAuthLink) error {
	return m.createOAuthLinkFunc(ctx, link)
}

func (m *mockUserRepo) GetOAuthLink(ctx context.Context, provider, providerID string) (*domain.UserOAuthLink, error) {
	return m.getOAuthLinkFunc(ctx, provider, providerID)
}

// userDirectory is a read-only user repo backed by a fixed set of users.
func userDirectory(users ...*domain.User) *mockUserRepo {
	byID := make(map[uuid.UUID]*domain.User, len(users))
	byEmail := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
		byEmail[u.Email] = u
	}
	return &mockUserRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
			if u, ok := byID[id]; ok {
				return u, nil
			}
			return nil, domain.ErrNotFound
		},
		getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
			if u, ok := byEmail[email]; ok {
				return u, nil
			}
			return nil, domain.ErrNotFound
		},
	}
}

// ---------------------------------------------------------------------------
// Mock BoardRepository
// ---------------------------------------------------------------------------

type mockBoardRepo struct {
	createFunc       func(ctx context.Context, b *domain.Board) error
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	updateFunc       func(ctx context.Context, b *domain.Board) error
	deleteFunc       func(ctx context.Context, id uuid.UUID) error
	listFunc         func(ctx context.Context) ([]*domain.Board, error)
	listByMemberFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error)
}

func (m *mockBoardRepo) Create(ctx context.Context, b *domain.Board) error {
	return m.createFunc(ctx, b)
}

func (m *mockBoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBoardRepo) Update(ctx context.Context, b *domain.Board) error {
	if m.updateFunc == nil {
		return nil
	}
	return m.updateFunc(ctx, b)
}

func (m *mockBoardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockBoardRepo) List(ctx context.Context) ([]*domain.Board, error) {
	return m.listFunc(ctx)
}

func (m *mockBoardRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Board, error) {
	return m.listByMemberFunc(ctx, userID)
}

// singleBoard serves one board by id.
func singleBoard(board *domain.Board) *mockBoardRepo {
	return &mockBoardRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Board, error) {
			if id == board.ID {
				return board, nil
			}
			return nil, domain.ErrNotFound
		},
	}
}

// ---------------------------------------------------------------------------
// Mock ListRepository
// ---------------------------------------------------------------------------

type mockListRepo struct {
	createFunc  func(ctx context.Context, l *domain.List) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.List, error)
	updateFunc  func(ctx context.Context, l *domain.List) error
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockListRepo) Create(ctx context.Context, l *domain.List) error {
	return m.createFunc(ctx, l)
}

func (m *mockListRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.List, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockListRepo) Update(ctx context.Context, l *domain.List) error {
	if m.updateFunc == nil {
		return nil
	}
	return m.updateFunc(ctx, l)
}

func (m *mockListRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func listsByID(lists ...*domain.List) *mockListRepo {
	byID := make(map[uuid.UUID]*domain.List, len(lists))
	for _, l := range lists {
		byID[l.ID] = l
	}
	return &mockListRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.List, error) {
			if l, ok := byID[id]; ok {
				return l, nil
			}
			return nil, domain.ErrNotFound
		},
	}
}

// ---------------------------------------------------------------------------
// Mock CardRepository
// ---------------------------------------------------------------------------

type mockCardRepo struct {
	createFunc  func(ctx context.Context, c *domain.Card) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Card, error)
	updateFunc  func(ctx context.Context, c *domain.Card) error
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCardRepo) Create(ctx context.Context, c *domain.Card) error {
	return m.createFunc(ctx, c)
}

func (m *mockCardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockCardRepo) Update(ctx context.Context, c *domain.Card) error {
	if m.updateFunc == nil {
		return nil
	}
	return m.updateFunc(ctx, c)
}

func (m *mockCardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func cardsByID(cards ...*domain.Card) *mockCardRepo {
	byID := make(map[uuid.UUID]*domain.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}
	return &mockCardRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Card, error) {
			if c, ok := byID[id]; ok {
				return c, nil
			}
			return nil, domain.ErrNotFound
		},
	}
}

// ---------------------------------------------------------------------------
// Mock TagRepository
// ---------------------------------------------------------------------------

type mockTagRepo struct {
	createFunc  func(ctx context.Context, t *domain.Tag) error
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Tag, error)
	updateFunc  func(ctx context.Context, t *domain.Tag) error
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
	listFunc    func(ctx context.Context) ([]*domain.Tag, error)
}

func (m *mockTagRepo) Create(ctx context.Context, t *domain.Tag) error {
	return m.createFunc(ctx, t)
}

func (m *mockTagRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tag, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTagRepo) Update(ctx context.Context, t *domain.Tag) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTagRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockTagRepo) List(ctx context.Context) ([]*domain.Tag, error) {
	return m.listFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock NotificationRepository
// ---------------------------------------------------------------------------

type mockNotificationRepo struct {
	createFunc      func(ctx context.Context, n *domain.Notification) error
	listByUserFunc  func(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)
	markReadFunc    func(ctx context.Context, userID, id uuid.UUID) (bool, error)
	markAllReadFunc func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	return m.createFunc(ctx, n)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	return m.listByUserFunc(ctx, userID, limit)
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	return m.markReadFunc(ctx, userID, id)
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.markAllReadFunc(ctx, userID)
}

// ---------------------------------------------------------------------------
// Recording event bus and notifier
// ---------------------------------------------------------------------------

type recordingBus struct {
	mu     sync.Mutex
	inputs []events.UpdateInput
}

func (b *recordingBus) Notify(_ context.Context, input events.UpdateInput) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = append(b.inputs, input)
}

func (b *recordingBus) all() []events.UpdateInput {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.UpdateInput(nil), b.inputs...)
}

type boardAddedCall struct {
	userID uuid.UUID
	role   domain.BoardRole
}

type dueDateCall struct {
	userID uuid.UUID
	cardID uuid.UUID
}

type recordingNotifier struct {
	mu         sync.Mutex
	boardAdded []boardAddedCall
	dueDates   []dueDateCall
}

func (n *recordingNotifier) BoardAdded(_ context.Context, userID uuid.UUID, _ *domain.User, _ *domain.Board, role domain.BoardRole) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.boardAdded = append(n.boardAdded, boardAddedCall{userID: userID, role: role})
	return nil
}

func (n *recordingNotifier) CardDueDate(_ context.Context, userID uuid.UUID, _ *domain.User, _ *domain.Board, card *domain.Card) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dueDates = append(n.dueDates, dueDateCall{userID: userID, cardID: card.ID})
	return nil
}
