package usecases_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
)

// --- Mock IssueRepository ---

type mockIssueRepo struct {
	createFn          func(ctx context.Context, issue *domain.Issue) error
	getByIDFn         func(ctx context.Context, id int64) (*domain.Issue, error)
	listFn            func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error)
	countsByCitizenFn func(ctx context.Context, email string) (domain.IssueCounts, error)
	countByTypeFn     func(ctx context.Context, detectedIssue string) (int, error)
	deleteOwnedFn     func(ctx context.Context, id int64, email string) error
	updateStatusFn    func(ctx context.Context, id int64, status domain.IssueStatus) error
	markEscalatedFn   func(ctx context.Context, id int64) error
	withinBoundsFn    func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Issue, error)
}

func (m *mockIssueRepo) Create(ctx context.Context, issue *domain.Issue) error {
	if m.createFn != nil {
		return m.createFn(ctx, issue)
	}
	issue.ID = 1
	return nil
}

func (m *mockIssueRepo) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockIssueRepo) List(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, nil
}

func (m *mockIssueRepo) CountsByCitizen(ctx context.Context, email string) (domain.IssueCounts, error) {
	if m.countsByCitizenFn != nil {
		return m.countsByCitizenFn(ctx, email)
	}
	return domain.IssueCounts{}, nil
}

func (m *mockIssueRepo) CountByType(ctx context.Context, detectedIssue string) (int, error) {
	if m.countByTypeFn != nil {
		return m.countByTypeFn(ctx, detectedIssue)
	}
	return 0, nil
}

func (m *mockIssueRepo) DeleteOwned(ctx context.Context, id int64, email string) error {
	if m.deleteOwnedFn != nil {
		return m.deleteOwnedFn(ctx, id, email)
	}
	return nil
}

func (m *mockIssueRepo) UpdateStatus(ctx context.Context, id int64, status domain.IssueStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockIssueRepo) MarkEscalated(ctx context.Context, id int64) error {
	if m.markEscalatedFn != nil {
		return m.markEscalatedFn(ctx, id)
	}
	return nil
}

func (m *mockIssueRepo) FindWithinBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Issue, error) {
	if m.withinBoundsFn != nil {
		return m.withinBoundsFn(ctx, b, limit)
	}
	return nil, nil
}

// --- Mock PhotoStore ---

type memPhotoStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (s *memPhotoStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	name := "stored-" + originalName
	s.saved[name] = data
	return name, nil
}

func (s *memPhotoStore) Path(name string) (string, error) { return "/tmp/" + name, nil }

// --- Mock EventPublisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.IssueEvent
	err    error
}

func (p *recordingPublisher) PublishIssueEvent(ctx context.Context, e *domain.IssueEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return p.err
}

// --- Mock CacheService ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock UserRepository ---

type mockUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int64

	setStatusFn func(ctx context.Context, id int64, role domain.Role, status domain.UserStatus) error
	listFn      func(ctx context.Context, f ports.UserFilter) ([]domain.User, error)
}

func newMockUserRepo() *mockUserRepo { return &mockUserRepo{users: make(map[string]*domain.User)} }

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return domain.ErrConflict
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[email]
	return ok, nil
}

func (m *mockUserRepo) SetStatus(ctx context.Context, id int64, role domain.Role, status domain.UserStatus) error {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, role, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id && u.Role == role {
			u.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockUserRepo) List(ctx context.Context, f ports.UserFilter) ([]domain.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, nil
}

// --- Mock Classifier ---

type mockClassifier struct {
	classifyFn func(ctx context.Context, r io.Reader) (*domain.Prediction, error)
}

func (m *mockClassifier) Classify(ctx context.Context, r io.Reader) (*domain.Prediction, error) {
	return m.classifyFn(ctx, r)
}
