package http_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
)

// ---- Mock repositories ----

type mockIssueRepo struct {
	createFn          func(ctx context.Context, issue *domain.Issue) error
	getByIDFn         func(ctx context.Context, id int64) (*domain.Issue, error)
	listFn            func(ctx context.Context, f ports.IssueFilter) ([]domain.Issue, error)
	countsByCitizenFn func(ctx context.Context, email string) (domain.IssueCounts, error)
	countByTypeFn     func(ctx context.Context, detectedIssue string) (int, error)
	deleteOwnedFn     func(ctx context.Context, id int64, email string) error
	updateStatusFn    func(ctx context.Context, id int64, status domain.IssueStatus) error
	withinBoundsFn    func(ctx context.Context, b domain.Bounds, limit int) ([]domain.Issue, error)
}

func (m *mockIssueRepo) Create(ctx context.Context, issue *domain.Issue) error {
	if m.createFn != nil {
		return m.createFn(ctx, issue)
	}
	issue.ID = 1
	issue.CreatedAt = time.Now()
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
func (m *mockIssueRepo) MarkEscalated(ctx context.Context, id int64) error { return nil }
func (m *mockIssueRepo) FindWithinBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Issue, error) {
	if m.withinBoundsFn != nil {
		return m.withinBoundsFn(ctx, b, limit)
	}
	return nil, nil
}

// mockUserRepo keeps accounts in memory keyed by email.
type mockUserRepo struct {
	mu          sync.Mutex
	byEmail     map[string]*domain.User
	nextID      int64
	setStatusFn func(ctx context.Context, id int64, role domain.Role, status domain.UserStatus) error
	listFn      func(ctx context.Context, f ports.UserFilter) ([]domain.User, error)
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byEmail: make(map[string]*domain.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[email]
	return ok, nil
}
func (m *mockUserRepo) SetStatus(ctx context.Context, id int64, role domain.Role, status domain.UserStatus) error {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, role, status)
	}
	return nil
}
func (m *mockUserRepo) List(ctx context.Context, f ports.UserFilter) ([]domain.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, nil
}

// mockPhotoStore discards uploads and records their names.
type mockPhotoStore struct {
	mu    sync.Mutex
	saved []string
	path  string
}

func (m *mockPhotoStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, originalName)
	return "stored-" + originalName, nil
}
func (m *mockPhotoStore) Path(name string) (string, error) {
	if m.path == "" {
		return "", domain.ErrNotFound
	}
	return m.path, nil
}

type mockClassifier struct {
	pred *domain.Prediction
	err  error
}

func (m *mockClassifier) Classify(ctx context.Context, r io.Reader) (*domain.Prediction, error) {
	if m.err != nil {
		return nil, m.err
	}
	p := *m.pred
	return &p, nil
}

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

type downPinger struct{ err error }

func (p downPinger) Ping(ctx context.Context) error { return p.err }

// pingingPhotoStore is a photo store that also reports readiness.
type pingingPhotoStore struct {
	*mockPhotoStore
	downPinger
}
