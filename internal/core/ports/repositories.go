package ports

import (
	"context"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// UserFilter narrows user listings. Zero values mean "any".
type UserFilter struct {
	Role   domain.Role
	Status domain.UserStatus
	Query  string // case-insensitive match on name or email
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// SetStatus changes the status of the user with the given id and role.
	// It returns domain.ErrNotFound when no such user exists.
	SetStatus(ctx context.Context, id int64, role domain.Role, status domain.UserStatus) error
	List(ctx context.Context, f UserFilter) ([]domain.User, error)
}

// IssueFilter narrows issue listings. Zero values mean "any".
type IssueFilter struct {
	DetectedIssue string
	Status        domain.IssueStatus
	Department    string
	CitizenEmail  string
	BySeverity    bool // order by severity_score desc instead of newest first
	Limit         int
}

// IssueRepository persists reported issues.
type IssueRepository interface {
	// Create inserts the issue and sets its ID and CreatedAt.
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id int64) (*domain.Issue, error)
	List(ctx context.Context, f IssueFilter) ([]domain.Issue, error)
	CountsByCitizen(ctx context.Context, email string) (domain.IssueCounts, error)
	CountByType(ctx context.Context, detectedIssue string) (int, error)
	// DeleteOwned removes a citizen's own issue.
	DeleteOwned(ctx context.Context, id int64, email string) error
	UpdateStatus(ctx context.Context, id int64, status domain.IssueStatus) error
	MarkEscalated(ctx context.Context, id int64) error
	FindWithinBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.Issue, error)
}
