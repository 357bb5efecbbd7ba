package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
)

const minPasswordLen = 6

// SignupInput is a self-service registration request.
type SignupInput struct {
	Name       string
	Email      string
	Phone      string
	Role       domain.Role
	Password   string
	Pincode    string
	Department string
}

// UserService manages accounts and credentials.
type UserService struct {
	users ports.UserRepository
	cost  int
}

// NewUserService creates a new UserService.
func NewUserService(users ports.UserRepository) *UserService {
	return &UserService{users: users, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a citizen or officer. Officers start pending approval.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if in.Role != domain.RoleCitizen && in.Role != domain.RoleOfficer {
		return nil, fmt.Errorf("%w: role must be citizen or officer", domain.ErrInvalidInput)
	}
	if in.Role == domain.RoleOfficer && strings.TrimSpace(in.Department) == "" {
		return nil, fmt.Errorf("%w: department is required for officers", domain.ErrInvalidInput)
	}

	status := domain.UserActive
	if in.Role == domain.RoleOfficer {
		status = domain.UserPending
	}
	u := &domain.User{
		Name:   strings.TrimSpace(in.Name),
		Email:  NormalizeEmail(in.Email),
		Phone:  strings.TrimSpace(in.Phone),
		Role:   in.Role,
		Status: status,
	}
	if in.Role == domain.RoleCitizen {
		u.Pincode = strings.TrimSpace(in.Pincode)
	} else {
		u.Department = strings.TrimSpace(in.Department)
	}

	if err := s.create(ctx, u, in.Password); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateAdmin seeds an active administrator account.
func (s *UserService) CreateAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	u := &domain.User{
		Name:   strings.TrimSpace(name),
		Email:  NormalizeEmail(email),
		Role:   domain.RoleAdmin,
		Status: domain.UserActive,
	}
	if err := s.create(ctx, u, password); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) create(ctx context.Context, u *domain.User, password string) error {
	if u.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}

	exists, err := s.users.ExistsByEmail(ctx, u.Email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.ErrConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	if err := s.users.Create(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if u.Status != domain.UserActive {
		return nil, domain.ErrAccountInactive
	}
	return u, nil
}

// List returns accounts matching f.
func (s *UserService) List(ctx context.Context, f ports.UserFilter) ([]domain.User, error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.users.List(ctx, f)
}

// SetStatus changes the status of an officer or citizen account.
// Administrator accounts cannot be changed this way.
func (s *UserService) SetStatus(ctx context.Context, id int64, role domain.Role, status domain.UserStatus) error {
	if role != domain.RoleOfficer && role != domain.RoleCitizen {
		return fmt.Errorf("%w: role must be officer or citizen", domain.ErrInvalidInput)
	}
	switch status {
	case domain.UserActive, domain.UserBlocked:
	case domain.UserPending:
		if role != domain.RoleOfficer {
			return fmt.Errorf("%w: only officers can be pending", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	return s.users.SetStatus(ctx, id, role, status)
}
