package auth

import (
	"context"
	"errors"

	"github.com/finquery/finquery/internal/identity"
	"github.com/finquery/finquery/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo identity.Repository
}

// NewService constructs a new Service.
func NewService(repo identity.Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
//
// Credentials are compared verbatim against the stored secret. This
// mirrors the seed data's plaintext secrets and is a known limitation,
// not an invitation to store real passwords.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*identity.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if user.Secret == "" || user.Secret != password {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ErrEmailTaken indicates a signup against an existing email.
var ErrEmailTaken = errors.New("auth: email already registered")

// Signup creates a new active user account.
func (s *Service) Signup(ctx context.Context, email, password, name string, roleIDs []string, departmentID string) (*identity.User, error) {
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	return s.repo.CreateUser(ctx, identity.User{
		Email:        email,
		Name:         name,
		RoleIDs:      roleIDs,
		DepartmentID: departmentID,
		IsActive:     true,
		Secret:       password,
	})
}
