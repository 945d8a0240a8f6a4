package user

import (
	"context"
	"strings"

	"github.com/nekogravitycat/reservation-engine/internal/teardown"
)

// CreateRequest provisions a user mirrored from the identity service.
type CreateRequest struct {
	Email         string
	DisplayName   *string
	IsSystemAdmin bool
}

// UpdateRequest carries partial updates.
type UpdateRequest struct {
	DisplayName   *string
	IsActive      *bool
	IsSystemAdmin *bool
}

// Service defines user-related business logic.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*User, error)
	// Delete removes the user with their resources, bookings and waitlist entries.
	Delete(ctx context.Context, id string) error
	// Actor resolves the authorization facts of an authenticated user.
	Actor(ctx context.Context, id string) (Actor, error)
}

// OwnedResources tracks state kept outside the store for resources a user owns.
type OwnedResources interface {
	OwnedBy(ctx context.Context, ownerID string) ([]string, error)
	Evict(ctx context.Context, ids []string)
}

type service struct {
	repo    Repository
	remover teardown.Remover
	owned   OwnedResources
}

// NewService builds the user service. owned may be nil.
func NewService(repo Repository, remover teardown.Remover, owned OwnedResources) Service {
	return &service{repo: repo, remover: remover, owned: owned}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*User, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	u := &User{
		Email:         email,
		DisplayName:   req.DisplayName,
		IsActive:      true,
		IsSystemAdmin: req.IsSystemAdmin,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		u.DisplayName = &name
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.IsSystemAdmin != nil {
		u.IsSystemAdmin = *req.IsSystemAdmin
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	var owned []string
	if s.owned != nil {
		ids, err := s.owned.OwnedBy(ctx, id)
		if err != nil {
			return err
		}
		owned = ids
	}

	removed, err := s.remover.Remove(ctx, teardown.Users, id)
	if err != nil {
		return err
	}
	if len(owned) > 0 {
		s.owned.Evict(ctx, owned)
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

func (s *service) Actor(ctx context.Context, id string) (Actor, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Actor{}, err
	}
	if !u.IsActive {
		return Actor{}, ErrInactiveUser
	}
	return Actor{UserID: u.ID, IsSystemAdmin: u.IsSystemAdmin}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
