package memstore

import (
	"context"
	"strings"

	"github.com/nekogravitycat/reservation-engine/internal/user"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (r *userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return user.ErrEmailAlreadyUsed
		}
	}
	u.ID = r.s.newID()
	stamp(&u.CreatedAt)
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *userRepo) List(_ context.Context, filter user.UserFilter) ([]*user.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*user.User
	for _, u := range r.s.users {
		if filter.Email != "" && !strings.Contains(u.Email, strings.ToLower(filter.Email)) {
			continue
		}
		if filter.DisplayName != "" && (u.DisplayName == nil ||
			!strings.Contains(strings.ToLower(*u.DisplayName), strings.ToLower(filter.DisplayName))) {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}

	sortBy(out, func(a, b *user.User) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return r.s.order[a.ID] < r.s.order[b.ID]
	}, filter.SortOrder)

	items, total := page(out, filter.Page, filter.PageSize)
	return items, total, nil
}

func (r *userRepo) Update(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[u.ID]; !ok {
		return user.ErrNotFound
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}
