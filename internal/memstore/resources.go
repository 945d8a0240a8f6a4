package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

type resourceRepo struct {
	t *tx
}

func (r *resourceRepo) Create(_ context.Context, res *resource.Resource) error {
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	res.ID = s.newID()
	stamp(&res.CreatedAt)
	res.UpdatedAt = res.CreatedAt
	if res.TimeZone == "" {
		res.TimeZone = "UTC"
	}
	cp := *res
	s.resources[res.ID] = &cp

	id := res.ID
	r.t.record(func() {
		delete(s.resources, id)
		delete(s.order, id)
	})
	return nil
}

func (r *resourceRepo) GetByID(_ context.Context, id string) (*resource.Resource, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.resources[id]
	if !ok {
		return nil, resource.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

// GetForUpdate relies on the per-resource lock taken by RunInResourceTx.
func (r *resourceRepo) GetForUpdate(ctx context.Context, id string) (*resource.Resource, error) {
	return r.GetByID(ctx, id)
}

func (r *resourceRepo) List(_ context.Context, filter resource.Filter) ([]*resource.Resource, int, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*resource.Resource
	for _, res := range s.resources {
		if filter.OwnerID != "" && res.OwnerID != filter.OwnerID {
			continue
		}
		if filter.IsRestricted != nil && res.IsRestricted != *filter.IsRestricted {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(strings.ToLower(res.Name), strings.ToLower(filter.Keyword)) {
			continue
		}
		cp := *res
		out = append(out, &cp)
	}
	less := func(a, b *resource.Resource) bool {
		if filter.SortBy == "name" && a.Name != b.Name {
			return a.Name < b.Name
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.order[a.ID] < s.order[b.ID]
	}
	sortBy(out, less, filter.SortOrder)

	items, total := page(out, filter.Page, filter.PageSize)
	return items, total, nil
}

func (r *resourceRepo) Update(_ context.Context, res *resource.Resource) error {
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.resources[res.ID]
	if !ok {
		return resource.ErrNotFound
	}
	res.UpdatedAt = time.Now().UTC()
	cp := *res
	s.resources[res.ID] = &cp

	old := *prev
	r.t.record(func() { s.resources[old.ID] = &old })
	return nil
}
