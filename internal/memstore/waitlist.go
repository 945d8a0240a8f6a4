package memstore

import (
	"context"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
	"github.com/nekogravitycat/reservation-engine/internal/waitlist"
)

type waitlistRepo struct {
	t *tx
}

func copyEntry(e *waitlist.Entry) *waitlist.Entry {
	cp := *e
	return &cp
}

func (r *waitlistRepo) Create(_ context.Context, e *waitlist.Entry) error {
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.newID()
	stamp(&e.CreatedAt)
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	s.entries[e.ID] = copyEntry(e)

	id := e.ID
	r.t.record(func() {
		delete(s.entries, id)
		delete(s.order, id)
	})
	return nil
}

func (r *waitlistRepo) GetByID(_ context.Context, id string) (*waitlist.Entry, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, waitlist.ErrNotFound
	}
	return copyEntry(e), nil
}

// fifo orders by created_at, then insertion order. Callers hold s.mu.
func (s *Store) fifo(a, b *waitlist.Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return s.order[a.ID] < s.order[b.ID]
}

func (r *waitlistRepo) List(_ context.Context, filter waitlist.Filter) ([]*waitlist.Entry, int, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*waitlist.Entry
	for _, e := range s.entries {
		switch {
		case filter.ResourceID != "" && e.ResourceID != filter.ResourceID,
			filter.RequesterID != "" && e.RequesterID != filter.RequesterID,
			filter.Status != "" && e.Status != filter.Status:
			continue
		}
		out = append(out, copyEntry(e))
	}

	order := filter.SortOrder
	if order == "" {
		order = "ASC"
	}
	sortBy(out, s.fifo, order)

	items, total := page(out, filter.Page, filter.PageSize)
	return items, total, nil
}

func (r *waitlistRepo) ListWaiting(_ context.Context, resourceID string) ([]*waitlist.Entry, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*waitlist.Entry
	for _, e := range s.entries {
		if e.ResourceID == resourceID && e.Status == waitlist.StatusWaiting {
			out = append(out, copyEntry(e))
		}
	}
	sortBy(out, s.fifo, "ASC")
	return out, nil
}

func (r *waitlistRepo) FindWaiting(_ context.Context, resourceID, requesterID string, iv interval.Interval) (*waitlist.Entry, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *waitlist.Entry
	for _, e := range s.entries {
		if e.ResourceID != resourceID || e.RequesterID != requesterID || e.Status != waitlist.StatusWaiting {
			continue
		}
		if !e.StartTime.Equal(iv.Start) || !e.EndTime.Equal(iv.End) {
			continue
		}
		if found == nil || s.fifo(e, found) {
			found = e
		}
	}
	if found == nil {
		return nil, waitlist.ErrNotFound
	}
	return copyEntry(found), nil
}

func (r *waitlistRepo) update(id string, fn func(e *waitlist.Entry)) error {
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return waitlist.ErrNotFound
	}
	old := copyEntry(e)
	r.t.record(func() { s.entries[old.ID] = old })
	fn(e)
	return nil
}

func (r *waitlistRepo) MarkPromoted(_ context.Context, id, bookingID string, at time.Time) error {
	return r.update(id, func(e *waitlist.Entry) {
		e.Status = waitlist.StatusPromoted
		e.PromotedBookingID = &bookingID
		e.UpdatedAt = at
	})
}

func (r *waitlistRepo) SetStatus(_ context.Context, id string, status waitlist.Status, at time.Time) error {
	if !status.Valid() {
		return waitlist.ErrInvalidStatus
	}
	return r.update(id, func(e *waitlist.Entry) {
		e.Status = status
		e.UpdatedAt = at
	})
}

func (r *waitlistRepo) ExpireStarted(_ context.Context, now time.Time) (int, error) {
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.Status != waitlist.StatusWaiting || e.StartTime.After(now) {
			continue
		}
		old := copyEntry(e)
		r.t.record(func() { s.entries[old.ID] = old })
		e.Status = waitlist.StatusExpired
		e.UpdatedAt = now
		n++
	}
	return n, nil
}
