package memstore

import (
	"context"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

type bookingRepo struct {
	t *tx
}

func copyBooking(b *booking.Booking) *booking.Booking {
	cp := *b
	return &cp
}

func (r *bookingRepo) Create(_ context.Context, b *booking.Booking) error {
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = s.newID()
	stamp(&b.CreatedAt)
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	s.bookings[b.ID] = copyBooking(b)

	id := b.ID
	r.t.record(func() {
		delete(s.bookings, id)
		delete(s.order, id)
	})
	return nil
}

func (r *bookingRepo) GetByID(_ context.Context, id string) (*booking.Booking, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return copyBooking(b), nil
}

func (r *bookingRepo) List(_ context.Context, filter booking.Filter) ([]*booking.Booking, int, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*booking.Booking
	for _, b := range s.bookings {
		switch {
		case filter.RequesterID != "" && b.RequesterID != filter.RequesterID,
			filter.ResourceID != "" && b.ResourceID != filter.ResourceID,
			filter.SeriesID != "" && (b.SeriesID == nil || *b.SeriesID != filter.SeriesID),
			filter.Status != "" && b.Status != filter.Status,
			filter.StartTime != nil && b.StartTime.Before(*filter.StartTime),
			filter.EndTime != nil && b.EndTime.After(*filter.EndTime):
			continue
		}
		out = append(out, copyBooking(b))
	}

	less := func(a, b *booking.Booking) bool {
		var x, y time.Time
		switch filter.SortBy {
		case "created_at":
			x, y = a.CreatedAt, b.CreatedAt
		case "end_time":
			x, y = a.EndTime, b.EndTime
		default:
			x, y = a.StartTime, b.StartTime
		}
		if !x.Equal(y) {
			return x.Before(y)
		}
		return s.order[a.ID] < s.order[b.ID]
	}
	sortBy(out, less, filter.SortOrder)

	items, total := page(out, filter.Page, filter.PageSize)
	return items, total, nil
}

func (r *bookingRepo) ListActiveByResource(_ context.Context, resourceID string, iv interval.Interval) ([]*booking.Booking, error) {
	s := r.t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*booking.Booking
	for _, b := range s.bookings {
		if b.ResourceID == resourceID && b.Status.IsActive() && b.Interval().Overlaps(iv) {
			out = append(out, copyBooking(b))
		}
	}
	sortBy(out, func(a, b *booking.Booking) bool {
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return s.order[a.ID] < s.order[b.ID]
	}, "ASC")
	return out, nil
}

func (r *bookingRepo) UpdateStatus(_ context.Context, b *booking.Booking) error {
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.bookings[b.ID]
	if !ok {
		return booking.ErrNotFound
	}
	old := copyBooking(stored)
	r.t.record(func() { s.bookings[old.ID] = old })

	stored.Status = b.Status
	stored.DecisionNotes = b.DecisionNotes
	stored.DecisionBy = b.DecisionBy
	stored.UpdatedAt = b.UpdatedAt
	return nil
}

func (r *bookingRepo) CompleteElapsed(_ context.Context, now time.Time) ([]*booking.Booking, error) {
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*booking.Booking
	for _, b := range s.bookings {
		if b.Status != booking.StatusApproved || b.EndTime.After(now) {
			continue
		}
		old := copyBooking(b)
		r.t.record(func() { s.bookings[old.ID] = old })

		b.Status = booking.StatusCompleted
		b.UpdatedAt = now
		out = append(out, copyBooking(b))
	}
	sortBy(out, func(a, b *booking.Booking) bool { return s.order[a.ID] < s.order[b.ID] }, "ASC")
	return out, nil
}
