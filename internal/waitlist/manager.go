package waitlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/clock"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

var (
	// ErrBlocked is returned by a ClaimFunc when the entry's interval is still
	// taken. The entry keeps its place in the queue.
	ErrBlocked = errors.New("waitlist: interval still taken")
	// ErrUnbookable is returned by a ClaimFunc when the entry can never be
	// granted, for example because the resource's schedule changed. The entry expires.
	ErrUnbookable = errors.New("waitlist: interval can no longer be booked")
)

// ClaimFunc tries to book the entry's interval against the current state of
// the resource and returns the new booking's ID.
type ClaimFunc func(ctx context.Context, e *Entry) (string, error)

// Promotion reports what a promotion pass changed.
type Promotion struct {
	Promoted []*Entry
	Expired  []*Entry
}

// Manager queues contested requests and promotes them when their slot frees up.
// Every method runs against the repository of the caller's transaction.
type Manager struct {
	clock clock.Clock
}

func NewManager(c clock.Clock) *Manager {
	return &Manager{clock: c}
}

// Enqueue records a waiting entry. The interval is assumed to be otherwise
// bookable. If the requester already waits for the same interval, that entry is
// returned and created is false.
func (m *Manager) Enqueue(ctx context.Context, repo Repository, resourceID, requesterID string, iv interval.Interval) (entry *Entry, created bool, err error) {
	existing, err := repo.FindWaiting(ctx, resourceID, requesterID, iv)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := m.clock.Now()
	e := &Entry{
		ResourceID:  resourceID,
		RequesterID: requesterID,
		StartTime:   iv.Start,
		EndTime:     iv.End,
		Status:      StatusWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, e); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// Promote walks the resource's waiting entries oldest first. Entries whose
// start has passed expire. Entries overlapping freed are offered to claim; a
// blocked entry stays queued and the walk continues, so a later entry may take
// the slot. Each claim sees the bookings created by earlier claims of the pass.
func (m *Manager) Promote(ctx context.Context, repo Repository, resourceID string, freed interval.Interval, claim ClaimFunc) (*Promotion, error) {
	entries, err := repo.ListWaiting(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	result := &Promotion{}
	for _, e := range entries {
		if !e.StartTime.After(now) {
			if err := m.setStatus(ctx, repo, e, StatusExpired); err != nil {
				return nil, err
			}
			result.Expired = append(result.Expired, e)
			continue
		}
		if !e.Interval().Overlaps(freed) {
			continue
		}

		bookingID, err := claim(ctx, e)
		switch {
		case errors.Is(err, ErrBlocked):
			continue
		case errors.Is(err, ErrUnbookable):
			if err := m.setStatus(ctx, repo, e, StatusExpired); err != nil {
				return nil, err
			}
			result.Expired = append(result.Expired, e)
			continue
		case err != nil:
			return nil, fmt.Errorf("claim waitlist entry %s: %w", e.ID, err)
		}

		if err := repo.MarkPromoted(ctx, e.ID, bookingID, now); err != nil {
			return nil, err
		}
		e.Status = StatusPromoted
		e.PromotedBookingID = &bookingID
		e.UpdatedAt = now
		result.Promoted = append(result.Promoted, e)
	}
	return result, nil
}

// Withdraw takes a waiting entry out of the queue.
func (m *Manager) Withdraw(ctx context.Context, repo Repository, e *Entry) error {
	if e.Status != StatusWaiting {
		return ErrNotWaiting
	}
	return m.setStatus(ctx, repo, e, StatusWithdrawn)
}

// ExpireStarted expires waiting entries of every resource whose start has passed.
func (m *Manager) ExpireStarted(ctx context.Context, repo Repository) (int, error) {
	return repo.ExpireStarted(ctx, m.clock.Now())
}

func (m *Manager) setStatus(ctx context.Context, repo Repository, e *Entry, status Status) error {
	now := m.clock.Now()
	if err := repo.SetStatus(ctx, e.ID, status, now); err != nil {
		return err
	}
	e.Status = status
	e.UpdatedAt = now
	return nil
}
