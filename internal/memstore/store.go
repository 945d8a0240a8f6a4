// Package memstore keeps users, resources, bookings and waitlist entries in
// memory. It honours the same transaction contract as the PostgreSQL store:
// calls for one resource are serialized, and a failed transaction is undone.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
	"github.com/nekogravitycat/reservation-engine/internal/teardown"
	"github.com/nekogravitycat/reservation-engine/internal/user"
	"github.com/nekogravitycat/reservation-engine/internal/waitlist"
)

type Store struct {
	// global is held shared by resource transactions and exclusively by
	// RunInTx and Remove, which may touch any resource.
	global sync.RWMutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu        sync.RWMutex
	seq       int64
	users     map[string]*user.User
	resources map[string]*resource.Resource
	bookings  map[string]*booking.Booking
	entries   map[string]*waitlist.Entry
	order     map[string]int64 // insertion order, breaks created_at ties

	graph *teardown.Graph
}

func New() *Store {
	return &Store{
		locks:     map[string]*sync.Mutex{},
		users:     map[string]*user.User{},
		resources: map[string]*resource.Resource{},
		bookings:  map[string]*booking.Booking{},
		entries:   map[string]*waitlist.Entry{},
		order:     map[string]int64{},
		graph:     teardown.Reservations(),
	}
}

func (s *Store) lockFor(resourceID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[resourceID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[resourceID] = l
	}
	return l
}

// newID must be called with s.mu held.
func (s *Store) newID() string {
	s.seq++
	id := uuid.NewString()
	s.order[id] = s.seq
	return id
}

// tx implements booking.Tx. A nil undo log means the repositories write
// straight through, as the Reader does.
type tx struct {
	s    *Store
	undo *[]func()
}

// record must be called with s.mu held, before the change it reverts.
func (t *tx) record(fn func()) {
	if t.undo != nil {
		*t.undo = append(*t.undo, fn)
	}
}

func (t *tx) rollback() {
	if t.undo == nil {
		return
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(*t.undo) - 1; i >= 0; i-- {
		(*t.undo)[i]()
	}
	*t.undo = nil
}

func (t *tx) Resources() resource.Repository { return &resourceRepo{t} }

func (t *tx) Bookings() booking.Repository { return &bookingRepo{t} }

func (t *tx) Waitlist() waitlist.Repository { return &waitlistRepo{t} }

// Users returns the user repository.
func (s *Store) Users() user.Repository { return &userRepo{s} }

// Resources returns a resource repository outside any transaction.
func (s *Store) Resources() resource.Repository { return &resourceRepo{&tx{s: s}} }

func (s *Store) begin() *tx {
	return &tx{s: s, undo: &[]func(){}}
}

// Reader reads committed and in-flight data alike: writes of a running
// transaction are visible until it commits or rolls back. Engine decisions
// only read through the transaction handle, which holds the resource lock.
func (s *Store) Reader() booking.Tx {
	return &tx{s: s}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.global.Lock()
	defer s.global.Unlock()
	return s.run(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (s *Store) RunInResourceTx(ctx context.Context, resourceID string, fn func(ctx context.Context, tx booking.Tx, res *resource.Resource) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.global.RLock()
	defer s.global.RUnlock()

	l := s.lockFor(resourceID)
	l.Lock()
	defer l.Unlock()

	return s.run(ctx, func(t *tx) error {
		res, err := t.Resources().GetForUpdate(ctx, resourceID)
		if err != nil {
			return err
		}
		return fn(ctx, t, res)
	})
}

// run undoes every write of fn when fn fails or ctx ends before commit.
func (s *Store) run(ctx context.Context, fn func(t *tx) error) error {
	t := s.begin()
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.rollback()
		return err
	}
	return nil
}

// IDs implements teardown.Index.
func (s *Store) IDs(table, column string, values []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids(table, column, values)
}

// unlocked resolves references while the caller already holds s.mu.
type unlocked struct{ s *Store }

func (u unlocked) IDs(table, column string, values []string) []string {
	return u.s.ids(table, column, values)
}

func (s *Store) ids(table, column string, values []string) []string {
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	match := func(p *string) bool { return p != nil && want[*p] }

	var out []string
	switch table {
	case teardown.Users:
		for id := range s.users {
			if column == "id" && want[id] {
				out = append(out, id)
			}
		}
	case teardown.Resources:
		for id, r := range s.resources {
			if (column == "owner_id" && want[r.OwnerID]) || (column == "id" && want[id]) {
				out = append(out, id)
			}
		}
	case teardown.Bookings:
		for id, b := range s.bookings {
			switch column {
			case "resource_id":
				if want[b.ResourceID] {
					out = append(out, id)
				}
			case "requester_id":
				if want[b.RequesterID] {
					out = append(out, id)
				}
			case "decision_by":
				if match(b.DecisionBy) {
					out = append(out, id)
				}
			}
		}
	case teardown.WaitlistEntries:
		for id, e := range s.entries {
			switch column {
			case "resource_id":
				if want[e.ResourceID] {
					out = append(out, id)
				}
			case "requester_id":
				if want[e.RequesterID] {
					out = append(out, id)
				}
			case "promoted_booking_id":
				if match(e.PromotedBookingID) {
					out = append(out, id)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

// Remove implements teardown.Remover over the in-memory tables.
func (s *Store) Remove(ctx context.Context, root, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	steps, err := s.graph.Plan(root)
	if err != nil {
		return false, err
	}

	s.global.Lock()
	defer s.global.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed bool
	for _, step := range steps {
		for _, target := range step.Targets(id, unlocked{s}) {
			if step.Action == teardown.SetNull {
				s.clear(step.Table, step.Column, target)
				continue
			}
			existed, err := s.delete(step.Table, target)
			if err != nil {
				return false, err
			}
			if len(step.Path) == 0 {
				removed = existed
			}
		}
	}
	return removed, nil
}

func (s *Store) clear(table, column, id string) {
	switch {
	case table == teardown.Bookings && column == "decision_by":
		if b, ok := s.bookings[id]; ok {
			b.DecisionBy = nil
		}
	case table == teardown.WaitlistEntries && column == "promoted_booking_id":
		if e, ok := s.entries[id]; ok {
			e.PromotedBookingID = nil
		}
	}
}

func (s *Store) delete(table, id string) (bool, error) {
	var existed bool
	switch table {
	case teardown.Users:
		_, existed = s.users[id]
		delete(s.users, id)
	case teardown.Resources:
		_, existed = s.resources[id]
		delete(s.resources, id)
	case teardown.Bookings:
		_, existed = s.bookings[id]
		delete(s.bookings, id)
	case teardown.WaitlistEntries:
		_, existed = s.entries[id]
		delete(s.entries, id)
	default:
		return false, fmt.Errorf("%w: %s", teardown.ErrUnknownTable, table)
	}
	delete(s.order, id)
	return existed, nil
}

// page applies 1-based pagination.
func page[T any](items []T, pageNum, size int) ([]T, int) {
	total := len(items)
	if pageNum < 1 {
		pageNum = 1
	}
	if size < 1 {
		size = 20
	}
	start := (pageNum - 1) * size
	if start >= total {
		return nil, total
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], total
}

// sortBy sorts ascending by less, or descending unless order is "ASC".
func sortBy[T any](items []T, less func(a, b T) bool, order string) {
	desc := !strings.EqualFold(order, "ASC")
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}
