package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/reservation-engine/internal/events"
	"github.com/nekogravitycat/reservation-engine/internal/logging"
	"github.com/nekogravitycat/reservation-engine/internal/metrics"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/clock"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
	"github.com/nekogravitycat/reservation-engine/internal/recurrence"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
	"github.com/nekogravitycat/reservation-engine/internal/user"
	"github.com/nekogravitycat/reservation-engine/internal/waitlist"
)

type CreateRequest struct {
	ResourceID     string
	RequesterID    string
	StartTime      time.Time
	EndTime        time.Time
	RecurrenceRule string // optional, e.g. "FREQ=WEEKLY;COUNT=4"
	JoinWaitlist   bool   // queue instead of failing when the slot is taken
}

type DecideRequest struct {
	BookingID string
	Decision  Decision
	Actor     user.Actor
	Notes     *string
}

// Result is the outcome of a request: a single booking, a recurring series,
// or a waitlist entry when the slot was taken and the caller asked to queue.
type Result struct {
	Booking *Booking
	Series  []*Booking
	Entry   *waitlist.Entry
}

// SweepResult reports what CompleteElapsed changed.
type SweepResult struct {
	Completed []*Booking
	Expired   int
}

// Availability is the open and free time of a resource on one date.
type Availability struct {
	Date     time.Time
	TimeZone string
	Open     []interval.Interval
	Busy     []interval.Interval
	Free     []interval.Interval
}

type Service interface {
	Request(ctx context.Context, req CreateRequest) (*Result, error)
	Decide(ctx context.Context, req DecideRequest) (*Booking, error)
	Cancel(ctx context.Context, id string, actor user.Actor) (*Booking, error)
	// Complete is the administrative override marking an approved booking completed.
	Complete(ctx context.Context, id string, actor user.Actor) (*Booking, error)
	// CompleteElapsed completes approved bookings that have ended and expires
	// waitlist entries whose start has passed.
	CompleteElapsed(ctx context.Context) (*SweepResult, error)
	GetByID(ctx context.Context, id string, actor user.Actor) (*Booking, error)
	List(ctx context.Context, filter Filter, actor user.Actor) ([]*Booking, int, error)
	Availability(ctx context.Context, resourceID string, date time.Time) (*Availability, error)
	ListWaitlist(ctx context.Context, filter waitlist.Filter, actor user.Actor) ([]*waitlist.Entry, int, error)
	WithdrawWaitlist(ctx context.Context, id string, actor user.Actor) (*waitlist.Entry, error)
}

type service struct {
	store     Store
	waitlist  *waitlist.Manager
	clock     clock.Clock
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewService(store Store, clk clock.Clock, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &service{
		store:     store,
		waitlist:  waitlist.NewManager(clk),
		clock:     clk,
		publisher: publisher,
		metrics:   m,
		log:       logger,
	}
}

// outbox collects side effects that must only happen after commit.
type outbox struct {
	events      []events.Event
	transitions [][2]Status
	promoted    int
	expired     int
}

func (o *outbox) add(ev events.Event, err error) {
	if err == nil {
		o.events = append(o.events, ev)
	}
}

type bookingPayload struct {
	BookingID   string    `json:"booking_id"`
	ResourceID  string    `json:"resource_id"`
	RequesterID string    `json:"requester_id"`
	Status      Status    `json:"status"`
	From        Status    `json:"from,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	SeriesID    *string   `json:"series_id,omitempty"`
	DecisionBy  *string   `json:"decision_by,omitempty"`
	EntryID     string    `json:"waitlist_entry_id,omitempty"`
}

func newBookingPayload(b *Booking, from Status) bookingPayload {
	return bookingPayload{
		BookingID:   b.ID,
		ResourceID:  b.ResourceID,
		RequesterID: b.RequesterID,
		Status:      b.Status,
		From:        from,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		SeriesID:    b.SeriesID,
		DecisionBy:  b.DecisionBy,
	}
}

type entryPayload struct {
	EntryID     string    `json:"waitlist_entry_id"`
	ResourceID  string    `json:"resource_id"`
	RequesterID string    `json:"requester_id"`
	Status      string    `json:"status"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	BookingID   *string   `json:"booking_id,omitempty"`
}

func newEntryPayload(e *waitlist.Entry) entryPayload {
	return entryPayload{
		EntryID:     e.ID,
		ResourceID:  e.ResourceID,
		RequesterID: e.RequesterID,
		Status:      string(e.Status),
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		BookingID:   e.PromotedBookingID,
	}
}

func (s *service) logger(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.ServiceLogger(ctx, s.log, "booking", operation, attrs...)
}

// classify passes engine errors through and reports everything else, such as
// lost connections or serialization failures, as ErrInfrastructure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.WrapAs(err, ErrInfrastructure)
}

func (s *service) runInResourceTx(ctx context.Context, operation, resourceID string, fn func(ctx context.Context, tx Tx, res *resource.Resource) error) error {
	start := time.Now()
	err := s.store.RunInResourceTx(ctx, resourceID, fn)
	s.metrics.ObserveTx(operation, start)
	return classify(err)
}

func (s *service) runInTx(ctx context.Context, operation string, fn func(ctx context.Context, tx Tx) error) error {
	start := time.Now()
	err := s.store.RunInTx(ctx, fn)
	s.metrics.ObserveTx(operation, start)
	return classify(err)
}

// flush runs the outbox after a successful commit. Publishing failures are
// logged; the state change has already happened.
func (s *service) flush(ctx context.Context, operation string, ob *outbox) {
	ctx = context.WithoutCancel(ctx)
	for _, t := range ob.transitions {
		s.metrics.IncTransition(string(t[0]), string(t[1]))
	}
	s.metrics.AddPromotions(ob.promoted)
	s.metrics.AddExpired(ob.expired)

	for _, ev := range ob.events {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger(ctx, operation).Warn("publish event failed", "event", ev.Type, "error", err)
		}
	}
}

func (s *service) logFailure(ctx context.Context, operation string, err error, attrs ...any) {
	log := s.logger(ctx, operation, attrs...)
	if errors.Is(err, ErrInfrastructure) {
		log.Error("operation failed", "error_kind", "infrastructure", "error", err)
		return
	}
	log.Info("operation refused", "error", err)
}

func (s *service) newBooking(res *resource.Resource, requesterID string, iv interval.Interval, now time.Time) *Booking {
	return &Booking{
		ResourceID:  res.ID,
		RequesterID: requesterID,
		StartTime:   iv.Start,
		EndTime:     iv.End,
		Status:      InitialStatus(res),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *service) Request(ctx context.Context, req CreateRequest) (*Result, error) {
	iv, err := interval.New(req.StartTime, req.EndTime)
	if err != nil {
		return nil, ErrInvalidInterval
	}

	var rule *recurrence.Rule
	if req.RecurrenceRule != "" {
		r, err := recurrence.Parse(req.RecurrenceRule)
		if err != nil {
			return nil, apperror.WrapAs(err, ErrInvalidRecurrenceRule)
		}
		if req.JoinWaitlist {
			return nil, ErrRecurringWaitlist
		}
		rule = &r
	}

	now := s.clock.Now()
	if !iv.Start.After(now) {
		return nil, ErrStartTimePast
	}

	result := &Result{}
	ob := &outbox{}
	err = s.runInResourceTx(ctx, "request", req.ResourceID, func(ctx context.Context, tx Tx, res *resource.Resource) error {
		if rule != nil {
			series, err := s.createSeries(ctx, tx, res, req.RequesterID, *rule, iv, now)
			if err != nil {
				return err
			}
			result.Series = series
			for _, b := range series {
				ob.add(events.New(events.BookingCreated, now, newBookingPayload(b, "")))
			}
			return nil
		}

		if !resource.IsWithinAvailability(res, iv) {
			return ErrOutsideAvailability
		}

		conflicts, err := FindConflicts(ctx, tx, res.ID, iv, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			s.metrics.IncConflict()
			if !req.JoinWaitlist {
				return &ConflictError{Conflicts: conflicts}
			}
			entry, created, err := s.waitlist.Enqueue(ctx, tx.Waitlist(), res.ID, req.RequesterID, iv)
			if err != nil {
				return err
			}
			if created {
				ob.add(events.New(events.WaitlistEnqueued, now, newEntryPayload(entry)))
			}
			result.Entry = entry
			return nil
		}

		b := s.newBooking(res, req.RequesterID, iv, now)
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return err
		}
		result.Booking = b
		ob.add(events.New(events.BookingCreated, now, newBookingPayload(b, "")))
		return nil
	})
	if err != nil {
		s.metrics.IncRequest(requestOutcome(err))
		s.logFailure(ctx, "request", err, "resource_id", req.ResourceID, "requester_id", req.RequesterID)
		return nil, err
	}

	s.flush(ctx, "request", ob)

	log := s.logger(ctx, "request", "resource_id", req.ResourceID, "requester_id", req.RequesterID)
	switch {
	case result.Entry != nil:
		s.metrics.IncRequest("waitlisted")
		s.metrics.IncEnqueued()
		log.Info("request queued on waitlist", "waitlist_entry_id", result.Entry.ID)
	case result.Series != nil:
		s.metrics.IncRequest("series")
		log.Info("recurring series booked", "occurrences", len(result.Series), "series_id", *result.Series[0].SeriesID)
	default:
		s.metrics.IncRequest(string(result.Booking.Status))
		log.Info("booking created", "booking_id", result.Booking.ID, "status", result.Booking.Status)
	}
	return result, nil
}

func requestOutcome(err error) string {
	switch {
	case errors.Is(err, ErrOverlapConflict):
		return "conflict"
	case errors.Is(err, ErrOutsideAvailability):
		return "outside_availability"
	case errors.Is(err, ErrRecurrenceValidation):
		return "recurrence_invalid"
	case errors.Is(err, ErrInfrastructure):
		return "infrastructure"
	default:
		return "rejected"
	}
}

// createSeries validates every occurrence before writing any of them.
func (s *service) createSeries(ctx context.Context, tx Tx, res *resource.Resource, requesterID string, rule recurrence.Rule, base interval.Interval, now time.Time) ([]*Booking, error) {
	occurrences := rule.Expand(base, res.Location())

	var failures []OccurrenceFailure
	for i, occ := range occurrences {
		failure := OccurrenceFailure{Index: i, StartTime: occ.Start, EndTime: occ.End}

		if !resource.IsWithinAvailability(res, occ) {
			failure.Reason = ReasonOutsideWindow
			failures = append(failures, failure)
			continue
		}

		conflicts, err := FindConflicts(ctx, tx, res.ID, occ, "")
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			failure.Reason = ReasonConflict
			failure.Conflicts = conflictDetails(conflicts)
			failures = append(failures, failure)
			continue
		}

		for j := 0; j < i; j++ {
			if occurrences[j].Overlaps(occ) {
				failure.Reason = ReasonOverlapsOccurrence
				failures = append(failures, failure)
				break
			}
		}
	}
	if len(failures) > 0 {
		s.metrics.IncConflict()
		return nil, &RecurrenceError{Failures: failures}
	}

	seriesID := uuid.NewString()
	canonical := rule.String()
	description := rule.Describe()
	series := make([]*Booking, 0, len(occurrences))
	for i, occ := range occurrences {
		b := s.newBooking(res, requesterID, occ, now)
		b.SeriesID = &seriesID
		if i == 0 {
			b.RecurrenceRule = &canonical
			b.RecurrenceDescription = &description
		}
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return nil, err
		}
		series = append(series, b)
	}
	return series, nil
}

func (s *service) Decide(ctx context.Context, req DecideRequest) (*Booking, error) {
	to, ok := req.Decision.Status()
	if !ok {
		return nil, ErrInvalidDecision
	}
	return s.transition(ctx, "decide", req.BookingID, req.Actor, to, req.Notes)
}

func (s *service) Cancel(ctx context.Context, id string, actor user.Actor) (*Booking, error) {
	return s.transition(ctx, "cancel", id, actor, StatusCancelled, nil)
}

func (s *service) Complete(ctx context.Context, id string, actor user.Actor) (*Booking, error) {
	return s.transition(ctx, "complete", id, actor, StatusCompleted, nil)
}

func transitionEvent(to Status) events.Type {
	switch to {
	case StatusCancelled:
		return events.BookingCancelled
	case StatusCompleted:
		return events.BookingCompleted
	default:
		return events.BookingDecided
	}
}

func (s *service) transition(ctx context.Context, operation, id string, actor user.Actor, to Status, notes *string) (*Booking, error) {
	// A booking never moves between resources, so the pre-read only picks the lock.
	current, err := s.store.Reader().Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	var out *Booking
	var changed bool
	ob := &outbox{}
	err = s.runInResourceTx(ctx, operation, current.ResourceID, func(ctx context.Context, tx Tx, res *resource.Resource) error {
		b, err := tx.Bookings().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := Authorize(b, res, actor, to); err != nil {
			return err
		}

		from := b.Status
		now := s.clock.Now()
		changed, err = Transition(b, to, actor, notes, now)
		if err != nil {
			return err
		}
		out = b
		if !changed {
			return nil
		}

		if err := tx.Bookings().UpdateStatus(ctx, b); err != nil {
			return err
		}
		ob.transitions = append(ob.transitions, [2]Status{from, to})
		ob.add(events.New(transitionEvent(to), now, newBookingPayload(b, from)))

		if to == StatusCancelled || to == StatusRejected {
			return s.promote(ctx, tx, res, b.Interval(), ob)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, operation, err, "booking_id", id, "actor_id", actor.UserID)
		return nil, err
	}

	log := s.logger(ctx, operation, "booking_id", id, "actor_id", actor.UserID)
	if !changed {
		log.Info("booking unchanged", "status", out.Status)
		return out, nil
	}
	s.flush(ctx, operation, ob)
	log.Info("booking transitioned", "status", out.Status, "promoted", ob.promoted)
	return out, nil
}

// promote offers the freed interval to the resource's waitlist inside tx.
func (s *service) promote(ctx context.Context, tx Tx, res *resource.Resource, freed interval.Interval, ob *outbox) error {
	claim := func(ctx context.Context, e *waitlist.Entry) (string, error) {
		iv := e.Interval()
		if !resource.IsWithinAvailability(res, iv) {
			return "", waitlist.ErrUnbookable
		}
		conflicts, err := FindConflicts(ctx, tx, res.ID, iv, "")
		if err != nil {
			return "", err
		}
		if len(conflicts) > 0 {
			return "", waitlist.ErrBlocked
		}

		now := s.clock.Now()
		b := s.newBooking(res, e.RequesterID, iv, now)
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return "", err
		}
		payload := newBookingPayload(b, "")
		payload.EntryID = e.ID
		ob.add(events.New(events.BookingCreated, now, payload))
		return b.ID, nil
	}

	p, err := s.waitlist.Promote(ctx, tx.Waitlist(), res.ID, freed, claim)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for _, e := range p.Promoted {
		ob.add(events.New(events.WaitlistPromoted, now, newEntryPayload(e)))
	}
	ob.promoted += len(p.Promoted)
	ob.expired += len(p.Expired)
	return nil
}

func (s *service) CompleteElapsed(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	ob := &outbox{}
	err := s.runInTx(ctx, "sweep", func(ctx context.Context, tx Tx) error {
		now := s.clock.Now()
		completed, err := tx.Bookings().CompleteElapsed(ctx, now)
		if err != nil {
			return err
		}
		expired, err := s.waitlist.ExpireStarted(ctx, tx.Waitlist())
		if err != nil {
			return err
		}

		result.Completed = completed
		result.Expired = expired
		for _, b := range completed {
			ob.transitions = append(ob.transitions, [2]Status{StatusApproved, StatusCompleted})
			ob.add(events.New(events.BookingCompleted, now, newBookingPayload(b, StatusApproved)))
		}
		ob.expired = expired
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "sweep", err)
		return nil, err
	}

	s.flush(ctx, "sweep", ob)
	if len(result.Completed) > 0 || result.Expired > 0 {
		s.logger(ctx, "sweep").Info("sweep finished", "completed", len(result.Completed), "expired", result.Expired)
	}
	return result, nil
}

func (s *service) GetByID(ctx context.Context, id string, actor user.Actor) (*Booking, error) {
	reader := s.store.Reader()
	b, err := reader.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if actor.IsSystemAdmin || b.RequesterID == actor.UserID {
		return b, nil
	}

	res, err := reader.Resources().GetByID(ctx, b.ResourceID)
	if err != nil {
		return nil, classify(err)
	}
	if !res.IsAuthority(actor.UserID, actor.IsSystemAdmin) {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

// canSeeResource reports whether actor may list everything booked on resourceID.
func (s *service) canSeeResource(ctx context.Context, resourceID string, actor user.Actor) (bool, error) {
	if actor.IsSystemAdmin {
		return true, nil
	}
	if resourceID == "" {
		return false, nil
	}
	res, err := s.store.Reader().Resources().GetByID(ctx, resourceID)
	if err != nil {
		return false, classify(err)
	}
	return res.IsAuthority(actor.UserID, actor.IsSystemAdmin), nil
}

// List returns everything to system admins, a resource's bookings to its
// owner, and only their own bookings to everyone else.
func (s *service) List(ctx context.Context, filter Filter, actor user.Actor) ([]*Booking, int, error) {
	ok, err := s.canSeeResource(ctx, filter.ResourceID, actor)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		filter.RequesterID = actor.UserID
	}

	bookings, total, err := s.store.Reader().Bookings().List(ctx, filter)
	if err != nil {
		return nil, 0, classify(err)
	}
	return bookings, total, nil
}

func (s *service) Availability(ctx context.Context, resourceID string, date time.Time) (*Availability, error) {
	reader := s.store.Reader()
	res, err := reader.Resources().GetByID(ctx, resourceID)
	if err != nil {
		return nil, classify(err)
	}

	open := resource.OpenIntervals(res, date)
	out := &Availability{Date: date, TimeZone: res.Location().String(), Open: open}
	if len(open) == 0 {
		return out, nil
	}

	span := interval.Interval{Start: open[0].Start, End: open[len(open)-1].End}
	active, err := reader.Bookings().ListActiveByResource(ctx, res.ID, span)
	if err != nil {
		return nil, classify(err)
	}
	for _, b := range active {
		out.Busy = append(out.Busy, b.Interval())
	}
	out.Free = resource.FreeSlots(res, date, out.Busy)
	return out, nil
}

func (s *service) ListWaitlist(ctx context.Context, filter waitlist.Filter, actor user.Actor) ([]*waitlist.Entry, int, error) {
	ok, err := s.canSeeResource(ctx, filter.ResourceID, actor)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		filter.RequesterID = actor.UserID
	}

	entries, total, err := s.store.Reader().Waitlist().List(ctx, filter)
	if err != nil {
		return nil, 0, classify(err)
	}
	return entries, total, nil
}

func (s *service) WithdrawWaitlist(ctx context.Context, id string, actor user.Actor) (*waitlist.Entry, error) {
	current, err := s.store.Reader().Waitlist().GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	var out *waitlist.Entry
	ob := &outbox{}
	err = s.runInResourceTx(ctx, "withdraw", current.ResourceID, func(ctx context.Context, tx Tx, res *resource.Resource) error {
		e, err := tx.Waitlist().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if e.RequesterID != actor.UserID && !res.IsAuthority(actor.UserID, actor.IsSystemAdmin) {
			return ErrWaitlistPermissionDenied
		}
		if err := s.waitlist.Withdraw(ctx, tx.Waitlist(), e); err != nil {
			return err
		}
		out = e
		ob.add(events.New(events.WaitlistWithdrawn, s.clock.Now(), newEntryPayload(e)))
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "withdraw", err, "waitlist_entry_id", id, "actor_id", actor.UserID)
		return nil, err
	}

	s.flush(ctx, "withdraw", ob)
	s.logger(ctx, "withdraw", "waitlist_entry_id", id, "actor_id", actor.UserID).Info("waitlist entry withdrawn")
	return out, nil
}
