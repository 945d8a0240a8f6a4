package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/events"
	"github.com/nekogravitycat/reservation-engine/internal/memstore"
	"github.com/nekogravitycat/reservation-engine/internal/metrics"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/clock"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
	"github.com/nekogravitycat/reservation-engine/internal/user"
	"github.com/nekogravitycat/reservation-engine/internal/waitlist"
)

// Monday 2024-03-04.
var day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type fixture struct {
	store   *memstore.Store
	clock   *clock.Manual
	events  *events.Recorder
	metrics *metrics.Metrics
	svc     booking.Service

	owner user.Actor
	admin user.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memstore.New(),
		clock:   clock.NewManual(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)),
		events:  &events.Recorder{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.svc = booking.NewService(f.store, f.clock, f.events, f.metrics, nil)
	f.owner = user.Actor{UserID: f.user(t, "owner@example.com")}
	f.admin = user.Actor{UserID: f.user(t, "admin@example.com"), IsSystemAdmin: true}
	return f
}

func (f *fixture) user(t *testing.T, email string) string {
	t.Helper()
	u := &user.User{Email: email, IsActive: true}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u.ID
}

func (f *fixture) actor(t *testing.T, email string) user.Actor {
	return user.Actor{UserID: f.user(t, email)}
}

func (f *fixture) resource(t *testing.T, restricted bool, schedule *resource.Schedule) *resource.Resource {
	t.Helper()
	res := &resource.Resource{
		OwnerID:      f.owner.UserID,
		Name:         "Study Room 1",
		Capacity:     4,
		IsRestricted: restricted,
		TimeZone:     "UTC",
		Schedule:     schedule,
	}
	require.NoError(t, f.store.Resources().Create(context.Background(), res))
	return res
}

func (f *fixture) book(t *testing.T, resourceID string, requester user.Actor, start, end time.Time) *booking.Booking {
	t.Helper()
	result, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:  resourceID,
		RequesterID: requester.UserID,
		StartTime:   start,
		EndTime:     end,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Booking)
	return result.Booking
}

func (f *fixture) wait(t *testing.T, resourceID string, requester user.Actor, start, end time.Time) *waitlist.Entry {
	t.Helper()
	result, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:   resourceID,
		RequesterID:  requester.UserID,
		StartTime:    start,
		EndTime:      end,
		JoinWaitlist: true,
	})
	require.NoError(t, err)
	require.Nil(t, result.Booking)
	require.NotNil(t, result.Entry)
	return result.Entry
}

func (f *fixture) total(t *testing.T) int {
	t.Helper()
	_, n, err := f.store.Reader().Bookings().List(context.Background(), booking.Filter{})
	require.NoError(t, err)
	return n
}

func weekdays(open, close string) *resource.Schedule {
	w := resource.Window{Start: resource.MustClockTime(open), End: resource.MustClockTime(close)}
	days := map[time.Weekday][]resource.Window{}
	for d := time.Monday; d <= time.Friday; d++ {
		days[d] = []resource.Window{w}
	}
	s, err := resource.NewSchedule(days)
	if err != nil {
		panic(err)
	}
	return s
}

func TestRequest_InitialStatusFollowsRestriction(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")

	open := f.resource(t, false, nil)
	restricted := f.resource(t, true, nil)

	assert.Equal(t, booking.StatusApproved, f.book(t, open.ID, alice, at(10, 0), at(11, 0)).Status)
	assert.Equal(t, booking.StatusPending, f.book(t, restricted.ID, alice, at(10, 0), at(11, 0)).Status)
	assert.Equal(t, []events.Type{events.BookingCreated, events.BookingCreated}, f.events.Types())
}

func TestRequest_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, false, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     booking.CreateRequest
		wantErr error
	}{
		{"end before start", booking.CreateRequest{StartTime: at(11, 0), EndTime: at(10, 0)}, booking.ErrInvalidInterval},
		{"empty interval", booking.CreateRequest{StartTime: at(11, 0), EndTime: at(11, 0)}, booking.ErrInvalidInterval},
		{"start in the past", booking.CreateRequest{StartTime: at(10, 0).AddDate(0, 0, -7), EndTime: at(11, 0).AddDate(0, 0, -7)}, booking.ErrStartTimePast},
		{"malformed rule", booking.CreateRequest{StartTime: at(10, 0), EndTime: at(11, 0), RecurrenceRule: "FREQ=HOURLY;COUNT=2"}, booking.ErrInvalidRecurrenceRule},
		{"recurring on waitlist", booking.CreateRequest{StartTime: at(10, 0), EndTime: at(11, 0), RecurrenceRule: "FREQ=DAILY;COUNT=2", JoinWaitlist: true}, booking.ErrRecurringWaitlist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.ResourceID = res.ID
			tt.req.RequesterID = alice.UserID
			_, err := f.svc.Request(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, f.total(t))
}

func TestRequest_UnknownResource(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:  "missing",
		RequesterID: f.owner.UserID,
		StartTime:   at(10, 0),
		EndTime:     at(11, 0),
	})
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestRequest_OutsideAvailability(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, false, weekdays("09:00", "17:00"))

	_, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:  res.ID,
		RequesterID: alice.UserID,
		StartTime:   at(16, 0),
		EndTime:     at(18, 0),
	})
	assert.ErrorIs(t, err, booking.ErrOutsideAvailability)

	// Saturday is not configured.
	_, err = f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:  res.ID,
		RequesterID: alice.UserID,
		StartTime:   at(10, 0).AddDate(0, 0, 5),
		EndTime:     at(11, 0).AddDate(0, 0, 5),
	})
	assert.ErrorIs(t, err, booking.ErrOutsideAvailability)

	f.book(t, res.ID, alice, at(9, 0), at(17, 0))
	assert.Equal(t, 1, f.total(t))
}

func TestRequest_ConflictReportsBlockingBookings(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	res := f.resource(t, false, nil)

	held := f.book(t, res.ID, alice, at(10, 0), at(12, 0))

	_, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:  res.ID,
		RequesterID: bob.UserID,
		StartTime:   at(11, 0),
		EndTime:     at(13, 0),
	})
	require.ErrorIs(t, err, booking.ErrOverlapConflict)

	var conflict *booking.ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, held.ID, conflict.Conflicts[0].ID)
	assert.Equal(t, 1, f.total(t))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Conflicts))
}

func TestRequest_BackToBackIsAllowed(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, false, nil)

	f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	f.book(t, res.ID, alice, at(11, 0), at(12, 0))
	f.book(t, res.ID, alice, at(9, 0), at(10, 0))
	assert.Equal(t, 3, f.total(t))
}

func TestRequest_RejectedAndCancelledDoNotBlock(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	res := f.resource(t, true, nil)
	ctx := context.Background()

	first := f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	_, err := f.svc.Decide(ctx, booking.DecideRequest{BookingID: first.ID, Decision: booking.DecisionReject, Actor: f.owner})
	require.NoError(t, err)

	second := f.book(t, res.ID, bob, at(10, 0), at(11, 0))
	_, err = f.svc.Cancel(ctx, second.ID, bob)
	require.NoError(t, err)

	third := f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	assert.Equal(t, booking.StatusPending, third.Status)
}

func TestRequest_JoinWaitlistDeduplicates(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	res := f.resource(t, false, nil)

	f.book(t, res.ID, alice, at(10, 0), at(12, 0))

	first := f.wait(t, res.ID, bob, at(10, 0), at(12, 0))
	again := f.wait(t, res.ID, bob, at(10, 0), at(12, 0))
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, waitlist.StatusWaiting, first.Status)

	entries, total, err := f.svc.ListWaitlist(context.Background(), waitlist.Filter{}, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, first.ID, entries[0].ID)

	assert.Equal(t, 1, f.total(t))
	assert.Equal(t, []events.Type{events.BookingCreated, events.WaitlistEnqueued}, f.events.Types())
}

func TestRequest_JoinWaitlistWhenFreeBooksDirectly(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, false, nil)

	result, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:   res.ID,
		RequesterID:  alice.UserID,
		StartTime:    at(10, 0),
		EndTime:      at(11, 0),
		JoinWaitlist: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Booking)
	assert.Nil(t, result.Entry)
}

func TestRequest_WeeklySeries(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, true, weekdays("08:00", "22:00"))

	result, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:     res.ID,
		RequesterID:    alice.UserID,
		StartTime:      at(18, 0),
		EndTime:        at(19, 0),
		RecurrenceRule: "count=4;freq=weekly",
	})
	require.NoError(t, err)
	require.Len(t, result.Series, 4)
	assert.Nil(t, result.Booking)

	first := result.Series[0]
	require.NotNil(t, first.SeriesID)
	require.NotNil(t, first.RecurrenceRule)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", *first.RecurrenceRule)
	require.NotNil(t, first.RecurrenceDescription)
	assert.Equal(t, "Weekly (4 occurrences)", *first.RecurrenceDescription)

	for i, b := range result.Series {
		assert.True(t, at(18, 0).AddDate(0, 0, 7*i).Equal(b.StartTime), "occurrence %d", i)
		assert.True(t, at(19, 0).AddDate(0, 0, 7*i).Equal(b.EndTime), "occurrence %d", i)
		assert.Equal(t, booking.StatusPending, b.Status)
		require.NotNil(t, b.SeriesID)
		assert.Equal(t, *first.SeriesID, *b.SeriesID)
		if i > 0 {
			assert.Nil(t, b.RecurrenceRule)
			assert.Nil(t, b.RecurrenceDescription)
		}
	}

	listed, total, err := f.svc.List(context.Background(), booking.Filter{SeriesID: *first.SeriesID}, alice)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, listed, 4)
}

func TestRequest_WeeklySeriesKeepsLocalTimeAcrossDST(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	mondays, err := resource.NewSchedule(map[time.Weekday][]resource.Window{
		time.Monday: {{Start: resource.MustClockTime("18:00"), End: resource.MustClockTime("20:00")}},
	})
	require.NoError(t, err)
	res := &resource.Resource{
		OwnerID:  f.owner.UserID,
		Name:     "Rehearsal Hall",
		Capacity: 1,
		TimeZone: "America/New_York",
		Schedule: mondays,
	}
	require.NoError(t, f.store.Resources().Create(context.Background(), res))

	// The series crosses the 2024-03-10 switch to daylight saving time.
	result, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:     res.ID,
		RequesterID:    alice.UserID,
		StartTime:      time.Date(2024, 3, 4, 18, 0, 0, 0, ny),
		EndTime:        time.Date(2024, 3, 4, 20, 0, 0, 0, ny),
		RecurrenceRule: "FREQ=WEEKLY;COUNT=4",
	})
	require.NoError(t, err)
	require.Len(t, result.Series, 4)

	for i, b := range result.Series {
		local := b.StartTime.In(ny)
		assert.Equal(t, time.Monday, local.Weekday(), "occurrence %d", i)
		assert.Equal(t, 18, local.Hour(), "occurrence %d starts %s", i, local)
		assert.Equal(t, 2*time.Hour, b.EndTime.Sub(b.StartTime))
	}
	assert.Equal(t, 22, result.Series[1].StartTime.Hour(), "18:00 EDT is 22:00 UTC")
}

func TestRequest_SeriesIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	res := f.resource(t, false, nil)

	blocker := f.book(t, res.ID, bob, at(18, 30).AddDate(0, 0, 14), at(19, 30).AddDate(0, 0, 14))
	before := len(f.events.Events())

	_, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:     res.ID,
		RequesterID:    alice.UserID,
		StartTime:      at(18, 0),
		EndTime:        at(19, 0),
		RecurrenceRule: "FREQ=WEEKLY;COUNT=4",
	})
	require.ErrorIs(t, err, booking.ErrRecurrenceValidation)

	var recErr *booking.RecurrenceError
	require.True(t, errors.As(err, &recErr))
	require.Len(t, recErr.Failures, 1)
	failure := recErr.Failures[0]
	assert.Equal(t, 2, failure.Index)
	assert.Equal(t, booking.ReasonConflict, failure.Reason)
	require.Len(t, failure.Conflicts, 1)
	assert.Equal(t, blocker.ID, failure.Conflicts[0].BookingID)

	assert.Equal(t, 1, f.total(t))
	assert.Len(t, f.events.Events(), before)
}

func TestRequest_SeriesReportsEveryFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, false, weekdays("08:00", "22:00"))

	// Daily from Thursday lands on Saturday and Sunday.
	_, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:     res.ID,
		RequesterID:    alice.UserID,
		StartTime:      at(9, 0).AddDate(0, 0, 3),
		EndTime:        at(10, 0).AddDate(0, 0, 3),
		RecurrenceRule: "FREQ=DAILY;COUNT=5",
	})
	var recErr *booking.RecurrenceError
	require.True(t, errors.As(err, &recErr))
	require.Len(t, recErr.Failures, 2)
	assert.Equal(t, 2, recErr.Failures[0].Index)
	assert.Equal(t, 3, recErr.Failures[1].Index)
	for _, fail := range recErr.Failures {
		assert.Equal(t, booking.ReasonOutsideWindow, fail.Reason)
	}
	assert.Zero(t, f.total(t))
}

func TestRequest_SeriesOccurrencesMustNotOverlapEachOther(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, false, nil)

	_, err := f.svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:     res.ID,
		RequesterID:    alice.UserID,
		StartTime:      at(10, 0),
		EndTime:        at(10, 0).Add(30 * time.Hour),
		RecurrenceRule: "FREQ=DAILY;COUNT=2",
	})
	var recErr *booking.RecurrenceError
	require.True(t, errors.As(err, &recErr))
	require.Len(t, recErr.Failures, 1)
	assert.Equal(t, 1, recErr.Failures[0].Index)
	assert.Equal(t, booking.ReasonOverlapsOccurrence, recErr.Failures[0].Reason)
	assert.Zero(t, f.total(t))
}

func TestDecide_Authorization(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	mallory := f.actor(t, "mallory@example.com")
	res := f.resource(t, true, nil)
	ctx := context.Background()

	b := f.book(t, res.ID, alice, at(10, 0), at(11, 0))

	_, err := f.svc.Decide(ctx, booking.DecideRequest{BookingID: b.ID, Decision: booking.DecisionApprove, Actor: alice})
	assert.ErrorIs(t, err, booking.ErrUnauthorizedTransition)

	_, err = f.svc.Decide(ctx, booking.DecideRequest{BookingID: b.ID, Decision: booking.DecisionApprove, Actor: mallory})
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)

	_, err = f.svc.Decide(ctx, booking.DecideRequest{BookingID: b.ID, Decision: "maybe", Actor: f.owner})
	assert.ErrorIs(t, err, booking.ErrInvalidDecision)

	_, err = f.svc.Decide(ctx, booking.DecideRequest{BookingID: "missing", Decision: booking.DecisionApprove, Actor: f.owner})
	assert.ErrorIs(t, err, booking.ErrNotFound)

	got, err := f.svc.GetByID(ctx, b.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, got.Status)
}

func TestDecide_RedecisionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, true, nil)
	ctx := context.Background()
	notes := "approved for the workshop"

	b := f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	req := booking.DecideRequest{BookingID: b.ID, Decision: booking.DecisionApprove, Actor: f.owner, Notes: &notes}

	first, err := f.svc.Decide(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusApproved, first.Status)
	require.NotNil(t, first.DecisionBy)
	assert.Equal(t, f.owner.UserID, *first.DecisionBy)
	published := len(f.events.Events())

	f.clock.Advance(time.Hour)
	second, err := f.svc.Decide(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Len(t, f.events.Events(), published)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("pending", "approved")))
}

func TestDecide_RejectedCannotBeApproved(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, true, nil)
	ctx := context.Background()

	b := f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	_, err := f.svc.Decide(ctx, booking.DecideRequest{BookingID: b.ID, Decision: booking.DecisionReject, Actor: f.owner})
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, booking.DecideRequest{BookingID: b.ID, Decision: booking.DecisionApprove, Actor: f.admin})
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	got, err := f.svc.GetByID(ctx, b.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusRejected, got.Status)
}

func TestCancel_PromotesWaitlistInFIFOOrder(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	carol := f.actor(t, "carol@example.com")
	res := f.resource(t, false, nil)
	ctx := context.Background()

	held := f.book(t, res.ID, alice, at(10, 0), at(12, 0))
	first := f.wait(t, res.ID, bob, at(10, 0), at(12, 0))
	f.clock.Advance(time.Minute)
	second := f.wait(t, res.ID, carol, at(11, 0), at(13, 0))

	cancelled, err := f.svc.Cancel(ctx, held.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)

	promoted, err := f.store.Reader().Waitlist().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, waitlist.StatusPromoted, promoted.Status)
	require.NotNil(t, promoted.PromotedBookingID)

	b, err := f.svc.GetByID(ctx, *promoted.PromotedBookingID, bob)
	require.NoError(t, err)
	assert.Equal(t, bob.UserID, b.RequesterID)
	assert.Equal(t, at(10, 0), b.StartTime)
	assert.Equal(t, booking.StatusApproved, b.Status)

	still, err := f.store.Reader().Waitlist().GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, waitlist.StatusWaiting, still.Status)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.WaitlistPromotions))
	assert.Contains(t, f.events.Types(), events.WaitlistPromoted)
}

func TestCancel_SkipsBlockedHead(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	carol := f.actor(t, "carol@example.com")
	dave := f.actor(t, "dave@example.com")
	res := f.resource(t, false, nil)
	ctx := context.Background()

	f.book(t, res.ID, dave, at(8, 0), at(10, 0))
	held := f.book(t, res.ID, alice, at(10, 0), at(12, 0))
	head := f.wait(t, res.ID, bob, at(9, 0), at(11, 0))
	next := f.wait(t, res.ID, carol, at(11, 0), at(13, 0))

	_, err := f.svc.Cancel(ctx, held.ID, f.owner)
	require.NoError(t, err)

	blocked, err := f.store.Reader().Waitlist().GetByID(ctx, head.ID)
	require.NoError(t, err)
	assert.Equal(t, waitlist.StatusWaiting, blocked.Status)

	promoted, err := f.store.Reader().Waitlist().GetByID(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, waitlist.StatusPromoted, promoted.Status)
}

func TestReject_PromotesIntoPending(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	res := f.resource(t, true, nil)
	ctx := context.Background()

	held := f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	entry := f.wait(t, res.ID, bob, at(10, 0), at(11, 0))

	_, err := f.svc.Decide(ctx, booking.DecideRequest{BookingID: held.ID, Decision: booking.DecisionReject, Actor: f.owner})
	require.NoError(t, err)

	promoted, err := f.store.Reader().Waitlist().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, waitlist.StatusPromoted, promoted.Status)

	b, err := f.svc.GetByID(ctx, *promoted.PromotedBookingID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
}

func TestCancel_ExpiresStartedEntries(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	res := f.resource(t, false, nil)
	ctx := context.Background()

	held := f.book(t, res.ID, alice, at(10, 0), at(12, 0))
	entry := f.wait(t, res.ID, bob, at(10, 0), at(12, 0))

	f.clock.Set(at(10, 30))
	_, err := f.svc.Cancel(ctx, held.ID, alice)
	require.NoError(t, err)

	got, err := f.store.Reader().Waitlist().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, waitlist.StatusExpired, got.Status)
	assert.Equal(t, 1, f.total(t))
}

func TestCancel_Authorization(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	mallory := f.actor(t, "mallory@example.com")
	res := f.resource(t, false, nil)
	ctx := context.Background()

	b := f.book(t, res.ID, alice, at(10, 0), at(11, 0))

	_, err := f.svc.Cancel(ctx, b.ID, mallory)
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)

	_, err = f.svc.Cancel(ctx, b.ID, alice)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, b.ID, alice)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestComplete_AdminOverride(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, false, nil)
	ctx := context.Background()

	b := f.book(t, res.ID, alice, at(10, 0), at(11, 0))

	_, err := f.svc.Complete(ctx, b.ID, alice)
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)

	done, err := f.svc.Complete(ctx, b.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, done.Status)

	// Completed bookings still occupy their slot.
	_, err = f.svc.Request(ctx, booking.CreateRequest{ResourceID: res.ID, RequesterID: alice.UserID, StartTime: at(10, 0), EndTime: at(11, 0)})
	assert.ErrorIs(t, err, booking.ErrOverlapConflict)
}

func TestCompleteElapsed(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	open := f.resource(t, false, nil)
	restricted := f.resource(t, true, nil)
	ctx := context.Background()

	done := f.book(t, open.ID, alice, at(10, 0), at(12, 0))
	f.book(t, open.ID, alice, at(14, 0), at(15, 0))
	pending := f.book(t, restricted.ID, alice, at(10, 0), at(11, 0))
	entry := f.wait(t, open.ID, bob, at(14, 0), at(15, 0))

	f.clock.Set(at(14, 30))
	result, err := f.svc.CompleteElapsed(ctx)
	require.NoError(t, err)
	require.Len(t, result.Completed, 1)
	assert.Equal(t, done.ID, result.Completed[0].ID)
	assert.Equal(t, 1, result.Expired)

	got, err := f.svc.GetByID(ctx, pending.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, got.Status)

	e, err := f.store.Reader().Waitlist().GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, waitlist.StatusExpired, e.Status)

	again, err := f.svc.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Completed)
	assert.Zero(t, again.Expired)
}

func TestWithdrawWaitlist(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	mallory := f.actor(t, "mallory@example.com")
	res := f.resource(t, false, nil)
	ctx := context.Background()

	f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	entry := f.wait(t, res.ID, bob, at(10, 0), at(11, 0))

	_, err := f.svc.WithdrawWaitlist(ctx, entry.ID, mallory)
	assert.ErrorIs(t, err, booking.ErrWaitlistPermissionDenied)

	withdrawn, err := f.svc.WithdrawWaitlist(ctx, entry.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, waitlist.StatusWithdrawn, withdrawn.Status)

	_, err = f.svc.WithdrawWaitlist(ctx, entry.ID, bob)
	assert.ErrorIs(t, err, waitlist.ErrNotWaiting)

	_, err = f.svc.WithdrawWaitlist(ctx, "missing", bob)
	assert.ErrorIs(t, err, waitlist.ErrNotFound)
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	bob := f.actor(t, "bob@example.com")
	res := f.resource(t, false, nil)
	ctx := context.Background()

	mine := f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	f.book(t, res.ID, bob, at(11, 0), at(12, 0))

	_, err := f.svc.GetByID(ctx, mine.ID, bob)
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)
	_, err = f.svc.GetByID(ctx, mine.ID, f.owner)
	assert.NoError(t, err)

	listed, total, err := f.svc.List(ctx, booking.Filter{ResourceID: res.ID}, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, bob.UserID, listed[0].RequesterID)

	_, total, err = f.svc.List(ctx, booking.Filter{ResourceID: res.ID}, f.owner)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = f.svc.List(ctx, booking.Filter{}, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	alice := f.actor(t, "alice@example.com")
	res := f.resource(t, false, weekdays("09:00", "17:00"))

	f.book(t, res.ID, alice, at(10, 0), at(11, 0))
	f.book(t, res.ID, alice, at(13, 0), at(14, 30))

	got, err := f.svc.Availability(context.Background(), res.ID, day)
	require.NoError(t, err)
	require.Len(t, got.Open, 1)
	assert.Equal(t, at(9, 0), got.Open[0].Start)
	assert.Len(t, got.Busy, 2)

	require.Len(t, got.Free, 3)
	assert.Equal(t, at(9, 0), got.Free[0].Start)
	assert.Equal(t, at(10, 0), got.Free[0].End)
	assert.Equal(t, at(11, 0), got.Free[1].Start)
	assert.Equal(t, at(13, 0), got.Free[1].End)
	assert.Equal(t, at(14, 30), got.Free[2].Start)
	assert.Equal(t, at(17, 0), got.Free[2].End)

	closed, err := f.svc.Availability(context.Background(), res.ID, day.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, closed.Open)
	assert.Empty(t, closed.Free)
}

func TestRequest_ConcurrentRequestsNeverOverlap(t *testing.T) {
	f := newFixture(t)
	res := f.resource(t, false, nil)
	ctx := context.Background()

	const workers = 40
	requesters := make([]user.Actor, workers)
	for i := range requesters {
		requesters[i] = f.actor(t, fmt.Sprintf("user%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Staggered half-hour offsets so neighbours overlap.
			start := at(8, 0).Add(time.Duration(i%8) * 30 * time.Minute)
			_, err := f.svc.Request(ctx, booking.CreateRequest{
				ResourceID:  res.ID,
				RequesterID: requesters[i].UserID,
				StartTime:   start,
				EndTime:     start.Add(time.Hour),
			})
			if err != nil && !errors.Is(err, booking.ErrOverlapConflict) {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	all, _, err := f.store.Reader().Bookings().List(ctx, booking.Filter{ResourceID: res.ID, PageSize: 100})
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			assert.False(t, all[i].Interval().Overlaps(all[j].Interval()),
				"%s overlaps %s", all[i].Interval(), all[j].Interval())
		}
	}
}

type brokenStore struct {
	booking.Store
	err error
}

func (s brokenStore) RunInResourceTx(context.Context, string, func(context.Context, booking.Tx, *resource.Resource) error) error {
	return s.err
}

func TestRequest_StoreFailureIsInfrastructure(t *testing.T) {
	f := newFixture(t)
	res := f.resource(t, false, nil)
	svc := booking.NewService(brokenStore{Store: f.store, err: errors.New("connection reset")}, f.clock, nil, nil, nil)

	_, err := svc.Request(context.Background(), booking.CreateRequest{
		ResourceID:  res.ID,
		RequesterID: f.owner.UserID,
		StartTime:   at(10, 0),
		EndTime:     at(11, 0),
	})
	assert.ErrorIs(t, err, booking.ErrInfrastructure)
	assert.NotErrorIs(t, err, booking.ErrOverlapConflict)
}
