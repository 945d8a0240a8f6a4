package booking

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
)

var (
	ErrNotFound                 = apperror.New(http.StatusNotFound, "booking not found")
	ErrInvalidInterval          = apperror.New(http.StatusBadRequest, "start time must be before end time")
	ErrStartTimePast            = apperror.New(http.StatusBadRequest, "cannot create booking in the past")
	ErrOutsideAvailability      = apperror.New(http.StatusUnprocessableEntity, "requested time is outside the resource's availability windows")
	ErrOverlapConflict          = apperror.New(http.StatusConflict, "time slot already booked")
	ErrRecurrenceValidation     = apperror.New(http.StatusUnprocessableEntity, "one or more occurrences cannot be booked")
	ErrInvalidRecurrenceRule    = apperror.New(http.StatusBadRequest, "invalid recurrence rule")
	ErrRecurringWaitlist        = apperror.New(http.StatusBadRequest, "recurring requests cannot join the waitlist")
	ErrInvalidDecision          = apperror.New(http.StatusBadRequest, "decision must be approve or reject")
	ErrInvalidTransition        = apperror.New(http.StatusConflict, "invalid booking status transition")
	ErrUnauthorizedTransition   = apperror.New(http.StatusForbidden, "requester cannot decide their own booking")
	ErrPermissionDenied         = apperror.New(http.StatusForbidden, "permission denied")
	ErrWaitlistPermissionDenied = apperror.New(http.StatusForbidden, "cannot withdraw another user's waitlist entry")
	ErrInfrastructure           = apperror.New(http.StatusServiceUnavailable, "storage unavailable, retry the request")
)

// ConflictDetail is the client-facing view of a conflicting booking.
type ConflictDetail struct {
	BookingID string    `json:"booking_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    Status    `json:"status"`
}

func conflictDetails(bookings []*Booking) []ConflictDetail {
	out := make([]ConflictDetail, len(bookings))
	for i, b := range bookings {
		out[i] = ConflictDetail{BookingID: b.ID, StartTime: b.StartTime, EndTime: b.EndTime, Status: b.Status}
	}
	return out
}

// ConflictError is an OverlapConflict carrying every active booking that
// overlaps the requested interval.
type ConflictError struct {
	Conflicts []*Booking
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (%d conflicting bookings)", ErrOverlapConflict.Message, len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return ErrOverlapConflict }

func (e *ConflictError) Details() any {
	return map[string]any{"conflicts": conflictDetails(e.Conflicts)}
}

// Reasons an occurrence of a series fails validation.
const (
	ReasonOutsideWindow      = "outside_availability"
	ReasonConflict           = "conflict"
	ReasonOverlapsOccurrence = "overlaps_occurrence"
)

// OccurrenceFailure describes why one occurrence of a series was refused.
type OccurrenceFailure struct {
	Index     int              `json:"index"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Reason    string           `json:"reason"`
	Conflicts []ConflictDetail `json:"conflicts,omitempty"`
}

// RecurrenceError is a RecurrenceValidationFailure listing every failing occurrence.
type RecurrenceError struct {
	Failures []OccurrenceFailure
}

func (e *RecurrenceError) Error() string {
	return fmt.Sprintf("%s (%d of the occurrences failed)", ErrRecurrenceValidation.Message, len(e.Failures))
}

func (e *RecurrenceError) Unwrap() error { return ErrRecurrenceValidation }

func (e *RecurrenceError) Details() any {
	return map[string]any{"failures": e.Failures}
}
