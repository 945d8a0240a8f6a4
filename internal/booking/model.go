package booking

import (
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ActiveStatuses occupy their interval and count toward conflicts.
var ActiveStatuses = []Status{StatusPending, StatusApproved, StatusCompleted}

func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Booking struct {
	ID                    string
	ResourceID            string
	RequesterID           string
	StartTime             time.Time
	EndTime               time.Time
	Status                Status
	DecisionNotes         *string
	DecisionBy            *string
	RecurrenceRule        *string // canonical rule, first occurrence of a series only
	RecurrenceDescription *string // human summary written alongside RecurrenceRule
	SeriesID              *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (b *Booking) Interval() interval.Interval {
	return interval.Interval{Start: b.StartTime, End: b.EndTime}
}

type Filter struct {
	RequesterID string
	ResourceID  string
	SeriesID    string
	Status      Status
	StartTime   *time.Time // Filter bookings starting at or after this time
	EndTime     *time.Time // Filter bookings ending at or before this time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// Decision is the outcome an authority gives to a pending booking.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status maps the decision to the status it produces.
func (d Decision) Status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}
