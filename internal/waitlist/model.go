package waitlist

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

var (
	ErrNotFound      = apperror.New(http.StatusNotFound, "waitlist entry not found")
	ErrNotWaiting    = apperror.New(http.StatusConflict, "waitlist entry is no longer waiting")
	ErrInvalidStatus = apperror.New(http.StatusBadRequest, "invalid waitlist status")
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPromoted  Status = "promoted"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusPromoted, StatusExpired, StatusWithdrawn:
		return true
	}
	return false
}

// Entry is a request that could not be granted because its interval was taken.
type Entry struct {
	ID                string
	ResourceID        string
	RequesterID       string
	StartTime         time.Time
	EndTime           time.Time
	Status            Status
	PromotedBookingID *string
	CreatedAt         time.Time // FIFO order
	UpdatedAt         time.Time
}

func (e *Entry) Interval() interval.Interval {
	return interval.Interval{Start: e.StartTime, End: e.EndTime}
}

type Filter struct {
	ResourceID  string
	RequesterID string
	Status      Status
	Page        int
	PageSize    int
	SortOrder   string
}
