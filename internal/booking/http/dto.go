package http

import (
	"errors"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	waitlistHttp "github.com/nekogravitycat/reservation-engine/internal/waitlist/http"
)

var ErrInvalidTimeRange = errors.New("start_time_from must not be after start_time_to")

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	ResourceID    string     `form:"resource_id" binding:"omitempty,uuid"`
	RequesterID   string     `form:"requester_id" binding:"omitempty,uuid"`
	SeriesID      string     `form:"series_id" binding:"omitempty,uuid"`
	Status        string     `form:"status" binding:"omitempty,oneof=pending approved rejected cancelled completed"`
	StartTimeFrom *time.Time `form:"start_time_from" time_format:"2006-01-02T15:04:05Z07:00"`
	StartTimeTo   *time.Time `form:"start_time_to" time_format:"2006-01-02T15:04:05Z07:00"`
	SortBy        string     `form:"sort_by" binding:"omitempty,oneof=start_time end_time created_at status"`
}

// Validate performs custom validation for ListBookingsRequest.
func (r *ListBookingsRequest) Validate() error {
	if r.StartTimeFrom != nil && r.StartTimeTo != nil {
		if r.StartTimeFrom.After(*r.StartTimeTo) {
			return ErrInvalidTimeRange
		}
	}
	return r.ListParams.Validate()
}

type BookingResponse struct {
	ID                    string    `json:"id"`
	ResourceID            string    `json:"resource_id"`
	RequesterID           string    `json:"requester_id"`
	StartTime             time.Time `json:"start_time"`
	EndTime               time.Time `json:"end_time"`
	Status                string    `json:"status"`
	DecisionNotes         *string   `json:"decision_notes"`
	DecisionBy            *string   `json:"decision_by"`
	SeriesID              *string   `json:"series_id,omitempty"`
	RecurrenceRule        *string   `json:"recurrence_rule,omitempty"`
	RecurrenceDescription *string   `json:"recurrence_description,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:                    b.ID,
		ResourceID:            b.ResourceID,
		RequesterID:           b.RequesterID,
		StartTime:             b.StartTime,
		EndTime:               b.EndTime,
		Status:                string(b.Status),
		DecisionNotes:         b.DecisionNotes,
		DecisionBy:            b.DecisionBy,
		SeriesID:              b.SeriesID,
		RecurrenceRule:        b.RecurrenceRule,
		RecurrenceDescription: b.RecurrenceDescription,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
	}
}

func newBookingResponses(bookings []*booking.Booking) []BookingResponse {
	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	return items
}

type CreateBookingRequest struct {
	ResourceID     string    `json:"resource_id" binding:"required,uuid"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required"`
	RecurrenceRule string    `json:"recurrence_rule"`
	JoinWaitlist   bool      `json:"join_waitlist"`
}

// SeriesResponse is returned when a recurring request books every occurrence.
type SeriesResponse struct {
	SeriesID string            `json:"series_id"`
	Bookings []BookingResponse `json:"bookings"`
}

// QueuedResponse is returned with 202 when the request joined the waitlist.
type QueuedResponse struct {
	WaitlistEntry waitlistHttp.EntryResponse `json:"waitlist_entry"`
}

type DecisionRequest struct {
	Decision string  `json:"decision" binding:"required,oneof=approve reject"`
	Notes    *string `json:"notes"`
}

type SweepResponse struct {
	Completed []BookingResponse `json:"completed"`
	Expired   int               `json:"expired_waitlist_entries"`
}
