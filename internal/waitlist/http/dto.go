package http

import (
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/reservation-engine/internal/waitlist"
)

// ListEntriesRequest defines query parameters for listing waitlist entries.
type ListEntriesRequest struct {
	request.ListParams
	ResourceID  string `form:"resource_id" binding:"omitempty,uuid"`
	RequesterID string `form:"requester_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=waiting promoted expired withdrawn"`
}

type EntryResponse struct {
	ID                string    `json:"id"`
	ResourceID        string    `json:"resource_id"`
	RequesterID       string    `json:"requester_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Status            string    `json:"status"`
	PromotedBookingID *string   `json:"promoted_booking_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func NewEntryResponse(e *waitlist.Entry) EntryResponse {
	return EntryResponse{
		ID:                e.ID,
		ResourceID:        e.ResourceID,
		RequesterID:       e.RequesterID,
		StartTime:         e.StartTime,
		EndTime:           e.EndTime,
		Status:            string(e.Status),
		PromotedBookingID: e.PromotedBookingID,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}
