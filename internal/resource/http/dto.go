package http

import (
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

// ListResourcesRequest defines query parameters for listing resources.
type ListResourcesRequest struct {
	request.ListParams
	OwnerID      string `form:"owner_id" binding:"omitempty,uuid"`
	IsRestricted *bool  `form:"is_restricted"`
	Keyword      string `form:"q"`
	SortBy       string `form:"sort_by" binding:"omitempty,oneof=name capacity created_at"`
}

type ResourceResponse struct {
	ID           string             `json:"id"`
	OwnerID      string             `json:"owner_id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Capacity     int                `json:"capacity"`
	IsRestricted bool               `json:"is_restricted"`
	TimeZone     string             `json:"time_zone"`
	Schedule     *resource.Schedule `json:"availability_schedule"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func NewResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		Description:  r.Description,
		Capacity:     r.Capacity,
		IsRestricted: r.IsRestricted,
		TimeZone:     r.TimeZone,
		Schedule:     r.Schedule,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type CreateRequest struct {
	OwnerID      string             `json:"owner_id" binding:"omitempty,uuid"`
	Name         string             `json:"name" binding:"required"`
	Description  string             `json:"description"`
	Capacity     int                `json:"capacity" binding:"required,min=1"`
	IsRestricted bool               `json:"is_restricted"`
	TimeZone     string             `json:"time_zone"`
	Schedule     *resource.Schedule `json:"availability_schedule"`
}

// UpdateRequest uses pointers to distinguish "not sent" from zero values.
type UpdateRequest struct {
	Name          *string            `json:"name"`
	Description   *string            `json:"description"`
	Capacity      *int               `json:"capacity" binding:"omitempty,min=1"`
	IsRestricted  *bool              `json:"is_restricted"`
	TimeZone      *string            `json:"time_zone"`
	Schedule      *resource.Schedule `json:"availability_schedule"`
	ClearSchedule bool               `json:"clear_schedule"`
}

type AvailabilityRequest struct {
	Date string `form:"date" binding:"required,datetime=2006-01-02"`
}

type SlotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type AvailabilityResponse struct {
	ResourceID string         `json:"resource_id"`
	Date       string         `json:"date"`
	TimeZone   string         `json:"time_zone"`
	Open       []SlotResponse `json:"open"`
	Busy       []SlotResponse `json:"busy"`
	Free       []SlotResponse `json:"free"`
}

func newSlots(ivs []interval.Interval) []SlotResponse {
	out := make([]SlotResponse, len(ivs))
	for i, iv := range ivs {
		out[i] = SlotResponse{StartTime: iv.Start, EndTime: iv.End}
	}
	return out
}

func NewAvailabilityResponse(resourceID string, a *booking.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ResourceID: resourceID,
		Date:       a.Date.Format(time.DateOnly),
		TimeZone:   a.TimeZone,
		Open:       newSlots(a.Open),
		Busy:       newSlots(a.Busy),
		Free:       newSlots(a.Free),
	}
}
