package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-engine/internal/auth"
	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	"github.com/nekogravitycat/reservation-engine/internal/user"
	waitlistHttp "github.com/nekogravitycat/reservation-engine/internal/waitlist/http"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

func actorOf(c *gin.Context) (user.Actor, bool) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "unauthorized"})
	}
	return actor, ok
}

// List returns bookings visible to the caller.
// Access Control: own bookings; all bookings of owned resources; everything for System Admins.
func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error(), nil)
		return
	}

	actor, ok := actorOf(c)
	if !ok {
		return
	}

	filter := booking.Filter{
		RequesterID: req.RequesterID,
		ResourceID:  req.ResourceID,
		SeriesID:    req.SeriesID,
		Status:      booking.Status(req.Status),
		StartTime:   req.StartTimeFrom,
		EndTime:     req.StartTimeTo,
		Page:        req.Page,
		PageSize:    req.PageSize,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
	}

	bookings, total, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, response.NewPageResponse(bookings, NewBookingResponse, req.Page, req.PageSize, total))
}

// Create requests a booking, a recurring series, or a waitlist place.
func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	actor, ok := actorOf(c)
	if !ok {
		return
	}

	result, err := h.service.Request(c.Request.Context(), booking.CreateRequest{
		ResourceID:     body.ResourceID,
		RequesterID:    actor.UserID,
		StartTime:      body.StartTime,
		EndTime:        body.EndTime,
		RecurrenceRule: body.RecurrenceRule,
		JoinWaitlist:   body.JoinWaitlist,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	switch {
	case result.Entry != nil:
		c.JSON(http.StatusAccepted, QueuedResponse{WaitlistEntry: waitlistHttp.NewEntryResponse(result.Entry)})
	case len(result.Series) > 0:
		c.JSON(http.StatusCreated, SeriesResponse{
			SeriesID: *result.Series[0].SeriesID,
			Bookings: newBookingResponses(result.Series),
		})
	default:
		c.JSON(http.StatusCreated, NewBookingResponse(result.Booking))
	}
}

// Get returns one booking.
// Access Control: the requester, the resource owner, or a System Admin.
func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	actor, ok := actorOf(c)
	if !ok {
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), req.ID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// Decide approves or rejects a pending booking.
// Access Control: the resource owner or a System Admin, never the requester.
func (h *Handler) Decide(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	actor, ok := actorOf(c)
	if !ok {
		return
	}

	b, err := h.service.Decide(c.Request.Context(), booking.DecideRequest{
		BookingID: uri.ID,
		Decision:  booking.Decision(body.Decision),
		Actor:     actor,
		Notes:     body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// Cancel withdraws a pending or approved booking.
// Access Control: the requester, the resource owner, or a System Admin.
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// Complete marks an approved booking completed ahead of the sweep.
// Access Control: the resource owner or a System Admin.
func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id string, actor user.Actor) (*booking.Booking, error)) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	actor, ok := actorOf(c)
	if !ok {
		return
	}

	b, err := fn(c.Request.Context(), req.ID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// Sweep completes elapsed bookings and expires stale waitlist entries now.
// Access Control: System Admin only.
func (h *Handler) Sweep(c *gin.Context) {
	result, err := h.service.CompleteElapsed(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, SweepResponse{
		Completed: newBookingResponses(result.Completed),
		Expired:   result.Expired,
	})
}
