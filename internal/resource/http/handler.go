package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-engine/internal/auth"
	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

// AvailabilityService computes the open and free time of a resource.
type AvailabilityService interface {
	Availability(ctx context.Context, resourceID string, date time.Time) (*booking.Availability, error)
}

type Handler struct {
	service      resource.Service
	availability AvailabilityService
}

func NewHandler(service resource.Service, availability AvailabilityService) *Handler {
	return &Handler{
		service:      service,
		availability: availability,
	}
}

func (h *Handler) List(c *gin.Context) {
	var req ListResourcesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error(), nil)
		return
	}

	filter := resource.Filter{
		OwnerID:      req.OwnerID,
		IsRestricted: req.IsRestricted,
		Keyword:      req.Keyword,
		Page:         req.Page,
		PageSize:     req.PageSize,
		SortBy:       req.SortBy,
		SortOrder:    req.SortOrder,
	}
	if filter.SortBy == "" {
		filter.SortBy = "created_at"
	}

	resources, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, response.NewPageResponse(resources, NewResponse, req.Page, req.PageSize, total))
}

// Create registers a resource owned by the caller.
// Access Control: any active user; System Admins may assign another owner.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	actor, _ := auth.GetActor(c)
	res, err := h.service.Create(c.Request.Context(), resource.CreateRequest{
		OwnerID:      body.OwnerID,
		Name:         body.Name,
		Description:  body.Description,
		Capacity:     body.Capacity,
		IsRestricted: body.IsRestricted,
		TimeZone:     body.TimeZone,
		Schedule:     body.Schedule,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(res))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	res, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(res))
}

// Update modifies a resource.
// Access Control: the owner or a System Admin.
func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	actor, _ := auth.GetActor(c)
	res, err := h.service.Update(c.Request.Context(), uri.ID, resource.UpdateRequest{
		Name:          body.Name,
		Description:   body.Description,
		Capacity:      body.Capacity,
		IsRestricted:  body.IsRestricted,
		TimeZone:      body.TimeZone,
		Schedule:      body.Schedule,
		ClearSchedule: body.ClearSchedule,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(res))
}

// Delete removes a resource with its bookings and waitlist.
// Access Control: the owner or a System Admin.
func (h *Handler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	actor, _ := auth.GetActor(c)
	if err := h.service.Delete(c.Request.Context(), req.ID, actor); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Availability lists open windows, busy intervals and free slots for one date.
func (h *Handler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var query AvailabilityRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	date, err := time.Parse(time.DateOnly, query.Date)
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD", err)
		return
	}

	a, err := h.availability.Availability(c.Request.Context(), uri.ID, date)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewAvailabilityResponse(uri.ID, a))
}
