package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-engine/internal/auth"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	"github.com/nekogravitycat/reservation-engine/internal/user"
	"github.com/nekogravitycat/reservation-engine/internal/waitlist"
)

// Service is the part of the booking engine that manages waitlist entries.
type Service interface {
	ListWaitlist(ctx context.Context, filter waitlist.Filter, actor user.Actor) ([]*waitlist.Entry, int, error)
	WithdrawWaitlist(ctx context.Context, id string, actor user.Actor) (*waitlist.Entry, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// List returns waitlist entries. Users see their own entries unless they
// administer the filtered resource.
func (h *Handler) List(c *gin.Context) {
	var req ListEntriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error(), nil)
		return
	}

	actor, _ := auth.GetActor(c)
	entries, total, err := h.service.ListWaitlist(c.Request.Context(), waitlist.Filter{
		ResourceID:  req.ResourceID,
		RequesterID: req.RequesterID,
		Status:      waitlist.Status(req.Status),
		Page:        req.Page,
		PageSize:    req.PageSize,
		SortOrder:   req.SortOrder,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, response.NewPageResponse(entries, NewEntryResponse, req.Page, req.PageSize, total))
}

// Withdraw removes a waiting entry from the queue.
// Access Control: the requester, the resource owner, or a system admin.
func (h *Handler) Withdraw(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	actor, _ := auth.GetActor(c)
	e, err := h.service.WithdrawWaitlist(c.Request.Context(), req.ID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewEntryResponse(e))
}
