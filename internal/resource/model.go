package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "resource not found")
	ErrEmptyName        = apperror.New(http.StatusBadRequest, "name cannot be empty")
	ErrInvalidCapacity  = apperror.New(http.StatusBadRequest, "capacity must be positive")
	ErrInvalidTimeZone  = apperror.New(http.StatusBadRequest, "invalid time zone")
	ErrOwnerRequired    = apperror.New(http.StatusBadRequest, "owner is required")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
)

// Resource represents a bookable unit (e.g., a study room, a 3D printer, a hall).
type Resource struct {
	ID           string
	OwnerID      string
	Name         string
	Description  string
	Capacity     int // Informational; bookings never share a resource.
	IsRestricted bool
	TimeZone     string    // IANA zone the schedule's clock times are expressed in
	Schedule     *Schedule // nil: open at all times
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Location resolves TimeZone, falling back to UTC.
func (r *Resource) Location() *time.Location {
	if r.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsAuthority reports whether the user may decide bookings on this resource.
func (r *Resource) IsAuthority(userID string, isSysAdmin bool) bool {
	return isSysAdmin || (userID != "" && r.OwnerID == userID)
}

// Filter defines parameters for listing resources.
type Filter struct {
	OwnerID      string
	IsRestricted *bool
	Keyword      string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
