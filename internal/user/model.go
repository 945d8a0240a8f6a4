package user

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "user not found")
	ErrEmailAlreadyUsed = apperror.New(http.StatusConflict, "email already used")
	ErrEmailRequired    = apperror.New(http.StatusBadRequest, "email is required")
	ErrInactiveUser     = apperror.New(http.StatusForbidden, "user is inactive")
)

// User represents a member of the organization. Credentials live in the
// external identity service; this record only carries authorization facts.
type User struct {
	ID            string // UUID
	Email         string
	DisplayName   *string
	CreatedAt     time.Time
	IsActive      bool
	IsSystemAdmin bool
}

// Actor identifies who is performing an operation.
type Actor struct {
	UserID        string
	IsSystemAdmin bool
}

// UserFilter defines filter options for listing users.
type UserFilter struct {
	Email       string
	DisplayName string
	IsActive    *bool // Use pointer to distinguish between false and nil (not set)

	Page      int
	PageSize  int
	SortOrder string
}
