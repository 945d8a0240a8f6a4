package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/reservation-engine/internal/logging"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Detailer is implemented by errors that carry structured detail for the client,
// such as the conflicting bookings of an overlap.
type Detailer interface {
	Details() any
}

// Error sends a JSON error response.
// It checks if the error is an AppError to determine the status code.
// If it's not an AppError, it defaults to 500 Internal Server Error.
func Error(c *gin.Context, err error) {
	resp := ErrorResponse{}

	var d Detailer
	if errors.As(err, &d) {
		resp.Details = d.Details()
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= http.StatusInternalServerError {
			logger(c).Error("request failed", "status", appErr.Code, "error", err)
		}
		resp.Error = appErr.Message
		c.JSON(appErr.Code, resp)
		return
	}

	logger(c).Error("unhandled error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// BadRequest responds with 400 and the binding or validation failure.
func BadRequest(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

func logger(c *gin.Context) interface {
	Error(msg string, args ...any)
} {
	if l := logging.FromContext(c.Request.Context()); l != nil {
		return l
	}
	return logging.Default()
}
