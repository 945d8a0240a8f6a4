package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/response"
	"github.com/nekogravitycat/reservation-engine/internal/user"
)

// ActorResolver loads the authorization facts of a user.
type ActorResolver interface {
	Actor(ctx context.Context, id string) (user.Actor, error)
}

// AuthRequired is a Gin middleware that validates JWT from Authorization: Bearer <token>
// and resolves the caller into a user.Actor.
func AuthRequired(verifier *Verifier, users ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "missing Authorization header"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "invalid Authorization header format"})
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "invalid or expired token"})
			return
		}

		actor, err := users.Actor(c.Request.Context(), claims.Subject)
		if err != nil {
			switch {
			case errors.Is(err, user.ErrNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "unknown user"})
			case errors.Is(err, user.ErrInactiveUser):
				c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorResponse{Error: err.Error()})
			default:
				response.Error(c, err)
				c.Abort()
			}
			return
		}

		c.Set(userIDKey, claims.Subject)
		SetActor(c, actor)

		c.Next()
	}
}

// RequireSystemAdmin ensures the authenticated user is a system admin.
// It MUST be used after AuthRequired.
func RequireSystemAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "unauthorized"})
			return
		}
		if !actor.IsSystemAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorResponse{Error: "forbidden: system admin access required"})
			return
		}
		c.Next()
	}
}
