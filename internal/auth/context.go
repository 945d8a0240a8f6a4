package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-engine/internal/user"
)

const (
	userIDKey = "userID"
	actorKey  = "actor"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetActor stores the resolved actor for later handlers.
func SetActor(c *gin.Context, actor user.Actor) {
	c.Set(actorKey, actor)
}

// GetActor returns the actor stored by LoadActor.
func GetActor(c *gin.Context) (user.Actor, bool) {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(user.Actor); ok {
			return a, true
		}
	}
	return user.Actor{}, false
}
