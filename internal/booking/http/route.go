package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
		group.POST("/:id/decision", h.Decide)
		group.POST("/:id/cancel", h.Cancel)
		group.POST("/:id/complete", h.Complete)

		// === Admin Routes ===
		group.POST("/sweep", adminMiddleware, h.Sweep)
	}
}
