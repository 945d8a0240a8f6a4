package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nekogravitycat/reservation-engine/internal/auth"
	"github.com/nekogravitycat/reservation-engine/internal/booking"
	bookingHttp "github.com/nekogravitycat/reservation-engine/internal/booking/http"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
	resHttp "github.com/nekogravitycat/reservation-engine/internal/resource/http"
	"github.com/nekogravitycat/reservation-engine/internal/user"
	userHttp "github.com/nekogravitycat/reservation-engine/internal/user/http"
	waitlistHttp "github.com/nekogravitycat/reservation-engine/internal/waitlist/http"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Config struct {
	IsProduction   bool
	ProdOrigins    string
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer // nil serves the default registry
	Health         HealthChecker       // optional
	UserService    user.Service
	ResService     resource.Service
	BookingService booking.Service
	TokenVerifier  *auth.Verifier
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - RequestLogger: request-scoped slog logger with a request id.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestLogger(cfg.Logger), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:8081", // Swagger
	}
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(cfg.ProdOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	r.Use(cors.New(corsConfig))

	metricsHandler := promhttp.Handler()
	if cfg.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))
	r.GET("/healthz", healthz(cfg.Health))

	// authMiddleware: Validates the JWT and resolves the caller.
	authMiddleware := auth.AuthRequired(cfg.TokenVerifier, cfg.UserService)
	// sysAdminMiddleware: Further checks if the authenticated user has System Admin privileges.
	sysAdminMiddleware := auth.RequireSystemAdmin()

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	userHandler := userHttp.NewHandler(cfg.UserService)
	resHandler := resHttp.NewHandler(cfg.ResService, cfg.BookingService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)
	waitlistHandler := waitlistHttp.NewHandler(cfg.BookingService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware, sysAdminMiddleware)
		resHttp.RegisterRoutes(v1, resHandler, authMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware, sysAdminMiddleware)
		waitlistHttp.RegisterRoutes(v1, waitlistHandler, authMiddleware)
	}

	return r
}

func healthz(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker != nil {
			if err := checker.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
