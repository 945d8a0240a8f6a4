package app

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/reservation-engine/internal/api"
	"github.com/nekogravitycat/reservation-engine/internal/auth"
	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/events"
	"github.com/nekogravitycat/reservation-engine/internal/memstore"
	"github.com/nekogravitycat/reservation-engine/internal/metrics"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/clock"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
	"github.com/nekogravitycat/reservation-engine/internal/teardown"
	"github.com/nekogravitycat/reservation-engine/internal/user"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	// DBPool selects the Postgres backend. Nil runs everything in memory.
	DBPool           *pgxpool.Pool
	Redis            *redis.Client // optional resource cache
	ResourceCacheTTL time.Duration
	Publisher        events.Publisher // optional, defaults to dropping events
	// Registry receives the engine metrics and backs GET /metrics.
	// Nil uses a fresh registry.
	Registry  *prometheus.Registry
	Logger    *slog.Logger
	Clock     clock.Clock // optional, defaults to the system clock
	JWTSecret string
	JWTIssuer string // optional
	JWTLeeway time.Duration
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	UserService    user.Service
	ResService     resource.Service
	BookingService booking.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Init Components
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTLeeway)

	// Storage backend
	var (
		userRepo     user.Repository
		resRepo      resource.Repository
		remover      teardown.Remover
		bookingStore booking.Store
		health       api.HealthChecker
	)
	if cfg.DBPool != nil {
		userRepo = user.NewPgxRepository(cfg.DBPool)
		resRepo = resource.NewPgxRepository(cfg.DBPool)
		remover = teardown.NewPgxRemover(cfg.DBPool, teardown.Reservations())
		bookingStore = booking.NewPgxStore(cfg.DBPool)
		health = cfg.DBPool
	} else {
		logger.Warn("no database configured, using the in-memory store")
		mem := memstore.New()
		userRepo = mem.Users()
		resRepo = mem.Resources()
		remover = mem
		bookingStore = mem
	}

	var cache resource.Cache
	if cfg.Redis != nil {
		cache = resource.NewRedisCache(cfg.Redis, cfg.ResourceCacheTTL, logger)
	}

	// User Module
	userService := user.NewService(userRepo, remover, resource.NewOwnerEvictor(resRepo, cache))

	// Resource Module
	resService := resource.NewService(resRepo, remover, cache)

	// Booking Module
	bookingService := booking.NewService(bookingStore, clk, cfg.Publisher, metrics.New(registry), logger)

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		Logger:         logger,
		Gatherer:       registry,
		Health:         health,
		UserService:    userService,
		ResService:     resService,
		BookingService: bookingService,
		TokenVerifier:  verifier,
	})

	return &Container{
		Router:         router,
		UserService:    userService,
		ResService:     resService,
		BookingService: bookingService,
	}
}
