package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nekogravitycat/reservation-engine/internal/app"
	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/config"
	"github.com/nekogravitycat/reservation-engine/internal/db"
	"github.com/nekogravitycat/reservation-engine/internal/events"
	"github.com/nekogravitycat/reservation-engine/internal/logging"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	appCfg := app.Config{
		IsProduction:     cfg.IsProduction,
		ProdOrigins:      cfg.ProdOrigins,
		ResourceCacheTTL: cfg.ResourceCacheTTL,
		Logger:           logger,
		JWTSecret:        cfg.JWTSecret,
		JWTIssuer:        cfg.JWTIssuer,
		JWTLeeway:        cfg.JWTLeeway,
	}

	// Connect DB
	if cfg.DBDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer pool.Close()

		if err := db.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
		appCfg.DBPool = pool
	}

	// Optional resource cache
	if cfg.RedisAddr != "" {
		client, err := resource.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, resource cache disabled", "error", err)
		} else {
			defer client.Close()
			appCfg.Redis = client
		}
	}

	// Optional event publishing
	if cfg.AMQPURL != "" {
		publisher, err := events.DialAMQP(cfg.AMQPURL, cfg.EventsExchange)
		if err != nil {
			log.Fatalf("failed to connect to amqp: %v", err)
		}
		defer publisher.Close()
		appCfg.Publisher = publisher
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appCfg.Registry = registry

	container := app.NewContainer(appCfg)

	if cfg.SweepInterval > 0 {
		go runSweeper(ctx, container.BookingService, cfg.SweepInterval, logger)
	}

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: container.Router,
	}

	// Run server in separate goroutine
	go func() {
		logger.Info("server running", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited gracefully")
}

// runSweeper completes elapsed bookings and expires stale waitlist entries
// until ctx is cancelled.
func runSweeper(ctx context.Context, svc booking.Service, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.CompleteElapsed(ctx); err != nil {
				logger.Error("completion sweep failed", "error", err)
			}
		}
	}
}
