package main

import (
	"context"   // Shutdown and startup contexts
	"errors"    // Error inspection
	"net/http"  // HTTP server
	"os"        // Signal channel
	"os/signal" // Graceful shutdown
	"syscall"   // Termination signal
	"time"      // Timeouts

	"biosculpture/internal/api"        // Custom package for API handlers
	"biosculpture/internal/config"     // Custom package for configuration
	"biosculpture/internal/db"         // Database connection
	"biosculpture/internal/geocode"    // Address lookup
	"biosculpture/internal/middleware" // Custom package for middleware
	"biosculpture/internal/scheduler"  // Background jobs

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to the database
	database, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	// Keep the schema current and make sure the built-in roles exist
	if err := db.Migrate(database); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}
	if err := db.Seed(database, "", ""); err != nil {
		logrus.Fatalf("failed to seed DB: %v", err)
	}

	// Setup Redis client; caching is skipped when no address is configured
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.WithError(err).Warn("Redis unreachable, listing cache disabled")
			redisClient = nil
		}
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := api.Deps{
		DB:       database,
		Redis:    redisClient,
		Config:   cfg,
		Geocoder: geocode.New(cfg.GeocoderURL, cfg.GeocoderKey),
		Limiter:  middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	if cfg.OIDCClientID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		verifier, err := api.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("Google sign-in disabled")
		} else {
			deps.Verifier = verifier
		}
	}

	stop := make(chan struct{})
	deps.Limiter.StartCleanup(10*time.Minute, stop)

	var jobs *scheduler.Scheduler
	if cfg.CronEnabled {
		if jobs, err = scheduler.New(database); err != nil {
			logrus.Fatalf("failed to create scheduler: %v", err)
		}
		jobs.Start()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for an interrupt, then drain in-flight requests
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Forced shutdown")
	}
	close(stop)
	if jobs != nil {
		<-jobs.Stop().Done()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
