package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/nicolovejoy/housing-data-v1/config"
	"github.com/nicolovejoy/housing-data-v1/internal/api"
	"github.com/nicolovejoy/housing-data-v1/internal/ingest"
	"github.com/nicolovejoy/housing-data-v1/internal/loader"
	"github.com/nicolovejoy/housing-data-v1/internal/query"
	"github.com/nicolovejoy/housing-data-v1/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load .env if present (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		logger.Info("No .env file found, using environment variables")
	} else {
		logger.Info("Loaded .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
		logger.WithError(err).Warnf("Unknown log level %q, using info", cfg.Logging.Level)
	} else {
		logger.SetLevel(level)
	}

	logger.Infof("Using database at: %s", cfg.Database.Path)

	// Initialize store
	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer st.Close()

	// Run database migrations
	logger.Info("Running database migrations...")
	if err := st.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Initialize query engine
	engine := query.NewEngine(st, query.Options{
		DefaultPageSize: cfg.Query.DefaultPageSize,
		MaxPageSize:     cfg.Query.MaxPageSize,
		CacheEnabled:    cfg.Query.CacheEnabled,
	}, logger)

	// Initialize the reload manager and start its worker
	manager := ingest.NewManager(loader.New(st, logger), engine, ingest.Options{
		SourceFile: cfg.Load.SourceFile,
		QueueSize:  cfg.Load.QueueSize,
		Load: loader.Options{
			BatchSize:      cfg.Load.BatchSize,
			MaxRejectRatio: cfg.Load.MaxRejectRatio,
		},
	}, logger)
	manager.Start()

	// Initialize router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Apply CORS middleware
	corsConfig := cors.DefaultConfig()
	if lo.Contains(cfg.Server.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	// Define routes
	api.SetupRoutes(router, engine, manager)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("Shutting down...")
		if err := manager.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop reload manager")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Shutdown error")
		}
	}()

	logger.Infof("Starting server on port %d", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("Server failed to start")
	}
	logger.Info("Server stopped")
}
