package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learninpublic/scheduler/internal/api/ai"
	httpapi "github.com/learninpublic/scheduler/internal/api/http"
	"github.com/learninpublic/scheduler/internal/api/linkedin"
	"github.com/learninpublic/scheduler/internal/api/service"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/learninpublic/scheduler/internal/api/store/drivers/sqlite"
	"github.com/learninpublic/scheduler/pkg/cryptox"
	"github.com/learninpublic/scheduler/pkg/jwtx"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the scheduler API with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	codec *jwtx.Codec

	// Services
	userService         *service.UserService
	sessionService      *service.SessionService
	postService         *service.PostService
	integrationService  *service.IntegrationService
	housekeepingService *service.HousekeepingService
	publisherService    *service.PublisherService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "scheduler-api",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	app.codec = jwtx.NewCodec(
		[]byte(cfg.JWTSecret),
		cfg.Issuer,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start background workers
	app.housekeepingService.Start()
	app.publisherService.Start()

	app.logger.Info("scheduler api starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down scheduler api...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the background workers
	app.publisherService.Stop()
	app.housekeepingService.Stop()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("scheduler api stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.userService = &service.UserService{Store: app.db}
	app.sessionService = &service.SessionService{
		Store: app.db,
		Codec: app.codec,
	}

	app.postService = &service.PostService{
		Store:     app.db,
		Generator: ai.NewGemini(app.cfg.GeminiAPIKey, app.cfg.GeminiModel),
	}

	linkedinClient := linkedin.NewClient(linkedin.Config{
		ClientID:     app.cfg.LinkedInClientID,
		ClientSecret: app.cfg.LinkedInClientSecret,
		RedirectURI:  app.cfg.LinkedInRedirectURI,
		StateSecret:  []byte(app.cfg.JWTSecret),
	})

	app.integrationService = &service.IntegrationService{
		Store:    app.db,
		LinkedIn: linkedinClient,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.publisherService = service.NewPublisherService(
		app.db,
		linkedinClient,
		app.logger,
		app.cfg.PublishInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.logger,
		app.cfg.Env == "prod",
		app.cfg.MobileCallbackURL,
	)

	// Wire services to router
	router.UserService = app.userService
	router.SessionService = app.sessionService
	router.PostService = app.postService
	router.IntegrationService = app.integrationService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
