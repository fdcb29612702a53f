package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/livepen/internal/api/http"
	"github.com/GriffinCanCode/livepen/internal/api/middleware"
	"github.com/GriffinCanCode/livepen/internal/api/ws"
	"github.com/GriffinCanCode/livepen/internal/domain/sandbox"
	"github.com/GriffinCanCode/livepen/internal/domain/session"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	sessions *session.Manager
	ws       *ws.Handler
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromConfig(cfg.Logging)

	logger.Info("Initializing livepen server",
		zap.String("port", cfg.Server.Port),
		zap.Duration("debounce", cfg.Preview.Debounce),
		zap.Bool("headless", cfg.Preview.Headless),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	template := session.DefaultTemplate()
	if cfg.Preview.Template != "" {
		loaded, err := session.LoadTemplate(cfg.Preview.Template)
		if err != nil {
			logger.Warn("Failed to load template, using built-in",
				zap.String("path", cfg.Preview.Template),
				zap.Error(err),
			)
		} else {
			logger.Info("Loaded template", zap.String("path", cfg.Preview.Template))
		}
		template = loaded
	}

	sessions := session.NewManager(session.Options{
		Debounce:    cfg.Preview.Debounce,
		LogCapacity: cfg.Preview.LogCapacity,
		Template:    &template,
		Sandbox:     sandboxConfig(cfg.Sandbox),
		Headless:    cfg.Preview.Headless,
		Logger:      logger.Logger,
	}).WithMetrics(metrics)

	handlers, err := api.NewHandlers(sessions, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create handlers: %w", err)
	}
	wsHandler := ws.NewHandler(sessions, logger.Logger, metrics)
	aggregator := api.NewMetricsAggregator(metrics, sessions)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limit := middleware.DefaultRateLimitConfig()
		limit.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limit.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limit))
	}

	// Register routes
	router.GET("/", handlers.Index)
	router.GET("/health", handlers.Health)

	sessionRoutes := router.Group("/api/sessions")
	sessionRoutes.POST("", handlers.CreateSession)
	sessionRoutes.GET("", handlers.ListSessions)
	sessionRoutes.GET("/:id", handlers.GetSession)
	sessionRoutes.DELETE("/:id", handlers.DeleteSession)
	sessionRoutes.PUT("/:id/buffers/:buffer", handlers.UpdateBuffer)
	sessionRoutes.POST("/:id/reset", handlers.Reset)
	sessionRoutes.POST("/:id/refresh", handlers.Refresh)
	sessionRoutes.GET("/:id/document", handlers.Document)
	sessionRoutes.GET("/:id/snapshot", handlers.Snapshot)
	sessionRoutes.GET("/:id/mutations", handlers.Mutations)
	sessionRoutes.GET("/:id/query", handlers.Query)
	sessionRoutes.GET("/:id/diagnostics", handlers.Diagnostics)
	sessionRoutes.DELETE("/:id/diagnostics", handlers.ClearDiagnostics)
	sessionRoutes.GET("/:id/settings", handlers.GetSettings)
	sessionRoutes.PUT("/:id/settings", handlers.UpdateSettings)

	// WebSocket surface
	sessionRoutes.GET("/:id/ws", wsHandler.HandleConnection)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/metrics/json", aggregator.GetAggregatedMetrics)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		sessions: sessions,
		ws:       wsHandler,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
		},
	}, nil
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Sessions returns the session manager
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Run starts the HTTP server and blocks until it stops. A graceful
// shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.ws.Close()

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		err = fmt.Errorf("failed to shut down http server: %w", err)
	}

	s.sessions.CloseAll()
	s.logger.Info("Closed all sessions")

	// Sync logger before exit
	if syncErr := s.logger.Sync(); syncErr != nil && err == nil {
		err = syncErr
	}
	return err
}

func sandboxConfig(cfg config.SandboxConfig) sandbox.Config {
	sc := sandbox.DefaultConfig()
	if cfg.Timeout > 0 {
		sc.Timeout = cfg.Timeout
	}
	if cfg.InboxSize > 0 {
		sc.InboxSize = cfg.InboxSize
	}
	if cfg.MaxCallStack > 0 {
		sc.MaxCallStackSize = cfg.MaxCallStack
	}
	if cfg.SuspendAfter > 0 {
		sc.SuspendAfter = cfg.SuspendAfter
	}
	if cfg.Cooldown > 0 {
		sc.SuspendCooldown = cfg.Cooldown
	}
	sc.Policy.AllowModals = cfg.AllowModals
	sc.Policy.AllowPopups = cfg.AllowPopups
	return sc
}
