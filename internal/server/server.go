// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/compliance-dashboard/internal/analysis"
	"github.com/mbd888/compliance-dashboard/internal/audit"
	"github.com/mbd888/compliance-dashboard/internal/config"
	"github.com/mbd888/compliance-dashboard/internal/dashboard"
	"github.com/mbd888/compliance-dashboard/internal/datasource"
	"github.com/mbd888/compliance-dashboard/internal/health"
	"github.com/mbd888/compliance-dashboard/internal/idgen"
	"github.com/mbd888/compliance-dashboard/internal/logging"
	"github.com/mbd888/compliance-dashboard/internal/metrics"
	"github.com/mbd888/compliance-dashboard/internal/ratelimit"
	"github.com/mbd888/compliance-dashboard/internal/realtime"
	"github.com/mbd888/compliance-dashboard/internal/security"
	"github.com/mbd888/compliance-dashboard/internal/traces"
	"github.com/mbd888/compliance-dashboard/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg             *config.Config
	version         string
	source          datasource.DataSource
	auditClient     *audit.Client
	runner          *analysis.Runner
	scoreSource     analysis.ScoreSource
	builder         *dashboard.Builder
	realtimeHub     *realtime.Hub
	healthRegistry  *health.Registry
	rateLimiter     *ratelimit.Limiter
	analysisLimiter *ratelimit.Limiter
	db              *sql.DB // nil when serving sample data
	router          *gin.Engine
	httpSrv         *http.Server
	logger          *slog.Logger
	drainDelay      time.Duration
	cancelRunCtx    context.CancelFunc // cancels background goroutines started in Run
	shutdownTraces  func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDataSource replaces the configured data source (for testing)
func WithDataSource(ds datasource.DataSource) Option {
	return func(s *Server) {
		s.source = ds
	}
}

// WithScoreSource sets the local analysis score source (for testing)
func WithScoreSource(src analysis.ScoreSource) Option {
	return func(s *Server) {
		s.scoreSource = src
	}
}

// WithVersion sets the version reported by /health
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithDrainDelay sets how long Shutdown waits before closing listeners
func WithDrainDelay(d time.Duration) Option {
	return func(s *Server) {
		s.drainDelay = d
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		version:    "dev",
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		drainDelay: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Storage: Postgres if DATABASE_URL set, otherwise the built-in sample data
	if s.source == nil {
		if cfg.DatabaseURL != "" {
			db, err := datasource.Open(ctx, cfg.DatabaseURL, s.logger)
			if err != nil {
				return nil, err
			}
			s.db = db
			s.source = datasource.NewPostgresSource(db)
			s.logger.Info("using postgres data source", "dsn", maskDSN(cfg.DatabaseURL))
		} else {
			s.source = datasource.SampleSource()
			s.logger.Info("using sample data source (no DATABASE_URL)")
		}
	}

	s.auditClient = audit.NewClient(audit.Config{
		BaseURL:          cfg.AuditServiceURL,
		Timeout:          cfg.AuditTimeout,
		BreakerThreshold: cfg.AuditBreakerThreshold,
		BreakerCooldown:  cfg.AuditBreakerCooldown,
	}, s.logger)

	runnerOpts := []analysis.Option{analysis.WithLogger(s.logger)}
	if s.scoreSource != nil {
		runnerOpts = append(runnerOpts, analysis.WithScoreSource(s.scoreSource))
	}
	s.runner = analysis.NewRunner(s.auditClient, runnerOpts...)
	s.builder = dashboard.NewBuilder(s.source, s.runner.Last, cfg.AlertThreshold, s.logger)

	s.realtimeHub = realtime.NewHub(s.logger)
	s.realtimeHub.SetInitial(s.initialEvent)
	s.runner.OnChange(s.publishAnalysis)

	s.healthRegistry = health.NewRegistry()
	s.healthRegistry.Register("datasource", health.PingChecker("datasource", s.source))
	s.healthRegistry.Register("audit_service", health.BreakerChecker("audit_service", s.auditClient.Breaker()))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Request ID and logging first so rejected requests are still traceable
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(security.ParseOrigins(s.cfg.CORSOrigin)))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(rl)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.New()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Debug("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Live dashboard updates
	s.router.GET("/ws", gin.WrapF(s.realtimeHub.HandleWebSocket))

	v1 := s.router.Group("/v1")
	dashboard.NewHandler(s.builder, s.source, s.cfg.AlertThreshold, s.publishSnapshot).RegisterRoutes(v1)

	// Analysis triggers call out to the audit service; give them a tighter budget.
	s.analysisLimiter = ratelimit.New(ratelimit.Config{
		Name:              "analysis",
		RequestsPerMinute: 30,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})
	analysisGroup := v1.Group("")
	analysisGroup.Use(s.analysisLimiter.Middleware())
	analysis.NewHandler(s.runner).RegisterRoutes(analysisGroup)
}

// -----------------------------------------------------------------------------
// Realtime wiring
// -----------------------------------------------------------------------------

func (s *Server) publishSnapshot(snap *dashboard.Snapshot) {
	s.realtimeHub.BroadcastSnapshot(snap)
	for _, a := range snap.Alerts {
		s.realtimeHub.BroadcastAlert(a.Wallet, a.RiskScore, a)
	}
}

func (s *Server) publishAnalysis(st analysis.Status) {
	var score *float64
	if st.Last != nil {
		v := st.Last.RiskScore
		score = &v
	}
	s.realtimeHub.BroadcastAnalysis(st, score)
}

// initialEvent greets a new WebSocket client with the latest snapshot.
func (s *Server) initialEvent() *realtime.Event {
	snap := s.builder.Current()
	if snap == nil {
		return nil
	}
	return &realtime.Event{Type: realtime.EventSnapshot, Timestamp: snap.GeneratedAt, Data: snap}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Realtime  map[string]any  `json:"realtime,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.healthRegistry.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   s.version,
		Checks:    checks,
		Realtime:  s.realtimeHub.Stats(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	shutdownTraces, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.version, s.logger)
	if err != nil {
		s.logger.Error("failed to initialise tracing, continuing without it", "error", err)
	} else {
		s.shutdownTraces = shutdownTraces
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Audit calls may take up to the configured timeout.
		WriteTimeout: s.cfg.AuditTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"audit_service", s.cfg.AuditServiceURL,
			"alert_threshold", s.cfg.AlertThreshold,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Warm the snapshot so the first WebSocket client has something to show.
	go func() {
		if _, err := s.builder.Build(runCtx); err != nil {
			s.logger.Warn("initial snapshot failed", "error", err)
		}
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		_ = s.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	if s.drainDelay > 0 {
		time.Sleep(s.drainDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.analysisLimiter != nil {
		s.analysisLimiter.Stop()
	}

	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return shutdownErr
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
