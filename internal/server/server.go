// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
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
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/analysis"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/auth"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/automation"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/billing"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/config"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/health"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/logging"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/metrics"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/provider"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/ratelimit"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/realtime"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/schedule"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/security"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/tenant"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/traces"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/usage"
	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	tenants tenant.Store
	authMgr *auth.Manager

	analysisStore   analysis.Store
	automationStore automation.Store
	scheduleStore   schedule.Store
	connStore       provider.ConnectionStore

	aggregator      *usage.Aggregator
	enforcer        *usage.Enforcer
	providers       *provider.Registry
	scheduleService *schedule.Service
	billingService  *billing.Service

	realtimeHub    *realtime.Hub
	rateLimiter    *ratelimit.Limiter
	limiterStore   *ratelimit.MemoryStore
	healthRegistry *health.Registry

	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	shutdownOTel func(context.Context) error
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

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

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		tenantStore := tenant.NewPostgresStore(db)
		if err := tenantStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate tenant store", "error", err)
		}
		s.tenants = tenantStore

		authStore := auth.NewPostgresStore(db)
		if err := authStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate auth store", "error", err)
		}
		s.authMgr = auth.NewManager(authStore)

		analysisStore := analysis.NewPostgresStore(db)
		if err := analysisStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate analysis store", "error", err)
		}
		s.analysisStore = analysisStore

		automationStore := automation.NewPostgresStore(db)
		if err := automationStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate automation store", "error", err)
		}
		s.automationStore = automationStore

		scheduleStore := schedule.NewPostgresStore(db)
		if err := scheduleStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate schedule store", "error", err)
		}
		s.scheduleStore = scheduleStore

		connStore := provider.NewPostgresConnectionStore(db)
		if err := connStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate provider connection store", "error", err)
		}
		s.connStore = connStore

		// Usage counts come straight from the domain tables.
		usageStore := usage.NewPostgresStore(db)
		s.aggregator = usage.NewAggregator(usageStore)
		s.enforcer = usage.NewEnforcer(usageStore)
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")

		s.tenants = tenant.NewMemoryStore()
		s.authMgr = auth.NewManager(auth.NewMemoryStore())
		s.analysisStore = analysis.NewMemoryStore()
		s.automationStore = automation.NewMemoryStore()
		s.scheduleStore = schedule.NewMemoryStore()
		s.connStore = provider.NewMemoryConnectionStore()

		// In-memory mode counts usage by delegating to the domain stores.
		usageStore := &memoryUsageStore{
			analyses:    s.analysisStore,
			deliveries:  s.scheduleStore,
			automations: s.automationStore,
		}
		s.aggregator = usage.NewAggregator(usageStore)
		s.enforcer = usage.NewEnforcer(usageStore)
	}

	// Provider adapters. First registration per channel becomes the
	// channel default, so Kit stays the default email backend.
	s.providers = provider.NewRegistry()
	s.providers.Register(provider.NewKit(provider.KitConfig{
		ClientID:     cfg.KitClientID,
		ClientSecret: cfg.KitClientSecret,
		RedirectURL:  cfg.BaseURL + "/v1/integrations/kit/callback",
	}, s.connStore))
	s.providers.Register(provider.NewMailchimp(provider.MailchimpConfig{
		ClientID:     cfg.MailchimpClientID,
		ClientSecret: cfg.MailchimpClientSecret,
		RedirectURL:  cfg.BaseURL + "/v1/integrations/mailchimp/callback",
	}, s.connStore))
	for _, ch := range provider.Channels {
		if ch == provider.ChannelEmail {
			continue
		}
		s.providers.Register(provider.NewBuffer(provider.BufferConfig{
			ClientID:     cfg.BufferClientID,
			ClientSecret: cfg.BufferClientSecret,
			RedirectURL:  cfg.BaseURL + "/v1/integrations/buffer-" + string(ch) + "/callback",
		}, ch, s.connStore))
	}
	s.logger.Info("provider adapters registered", "providers", s.providers.Names())

	// Realtime hub for WebSocket delivery events
	s.realtimeHub = realtime.NewHub(s.logger)

	// Scheduling pipeline: expand, enforce plan caps, persist, notify.
	s.scheduleService = schedule.NewService(s.scheduleStore, s.enforcer, s.providers, s.realtimeHub)

	// Billing (optional; absent credentials disable checkout but not the API)
	s.billingService = billing.NewService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
		Starter: cfg.StripePriceStarter,
		Pro:     cfg.StripePricePro,
		Growth:  cfg.StripePriceGrowth,
	}, s.tenants)
	if s.billingService.Configured() {
		s.logger.Info("stripe billing enabled")
	} else {
		s.logger.Info("stripe billing disabled (no STRIPE_SECRET_KEY)")
	}

	// Health checks
	s.healthRegistry = health.NewRegistry()
	if s.db != nil {
		s.healthRegistry.Register("database", health.DBChecker("database", s.db))
	}

	// Tracing (no-op when OTLP endpoint is not configured)
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownOTel = shutdown
	}

	// Configure gin
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

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting. Per-class middleware is attached at route groups; the
	// limiter itself is shared so all classes draw from one store.
	s.limiterStore = ratelimit.NewMemoryStore()
	s.rateLimiter = ratelimit.New(ratelimit.DefaultRules(), s.limiterStore, ratelimit.AlertFunc(
		func(ctx context.Context, class ratelimit.Class, identity string, count int) {
			logging.L(ctx).Warn("rate limit breached",
				"class", class,
				"identity", identity,
				"count", count,
			)
		},
	))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
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

		// Log level based on status code
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
			logger.Info("request completed",
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
	healthGroup := s.router.Group("")
	healthGroup.Use(s.rateLimiter.Middleware(ratelimit.ClassHealth))
	healthGroup.GET("/health", s.healthHandler)
	healthGroup.GET("/health/live", s.livenessHandler)
	healthGroup.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// WebSocket for live delivery events; the API key authenticates the
	// tenant before the upgrade.
	s.router.GET("/ws", auth.Middleware(s.authMgr), auth.RequireAuth(), func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request, auth.TenantID(c))
	})

	// V1 API group
	v1 := s.router.Group("/v1")
	v1.Use(s.rateLimiter.Middleware(ratelimit.ClassDefault))

	tenantHandler := tenant.NewHandler(s.tenants, s.authMgr)
	usageHandler := usage.NewHandler(s.tenants, s.aggregator)
	scheduleHandler := schedule.NewHandler(s.scheduleService, s.tenants)
	analysisHandler := analysis.NewHandler(s.analysisStore, s.tenants, s.enforcer)
	automationHandler := automation.NewHandler(s.automationStore, s.tenants, s.enforcer)
	providerHandler := provider.NewHandler(s.providers)
	billingHandler := billing.NewHandler(s.billingService, s.tenants)

	// PUBLIC ROUTES
	// Stripe calls the webhook directly; the signature is the auth. Failed
	// verifications count against the auth rate class.
	public := v1.Group("")
	public.Use(s.rateLimiter.Middleware(ratelimit.ClassAuth))
	billingHandler.RegisterWebhookRoutes(public)

	// ADMIN ROUTES (identity provider and operators)
	admin := v1.Group("/admin")
	admin.Use(auth.RequireAdmin(s.cfg.AdminSecret))
	tenantHandler.RegisterAdminRoutes(admin)

	// PROTECTED ROUTES (require API key)
	protected := v1.Group("")
	protected.Use(auth.Middleware(s.authMgr), auth.RequireAuth())
	{
		tenantHandler.RegisterProtectedRoutes(protected)
		usageHandler.RegisterProtectedRoutes(protected)
		automationHandler.RegisterProtectedRoutes(protected)
		providerHandler.RegisterProtectedRoutes(protected)
		billingHandler.RegisterProtectedRoutes(protected)
	}

	// Episode analysis burns LLM tokens; it gets the tightest rate class
	// on top of plan-cap enforcement.
	protectedAnalysis := v1.Group("")
	protectedAnalysis.Use(auth.Middleware(s.authMgr), auth.RequireAuth(),
		s.rateLimiter.Middleware(ratelimit.ClassAnalysis))
	analysisHandler.RegisterProtectedRoutes(protectedAnalysis)

	// Content repurposing and scheduling
	protectedSchedule := v1.Group("")
	protectedSchedule.Use(auth.Middleware(s.authMgr), auth.RequireAuth(),
		s.rateLimiter.Middleware(ratelimit.ClassRepurpose))
	scheduleHandler.RegisterProtectedRoutes(protectedSchedule)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthRegistry.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
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

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "podsight",
		"description": "Podcast content marketing dashboard API",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
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

	// Cancel the context for background goroutines (realtime hub)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter sweep goroutine
	if s.limiterStore != nil {
		s.limiterStore.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.shutdownOTel != nil {
		if err := s.shutdownOTel(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// memoryUsageStore satisfies usage.Store by delegating to the in-memory
// domain stores. Postgres deployments count from the tables directly.
type memoryUsageStore struct {
	analyses    analysis.Store
	deliveries  schedule.Store
	automations automation.Store
}

func (m *memoryUsageStore) CountAnalyses(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	return m.analyses.CountInWindow(ctx, tenantID, start, end)
}

func (m *memoryUsageStore) CountScheduledPosts(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	return m.deliveries.CountCreatedInWindow(ctx, tenantID, start, end)
}

func (m *memoryUsageStore) CountActiveAutomations(ctx context.Context, tenantID string) (int, error) {
	return m.automations.CountActive(ctx, tenantID)
}
