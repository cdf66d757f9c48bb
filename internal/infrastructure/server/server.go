package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/apphost/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/place"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/watcher"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/kernel"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the application kernel and its HTTP surface
type Server struct {
	app     *kernel.Application
	router  *gin.Engine
	http    *http.Server
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// NewServer creates a new server instance. The application is not loaded
// until Start.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	// the watcher reports paths relative to the root it was given, and the
	// kernel resolves places against an absolute root
	if abs, err := filepath.Abs(cfg.Application.Root); err == nil {
		cfg.Application.Root = abs
	}
	logger.Info("Initializing application server",
		zap.String("root", cfg.Application.Root),
		zap.String("kind", cfg.Application.Kind),
		zap.Int("worker", cfg.Application.Worker),
		zap.Int("port", cfg.Server.Port),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("apphost", logger.Worker(cfg.Application.Worker).Logger)

	opts := kernel.Options{Config: cfg, Logger: logger, Metrics: metrics}
	if cfg.Watch.Enabled {
		w, err := watcher.New(cfg.Application.Root, cfg.Watch.Timeout, logger)
		if err != nil {
			logger.Warn("Hot reload disabled", zap.Error(err))
		} else {
			opts.Watcher = w
		}
	}

	app, err := kernel.New(opts)
	if err != nil {
		if opts.Watcher != nil {
			_ = opts.Watcher.Close()
		}
		tracer.Close()
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	s := &Server{
		app:     app,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		tracer:  tracer,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfigFrom(s.config.RateLimit)))
	}

	var static apihttp.Files
	if f, ok := s.app.Place(place.Static).(apihttp.Files); ok {
		static = f
	}
	handlers := apihttp.NewHandlers(s.app.Registry(), static, s.status, s.logger)
	wsHandler := ws.NewHandler(s.app.Registry(), s.metrics, s.tracer, s.logger)

	router.GET("/health", handlers.Health)
	router.GET("/introspect", handlers.Introspect)
	router.POST("/api/:interface/:method", handlers.Call)
	router.GET("/ws", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.NoRoute(handlers.Static)

	return router
}

func (s *Server) status() map[string]interface{} {
	return map[string]interface{}{
		"state":      s.app.State().String(),
		"kind":       s.app.Kind(),
		"worker":     s.app.Worker(),
		"interfaces": s.app.Registry().Names(),
		"uptime":     s.metrics.UptimeDuration().String(),
	}
}

// Application returns the kernel
func (s *Server) Application() *kernel.Application { return s.app }

// Router returns the HTTP handler
func (s *Server) Router() http.Handler { return s.router }

// Start loads the application for the configured kind
func (s *Server) Start(ctx context.Context) kernel.Report {
	report := s.app.Init(ctx, s.config.Application.Kind)
	for _, o := range report.Failed() {
		s.logger.Warn("Startup branch failed", zap.String("branch", o.Branch), zap.Error(o.Err))
	}
	return report
}

// Run serves HTTP until the listener is closed. Scheduler deployments have
// no listener; Run blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.app.Kind() == kernel.KindScheduler {
		<-ctx.Done()
		return nil
	}

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.http = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	s.app.AttachListener(graceful{s.http})
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts the application down; the kernel closes the listener and the
// logger as part of its shutdown sequence.
func (s *Server) Close(ctx context.Context) {
	s.app.Shutdown(ctx)
	s.tracer.Close()
}

// graceful lets the kernel close an HTTP server without cutting in-flight
// requests short
type graceful struct{ srv *http.Server }

func (g graceful) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.srv.Shutdown(ctx)
}
