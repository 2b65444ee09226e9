package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ottr/internal/api/http"
	"github.com/GriffinCanCode/ottr/internal/api/middleware"
	"github.com/GriffinCanCode/ottr/internal/api/ws"
	"github.com/GriffinCanCode/ottr/internal/config"
	"github.com/GriffinCanCode/ottr/internal/console"
	"github.com/GriffinCanCode/ottr/internal/coverage"
	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"
	"github.com/GriffinCanCode/ottr/internal/domain/session"
	"github.com/GriffinCanCode/ottr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ottr/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ottr/internal/logging"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies.
type Server struct {
	router    *gin.Engine
	store     *session.Store
	acc       *coverage.Accumulator
	converter *coverage.Converter
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// Option customises a Server.
type Option func(*options)

type options struct {
	console console.Console
}

// WithConsole prints test page console output to c instead of the log.
func WithConsole(c console.Console) Option {
	return func(o *options) { o.console = c }
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	logger = logging.OrNop(logger)
	o := options{console: console.NewLogger(logger.Named("page"))}
	for _, opt := range opts {
		opt(&o)
	}

	logger.Info("Initializing ottr server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("sourcemap_fetch", cfg.SourceMap.Fetch),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("ottr", logger)

	resolver := sourcemap.NewResolver(sourcemap.ResolverConfig{
		Fetch:     cfg.SourceMap.Fetch,
		Timeout:   cfg.SourceMap.Timeout,
		Retries:   cfg.SourceMap.Retries,
		UserAgent: sourcemap.DefaultResolverConfig().UserAgent,
	}, logger)
	converter, err := coverage.NewConverter(resolver, ConverterOptions(cfg), logger, coverage.WithRecorder(metrics))
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create converter: %w", err)
	}

	var store *session.Store
	store = session.NewStore(session.WithOnCreate(func(id string) {
		logger.Debug("session created", zap.String("session", id))
		metrics.IncSessionsTotal()
		metrics.SetSessionsActive(store.Active())
	}))
	acc := coverage.NewAccumulator()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	events := ws.NewHandler(store, o.console, metrics, logger)
	handlers := apihttp.NewHandlers(store, converter, acc, events, metrics, tracer, logger)
	handlers.Register(router)
	router.GET(ws.Path, events.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		store:     store,
		acc:       acc,
		converter: converter,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
		tracer:    tracer,
		ready:     make(chan struct{}),
	}, nil
}

// ConverterOptions maps the coverage configuration onto converter options.
func ConverterOptions(cfg *config.Config) coverage.Options {
	return coverage.Options{
		Stages: coverage.Stages{
			InferNonCovered:  cfg.Coverage.InferNonCovered,
			InterpolateLines: cfg.Coverage.InterpolateLines,
		},
		Include: cfg.Coverage.Include,
		Exclude: cfg.Coverage.Exclude,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Store returns the session store.
func (s *Server) Store() *session.Store { return s.store }

// Accumulator returns the coverage accumulated by the server.
func (s *Server) Accumulator() *coverage.Accumulator { return s.acc }

// Converter returns the converter used for posted coverage.
func (s *Server) Converter() *coverage.Converter { return s.converter }

// Metrics returns the server's metrics.
func (s *Server) Metrics() *monitoring.Metrics { return s.metrics }

// Ready is closed once Run is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the listening address, or nil before Run has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.Stringer("addr", ln.Addr()))

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Serve(ln) }()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// Close releases background resources. Call it after Run has returned.
func (s *Server) Close() error {
	s.tracer.Close()
	s.logger.Info("Server shutdown complete")
	return nil
}
