package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/jsforge/backend/internal/api/http"
	"github.com/jsforge/backend/internal/api/middleware"
	"github.com/jsforge/backend/internal/api/ws"
	"github.com/jsforge/backend/internal/engine"
	"github.com/jsforge/backend/internal/infrastructure/config"
	"github.com/jsforge/backend/internal/infrastructure/logging"
	"github.com/jsforge/backend/internal/infrastructure/monitoring"
	"github.com/jsforge/backend/internal/infrastructure/tracing"
	"github.com/jsforge/backend/internal/sandbox"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	httpSrv *http.Server
	logger  *logging.Logger
	engine  *engine.Engine
	pool    *sandbox.Pool
	metrics *monitoring.Metrics
}

// New creates a server instance from configuration
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("jsforge-backend", logger.Logger)

	pool, err := sandbox.NewPool(sandbox.Config{
		MaxCallStackSize: cfg.Sandbox.MaxCallStackSize,
		EnableConsole:    cfg.Sandbox.EnableConsole,
	}, cfg.Sandbox.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	eng := engine.New(pool, engine.Config{
		MaxExecutionTime:   cfg.Engine.MaxExecutionTime,
		MaxMemoryMB:        cfg.Engine.MaxMemoryMB,
		MaxConcurrent:      cfg.Engine.MaxConcurrent,
		CacheSize:          cfg.Engine.CacheSize,
		CacheTTL:           cfg.Engine.CacheTTL,
		EnableCache:        cfg.Engine.EnableCache,
		EnableMetrics:      cfg.Engine.EnableMetrics,
		SecurityLevel:      engine.SecurityLevel(cfg.Engine.SecurityLevel),
		LoopIterationLimit: cfg.Engine.LoopIterationLimit,
		AsyncWaitTime:      cfg.Engine.AsyncWaitTime,
		PromiseTimeout:     cfg.Engine.PromiseTimeout,
	}, logger.Named("engine")).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(eng, pool)
	wsHandler := ws.NewHandler(eng, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Execution
	router.POST("/execute", handlers.Execute)
	router.GET("/executions", handlers.ListActive)
	router.POST("/executions/:id/cancel", handlers.Cancel)
	router.POST("/executions/cancel-all", handlers.CancelAll)
	router.GET("/executions/metrics", handlers.EngineMetrics)

	// Cache and configuration
	router.POST("/cache/clear", handlers.ClearCache)
	router.GET("/config", handlers.GetConfig)
	router.PATCH("/config", handlers.UpdateConfig)

	// WebSocket metrics stream
	router.GET("/stream", wsHandler.HandleConnection)

	return &Server{
		cfg:     cfg,
		router:  router,
		logger:  logger,
		engine:  eng,
		pool:    pool,
		metrics: metrics,
	}, nil
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting execution service",
		zap.String("addr", addr),
		zap.Int("pool_size", s.cfg.Sandbox.PoolSize),
		zap.Int("max_concurrent", s.cfg.Engine.MaxConcurrent),
	)

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Close cleans up resources
func (s *Server) Close() error {
	n := s.engine.CancelAll()
	if n > 0 {
		s.logger.Info("aborted in-flight executions", zap.Int("count", n))
	}
	s.engine.Close()
	s.pool.Close()
	s.logger.Sync()
	return nil
}
