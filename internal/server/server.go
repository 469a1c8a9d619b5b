package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-chat/config"
	"marketplace-chat/internal/handler"
	"marketplace-chat/internal/middleware"
	"marketplace-chat/internal/realtime"
	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	closers    []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	API      handler.Routes
	Health   *handler.HealthHandler
	Realtime *realtime.Handler
}

type Dependencies struct {
	Resolver middleware.IdentityResolver
	// MessageLimiter is optional; nil leaves sends unthrottled per user.
	MessageLimiter middleware.MessageLimiter
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(l))

	var root http.Handler = engine
	if cfg.HTTPRateLimit > 0 {
		root = middleware.IPRateLimit(cfg.HTTPRateLimit, cfg.HTTPRateWindow)(root)
	}
	root = middleware.CORS(cfg.CORSAllowedOrigins)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(otelgin.Middleware(s.config.ServiceName))
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", handlers.Health.Ping)
	s.engine.GET("/health", handlers.Health.Health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/ws", handlers.Realtime.Connect)

	var sendLimit []gin.HandlerFunc
	if deps.MessageLimiter != nil {
		sendLimit = append(sendLimit, middleware.MessageRateLimitMiddleware(deps.MessageLimiter))
	}
	api := s.engine.Group("/v1", middleware.AuthMiddleware(deps.Resolver))
	handlers.API.Register(api, sendLimit...)
}

// OnShutdown registers cleanup that runs, in reverse order, after the HTTP
// server has drained.
func (s *Server) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-quit:
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	case err := <-errCh:
		s.logger.Errorf("Error in starting the server: %s", err)
		s.runClosers()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
	}
	s.runClosers()

	if err == nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return err
}

func (s *Server) runClosers() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			s.logger.Logger.Warn("shutdown step failed", zap.String("step", c.name), zap.Error(err))
		}
	}
}
