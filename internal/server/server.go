package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/leofalp/unillm/core/client"
	clientmw "github.com/leofalp/unillm/core/client/middleware"
	"github.com/leofalp/unillm/internal/config"
	"github.com/leofalp/unillm/providers/observability"
)

const (
	shutdownGracePeriod = 10 * time.Second
	idleTimeout         = 120 * time.Second
)

// Server routes unified requests to one client per provider.
type Server struct {
	cfg      *config.Config
	clients  map[string]*client.Client
	app      *echo.Echo
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New constructs a server over pre-built clients keyed by provider name.
// logger may be nil, in which case slog.Default() is used.
func New(cfg *config.Config, clients map[string]*client.Client, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config must not be nil")
	}
	if len(clients) == 0 {
		return nil, errors.New("server: at least one provider must be configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		cfg:     cfg,
		clients: clients,
		app:     e,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	e.HTTPErrorHandler = srv.handleError

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("latency_ms", v.Latency.Milliseconds()),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	srv.registerRoutes()
	return srv, nil
}

// NewFromConfig builds one client per configured provider and a server
// over them. When observer is not nil every client reports to it. A
// positive server.request_timeout adds the timeout middleware.
func NewFromConfig(cfg *config.Config, observer observability.Provider, logger *slog.Logger) (*Server, error) {
	var opts []client.Option
	if observer != nil {
		opts = append(opts, client.WithObserver(observer))
	}
	if cfg.Server.RequestTimeout > 0 {
		opts = append(opts, client.WithMiddleware(clientmw.NewTimeoutMiddleware(cfg.Server.RequestTimeout)))
	}

	clients := make(map[string]*client.Client)
	for _, name := range cfg.ProviderNames() {
		c, err := cfg.NewClient(name, opts...)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		clients[name] = c
	}
	return New(cfg, clients, logger)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.app }

// Providers returns the served provider names, sorted.
func (s *Server) Providers() []string {
	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting gateway", "addr", s.cfg.Server.Addr, "providers", s.Providers())

	httpServer := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.app,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		// echo's own Shutdown targets its default server, not httpServer.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("gateway shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)

	v1 := s.app.Group("/v1")
	v1.GET("/providers", s.handleProviders)

	p := v1.Group("/providers/:provider")
	p.GET("/models", s.handleListModels)
	p.GET("/models/:model", s.handleGetModel)
	p.POST("/generate", s.handleGenerate)
	p.POST("/stream", s.handleStream)
	p.POST("/count_tokens", s.handleCountTokens)
	p.GET("/ws", s.handleWebSocket)
}
