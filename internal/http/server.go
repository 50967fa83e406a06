// Package http provides the digipin HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/geocode"
	"github.com/fyrsmithlabs/digipin/internal/history"
	"github.com/fyrsmithlabs/digipin/internal/logging"
	"github.com/fyrsmithlabs/digipin/internal/telemetry"
	"github.com/fyrsmithlabs/digipin/internal/trigger"
)

// Converter runs conversions.
type Converter interface {
	RunEncode(ctx context.Context, latText, lngText string) (string, error)
	RunDecode(ctx context.Context, code string) (geocode.Coordinates, error)
}

// History exposes the history store.
type History interface {
	Load(ctx context.Context) ([]history.Item, int, error)
	SetLimit(ctx context.Context, n int) ([]history.Item, int, error)
	Clear(ctx context.Context) error
}

// Selector handles raw text selections.
type Selector interface {
	Handle(ctx context.Context, selection string) (trigger.Result, error)
}

// MapURLer builds map viewer URLs.
type MapURLer interface {
	URL(coords string) (string, bool)
}

// HealthReporter reports telemetry health.
type HealthReporter interface {
	Health() telemetry.HealthStatus
}

// Services are the components the API exposes.
type Services struct {
	Converter Converter
	History   History
	Selector  Selector
	Maps      MapURLer
	Telemetry HealthReporter
}

// Server provides HTTP endpoints for digipin.
type Server struct {
	echo     *echo.Echo
	services Services
	logger   *logging.Logger
	config   *Config
	metrics  *requestMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// MeterProvider receives request metrics. Defaults to the global one.
	MeterProvider metric.MeterProvider
}

// NewServer creates a new HTTP server.
func NewServer(services Services, logger *logging.Logger, cfg *Config) (*Server, error) {
	if services.Converter == nil {
		return nil, fmt.Errorf("converter cannot be nil")
	}
	if services.History == nil {
		return nil, fmt.Errorf("history cannot be nil")
	}
	if services.Selector == nil {
		return nil, fmt.Errorf("selector cannot be nil")
	}
	if services.Maps == nil {
		return nil, fmt.Errorf("maps cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		services: services,
		logger:   logger,
		config:   cfg,
		metrics:  newRequestMetrics(cfg.MeterProvider, logger),
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.metrics.middleware())
	e.Use(s.contextMiddleware)

	s.registerRoutes()

	return s, nil
}

// contextMiddleware tags the request context for log correlation and logs
// each request.
func (s *Server) contextMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		ctx := logging.WithSource(c.Request().Context(), logging.SourceHTTP)
		if id := c.Response().Header().Get(echo.HeaderXRequestID); logging.ValidRequestID(id) {
			ctx = logging.WithRequestID(ctx, id)
		}
		c.SetRequest(c.Request().WithContext(ctx))

		err := next(c)
		if err != nil {
			// Resolve the status before logging it.
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/encode", s.handleEncode)
	v1.POST("/decode", s.handleDecode)
	v1.POST("/selection", s.handleSelection)
	v1.GET("/history", s.handleHistory)
	v1.DELETE("/history", s.handleClearHistory)
	v1.PUT("/history/limit", s.handleSetLimit)
	v1.GET("/maps", s.handleMaps)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
