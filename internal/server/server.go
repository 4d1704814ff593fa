// Package server exposes the optimizer and the fake-quant functor over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/born-ml/graphopt/internal/logger"
	"github.com/born-ml/graphopt/internal/optimizer"
	"github.com/born-ml/graphopt/internal/quant"
)

// HeaderRequestID carries the per-request id on responses.
const HeaderRequestID = "X-Request-Id"

const defaultMaxBodyBytes = 64 << 20

// Options configures a Server. A zero Defaults means
// optimizer.DefaultOptions.
type Options struct {
	Registry     *optimizer.Registry
	Defaults     optimizer.Options
	Validate     bool
	MaxBodyBytes int64
	Logger       logger.Logger
}

// Server serves the optimizer and fake-quant endpoints.
type Server struct {
	registry *optimizer.Registry
	defaults optimizer.Options
	validate bool
	maxBody  int64
	log      logger.Logger
}

// New returns a Server, filling unset Options with defaults.
func New(opts Options) *Server {
	s := &Server{
		registry: opts.Registry,
		defaults: opts.Defaults,
		validate: opts.Validate,
		maxBody:  opts.MaxBodyBytes,
		log:      opts.Logger,
	}
	if s.registry == nil {
		s.registry = optimizer.NewRegistry()
	}
	if s.defaults.Reshape == nil && s.defaults.Quant == (quant.Params{}) {
		s.defaults = optimizer.DefaultOptions()
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBodyBytes
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	return s
}

// Register adds the routes to e without any middleware. Request bodies are
// only bounded when e also runs a body limit, as Echo installs.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/passes", s.handleListPasses)
	e.POST("/v1/optimize", s.handleOptimize)
	e.POST("/v1/fakequant", s.handleFakeQuant)
}

// Echo returns an echo instance with the standard middleware and every
// route registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(s.maxBody))
	e.Use(requestID)
	s.Register(e)
	return e
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.log.Info("starting server", "address", addr)
	sc := echo.StartConfig{
		Address: addr,
		BeforeServeFunc: func(srv *http.Server) error {
			srv.ReadHeaderTimeout = 30 * time.Second
			return nil
		},
	}
	return sc.Start(ctx, s.Echo())
}

// requestID stamps every response with a fresh id unless the client sent one.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := c.Request().Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Response().Header().Set(HeaderRequestID, id)
		return next(c)
	}
}

func requestIDFrom(c *echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok {
		return id
	}
	return ""
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPasses(c *echo.Context) error {
	return c.JSON(http.StatusOK, PassesResponse{Passes: s.registry.Names()})
}
