package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/shortng/internal/app/service"
	inthttp "github.com/sifan077/shortng/internal/http/handler"
	"github.com/sifan077/shortng/internal/http/middleware"
	"go.uber.org/zap"
)

// Metrics is the union of the observers used by the HTTP layer.
type Metrics interface {
	middleware.RequestObserver
	inthttp.ShortenMetrics
}

// Dependencies bundles infrastructure dependencies required by the HTTP server.
type Dependencies struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	// Limiter is nil when Redis is not configured.
	Limiter   middleware.Limiter
	RateLimit int
	Metrics   Metrics
	// Pinger checks the journal database for /health.
	Pinger func(ctx context.Context) error
	// EditWindow is shown on the shortener form.
	EditWindow time.Duration

	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "shortng",
		BodyLimit:             deps.BodyLimit,
		ReadTimeout:           deps.ReadTimeout,
		WriteTimeout:          deps.WriteTimeout,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())
	if s.deps.Metrics != nil {
		s.app.Use(middleware.Metrics(s.deps.Metrics))
	}
}

func (s *Server) registerRoutes() {
	var shortenMiddleware []fiber.Handler
	if s.deps.Limiter != nil && s.deps.RateLimit > 0 {
		shortenMiddleware = append(shortenMiddleware, middleware.RateLimit(
			s.deps.Limiter,
			middleware.RateLimitConfig{MaxRequests: s.deps.RateLimit},
			s.deps.Logger,
		))
	}

	var shortenMetrics inthttp.ShortenMetrics
	if s.deps.Metrics != nil {
		shortenMetrics = s.deps.Metrics
	}

	shortenHandler := inthttp.NewShortenHandler(inthttp.ShortenDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.LinkService,
		Metrics:     shortenMetrics,
		Pinger:      s.deps.Pinger,
		EditWindow:  s.deps.EditWindow,
	})
	shortenHandler.Register(s.app, shortenMiddleware...)

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.LinkService,
	})
	apiHandler.Register(s.app)
}
