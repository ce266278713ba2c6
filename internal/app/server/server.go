package server

import (
	"context"
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerImage/internal/app/marker"
	"github.com/sifan077/PowerImage/internal/app/permission"
	"github.com/sifan077/PowerImage/internal/app/repository"
	"github.com/sifan077/PowerImage/internal/app/service"
	inthttp "github.com/sifan077/PowerImage/internal/http/handler"
	"github.com/sifan077/PowerImage/internal/http/middleware"
	"github.com/sifan077/PowerImage/internal/http/util"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"go.uber.org/zap"
)

const defaultBodyLimit = 20 << 20

// Dependencies bundles infrastructure dependencies required by the HTTP server.
// Postgres, Redis and JetStream are optional.
type Dependencies struct {
	Logger    *zap.Logger
	Postgres  *sql.DB
	Redis     *redis.Client
	JetStream nats.JetStreamContext

	Images      repository.ImageRepository
	Links       repository.LinkRepository
	Permissions permission.Source
	Markers     marker.Store

	Files      storage.Storage
	Thumbnails storage.ThumbnailURLGenerator
	// ServeMedia exposes Files under MediaPrefix; only meaningful for local
	// storage. Requests must carry a signature from MediaSigner.
	ServeMedia  bool
	MediaPrefix string
	MediaSigner *storage.MediaSigner

	Tokens    *util.TokenIssuer
	BaseURL   string
	RateLimit middleware.RateLimitConfig
	BodyLimit int
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	bodyLimit := deps.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		AppName:               "PowerImage",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	app.Use(
		middleware.RequestID(),
		middleware.Recovery(deps.Logger),
		middleware.Logger(deps.Logger),
		middleware.CORS(),
	)

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application, e.g. for app.Test.
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

func (s *Server) registerRoutes() {
	log := s.deps.Logger
	routes := util.NewReverser(s.deps.BaseURL)

	public := inthttp.PublicDeps{
		Logger: log.Named("public"),
		Gate: service.NewResolutionGate(service.GateDeps{
			Logger:  log.Named("gate"),
			Markers: s.deps.Markers,
			Links:   s.deps.Links,
			Files:   s.deps.Files,
		}),
		MediaPrefix: s.deps.MediaPrefix,
		Checks:      s.healthChecks(),
	}
	if s.deps.Redis != nil {
		public.RateLimit = middleware.RateLimit(s.deps.Redis, s.deps.RateLimit, log)
	}
	if s.deps.JetStream != nil {
		public.Access = service.NewAccessPublisher(s.deps.JetStream)
	}
	if s.deps.ServeMedia {
		public.Media = storage.NewThumbnailer(s.deps.Files)
		public.Files = s.deps.Files
		public.Signer = s.deps.MediaSigner
	}
	inthttp.NewPublicHandler(public).Register(s.app)

	inthttp.NewImageHandler(inthttp.ImageDeps{
		Logger: log.Named("images"),
		Images: service.NewImageService(service.ImageDeps{
			Logger: log.Named("images"),
			Images: s.deps.Images,
			Files:  s.deps.Files,
		}),
		Links: service.NewLinkService(service.LinkDeps{
			Logger:  log.Named("links"),
			Links:   s.deps.Links,
			Images:  s.deps.Images,
			Markers: s.deps.Markers,
			URLs:    routes,
		}),
		Selector:    service.NewRepresentationSelector(s.deps.Files, s.deps.Thumbnails),
		Tokens:      s.deps.Tokens,
		Permissions: permission.NewResolver(s.deps.Permissions),
	}).Register(s.app)

	if err := routes.Bind(s.app, service.LinkRouteName); err != nil {
		log.Error("bind route names", zap.Error(err))
	}
}

func (s *Server) healthChecks() map[string]inthttp.HealthCheck {
	checks := map[string]inthttp.HealthCheck{}
	if s.deps.Postgres != nil {
		checks["postgres"] = s.deps.Postgres.PingContext
	}
	if s.deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return s.deps.Redis.Ping(ctx).Err()
		}
	}
	return checks
}
