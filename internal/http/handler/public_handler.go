package handler

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/service"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"go.uber.org/zap"
)

// LinkRoutePattern is the public path of an expiring link.
const LinkRoutePattern = "/api/images/link/:alias/"

const healthCheckTimeout = 2 * time.Second

// AccessRecorder receives an event for every served link.
type AccessRecorder interface {
	Publish(alias, imageID, ip, userAgent string) error
}

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

// PublicDeps groups dependencies required by unauthenticated routes.
type PublicDeps struct {
	Logger *zap.Logger
	Gate   *service.ResolutionGate
	// Access is optional; nil disables access events.
	Access AccessRecorder
	// RateLimit guards the link route when set.
	RateLimit fiber.Handler
	// Media serves stored files under MediaPrefix when Media, Files and
	// Signer are all set (local backend). Every request needs a signature.
	Media       *storage.Thumbnailer
	Files       storage.Storage
	Signer      *storage.MediaSigner
	MediaPrefix string
	Checks      map[string]HealthCheck
}

// PublicHandler serves health, expiring links and local media.
type PublicHandler struct {
	logger      *zap.Logger
	gate        *service.ResolutionGate
	access      AccessRecorder
	rateLimit   fiber.Handler
	media       *storage.Thumbnailer
	files       storage.Storage
	signer      *storage.MediaSigner
	mediaPrefix string
	checks      map[string]HealthCheck
}

// NewPublicHandler creates a public handler with the provided dependencies.
func NewPublicHandler(deps PublicDeps) *PublicHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := deps.MediaPrefix
	if prefix == "" {
		prefix = "/media"
	}
	return &PublicHandler{
		logger:      logger,
		gate:        deps.Gate,
		access:      deps.Access,
		rateLimit:   deps.RateLimit,
		media:       deps.Media,
		files:       deps.Files,
		signer:      deps.Signer,
		mediaPrefix: "/" + strings.Trim(prefix, "/"),
		checks:      deps.Checks,
	}
}

// Register wires public routes. The link route is named service.LinkRouteName
// so a util.Reverser can be bound to it.
func (h *PublicHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)

	handlers := []fiber.Handler{h.Resolve}
	if h.rateLimit != nil {
		handlers = append([]fiber.Handler{h.rateLimit}, handlers...)
	}
	router.Get(LinkRoutePattern, handlers...).Name(service.LinkRouteName)

	if h.media != nil && h.files != nil && h.signer != nil {
		router.Get(h.mediaPrefix+"/*", h.Media)
	}
}

// Health reports service status and the result of each dependency ping.
func (h *PublicHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	deps := fiber.Map{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "down"
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"service":      "PowerImage",
		"status":       status,
		"dependencies": deps,
		"time":         time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /api/images/link/:alias/ and streams the original while
// the link's marker is alive.
func (h *PublicHandler) Resolve(c *fiber.Ctx) error {
	alias := c.Params("alias")

	res, err := h.gate.Resolve(c.UserContext(), alias)
	if err != nil {
		h.logger.Error("failed to resolve link", zap.String("alias", alias), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if res.State != service.StateValid {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"msg": "Link has expired",
		})
	}

	if h.access != nil {
		go h.recordAccess(utils.CopyString(alias), res.Image.ID,
			utils.CopyString(c.IP()), utils.CopyString(c.Get(fiber.HeaderUserAgent)))
	}

	c.Set(fiber.HeaderContentType, res.ContentType)
	return c.SendStream(res.Content)
}

// Media handles GET <prefix>/*?sig=<signature>. The signature must name the
// exact key requested, so "@<height>" renditions are limited to signed heights.
func (h *PublicHandler) Media(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" {
		return notFound(c, "file not found")
	}
	if err := h.signer.Verify(key, c.Query(storage.SignatureParam)); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx := c.UserContext()
	original, height, isThumb := storage.SplitThumbnailKey(key)

	var (
		content io.ReadCloser
		err     error
	)
	if isThumb {
		content, err = h.media.Open(ctx, original, height)
	} else {
		content, err = h.files.Open(ctx, key)
	}
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return notFound(c, "file not found")
		}
		h.logger.Error("failed to open media", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	c.Set(fiber.HeaderContentType, (&model.Image{OriginalFile: original}).ContentType())
	return c.SendStream(content)
}

func (h *PublicHandler) recordAccess(alias, imageID, ip, userAgent string) {
	if err := h.access.Publish(alias, imageID, ip, userAgent); err != nil {
		h.logger.Error("failed to publish link access event", zap.String("alias", alias), zap.Error(err))
	}
}
