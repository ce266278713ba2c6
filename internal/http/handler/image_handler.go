package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerImage/internal/app/permission"
	"github.com/sifan077/PowerImage/internal/app/repository"
	"github.com/sifan077/PowerImage/internal/app/service"
	"github.com/sifan077/PowerImage/internal/http/middleware"
	"github.com/sifan077/PowerImage/internal/http/util"
	"go.uber.org/zap"
)

// ImageDeps groups dependencies required by the authenticated image API.
type ImageDeps struct {
	Logger      *zap.Logger
	Images      service.ImageService
	Links       service.LinkService
	Selector    *service.RepresentationSelector
	Tokens      *util.TokenIssuer
	Permissions *permission.Resolver
}

// ImageHandler implements the /api/images endpoints that require a bearer token.
type ImageHandler struct {
	logger      *zap.Logger
	images      service.ImageService
	links       service.LinkService
	selector    *service.RepresentationSelector
	tokens      *util.TokenIssuer
	permissions *permission.Resolver
}

// NewImageHandler creates an image handler with the provided dependencies.
func NewImageHandler(deps ImageDeps) *ImageHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageHandler{
		logger:      logger,
		images:      deps.Images,
		links:       deps.Links,
		selector:    deps.Selector,
		tokens:      deps.Tokens,
		permissions: deps.Permissions,
	}
}

// Register wires image routes onto the provided router. Authentication is
// attached per route so the public link route can share the /api/images prefix.
func (h *ImageHandler) Register(router fiber.Router) {
	auth := middleware.Auth(h.tokens)
	caps := middleware.LoadCapabilities(h.permissions, h.logger)

	images := router.Group("/api/images")
	{
		images.Get("/", auth, caps, h.List)
		images.Post("/upload/", auth, caps, h.Upload)
		images.Post("/generate-link/:image_id/", auth, caps,
			middleware.RequirePermission(permission.GenerateLink), h.GenerateLink)
		images.Delete("/:image_id/", auth, h.Delete)
	}
}

// List handles GET /api/images/
func (h *ImageHandler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()

	images, err := h.images.List(ctx, middleware.UserID(c))
	if err != nil {
		return h.internalError(c, "failed to list images", err)
	}

	reps, err := h.selector.PresentAll(ctx, images, middleware.Capabilities(c))
	if err != nil {
		return h.internalError(c, "failed to present images", err)
	}
	return c.JSON(reps)
}

// Upload handles POST /api/images/upload/ with a multipart "original_file".
func (h *ImageHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("original_file")
	if err != nil {
		return badRequest(c, service.ErrEmptyUpload)
	}

	content, err := file.Open()
	if err != nil {
		return h.internalError(c, "failed to open upload", err)
	}
	defer content.Close()

	ctx := c.UserContext()
	image, err := h.images.Upload(ctx, service.UploadInput{
		UserID:   middleware.UserID(c),
		Filename: file.Filename,
		Content:  content,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedExtension) ||
			errors.Is(err, service.ErrInvalidImage) ||
			errors.Is(err, service.ErrEmptyUpload) {
			return badRequest(c, err)
		}
		return h.internalError(c, "failed to upload image", err)
	}

	rep, err := h.selector.Present(ctx, image, middleware.Capabilities(c))
	if err != nil {
		return h.internalError(c, "failed to present image", err)
	}
	return c.Status(fiber.StatusCreated).JSON(rep)
}

// Delete handles DELETE /api/images/:image_id/
func (h *ImageHandler) Delete(c *fiber.Ctx) error {
	imageID := c.Params("image_id")

	if err := h.images.Delete(c.UserContext(), middleware.UserID(c), imageID); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return notFound(c, "image not found")
		}
		return h.internalError(c, "failed to delete image", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GenerateLinkRequest is the body of POST /api/images/generate-link/:image_id/.
type GenerateLinkRequest struct {
	ExpiresIn int `json:"expires_in" form:"expires_in"`
}

// GenerateLink handles POST /api/images/generate-link/:image_id/
func (h *ImageHandler) GenerateLink(c *fiber.Ctx) error {
	var req GenerateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expires_in must be an integer",
		})
	}

	imageID := c.Params("image_id")
	created, err := h.links.CreateLink(c.UserContext(), service.CreateLinkInput{
		ImageID:   imageID,
		ExpiresIn: req.ExpiresIn,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExpiresInOutOfRange):
			return badRequest(c, err)
		case errors.Is(err, repository.ErrImageNotFound):
			return notFound(c, "image not found")
		default:
			return h.internalError(c, "failed to create link", err)
		}
	}

	h.logger.Debug("expiring link created",
		zap.String("alias", created.Link.Alias),
		zap.String("image_id", imageID),
		zap.Bool("marker_written", created.MarkerWritten),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": created.URL})
}

func (h *ImageHandler) internalError(c *fiber.Ctx, msg string, err error) error {
	h.logger.Error(msg, zap.Uint("user_id", middleware.UserID(c)), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": msg,
	})
}
