package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerImage/internal/app/permission"
	"github.com/sifan077/PowerImage/internal/http/util"
	"go.uber.org/zap"
)

const (
	localUserID       = "user_id"
	localUsername     = "username"
	localCapabilities = "capabilities"
)

// Auth authenticates "Authorization: Bearer <jwt>" and stores the user ID in Locals.
func Auth(tokens *util.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication credentials were not provided",
			})
		}

		claims, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": util.ErrInvalidToken.Error(),
			})
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localUsername, claims.Username)
		return c.Next()
	}
}

// LoadCapabilities resolves the authenticated user's grants once per request.
// It must run after Auth.
func LoadCapabilities(resolver *permission.Resolver, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		caps, err := resolver.Resolve(c.UserContext(), UserID(c))
		if err != nil {
			if errors.Is(err, permission.ErrUnauthenticated) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "authentication credentials were not provided",
				})
			}
			logger.Error("failed to resolve permissions", zap.Uint("user_id", UserID(c)), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
		c.Locals(localCapabilities, caps)
		return c.Next()
	}
}

// RequirePermission rejects requests lacking codename. It must run after LoadCapabilities.
func RequirePermission(codename permission.Codename) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Capabilities(c).Has(codename) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "you do not have permission to perform this action",
			})
		}
		return c.Next()
	}
}

// UserID returns the authenticated user, or 0.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localUserID).(uint)
	return id
}

// Capabilities returns the grants loaded by LoadCapabilities, or an empty set.
func Capabilities(c *fiber.Ctx) permission.Set {
	caps, ok := c.Locals(localCapabilities).(permission.Set)
	if !ok {
		return permission.NewSet()
	}
	return caps
}
