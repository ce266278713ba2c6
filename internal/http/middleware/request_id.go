package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	localRequestID  = "request_id"
)

// RequestID generates a unique request ID for each request
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := utils.CopyString(c.Get(RequestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(RequestIDHeader, rid)
		c.Locals(localRequestID, rid)
		return c.Next()
	}
}
