package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Logger creates a logging middleware using zap
func Logger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := append(requestFields(c),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		)

		switch {
		case err != nil:
			logger.Error("request error", append(fields, zap.Error(err))...)
		case c.Response().StatusCode() >= fiber.StatusInternalServerError:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}

		return err
	}
}

func requestFields(c *fiber.Ctx) []zap.Field {
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
	}
	if rid, ok := c.Locals(localRequestID).(string); ok {
		fields = append(fields, zap.String("request_id", rid))
	}
	if uid := UserID(c); uid != 0 {
		fields = append(fields, zap.Uint("user_id", uid))
	}
	return fields
}
