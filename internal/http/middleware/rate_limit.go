package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerImage/config"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 100,
		Window:      time.Minute,
		KeyPrefix:   "ratelimit",
	}
}

// RateLimitFromConfig fills unset or unparsable values from DefaultRateLimitConfig.
func RateLimitFromConfig(cfg config.RateLimitConfig, keyPrefix string) RateLimitConfig {
	out := DefaultRateLimitConfig()
	if cfg.MaxRequests > 0 {
		out.MaxRequests = cfg.MaxRequests
	}
	if d, err := time.ParseDuration(cfg.Window); err == nil && d > 0 {
		out.Window = d
	}
	if keyPrefix != "" {
		out.KeyPrefix = keyPrefix
	}
	return out
}

// RateLimit counts requests per client IP in fixed windows stored in Redis.
// A nil client disables limiting.
func RateLimit(redisClient redis.UniversalClient, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		if redisClient == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		key := config.KeyPrefix + ":" + c.IP()

		result, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			logger.Error("rate limit redis error", zap.Error(err))
			// Fail open: allow request if Redis is unavailable
			return c.Next()
		}

		// First hit in the window starts the clock.
		if result == 1 {
			if err := redisClient.Expire(ctx, key, config.Window).Err(); err != nil {
				logger.Warn("rate limit expire failed", zap.String("key", key), zap.Error(err))
			}
		}

		remaining := config.MaxRequests - int(result)
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		if result > int64(config.MaxRequests) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}

		return c.Next()
	}
}
