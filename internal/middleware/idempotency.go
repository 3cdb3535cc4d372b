package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/imgcrop/internal/domain"
)

const (
	HeaderCorrelationID    = "X-Correlation-ID"
	HeaderIdempotentReplay = "X-Idempotent-Replay"
)

// Idempotency replays the cached response of a POST/PATCH/PUT that carries an
// already seen X-Correlation-ID, so a retried /save does not mint a second file.
// Only 2xx responses are cached.
func Idempotency(cache domain.ReplayCache, ttl time.Duration, logger *log.Logger) fiber.Handler {
	if logger == nil {
		logger = log.Default()
	}

	return func(c *fiber.Ctx) error {
		// Only apply to mutating methods
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(HeaderCorrelationID)
		if correlationID == "" {
			return c.Next()
		}
		// Scope the key to the route so one ID cannot replay another endpoint's body
		key := c.Method() + ":" + c.Path() + ":" + correlationID

		cached, err := cache.GetResponse(c.UserContext(), key)
		switch {
		case err == nil:
			c.Set(HeaderIdempotentReplay, "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		case !errors.Is(err, domain.ErrCacheMiss):
			// Cache outage must not block uploads
			logger.Warn("idempotency lookup failed", "err", err)
		}

		if err := c.Next(); err != nil {
			return err
		}

		statusCode := c.Response().StatusCode()
		if statusCode >= 200 && statusCode < 300 {
			body := c.Response().Body()
			if len(body) > 0 {
				// Response body is only valid inside the handler; copy before leaving
				stored := append([]byte(nil), body...)
				setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := cache.SetResponse(setCtx, key, stored, ttl); err != nil {
					logger.Warn("idempotency store failed", "err", err)
				}
			}
		}

		return nil
	}
}
