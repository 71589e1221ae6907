package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
)

const (
	HeaderRequestID = "X-Request-ID"
	// KeyRequestID is the fiber local holding the request id.
	KeyRequestID = "request_id"
)

type scopeConfig struct {
	autoFlush bool
}

type ScopeOption func(*scopeConfig)

// AutoFlush controls whether pending work is flushed after a successful
// handler. It is on by default.
func AutoFlush(enabled bool) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.autoFlush = enabled
	}
}

// RequestScope runs the rest of the chain inside a request scope with its own
// session. Handlers reach the scope through c.UserContext(). The request id is
// taken from X-Request-ID when the client sends one and echoed back.
func RequestScope(opener scope.Opener, logger zerolog.Logger, opts ...ScopeOption) fiber.Handler {
	cfg := scopeConfig{autoFlush: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *fiber.Ctx) error {
		requestID := strings.TrimSpace(c.Get(HeaderRequestID))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set(HeaderRequestID, requestID)
		c.Locals(KeyRequestID, requestID)

		reqLogger := logger.With().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Logger()

		values := scope.Values{CorrelationID: requestID, Logger: &reqLogger}
		return scope.Run(c.UserContext(), opener, values, func(ctx context.Context) error {
			c.SetUserContext(ctx)
			if err := c.Next(); err != nil {
				return err
			}
			if !cfg.autoFlush || c.Response().StatusCode() >= fiber.StatusBadRequest {
				return nil
			}
			sess, err := scope.Session(ctx)
			if err != nil {
				return err
			}
			return sess.Flush()
		})
	}
}
