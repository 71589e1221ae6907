package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
)

// AccessLog logs one line per request once the response status is known.
// Errors are rendered here through the app's error handler so the logged
// status is the one sent.
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		level := zerolog.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case status >= fiber.StatusBadRequest:
			level = zerolog.WarnLevel
		}

		ctx := c.UserContext()
		event := scope.Logger(ctx).WithLevel(level)
		// Scoped request loggers already carry method and path.
		if _, err := scope.From(ctx); err != nil {
			event = event.Str("method", c.Method()).Str("path", c.Path())
		}
		event.Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return nil
	}
}
