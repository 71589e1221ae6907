package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

// ErrorHandler renders errors returned by handlers as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	logger := scope.Logger(c.UserContext())

	var cv *storeerr.ConstraintViolation
	var fe *fiber.Error
	switch {
	case errors.As(err, &cv):
		status, code := fiber.StatusUnprocessableEntity, "constraint_violation"
		if cv.Constraint == storeerr.Unique {
			status, code = fiber.StatusConflict, "conflict"
		}
		logger.Info().Err(err).Str("entity", cv.Entity).Str("field", cv.Field).Msg("write rejected")
		return c.Status(status).JSON(fiber.Map{
			"error":      code,
			"message":    cv.Message(),
			"field":      cv.Field,
			"constraint": cv.Constraint,
		})
	case errors.Is(err, storeerr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Resource not found"})
	case errors.Is(err, storeerr.ErrStoreUnavailable):
		logger.Warn().Err(err).Msg("store unavailable")
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Database unavailable"})
	case errors.Is(err, storeerr.ErrNoActiveScope):
		logger.Error().Err(err).Str("path", c.Path()).Msg("handler reached the store outside of a request scope")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Internal server error"})
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"error": errorCode(fe.Code), "message": fe.Message})
	default:
		logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Internal server error"})
	}
}

// errorCode turns a status into a snake case code, e.g. 404 -> "not_found".
func errorCode(status int) string {
	return strings.ReplaceAll(strings.ToLower(utils.StatusMessage(status)), " ", "_")
}
