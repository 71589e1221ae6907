package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/ManuelReschke/AutoClub/internal/api/v1"
	"github.com/ManuelReschke/AutoClub/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	handlers := []fiber.Handler{}
	if h.deps.RateLimit > 0 {
		handlers = append(handlers, limiter.New(limiter.Config{
			Max:        h.deps.RateLimit,
			Expiration: time.Minute,
		}))
	}
	// Every API request runs in its own request scope.
	handlers = append(handlers, middleware.RequestScope(h.deps.Sessions, h.deps.Logger))

	api := app.Group("/api", handlers...)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.deps.App)
	apiv1.RegisterHandlers(v1, apiServer)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
