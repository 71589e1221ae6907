package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/AutoClub/internal/pkg/database"
)

// SystemRouter serves health and metrics endpoints outside of any request scope.
type SystemRouter struct {
	deps Dependencies
}

func (h SystemRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", h.health)

	gatherer := h.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

func (h SystemRouter) health(c *fiber.Ctx) error {
	if err := database.Ping(c.UserContext(), h.deps.DB); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func NewSystemRouter(deps Dependencies) *SystemRouter {
	return &SystemRouter{deps: deps}
}
