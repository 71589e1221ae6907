package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/internal/pkg/config"
	"github.com/ManuelReschke/AutoClub/internal/pkg/middleware"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the shared services the routes need.
type Dependencies struct {
	App      config.AppConfig
	DB       *gorm.DB
	Sessions *session.Manager
	Logger   zerolog.Logger
	Gatherer prometheus.Gatherer
	// RateLimit caps API requests per client and minute; 0 disables the limiter.
	RateLimit int
}

// NewApplication creates the fiber app with error handling, access logging
// and every route installed.
func NewApplication(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "autoclub",
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: true,
	})

	// recovery and logging
	app.Use(recover.New(), middleware.AccessLog())

	InstallRouter(app, deps)
	return app
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// System routes first: health checks and metrics must not open sessions.
	setup(app, NewSystemRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
