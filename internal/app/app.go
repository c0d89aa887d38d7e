// Package app wires services and HTTP handlers into a fiber application.
package app

import (
	"time"

	"lendloop/internal/clock"
	"lendloop/internal/handlers"
	"lendloop/internal/media"
	"lendloop/internal/metrics"
	"lendloop/internal/middleware"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"
	"lendloop/internal/services"
	"lendloop/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles the domain services shared by the HTTP server, the
// scheduler and the CLI.
type Services struct {
	Auth      *services.AuthService
	Loans     *services.LoanService
	Circles   *services.CircleService
	Deletion  *services.AccountDeletionService
	Reminders *services.ReminderService
	Messages  *services.MessageService
}

// Deps are the collaborators the services are built from.
type Deps struct {
	Store     repositories.Store
	Notifier  notify.Sink
	Media     media.Store
	Clock     clock.Clock
	JWTSecret string
	Logger    *zap.Logger
}

// NewServices builds every domain service over deps.
func NewServices(deps Deps) *Services {
	loans := services.NewLoanService(deps.Store, deps.Notifier, deps.Clock, deps.Logger)
	circles := services.NewCircleService(deps.Store, deps.Notifier, deps.Clock, deps.Logger)
	return &Services{
		Auth:      services.NewAuthService(deps.Store.Users(), deps.JWTSecret, deps.Clock),
		Loans:     loans,
		Circles:   circles,
		Deletion:  services.NewAccountDeletionService(deps.Store, loans, circles, deps.Media, deps.Notifier, deps.Clock, deps.Logger),
		Reminders: services.NewReminderService(deps.Store, deps.Notifier, deps.Clock, deps.Logger),
		Messages:  services.NewMessageService(deps.Store),
	}
}

// New builds the fiber application serving the REST API, /health and /metrics.
func New(svc *Services, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "lendloop",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.Middleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	apiV1 := app.Group("/api/v1")
	auth := middleware.AuthRequired(svc.Auth)

	handlers.NewAuthHandler(svc.Auth).RegisterRoutes(apiV1)
	handlers.NewLoanHandler(svc.Loans).RegisterRoutes(apiV1, auth)
	handlers.NewCircleHandler(svc.Circles).RegisterRoutes(apiV1, auth)
	handlers.NewAccountHandler(svc.Auth, svc.Deletion, svc.Reminders).RegisterRoutes(apiV1, auth)
	handlers.NewMessageHandler(svc.Messages).RegisterRoutes(apiV1, auth)

	return app
}
