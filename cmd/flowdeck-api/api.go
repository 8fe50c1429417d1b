// Package main provides the Flowdeck API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/flowdeck-io/flowdeck/pkg/cmd"
	"github.com/flowdeck-io/flowdeck/pkg/eventbus"
	"github.com/flowdeck-io/flowdeck/pkg/flows"
	"github.com/flowdeck-io/flowdeck/pkg/registry"
	"github.com/flowdeck-io/flowdeck/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger        *slog.Logger
	collaborators cmd.Collaborators
	registry      *registry.Registry
	eventBus      eventbus.EventBus
	validate      *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	collaborators cmd.Collaborators,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:        logger,
		collaborators: collaborators,
		registry:      registry,
		eventBus:      eventBus,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	flowRepo := flows.NewRepository(a.collaborators.Docs)
	callback := flows.NewCallbackService(flowRepo, a.collaborators.Notifier, a.logger)

	handlers := web.NewAPIHandlers(
		flowRepo,
		a.collaborators.Tables,
		callback,
		a.registry,
		a.eventBus,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowdeck API")
	})

	f := app.Group("/flows")
	f.Get("/", handlers.ListFlows)
	f.Post("/", handlers.CreateFlow)
	f.Get("/:id", handlers.GetFlow)
	f.Patch("/:id", handlers.UpdateFlow)
	f.Delete("/:id", handlers.DeleteFlow)
	f.Post("/:id/activate", handlers.ActivateFlow)
	f.Post("/:id/clone", handlers.CloneFlow)
	f.Post("/:id/run", handlers.RunFlow)
	f.Get("/:id/logs", handlers.GetFlowLogs)

	t := app.Group("/tables")
	t.Get("/", handlers.ListTables)
	t.Post("/", handlers.CreateTable)
	t.Get("/:id", handlers.GetTable)
	t.Delete("/:id", handlers.DeleteTable)
	t.Get("/:id/records", handlers.ListRecords)
	t.Post("/:id/records", handlers.CreateRecord)
	t.Get("/:id/records/:recordId", handlers.GetRecord)
	t.Patch("/:id/records/:recordId", handlers.UpdateRecord)
	t.Delete("/:id/records/:recordId", handlers.DeleteRecord)

	n := app.Group("/nodes")
	n.Get("/", handlers.ListNodes)
	n.Post("/test", handlers.TestNode)

	app.Post("/callbacks/failure", handlers.FailureCallback)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
