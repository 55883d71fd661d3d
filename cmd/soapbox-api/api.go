// Package main provides the Soapbox API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/soapbox-hq/soapbox/pkg/cmd"
	"github.com/soapbox-hq/soapbox/pkg/eventbus"
	"github.com/soapbox-hq/soapbox/pkg/graph"
	"github.com/soapbox-hq/soapbox/pkg/persistence"
	"github.com/soapbox-hq/soapbox/pkg/publishing"
	"github.com/soapbox-hq/soapbox/pkg/web"
	"github.com/soapbox-hq/soapbox/pkg/workflow"
)

type API struct {
	logger   *slog.Logger
	handlers *web.APIHandlers
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	checkpoints persistence.CheckpointRepository,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	config graph.Config,
) (*API, error) {
	generator, evaluator := cmd.NewCollaborators(logger)

	drafts := workflow.NewDraftService(p, logger)
	machine := graph.NewMachine(drafts, generator, evaluator, config, logger)
	coordinator := graph.NewCoordinator(machine, checkpoints, logger, tracer)
	completion := workflow.NewCompletionService(p, eventBus, logger)

	workflowService, err := workflow.NewWorkflowService(p, coordinator, eventBus, logger)
	if err != nil {
		return nil, err
	}

	reviewService := workflow.NewReviewService(p, drafts, coordinator, completion, eventBus, logger)
	executor := publishing.NewExecutor(p, cmd.NewPublishers(logger), eventBus, logger, tracer)
	publishingService := publishing.NewService(p, executor, completion, eventBus, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(workflowService, reviewService, drafts, publishingService, p, validate, logger)

	return &API{logger: logger, handlers: handlers}, nil
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Soapbox API")
	})

	w := app.Group("/workflows")
	w.Get("/", a.handlers.GetWorkflows)
	w.Post("/", a.handlers.CreateWorkflow)
	w.Get("/:id", a.handlers.GetWorkflow)
	w.Get("/:id/drafts/:platform", a.handlers.GetDrafts)
	w.Post("/:id/review", a.handlers.ReviewPlatform)
	w.Post("/:id/publish", a.handlers.PublishPlatform)
	w.Get("/:id/jobs", a.handlers.GetJobs)

	j := app.Group("/jobs")
	j.Post("/:jobId/cancel", a.handlers.CancelJob)
	j.Post("/:jobId/reschedule", a.handlers.RescheduleJob)

	app.Get("/health", a.handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
