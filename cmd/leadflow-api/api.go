// Package main provides the Leadflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/leadflow/pkg/assistant"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/extraction"
	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/llm"
	"github.com/dukex/leadflow/pkg/query"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/web"
	"github.com/dukex/leadflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger      *slog.Logger
	leadStore   leads.Store
	engine      *workflow.Engine
	eventBus    eventbus.EventBus
	llmClient   llm.Client
	visionModel string
	queryLimit  int
	validate    *validator.Validate
	leadService *services.Lead
}

func NewAPI(
	logger *slog.Logger,
	leadStore leads.Store,
	engine *workflow.Engine,
	eventBus eventbus.EventBus,
	llmClient llm.Client,
	visionModel string,
	queryLimit int,
) *API {
	return &API{
		logger:      logger,
		leadStore:   leadStore,
		engine:      engine,
		eventBus:    eventBus,
		llmClient:   llmClient,
		visionModel: visionModel,
		queryLimit:  queryLimit,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		leadService: services.NewLead(logger, leadStore, eventBus),
	}
}

func (a *API) App() *fiber.App {
	tool := query.NewTool(a.logger, a.leadStore, a.queryLimit)

	handlers := web.NewAPIHandlers(
		a.leadService,
		a.engine,
		assistant.NewService(a.logger, a.llmClient, tool),
		extraction.NewService(a.logger, a.llmClient, a.visionModel, extraction.DefaultCacheTTL),
		a.validate,
	)

	app := fiber.New(fiber.Config{
		BodyLimit: extraction.MaxFileSize + 1<<20,
	})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := a.leadService.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Leadflow API")
	})

	handlers.Register(app)

	return app
}

// Start serves the API until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			a.logger.Error("Failed to shut down API", "error", err)
		}
	}()

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
