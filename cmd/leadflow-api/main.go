package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/leadflow/pkg/cmd"
	"github.com/dukex/leadflow/pkg/config"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/llm"
	"github.com/dukex/leadflow/pkg/log"
	"github.com/dukex/leadflow/pkg/notify"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/query"
	"github.com/dukex/leadflow/pkg/scheduler"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPort = 8000
	serviceName = "leadflow-api"
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Capture, query and notify sales leads",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Lead store URL (file://dir or postgres://...)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-base-url",
				Usage:   "OpenAI-compatible endpoint of the language model server",
				Value:   llm.DefaultBaseURL,
				Sources: cli.EnvVars("LLM_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-api-key",
				Usage:   "API key for the language model server",
				Sources: cli.EnvVars("LLM_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Usage:   "Chat model answering lead questions",
				Value:   "crm",
				Sources: cli.EnvVars("LLM_MODEL"),
			},
			&cli.StringFlag{
				Name:    "vision-model",
				Usage:   "Vision model extracting contacts from images",
				Value:   "llava",
				Sources: cli.EnvVars("VISION_MODEL"),
			},
			&cli.IntFlag{
				Name:    "query-limit",
				Usage:   "Maximum number of leads a chat query returns",
				Value:   query.DefaultLimit,
				Sources: cli.EnvVars("QUERY_LIMIT"),
			},
			&cli.StringFlag{
				Name:    "smtp-host",
				Usage:   "SMTP server host; emails are only logged when empty",
				Sources: cli.EnvVars("SMTP_HOST"),
			},
			&cli.IntFlag{
				Name:    "smtp-port",
				Usage:   "SMTP server port",
				Value:   587,
				Sources: cli.EnvVars("SMTP_PORT"),
			},
			&cli.StringFlag{
				Name:    "smtp-username",
				Usage:   "SMTP username",
				Sources: cli.EnvVars("SMTP_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Usage:   "SMTP password",
				Sources: cli.EnvVars("SMTP_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Usage:   "Sender address, defaults to the SMTP username",
				Sources: cli.EnvVars("SMTP_FROM"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for workflow definitions; kept in memory when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   cmd.EventBusGoChannel,
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka brokers for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "workflow-file",
				Usage:   "YAML or JSON workflow definition installed at startup",
				Sources: cli.EnvVars("WORKFLOW_FILE"),
			},
			&cli.StringFlag{
				Name:    "run-schedule",
				Usage:   "Cron expression running the workflow periodically",
				Sources: cli.EnvVars("RUN_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "run-on-capture",
				Usage:   "Run the workflow every time a lead is captured",
				Sources: cli.EnvVars("RUN_ON_CAPTURE"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			NewValidateCommand(),
		},
		Action: serve,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing Leadflow API")

	tracer, shutdownTracer, err := newTracer(ctx, command.Bool("otel-enabled"))
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.ErrorContext(ctx, "Failed to shut down tracer", "error", err)
		}
	}()

	leadStore, err := cmd.NewLeadStore(ctx, logger, command.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to open lead store: %w", err)
	}

	defer func() {
		if err := leadStore.Close(context.Background()); err != nil {
			logger.ErrorContext(ctx, "Failed to close lead store", "error", err)
		}
	}()

	definitions, closeDefinitions, err := cmd.NewDefinitionStore(ctx, logger, command.String("redis-url"))
	if err != nil {
		return fmt.Errorf("failed to open workflow definition store: %w", err)
	}

	defer func() {
		if err := closeDefinitions(); err != nil {
			logger.ErrorContext(ctx, "Failed to close workflow definition store", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(logger, command.String("event-bus"), command.String("kafka-brokers"), serviceName)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	mailer := cmd.NewMailer(logger, notify.SMTPConfig{
		Host:     command.String("smtp-host"),
		Port:     command.Int("smtp-port"),
		Username: command.String("smtp-username"),
		Password: command.String("smtp-password"),
		From:     command.String("smtp-from"),
	})

	registry := workflow.NewDefaultRegistry(logger, leadStore, mailer, notify.NewLogMessenger(logger),
		services.NewLead(logger, leadStore, eventBus))
	engine := workflow.NewEngine(logger, registry, definitions,
		workflow.WithPublisher(eventBus),
		workflow.WithTracer(tracer),
	)

	if path := command.String("workflow-file"); path != "" {
		def, err := config.LoadWorkflowFile(path)
		if err != nil {
			return err
		}

		defined, err := engine.Define(ctx, def)
		if err != nil {
			return fmt.Errorf("failed to install workflow from %s: %w", path, err)
		}

		logger.InfoContext(ctx, "Workflow installed", "path", path, "version", defined.Version)
	}

	if command.Bool("run-on-capture") {
		capture := services.NewCaptureRunner(logger, engine)

		if err := eventBus.Handle(events.LeadCreatedEvent, capture.Handle); err != nil {
			return fmt.Errorf("failed to register capture handler: %w", err)
		}

		if err := eventBus.Subscribe(ctx); err != nil {
			return fmt.Errorf("failed to subscribe to events: %w", err)
		}
	}

	if expr := command.String("run-schedule"); expr != "" {
		schedule, err := scheduler.New(logger, expr, engine)
		if err != nil {
			return err
		}

		if err := schedule.Start(ctx); err != nil {
			return err
		}

		defer func() {
			if err := schedule.Stop(context.Background()); err != nil {
				logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
			}
		}()
	}

	llmClient := llm.NewOpenAIClient(logger, command.String("llm-base-url"), command.String("llm-api-key"), command.String("llm-model"))

	api := NewAPI(logger, leadStore, engine, eventBus, llmClient,
		command.String("vision-model"), command.Int("query-limit"))

	port := command.Int("port")
	logger.InfoContext(ctx, "Starting Leadflow API", "port", port)

	return api.Start(ctx, port)
}

func newTracer(ctx context.Context, enabled bool) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !enabled {
		return otelhelper.NewNoopTracer(), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}
