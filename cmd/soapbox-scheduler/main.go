package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/soapbox-hq/soapbox/pkg/cmd"
	"github.com/soapbox-hq/soapbox/pkg/log"
	"github.com/soapbox-hq/soapbox/pkg/otelhelper"
	"github.com/soapbox-hq/soapbox/pkg/publishing"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  "soapbox-scheduler",
		Usage:                 "Poll for due publishing jobs and dispatch them",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often to scan the job ledger for due work",
				Value:   publishing.DefaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum due jobs dispatched per pass",
				Value:   publishing.DefaultBatchSize,
				Sources: cli.EnvVars("BATCH_SIZE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Soapbox Scheduler")

			var tracer trace.Tracer

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "soapbox-scheduler")
				if err != nil {
					logger.WarnContext(ctx, "Failed to initialize tracer, continuing without tracing", "error", err)
				}
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			executor := publishing.NewExecutor(persistence, cmd.NewPublishers(logger), eventBus, logger, tracer)
			scheduler := publishing.NewScheduler(
				persistence.PublishingJobRepository(),
				executor,
				command.Duration("poll-interval"),
				command.Int("batch-size"),
				logger,
			)

			runner := NewRunner(scheduler, logger)
			runner.Run(ctx)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
