package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/soapbox-hq/soapbox/pkg/cmd"
	"github.com/soapbox-hq/soapbox/pkg/graph"
	"github.com/soapbox-hq/soapbox/pkg/log"
	"github.com/soapbox-hq/soapbox/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9192

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "soapbox-api",
		Usage:                 "Create and review multi-platform content workflows",
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
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "checkpoint-url",
				Usage:   "Optional redis:// URL for the checkpoint store",
				Sources: cli.EnvVars("CHECKPOINT_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "max-iterations",
				Usage:   "Default generation iteration cap per platform",
				Value:   graph.DefaultMaxIterations,
				Sources: cli.EnvVars("MAX_ITERATIONS"),
			},
			&cli.IntFlag{
				Name:    "score-threshold",
				Usage:   "Minimum evaluation score that passes the quality gate",
				Value:   graph.DefaultScoreThreshold,
				Sources: cli.EnvVars("EVALUATION_SCORE_THRESHOLD"),
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

			logger.InfoContext(ctx, "Initializing Soapbox API")

			var tracer trace.Tracer

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "soapbox-api")
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

			checkpoints := cmd.NewCheckpointRepository(ctx, persistence, command.String("checkpoint-url"))

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api, err := NewAPI(
				logger,
				persistence,
				checkpoints,
				eventBus,
				tracer,
				graph.Config{
					MaxIterations:  command.Int("max-iterations"),
					ScoreThreshold: command.Int("score-threshold"),
				},
			)
			if err != nil {
				return err
			}

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
