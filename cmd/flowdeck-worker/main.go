package main

import (
	"context"
	"os"

	"github.com/flowdeck-io/flowdeck/pkg/cmd"
	"github.com/flowdeck-io/flowdeck/pkg/config"
	"github.com/flowdeck-io/flowdeck/pkg/log"
	"github.com/flowdeck-io/flowdeck/pkg/otelhelper"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowdeck-worker",
		Usage:                 "Start workers to execute flows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Document store URL (memory:// or redis://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "services-config",
				Usage:   "Path to the external services YAML config",
				Value:   "",
				Sources: cli.EnvVars("SERVICES_CONFIG"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("flowdeck-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Flowdeck Worker")

			tracer, err := otelhelper.NewTracer(ctx, "flowdeck-worker")
			if err != nil {
				logger.ErrorContext(ctx, "Failed to initialize tracer, continuing without", "error", err)
			}

			services := config.LoadServiceConfigOrDefault(command.String("services-config"))
			collaborators := cmd.NewCollaborators(command.String("database-url"), services, logger)
			registry := cmd.NewRegistry(collaborators, logger)

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowdeck-worker", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			worker := NewWorkerManager(workerID, collaborators, registry, eventBus, tracer, logger)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
