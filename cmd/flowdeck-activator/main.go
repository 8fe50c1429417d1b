package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowdeck-io/flowdeck/pkg/cmd"
	"github.com/flowdeck-io/flowdeck/pkg/flows"
	"github.com/flowdeck-io/flowdeck/pkg/log"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowdeck-activator",
		Usage:                 "Fire schedule triggers for active flows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "activator-id",
				Aliases: []string{"id"},
				Usage:   "Custom activator ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ACTIVATOR_ID"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			activatorID := command.String("activator-id")
			if activatorID == "" {
				activatorID = "activator-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("flowdeck-activator").With("activator_id", activatorID)

			logger.InfoContext(ctx, "Initializing Flowdeck Activator")

			docs := cmd.NewDocstore(command.String("database-url"))
			repo := flows.NewRepository(docs)

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowdeck-activator", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			activator := NewActivator(activatorID, repo, eventBus, logger)

			err := activator.Start(runCtx)
			if err != nil {
				logger.ErrorContext(ctx, "Activator stopped with error", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
