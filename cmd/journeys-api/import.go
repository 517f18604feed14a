package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/journeys/pkg/cmd"
	"github.com/dukex/journeys/pkg/log"
	"github.com/dukex/journeys/pkg/services"
	cli "github.com/urfave/cli/v3"
)

// ImportCommand creates a journey from a YAML definition file.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Create a journey from a YAML definition",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the journey definition",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.BoolFlag{
				Name:  "draft",
				Usage: "Store the version as a draft even when the file asks to publish",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("journeys-import")

			data, err := os.ReadFile(command.String("file"))
			if err != nil {
				return fmt.Errorf("failed to read definition: %w", err)
			}

			definition, err := services.ParseDefinition(data)
			if err != nil {
				return err
			}

			if command.Bool("draft") {
				definition.Publish = false
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			importer := services.NewImporter(
				services.NewJourney(persistence, logger),
				services.NewPublishing(persistence, nil, logger),
			)

			journey, err := importer.Import(ctx, definition)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Journey imported", "journey_id", journey.ID, "status", journey.Status)

			_, err = fmt.Fprintln(command.Root().Writer, journey.ID)

			return err
		},
	}
}
