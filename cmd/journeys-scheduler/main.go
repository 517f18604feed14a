package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/journeys/pkg/cmd"
	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/log"
	"github.com/dukex/journeys/pkg/scheduler"
	cli "github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cmd := &cli.Command{
		Name:                  "journeys-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Resume journeys whose waits have elapsed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "task-store-url",
				Usage:   "Redis URL for journey continuations (defaults to the database)",
				Sources: cli.EnvVars("TASK_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type for outbound sends (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron expression for the resumption sweep",
				Value:   scheduler.DefaultSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "sweep-batch-size",
				Usage:   "Maximum tasks resumed per sweep round",
				Value:   engine.DefaultSweepLimit,
				Sources: cli.EnvVars("SWEEP_BATCH_SIZE"),
			},
			&cli.DurationFlag{
				Name:    "claim-timeout",
				Usage:   "How long a claimed task may stay running before another sweep takes it over",
				Value:   engine.DefaultClaimTimeout,
				Sources: cli.EnvVars("CLAIM_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run one sweep and exit",
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

			logger := log.WithModule("journeys-scheduler")

			logger.InfoContext(ctx, "Initializing Journeys Scheduler")

			tracer, shutdown := cmd.NewTracer(ctx, "journeys-scheduler", logger)
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "scheduler", command.String("kafka-brokers"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			persistence = cmd.WithTaskStore(ctx, logger, persistence, command.String("task-store-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			sched, err := scheduler.New(
				cmd.NewEngine(persistence, eventBus, tracer, logger, engine.WithClaimTimeout(command.Duration("claim-timeout"))),
				command.String("sweep-schedule"),
				command.Int("sweep-batch-size"),
				logger,
			)
			if err != nil {
				return err
			}

			if command.Bool("once") {
				result, err := sched.RunOnce(ctx)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Sweep finished", "processed", result.Processed, "failed", result.Failed)

				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sched.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return sched.Stop(stopCtx)
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
