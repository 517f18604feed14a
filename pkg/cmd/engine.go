package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/dukex/journeys/pkg/conditions"
	"github.com/dukex/journeys/pkg/dispatch"
	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/senders/outbox"
	"go.opentelemetry.io/otel/trace"
)

// NewEngine wires the journey engine on top of p. SMS and push sends go to the
// outbox topic of bus. A nil tracer keeps the global one. opts are applied last.
func NewEngine(
	p persistence.Persistence,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	opts ...engine.Option,
) *engine.Engine {
	sender := outbox.NewSender(bus, bus.GenerateID, logger)

	evaluator := conditions.NewEvaluator(p.ProfileRepository(), p.EventRepository(), logger)
	dispatcher := dispatch.NewDispatcher(
		p.DeliveryRepository(),
		logger,
		dispatch.WithSMSSender(sender),
		dispatch.WithPushSender(sender),
	)

	if tracer != nil {
		opts = append([]engine.Option{engine.WithTracer(tracer)}, opts...)
	}

	return engine.New(
		p.JourneyRepository(),
		p.ProfileRepository(),
		p.TaskRepository(),
		evaluator,
		dispatcher,
		logger,
		opts...,
	)
}

// NewTracer exports spans over OTLP/HTTP when OTEL_EXPORTER_OTLP_ENDPOINT is set
// and records nothing otherwise.
//
// nolint:ireturn
func NewTracer(ctx context.Context, serviceName string, logger *slog.Logger) (trace.Tracer, otelhelper.ShutdownFunc) {
	noop := func(context.Context) error { return nil }

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return otelhelper.NoopTracer(), noop
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)

		return otelhelper.NoopTracer(), noop
	}

	return tracer, shutdown
}
