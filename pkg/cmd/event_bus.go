package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/journeys/pkg/channels/gochannel"
	"github.com/dukex/journeys/pkg/channels/kafka"
	"github.com/dukex/journeys/pkg/eventbus"
)

// NewEventBus creates the event bus for provider. brokers is a comma-separated
// Kafka broker list and is ignored by the in-process provider.
func NewEventBus(provider, serviceName, brokers string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName, kafka.ParseBrokers(brokers))
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger)
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
