// Package main provides the Journeys API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/services"
	"github.com/dukex/journeys/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *engine.Engine
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	engine *engine.Engine,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		eventBus:    eventBus,
		engine:      engine,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	journeyService := services.NewJourney(a.persistence, a.logger)
	publishingService := services.NewPublishing(a.persistence, a.eventBus, a.logger)
	ingestion := services.NewIngestion(a.persistence.EventRepository(), a.engine, a.logger)

	handlers := web.NewAPIHandlers(
		journeyService,
		publishingService,
		ingestion,
		a.engine,
		a.persistence.DeliveryRepository(),
		a.validate,
	)

	app := fiber.New(fiber.Config{
		AppName:     "journeys-api",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Journeys API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
