// Package web provides HTTP handlers and REST API endpoints for journey management,
// event ingestion and the resumption sweep.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/journeys/pkg/engine"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// TaskProcessor resumes due continuations.
type TaskProcessor interface {
	ProcessDueTasks(ctx context.Context, limit int) (*engine.SweepResult, error)
}

type APIHandlers struct {
	journeyService    *services.Journey
	publishingService *services.Publishing
	ingestion         *services.Ingestion
	tasks             TaskProcessor
	deliveries        persistence.DeliveryRepository
	validator         *validator.Validate
}

func NewAPIHandlers(
	journeyService *services.Journey,
	publishingService *services.Publishing,
	ingestion *services.Ingestion,
	tasks TaskProcessor,
	deliveries persistence.DeliveryRepository,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		journeyService:    journeyService,
		publishingService: publishingService,
		ingestion:         ingestion,
		tasks:             tasks,
		deliveries:        deliveries,
		validator:         validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.journeyService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Journeys API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Journeys API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateJourney(c fiber.Ctx) error {
	var req CreateJourneyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	journey, err := h.journeyService.Create(c.Context(), services.CreateJourneyRequest{
		Name:        req.Name,
		WorkspaceID: req.WorkspaceID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(journey)
}

func (h *APIHandlers) GetJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	journey, err := h.journeyService.ByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(journey)
}

func (h *APIHandlers) CreateVersion(c fiber.Ctx) error {
	req, err := h.parseVersionRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.journeyService.CreateVersion(c.Context(), c.Params("id"), req.Schema())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) UpdateVersion(c fiber.Ctx) error {
	number, err := strconv.Atoi(c.Params("version"))
	if err != nil {
		return badRequest(c, "Version must be a number")
	}

	req, err := h.parseVersionRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.journeyService.UpdateVersion(c.Context(), c.Params("id"), number, req.Schema())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) parseVersionRequest(c fiber.Ctx) (*VersionRequest, error) {
	var req VersionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, err
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return &req, nil
}

func (h *APIHandlers) PublishVersion(c fiber.Ctx) error {
	number, err := strconv.Atoi(c.Params("version"))
	if err != nil {
		return badRequest(c, "Version must be a number")
	}

	journey, err := h.publishingService.Publish(c.Context(), c.Params("id"), number)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(journey)
}

func (h *APIHandlers) PauseJourney(c fiber.Ctx) error {
	journey, err := h.journeyService.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(journey)
}

func (h *APIHandlers) ActivateJourney(c fiber.Ctx) error {
	journey, err := h.journeyService.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(journey)
}

// IngestEvent records an event and matches it against active journeys. Once the
// body is valid the event is accepted even when matching fails.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req services.IngestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.ingestion.Ingest(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusAccepted).JSON(IngestResponse{Accepted: true, Error: err.Error()})
	}

	return c.Status(fiber.StatusAccepted).JSON(IngestResponse{Accepted: true, Result: result})
}

func (h *APIHandlers) ProcessDueTasks(c fiber.Ctx) error {
	limit := engine.DefaultSweepLimit

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "limit must be a positive number")
		}

		limit = parsed
	}

	result, err := h.tasks.ProcessDueTasks(c.Context(), limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetUserDeliveries(c fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return badRequest(c, "User ID is required")
	}

	deliveries, err := h.deliveries.ByUser(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DeliveriesResponse{UserID: userID, Deliveries: deliveries})
}

// Register mounts the journey API routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	j := router.Group("/journeys")
	j.Post("/", h.CreateJourney)
	j.Get("/:id", h.GetJourney)
	j.Post("/:id/versions", h.CreateVersion)
	j.Put("/:id/versions/:version", h.UpdateVersion)
	j.Post("/:id/versions/:version/publish", h.PublishVersion)
	j.Post("/:id/pause", h.PauseJourney)
	j.Post("/:id/activate", h.ActivateJourney)

	router.Post("/events", h.IngestEvent)
	router.Post("/tasks/process-due", h.ProcessDueTasks)
	router.Get("/users/:userId/deliveries", h.GetUserDeliveries)
	router.Get("/health", h.HealthCheck)
}
