package health

import (
	"errors"

	"essync/core/logger"
	"essync/core/source"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for health checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the health routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/health")
	group.Get("/", h.HandleHealth)
	group.Get("/storage", h.HandleStorageCheck)
	group.Get("/:database", h.HandleDatabaseCheck)
}

// HandleHealth reports the open databases and the policy storage.
// @Summary Health
// @Description Lists the open source databases and checks the policy bucket when object storage is enabled.
// @Tags health
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "Health Report"
// @Router /health [get]
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	report := fiber.Map{
		"status":    "ok",
		"databases": h.service.Databases(),
	}

	if h.service.StorageEnabled() {
		if st, err := h.service.CheckStorage(c.Context()); err != nil {
			report["status"] = "degraded"
			report["storage"] = fiber.Map{"status": "error", "error": err.Error()}
		} else {
			if !st.Exists {
				report["status"] = "degraded"
			}
			report["storage"] = st
		}
	}

	return c.JSON(report)
}

// HandleStorageCheck checks and optionally creates the policy bucket.
// @Summary Check Policy Storage
// @Description Checks the policy bucket and the policy document of every open database. Optionally creates the bucket.
// @Tags health
// @Produce json
// @Security ApiKeyAuth
// @Param fix query boolean false "Create the bucket when missing"
// @Success 200 {object} checks.StorageReport "Storage Report"
// @Failure 404 {object} map[string]string "Storage disabled"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /health/storage [get]
func (h *Handler) HandleStorageCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	if !h.service.StorageEnabled() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "object storage is disabled"})
	}

	if c.QueryBool("fix") {
		if err := h.service.FixStorage(c.Context()); err != nil {
			l.Error("Failed to create policy bucket", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	report, err := h.service.CheckStorage(c.Context())
	if err != nil {
		l.Error("Storage check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleDatabaseCheck checks the schema and the search engine of a database.
// @Summary Check Database
// @Description Inspects the source schema and pings the search engine bound to the database.
// @Tags health
// @Produce json
// @Security ApiKeyAuth
// @Param database path string true "Database name"
// @Success 200 {object} map[string]interface{} "Database Report"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 503 {object} map[string]interface{} "Unhealthy"
// @Router /health/{database} [get]
func (h *Handler) HandleDatabaseCheck(c *fiber.Ctx) error {
	database := c.Params("database")
	l := logger.WithRayID(h.service.logger, c)

	schema, err := h.service.CheckSchema(c.Context(), database)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, source.ErrDatabaseNotFound) || errors.Is(err, source.ErrInvalidName) {
			status = fiber.StatusNotFound
		}
		l.Warn("Schema check failed", zap.String("database", database), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	healthy := schema.Matched
	report := fiber.Map{"schema": schema}
	if search := h.service.CheckSearch(c.Context(), database); search != nil {
		report["search"] = search
		healthy = healthy && search.Status == "ok"
	}

	if !healthy {
		report["status"] = "error"
		return c.Status(fiber.StatusServiceUnavailable).JSON(report)
	}
	report["status"] = "ok"
	return c.JSON(report)
}
