package essync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"essync/core/document"
	"essync/core/logger"
	"essync/core/middleware/auth"
	"essync/core/mirror"
	"essync/core/reconcile"
	"essync/core/source"
	"essync/core/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// SyncResponse is the outcome of a synchronization request.
type SyncResponse struct {
	Result string `json:"result"`
	mirror.BatchResult
}

// VerifyResponse is the outcome of a verification request.
type VerifyResponse struct {
	Executed int `json:"executed"`
	*reconcile.Plan
}

// Handler handles HTTP requests for the search mirror.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the essync routes. Every route authenticates
// against the users of the database named in the path.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/essync/:database", auth.Basic("database", h.authenticate))
	group.Get("/", h.HandleSync)
	group.Post("/", h.HandleSync)
	group.Delete("/", h.HandleDropIndex)
	group.Delete("/classes/:class", h.HandleDropClass)
	group.Get("/verify", h.HandleVerify)
	group.Post("/verify", h.HandleVerify)
}

func (h *Handler) authenticate(ctx context.Context, database, user, password string) error {
	if err := h.service.Authenticate(ctx, database, user, password); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return nil
}

// HandleSync synchronizes records of a database.
// @Summary Synchronize Records
// @Description Mirrors the records selected by a command, a list of classes or a list of clusters into the search index. Without a selection every cluster is synchronized.
// @Tags essync
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param database path string true "Database name"
// @Param request body SyncRequest false "Selection"
// @Param command query string false "Command whose result is synchronized"
// @Param classes query string false "Comma separated class names"
// @Param clusters query string false "Comma separated cluster names"
// @Success 200 {object} SyncResponse "Synchronized"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /essync/{database} [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	database := c.Params("database")
	l := logger.WithRayID(h.logger, c)

	req, err := parseSyncRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.service.Synchronize(c.UserContext(), database, req)
	if err != nil {
		return h.fail(c, l, "Synchronization failed", err)
	}

	return c.JSON(SyncResponse{
		Result:      fmt.Sprintf("Synchronized %d records", res.Synchronized),
		BatchResult: res,
	})
}

// HandleDropClass removes the documents of one class from the index.
// @Summary Drop Class Documents
// @Description Deletes every indexed document of the class. The source records are kept.
// @Tags essync
// @Produce json
// @Security BasicAuth
// @Param database path string true "Database name"
// @Param class path string true "Class name"
// @Success 200 {object} map[string]interface{} "Deleted"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /essync/{database}/classes/{class} [delete]
func (h *Handler) HandleDropClass(c *fiber.Ctx) error {
	database, class := c.Params("database"), c.Params("class")
	l := logger.WithRayID(h.logger, c)

	deleted, err := h.service.DropClass(c.UserContext(), database, class)
	if err != nil {
		return h.fail(c, l, "Drop class failed", err)
	}

	l.Info("Dropped class documents", zap.String("database", database), zap.String("class", class), zap.Int("deleted", deleted))
	return c.JSON(fiber.Map{
		"result":  fmt.Sprintf("Deleted %d documents", deleted),
		"deleted": deleted,
	})
}

// HandleDropIndex deletes the index of a database.
// @Summary Drop Index
// @Description Deletes the search index of the database. The source database is kept.
// @Tags essync
// @Produce json
// @Security BasicAuth
// @Param database path string true "Database name"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /essync/{database} [delete]
func (h *Handler) HandleDropIndex(c *fiber.Ctx) error {
	database := c.Params("database")
	l := logger.WithRayID(h.logger, c)

	if err := h.service.DropIndex(c.UserContext(), database); err != nil {
		return h.fail(c, l, "Drop index failed", err)
	}
	return c.JSON(fiber.Map{"result": "Index deleted"})
}

// HandleVerify compares a class with its index documents.
// @Summary Verify Class
// @Description Reports records missing from the index and stale index documents. With confirm=true on POST, the planned repairs are applied.
// @Tags essync
// @Produce json
// @Security BasicAuth
// @Param database path string true "Database name"
// @Param class query string true "Class name"
// @Param reindex query boolean false "Plan reindexing of missing records"
// @Param purge query boolean false "Plan deletion of stale documents"
// @Param confirm query boolean false "Apply the plan (POST only)"
// @Success 200 {object} VerifyResponse "Verification Report"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /essync/{database}/verify [get]
func (h *Handler) HandleVerify(c *fiber.Ctx) error {
	database := c.Params("database")
	l := logger.WithRayID(h.logger, c)

	opts := reconcile.Options{
		DoReindex: c.QueryBool("reindex"),
		DoPurge:   c.QueryBool("purge"),
		Confirmed: c.Method() == fiber.MethodPost && c.QueryBool("confirm"),
	}
	opts.DryRun = !opts.Confirmed

	plan, executed, err := h.service.Verify(c.UserContext(), database, c.Query("class"), opts)
	if err != nil {
		return h.fail(c, l, "Verification failed", err)
	}

	if executed > 0 {
		l.Info("Applied verification plan", zap.String("database", database), zap.Int("executed", executed))
	}
	return c.JSON(VerifyResponse{Executed: executed, Plan: plan})
}

func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, msg string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		l.Error(msg, zap.String("database", c.Params("database")), zap.Error(err))
	} else {
		l.Warn(msg, zap.String("database", c.Params("database")), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// parseSyncRequest reads a JSON body when present, otherwise the query string.
func parseSyncRequest(c *fiber.Ctx) (SyncRequest, error) {
	var req SyncRequest
	body := strings.TrimSpace(string(c.Body()))
	if strings.HasPrefix(body, "{") {
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return req, fmt.Errorf("malformed request body: %w", err)
		}
		return req, nil
	}

	req.Command = c.Query("command")
	req.Classes = utils.ToStrings(c.Query("classes"))
	req.Clusters = utils.ToStrings(c.Query("clusters"))
	return req, nil
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ErrAmbiguousRequest),
		errors.Is(err, ErrClassRequired),
		errors.Is(err, mirror.ErrUnsyncableResult),
		errors.Is(err, source.ErrInvalidCommand),
		errors.Is(err, source.ErrInvalidName),
		errors.Is(err, document.ErrInvalidRID):
		return fiber.StatusBadRequest
	case errors.Is(err, source.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, source.ErrDatabaseNotFound),
		errors.Is(err, source.ErrClassNotFound),
		errors.Is(err, source.ErrClusterNotFound),
		errors.Is(err, source.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
