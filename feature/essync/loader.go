package essync

import (
	"time"

	"essync/core/mirror"
	"essync/core/source"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
	enabled bool
}

// NewFeature creates the essync feature. It is disabled when plugin is nil.
func NewFeature(server *source.Server, plugin *mirror.Plugin, cacheTTL time.Duration, logger *zap.Logger) *Feature {
	svc := NewService(server, plugin, cacheTTL, logger)
	return &Feature{
		service: svc,
		handler: NewHandler(svc, logger),
		enabled: plugin != nil,
	}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "essync"
}

// IsEnabled reports whether the search mirror is running.
func (f *Feature) IsEnabled() bool {
	return f.enabled
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
