package mirror

import (
	"context"
	"fmt"

	"essync/core/source"
)

// Hook mirrors the writes of one source database as they commit.
type Hook struct {
	registry *Registry
	db       *source.Database
}

var _ source.Hook = (*Hook)(nil)

// NewHook creates the hook of db.
func NewHook(registry *Registry, db *source.Database) *Hook {
	return &Hook{registry: registry, db: db}
}

// Handle upserts created and updated records that the policy selects, and
// deletes removed records whatever the policy says.
func (h *Hook) Handle(ctx context.Context, event source.Event) error {
	b, err := h.registry.Get(ctx, event.Database)
	if err != nil {
		return err
	}

	rec := event.Record
	switch event.Kind {
	case source.AfterCreate, source.AfterUpdate:
		doc, err := NewProjector(b.Policy, h.db).Project(rec)
		if err != nil {
			return err
		}
		if doc == nil {
			return nil
		}
		if err := b.Sink.Index(ctx, b.Index, rec.ClassName(), rec.Identity().String(), doc); err != nil {
			return fmt.Errorf("failed to index %s: %w", rec.Identity(), err)
		}
	case source.AfterDelete:
		if err := b.Sink.Delete(ctx, b.Index, rec.ClassName(), rec.Identity().String()); err != nil {
			return fmt.Errorf("failed to delete %s from index: %w", rec.Identity(), err)
		}
	}
	return nil
}
