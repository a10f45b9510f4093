package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"essync/core/document"
	"essync/core/mirror"
	"essync/core/search"
	"essync/core/source"

	"go.uber.org/zap"
)

const (
	scrollPageSize  = 500
	scrollKeepAlive = time.Minute
	deleteChunkSize = 1000
)

// Adapter loads the two sides of a reconciliation.
type Adapter interface {
	// Name identifies the adapter in logs.
	Name() string

	// LoadSourceIndex maps every source record identity to whether the
	// policy mirrors it.
	LoadSourceIndex(ctx context.Context, spec *Spec) (map[string]bool, error)

	// LoadIndexSet returns the identities of the indexed documents.
	LoadIndexSet(ctx context.Context, spec *Spec) (map[string]struct{}, error)
}

// Mutator applies planned actions.
type Mutator interface {
	Reindex(ctx context.Context, spec *Spec, keys []string) (int, error)
	DeleteFromIndex(ctx context.Context, spec *Spec, keys []string) (int, error)
}

// Databases resolves open source databases by name.
type Databases interface {
	Open(ctx context.Context, name string) (*source.Database, error)
}

// MirrorAdapter reconciles source classes against the index maintained by a
// mirror plugin.
type MirrorAdapter struct {
	databases Databases
	plugin    *mirror.Plugin
	logger    *zap.Logger
}

var (
	_ Adapter = (*MirrorAdapter)(nil)
	_ Mutator = (*MirrorAdapter)(nil)
)

// NewMirrorAdapter creates an adapter.
func NewMirrorAdapter(databases Databases, plugin *mirror.Plugin, logger *zap.Logger) *MirrorAdapter {
	return &MirrorAdapter{databases: databases, plugin: plugin, logger: logger}
}

// Name implements Adapter.
func (a *MirrorAdapter) Name() string {
	return "mirror"
}

// LoadSourceIndex implements Adapter.
func (a *MirrorAdapter) LoadSourceIndex(ctx context.Context, spec *Spec) (map[string]bool, error) {
	db, err := a.databases.Open(ctx, spec.Database)
	if err != nil {
		return nil, err
	}
	if !db.HasClass(spec.Class) {
		return nil, fmt.Errorf("%w: %s", source.ErrClassNotFound, spec.Class)
	}
	binding, err := a.plugin.Registry().Get(ctx, spec.Database)
	if err != nil {
		return nil, err
	}

	it, err := db.BrowseClass(ctx, spec.Class)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	projector := mirror.NewProjector(binding.Policy, db)
	index := make(map[string]bool)
	for it.Next() {
		rec, err := it.Record()
		if err != nil {
			a.logger.Warn("Skipping unreadable record", zap.Error(err))
			continue
		}
		doc, err := projector.Project(rec)
		index[rec.Identity().String()] = err == nil && doc != nil
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to browse class %s: %w", spec.Class, err)
	}
	return index, nil
}

// LoadIndexSet implements Adapter.
func (a *MirrorAdapter) LoadIndexSet(ctx context.Context, spec *Spec) (map[string]struct{}, error) {
	binding, err := a.plugin.Registry().Get(ctx, spec.Database)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	page, err := binding.Sink.Scroll(ctx, binding.Index, spec.Class, scrollPageSize, scrollKeepAlive)
	if err != nil {
		if errors.Is(err, search.ErrIndexNotFound) {
			return set, nil
		}
		return nil, err
	}
	scrollID := page.ScrollID
	defer func() {
		if scrollID == "" {
			return
		}
		if err := binding.Sink.ClearScroll(context.WithoutCancel(ctx), scrollID); err != nil {
			a.logger.Warn("Failed to clear scroll", zap.String("index", binding.Index), zap.Error(err))
		}
	}()

	for len(page.Hits) > 0 {
		for _, hit := range page.Hits {
			set[hit.ID] = struct{}{}
		}
		page, err = binding.Sink.ScrollNext(ctx, scrollID, scrollKeepAlive)
		if err != nil {
			return nil, err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}
	return set, nil
}

// Reindex implements Mutator. Keys that no longer resolve to a record are
// skipped.
func (a *MirrorAdapter) Reindex(ctx context.Context, spec *Spec, keys []string) (int, error) {
	db, err := a.databases.Open(ctx, spec.Database)
	if err != nil {
		return 0, err
	}

	records := make([]*document.Record, 0, len(keys))
	for _, key := range keys {
		rid, err := document.ParseRID(key)
		if err != nil {
			return 0, err
		}
		rec, err := db.Load(ctx, rid)
		if err != nil {
			a.logger.Warn("Skipping record that cannot be loaded", zap.String("rid", key), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	res, err := a.plugin.SyncBatch(ctx, db, source.NewSliceIterator(records...))
	if err != nil {
		return int(res.Confirmed), err
	}
	if res.Rejected > 0 {
		return int(res.Confirmed), fmt.Errorf("search engine rejected %d documents", res.Rejected)
	}
	return int(res.Confirmed), nil
}

// DeleteFromIndex implements Mutator.
func (a *MirrorAdapter) DeleteFromIndex(ctx context.Context, spec *Spec, keys []string) (int, error) {
	binding, err := a.plugin.Registry().Get(ctx, spec.Database)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(keys); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(keys))
		ops := make([]search.Operation, 0, end-start)
		for _, key := range keys[start:end] {
			ops = append(ops, search.Operation{
				Type:    search.OpDelete,
				Index:   binding.Index,
				DocType: spec.Class,
				ID:      key,
			})
		}
		items, err := binding.Sink.Bulk(ctx, ops, true)
		if err != nil {
			return deleted, err
		}
		for _, item := range items {
			if item.Err != nil {
				return deleted, fmt.Errorf("failed to delete %s: %w", item.ID, item.Err)
			}
			deleted++
		}
	}
	return deleted, nil
}
