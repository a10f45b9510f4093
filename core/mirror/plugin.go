package mirror

import (
	"context"
	"errors"
	"fmt"

	"essync/core/document"
	"essync/core/source"

	"go.uber.org/zap"
)

// ErrUnsyncableResult is returned when a command yields neither a record nor a
// collection of records.
var ErrUnsyncableResult = errors.New("command result cannot be synchronized")

// Plugin connects source databases to their search indices. It listens to the
// source server lifecycle, installs the realtime hook on every opened database
// and exposes the batch and cleanup operations.
type Plugin struct {
	registry *Registry
	batcher  *Batcher
	logger   *zap.Logger
}

var _ source.LifecycleListener = (*Plugin)(nil)

// NewPlugin creates a plugin.
func NewPlugin(registry *Registry, batcher *Batcher, logger *zap.Logger) *Plugin {
	return &Plugin{registry: registry, batcher: batcher, logger: logger}
}

// Registry returns the binding registry.
func (p *Plugin) Registry() *Registry {
	return p.registry
}

// OnCreate implements source.LifecycleListener.
func (p *Plugin) OnCreate(db *source.Database) {
	p.OnOpen(db)
}

// OnOpen implements source.LifecycleListener.
func (p *Plugin) OnOpen(db *source.Database) {
	db.RegisterHook(NewHook(p.registry, db))
}

// OnDropClass implements source.LifecycleListener.
func (p *Plugin) OnDropClass(db *source.Database, class string) {
	if _, err := p.DropClass(context.Background(), db.Name(), class); err != nil {
		p.logger.Error("Failed to remove class from index",
			zap.String("database", db.Name()), zap.String("class", class), zap.Error(err))
	}
}

// OnDrop implements source.LifecycleListener.
func (p *Plugin) OnDrop(db *source.Database) {
	if err := p.Drop(context.Background(), db.Name()); err != nil {
		p.logger.Error("Failed to delete index",
			zap.String("database", db.Name()), zap.Error(err))
	}
	if err := p.registry.Remove(db.Name()); err != nil {
		p.logger.Warn("Failed to close search sink", zap.String("database", db.Name()), zap.Error(err))
	}
}

// SyncBatch synchronizes an arbitrary record sequence of db.
func (p *Plugin) SyncBatch(ctx context.Context, db *source.Database, it source.Iterator) (BatchResult, error) {
	b, err := p.registry.Get(ctx, db.Name())
	if err != nil {
		_ = it.Close()
		return BatchResult{}, err
	}
	return p.batcher.SyncBatch(ctx, b, db, it)
}

// SyncCommand runs command against db and synchronizes the records it returns.
func (p *Plugin) SyncCommand(ctx context.Context, db *source.Database, command string) (BatchResult, error) {
	result, err := db.ExecuteCommand(ctx, command)
	if err != nil {
		return BatchResult{}, err
	}

	var it source.Iterator
	switch v := result.(type) {
	case *document.Record:
		it = source.NewSliceIterator(v)
	case []*document.Record:
		it = source.NewSliceIterator(v...)
	case source.Iterator:
		it = v
	default:
		return BatchResult{}, fmt.Errorf("%w: %T", ErrUnsyncableResult, result)
	}
	return p.SyncBatch(ctx, db, it)
}

// SyncClasses synchronizes every record of the named classes.
func (p *Plugin) SyncClasses(ctx context.Context, db *source.Database, classes []string) (BatchResult, error) {
	opens := make([]func() (source.Iterator, error), 0, len(classes))
	for _, class := range classes {
		if !db.HasClass(class) {
			return BatchResult{}, fmt.Errorf("%w: %s", source.ErrClassNotFound, class)
		}
		opens = append(opens, func() (source.Iterator, error) {
			return db.BrowseClass(ctx, class)
		})
	}
	return p.SyncBatch(ctx, db, newChain(opens...))
}

// SyncClusters synchronizes every record of the named clusters.
func (p *Plugin) SyncClusters(ctx context.Context, db *source.Database, clusters []string) (BatchResult, error) {
	opens := make([]func() (source.Iterator, error), 0, len(clusters))
	for _, cluster := range clusters {
		if _, ok := db.ClusterID(cluster); !ok {
			return BatchResult{}, fmt.Errorf("%w: %s", source.ErrClusterNotFound, cluster)
		}
		opens = append(opens, func() (source.Iterator, error) {
			return db.BrowseCluster(ctx, cluster)
		})
	}
	return p.SyncBatch(ctx, db, newChain(opens...))
}

// SyncAll synchronizes every cluster of db.
func (p *Plugin) SyncAll(ctx context.Context, db *source.Database) (BatchResult, error) {
	return p.SyncClusters(ctx, db, db.ClusterNames())
}

// DropClass removes the documents of class from the index of database.
func (p *Plugin) DropClass(ctx context.Context, database, class string) (int, error) {
	b, err := p.registry.Get(ctx, database)
	if err != nil {
		return 0, err
	}
	return DropClass(ctx, b.Sink, b.Index, class, p.logger)
}

// Drop deletes the index of database.
func (p *Plugin) Drop(ctx context.Context, database string) error {
	b, err := p.registry.Get(ctx, database)
	if err != nil {
		return err
	}
	return Drop(ctx, b.Sink, b.Index, p.logger)
}

// Shutdown releases every cached sink.
func (p *Plugin) Shutdown() error {
	return p.registry.Close()
}
