package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"essync/core/policy"
	"essync/core/search"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrRegistryClosed is returned by Get after Close.
var ErrRegistryClosed = errors.New("sink registry closed")

// Binding is the cached search side of one source database.
type Binding struct {
	Database string
	Index    string
	Policy   *policy.Configuration
	Endpoint policy.Endpoint
	// Config reaches the same cluster as Sink; batch runs open their own sink from it.
	Config search.ElasticConfig
	Sink   search.Sink
}

// Factory builds the binding of a database.
type Factory func(ctx context.Context, database string) (*Binding, error)

// SinkFactory opens a sink.
type SinkFactory func(ctx context.Context, cfg search.ElasticConfig) (search.Sink, error)

// ElasticSinks opens ElasticSink instances.
func ElasticSinks(logger *zap.Logger) SinkFactory {
	return func(ctx context.Context, cfg search.ElasticConfig) (search.Sink, error) {
		return search.NewElasticSink(ctx, cfg, logger)
	}
}

// NewFactory loads the database's policy document and connects to its endpoint.
func NewFactory(loader policy.Loader, sinks SinkFactory, base search.ElasticConfig) Factory {
	return func(ctx context.Context, database string) (*Binding, error) {
		doc, err := loader.Load(ctx, database)
		if err != nil {
			return nil, err
		}

		cfg := base
		cfg.Address = doc.Endpoint.Address()
		cfg.ClusterName = doc.Endpoint.ClusterName

		sink, err := sinks(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Binding{
			Database: database,
			Index:    search.IndexName(database),
			Policy:   doc.Policy,
			Endpoint: doc.Endpoint,
			Config:   cfg,
			Sink:     sink,
		}, nil
	}
}

// Registry caches one Binding per database name.
//
// Concurrent first requests for the same database share one construction. A
// construction that loses a race to an already published binding closes its
// sink and adopts the published one. Failed constructions are not cached.
type Registry struct {
	factory Factory
	logger  *zap.Logger

	mu       sync.RWMutex
	bindings map[string]*Binding
	closed   bool
	group    singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, logger *zap.Logger) *Registry {
	return &Registry{
		factory:  factory,
		logger:   logger,
		bindings: make(map[string]*Binding),
	}
}

// Get returns the binding of database, building it on first use.
func (r *Registry) Get(ctx context.Context, database string) (*Binding, error) {
	r.mu.RLock()
	b, ok := r.bindings[database]
	closed := r.closed
	r.mu.RUnlock()
	if ok {
		return b, nil
	}
	if closed {
		return nil, ErrRegistryClosed
	}

	v, err, _ := r.group.Do(database, func() (any, error) {
		if b, ok := r.Peek(database); ok {
			return b, nil
		}
		built, err := r.factory(ctx, database)
		if err != nil {
			r.logger.Error("Failed to connect database to search engine",
				zap.String("database", database), zap.Error(err))
			return nil, fmt.Errorf("search sink for %s: %w", database, err)
		}
		return r.publish(built)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Binding), nil
}

func (r *Registry) publish(b *Binding) (*Binding, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = b.Sink.Close()
		return nil, ErrRegistryClosed
	}
	if existing, ok := r.bindings[b.Database]; ok {
		r.mu.Unlock()
		_ = b.Sink.Close()
		return existing, nil
	}
	r.bindings[b.Database] = b
	r.mu.Unlock()

	r.logger.Info("Connected database to search engine",
		zap.String("database", b.Database),
		zap.String("index", b.Index),
		zap.String("address", b.Config.Address))
	return b, nil
}

// Peek returns the binding of database without building it.
func (r *Registry) Peek(database string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[database]
	return b, ok
}

// Remove closes and forgets the binding of database.
func (r *Registry) Remove(database string) error {
	r.mu.Lock()
	b, ok := r.bindings[database]
	delete(r.bindings, database)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return b.Sink.Close()
}

// Databases lists the databases with a binding.
func (r *Registry) Databases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every binding. Later Get calls fail with ErrRegistryClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	bindings := r.bindings
	r.bindings = make(map[string]*Binding)
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for name, b := range bindings {
		if err := b.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
