package reconcile

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache holds the built indices of one spec.
type Cache struct {
	// SourceIndex maps source identities to whether the policy mirrors them.
	SourceIndex map[string]bool

	// IndexSet is the set of identities present in the index.
	IndexSet map[string]struct{}

	// Built is the timestamp when this cache was built.
	Built time.Time

	// TTL is the time-to-live for this cache.
	TTL time.Duration
}

// IsExpired returns true if this cache has expired based on its TTL.
func (c *Cache) IsExpired() bool {
	if c.TTL == 0 {
		return true
	}
	return time.Since(c.Built) > c.TTL
}

// Store holds caches keyed by Spec.CacheKey.
type Store struct {
	mu     sync.RWMutex
	caches map[string]*Cache
	sf     singleflight.Group
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{caches: make(map[string]*Cache)}
}

// BuildCache loads both sides of spec concurrently. It does not store the result.
func BuildCache(ctx context.Context, spec *Spec, adapter Adapter) (*Cache, error) {
	var (
		sourceIndex map[string]bool
		indexSet    map[string]struct{}
		sourceErr   error
		indexErr    error
		wg          sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		sourceIndex, sourceErr = adapter.LoadSourceIndex(ctx, spec)
	}()
	go func() {
		defer wg.Done()
		indexSet, indexErr = adapter.LoadIndexSet(ctx, spec)
	}()
	wg.Wait()

	if sourceErr != nil {
		return nil, sourceErr
	}
	if indexErr != nil {
		return nil, indexErr
	}

	return &Cache{
		SourceIndex: sourceIndex,
		IndexSet:    indexSet,
		Built:       time.Now(),
		TTL:         spec.CacheTTL,
	}, nil
}

// GetOrBuild returns the fresh cache of spec, building it once for concurrent callers.
func (s *Store) GetOrBuild(ctx context.Context, spec *Spec, adapter Adapter) (*Cache, error) {
	key := spec.CacheKey()
	if cache, ok := s.fresh(key); ok {
		return cache, nil
	}

	result, err, _ := s.sf.Do(key, func() (any, error) {
		if cache, ok := s.fresh(key); ok {
			return cache, nil
		}
		cache, err := BuildCache(ctx, spec, adapter)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.caches[key] = cache
		s.mu.Unlock()
		return cache, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Cache), nil
}

func (s *Store) fresh(key string) (*Cache, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cache, ok := s.caches[key]
	if !ok || cache.IsExpired() {
		return nil, false
	}
	return cache, true
}

// Invalidate removes the cache of spec.
func (s *Store) Invalidate(spec *Spec) {
	s.mu.Lock()
	delete(s.caches, spec.CacheKey())
	s.mu.Unlock()
}
