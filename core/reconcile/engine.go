package reconcile

import (
	"context"
	"errors"
	"sort"

	"essync/core/document"
)

// ErrNotTracked is returned by ReconcileOne when neither side knows the identity.
var ErrNotTracked = errors.New("identity not found in source or index")

// ReconcileAll compares every identity of spec. Results are ordered by identity.
func ReconcileAll(ctx context.Context, spec *Spec, adapter Adapter, store *Store) ([]Result, error) {
	cache, err := store.GetOrBuild(ctx, spec, adapter)
	if err != nil {
		return nil, err
	}
	return resultsFromCache(cache), nil
}

// ReconcileOne compares a single identity using the cached indices.
func ReconcileOne(ctx context.Context, spec *Spec, adapter Adapter, store *Store, id string) (*Result, error) {
	rid, err := document.ParseRID(id)
	if err != nil {
		return nil, err
	}
	cache, err := store.GetOrBuild(ctx, spec, adapter)
	if err != nil {
		return nil, err
	}

	key := rid.String()
	result := buildResult(key, cache)
	if !result.SourcePresent && !result.IndexPresent {
		return nil, ErrNotTracked
	}
	return &result, nil
}

func resultsFromCache(cache *Cache) []Result {
	keys := make([]string, 0, len(cache.SourceIndex)+len(cache.IndexSet))
	for key := range cache.SourceIndex {
		keys = append(keys, key)
	}
	for key := range cache.IndexSet {
		if _, ok := cache.SourceIndex[key]; !ok {
			keys = append(keys, key)
		}
	}
	sortIdentities(keys)

	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		results = append(results, buildResult(key, cache))
	}
	return results
}

func buildResult(key string, cache *Cache) Result {
	selected, inSource := cache.SourceIndex[key]
	_, inIndex := cache.IndexSet[key]
	return Result{
		ID:            key,
		SourcePresent: inSource,
		Selected:      selected,
		IndexPresent:  inIndex,
	}
}

// sortIdentities orders record identities by cluster then position. Keys that
// are not identities sort after them, lexically.
func sortIdentities(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, errA := document.ParseRID(keys[i])
		b, errB := document.ParseRID(keys[j])
		switch {
		case errA != nil && errB != nil:
			return keys[i] < keys[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		case a.Cluster != b.Cluster:
			return a.Cluster < b.Cluster
		default:
			return a.Position < b.Position
		}
	})
}
