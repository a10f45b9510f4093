package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"essync/core/database"
	"essync/core/document"
	"essync/core/mirror"
	"essync/core/policy"
	"essync/core/search"
	"essync/core/search/mocks"
	"essync/core/search/searchtest"
	"essync/core/source"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	sourceIndex map[string]bool
	indexSet    map[string]struct{}
	loads       atomic.Int32
	delay       time.Duration
	err         error

	mu        sync.Mutex
	reindexed []string
	deleted   []string
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) LoadSourceIndex(ctx context.Context, spec *Spec) (map[string]bool, error) {
	a.loads.Add(1)
	time.Sleep(a.delay)
	if a.err != nil {
		return nil, a.err
	}
	return a.sourceIndex, nil
}

func (a *fakeAdapter) LoadIndexSet(ctx context.Context, spec *Spec) (map[string]struct{}, error) {
	return a.indexSet, nil
}

func (a *fakeAdapter) Reindex(ctx context.Context, spec *Spec, keys []string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reindexed = append(a.reindexed, keys...)
	return len(keys), nil
}

func (a *fakeAdapter) DeleteFromIndex(ctx context.Context, spec *Spec, keys []string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, keys...)
	return len(keys), nil
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		sourceIndex: map[string]bool{
			"#10:0": true,  // in sync
			"#10:1": true,  // missing from index
			"#10:2": false, // excluded and not indexed
			"#10:3": false, // excluded but indexed
		},
		indexSet: map[string]struct{}{
			"#10:0": {},
			"#10:3": {},
			"#9:7":  {}, // record gone
		},
	}
}

func TestResult_Status(t *testing.T) {
	assert.Equal(t, StatusInSync, Result{SourcePresent: true, Selected: true, IndexPresent: true}.Status())
	assert.Equal(t, StatusMissingIndex, Result{SourcePresent: true, Selected: true}.Status())
	assert.Equal(t, StatusInSync, Result{SourcePresent: true}.Status())
	assert.Equal(t, StatusStaleIndex, Result{SourcePresent: true, IndexPresent: true}.Status())
	assert.Equal(t, StatusStaleIndex, Result{IndexPresent: true}.Status())
}

func TestReconcileAll_OrdersByIdentity(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.sourceIndex["#10:10"] = true
	adapter.indexSet["#10:10"] = struct{}{}

	results, err := ReconcileAll(context.Background(), &Spec{Database: "Demo", Class: "Person"}, adapter, NewStore())
	require.NoError(t, err)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"#9:7", "#10:0", "#10:1", "#10:2", "#10:3", "#10:10"}, ids)
}

func TestReconcileOne(t *testing.T) {
	ctx := context.Background()
	adapter := newFakeAdapter()
	spec := &Spec{Database: "Demo", Class: "Person", CacheTTL: time.Minute}
	store := NewStore()

	result, err := ReconcileOne(ctx, spec, adapter, store, "10:1")
	require.NoError(t, err)
	assert.Equal(t, "#10:1", result.ID)
	assert.Equal(t, StatusMissingIndex, result.Status())

	_, err = ReconcileOne(ctx, spec, adapter, store, "#42:0")
	assert.ErrorIs(t, err, ErrNotTracked)

	_, err = ReconcileOne(ctx, spec, adapter, store, "nope")
	assert.Error(t, err)

	assert.Equal(t, int32(1), adapter.loads.Load())
}

func TestStore_GetOrBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("Caches Within TTL", func(t *testing.T) {
		adapter := newFakeAdapter()
		spec := &Spec{Database: "Demo", Class: "Person", CacheTTL: time.Minute}
		store := NewStore()

		_, err := store.GetOrBuild(ctx, spec, adapter)
		require.NoError(t, err)
		_, err = store.GetOrBuild(ctx, spec, adapter)
		require.NoError(t, err)
		assert.Equal(t, int32(1), adapter.loads.Load())

		store.Invalidate(spec)
		_, err = store.GetOrBuild(ctx, spec, adapter)
		require.NoError(t, err)
		assert.Equal(t, int32(2), adapter.loads.Load())
	})

	t.Run("Zero TTL Disables Caching", func(t *testing.T) {
		adapter := newFakeAdapter()
		spec := &Spec{Database: "Demo", Class: "Person"}
		store := NewStore()

		for i := 0; i < 3; i++ {
			_, err := store.GetOrBuild(ctx, spec, adapter)
			require.NoError(t, err)
		}
		assert.Equal(t, int32(3), adapter.loads.Load())
	})

	t.Run("Concurrent Builds Coalesce", func(t *testing.T) {
		adapter := newFakeAdapter()
		adapter.delay = 50 * time.Millisecond
		spec := &Spec{Database: "Demo", Class: "Person", CacheTTL: time.Minute}
		store := NewStore()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.GetOrBuild(ctx, spec, adapter)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), adapter.loads.Load())
	})

	t.Run("Failures Are Not Cached", func(t *testing.T) {
		adapter := newFakeAdapter()
		adapter.err = errors.New("boom")
		spec := &Spec{Database: "Demo", Class: "Person", CacheTTL: time.Minute}
		store := NewStore()

		_, err := store.GetOrBuild(ctx, spec, adapter)
		require.Error(t, err)

		adapter.err = nil
		_, err = store.GetOrBuild(ctx, spec, adapter)
		require.NoError(t, err)
		assert.Equal(t, int32(2), adapter.loads.Load())
	})
}

func TestReconcileWithPlan(t *testing.T) {
	ctx := context.Background()
	spec := &Spec{Database: "Demo", Class: "Person"}

	t.Run("Summary Only", func(t *testing.T) {
		plan, err := ReconcileWithPlan(ctx, spec, newFakeAdapter(), NewStore(), Options{})
		require.NoError(t, err)
		assert.Equal(t, PlanSummary{TotalItems: 5, InSync: 2, MissingIndex: 1, StaleIndex: 2}, plan.Summary)
		assert.Empty(t, plan.Actions)
	})

	t.Run("Reindex And Purge", func(t *testing.T) {
		plan, err := ReconcileWithPlan(ctx, spec, newFakeAdapter(), NewStore(), Options{DoReindex: true, DoPurge: true})
		require.NoError(t, err)
		assert.Equal(t, 1, plan.Summary.ReindexActions)
		assert.Equal(t, 2, plan.Summary.PurgeActions)
		assert.Equal(t, []Action{
			{Type: ActionDeleteIndex, Key: "#9:7", Reason: "missing in source"},
			{Type: ActionReindex, Key: "#10:1", Reason: "not indexed"},
			{Type: ActionDeleteIndex, Key: "#10:3", Reason: "excluded by policy"},
		}, plan.Actions)
	})
}

func TestApplyPlan(t *testing.T) {
	ctx := context.Background()
	spec := &Spec{Database: "Demo", Class: "Person", CacheTTL: time.Minute}
	opts := Options{DoReindex: true, DoPurge: true}

	t.Run("Requires Confirmation", func(t *testing.T) {
		adapter := newFakeAdapter()
		store := NewStore()
		plan, err := ReconcileWithPlan(ctx, spec, adapter, store, opts)
		require.NoError(t, err)

		executed, err := ApplyPlan(ctx, adapter, store, plan, opts)
		require.NoError(t, err)
		assert.Zero(t, executed)

		executed, err = ApplyPlan(ctx, adapter, store, plan, Options{Confirmed: true, DryRun: true})
		require.NoError(t, err)
		assert.Zero(t, executed)
		assert.Empty(t, adapter.reindexed)
		assert.Empty(t, adapter.deleted)
	})

	t.Run("Executes Grouped Actions", func(t *testing.T) {
		adapter := newFakeAdapter()
		store := NewStore()
		opts := opts
		opts.Confirmed = true

		plan, executed, err := ReconcileAndApply(ctx, spec, adapter, store, opts)
		require.NoError(t, err)
		assert.Equal(t, 3, executed)
		assert.Len(t, plan.Actions, 3)
		assert.Equal(t, []string{"#10:1"}, adapter.reindexed)
		assert.Equal(t, []string{"#9:7", "#10:3"}, adapter.deleted)

		_, err = store.GetOrBuild(ctx, spec, adapter)
		require.NoError(t, err)
		assert.Equal(t, int32(2), adapter.loads.Load(), "cache is invalidated after apply")
	})

	t.Run("Adapter Without Mutator", func(t *testing.T) {
		adapter := struct{ Adapter }{newFakeAdapter()}
		store := NewStore()
		plan, err := ReconcileWithPlan(ctx, spec, adapter, store, opts)
		require.NoError(t, err)

		_, err = ApplyPlan(ctx, adapter, store, plan, Options{Confirmed: true})
		assert.ErrorContains(t, err, "does not implement Mutator")
	})
}

func TestMirrorAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	es := searchtest.NewServer(t)

	policyDir := t.TempDir()
	data, err := json.Marshal(map[string]any{"es.url": es.URL, "exclude.classes": []string{"Secret"}})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(policyDir, "Demo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(policyDir, "Demo", policy.DefaultFileName), data, 0o644))

	sinks := mirror.ElasticSinks(zap.NewNop())
	registry := mirror.NewRegistry(mirror.NewFactory(policy.FileLoader{Dir: policyDir}, sinks, search.ElasticConfig{RequestTimeout: 5 * time.Second}), zap.NewNop())
	plugin := mirror.NewPlugin(registry, mirror.NewBatcher(sinks, search.DefaultBulkConfig(), zap.NewNop()), zap.NewNop())
	t.Cleanup(func() { _ = plugin.Shutdown() })

	server := source.NewServer(database.Config{Driver: "sqlite", Dir: t.TempDir(), TimeoutSeconds: 5}, zap.NewNop())
	t.Cleanup(func() { _ = server.Close() })
	db, err := server.Create(ctx, "Demo")
	require.NoError(t, err)
	require.NoError(t, db.CreateClass(ctx, "Person"))

	var people []*document.Record
	for i := 0; i < 5; i++ {
		rec := document.NewRecord("Person").Set("i", i)
		require.NoError(t, db.Save(ctx, rec))
		people = append(people, rec)
	}
	_, err = plugin.SyncClasses(ctx, db, []string{"Person"})
	require.NoError(t, err)

	// Drift without the realtime hook installed.
	require.NoError(t, db.Delete(ctx, people[0].Identity()))
	for i := 5; i < 7; i++ {
		require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("i", i)))
	}
	es.Seed("demo", "#99:1", map[string]any{"@rid": "#99:1", "@class": "Person"})

	adapter := NewMirrorAdapter(server, plugin, zap.NewNop())
	store := NewStore()
	spec := &Spec{Database: "Demo", Class: "Person", CacheTTL: time.Minute}

	plan, err := ReconcileWithPlan(ctx, spec, adapter, store, Options{DoReindex: true, DoPurge: true})
	require.NoError(t, err)
	assert.Equal(t, 8, plan.Summary.TotalItems)
	assert.Equal(t, 4, plan.Summary.InSync)
	assert.Equal(t, 2, plan.Summary.MissingIndex)
	assert.Equal(t, 2, plan.Summary.StaleIndex)
	assert.Equal(t, 1, es.ClearedScrolls())

	executed, err := ApplyPlan(ctx, adapter, store, plan, Options{Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 4, executed)

	it, err := db.BrowseClass(ctx, "Person")
	require.NoError(t, err)
	var want []string
	for it.Next() {
		rec, err := it.Record()
		require.NoError(t, err)
		want = append(want, rec.Identity().String())
	}
	require.NoError(t, it.Close())
	assert.ElementsMatch(t, want, es.IDs("demo", "Person"))

	plan, err = ReconcileWithPlan(ctx, spec, adapter, store, Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, plan.Summary.InSync)
	assert.Zero(t, plan.Summary.MissingIndex+plan.Summary.StaleIndex)
}

func TestMirrorAdapter_UnknownClass(t *testing.T) {
	ctx := context.Background()
	server := source.NewServer(database.Config{Driver: "sqlite", Dir: t.TempDir(), TimeoutSeconds: 5}, zap.NewNop())
	t.Cleanup(func() { _ = server.Close() })
	_, err := server.Create(ctx, "Demo")
	require.NoError(t, err)

	adapter := NewMirrorAdapter(server, nil, zap.NewNop())
	_, err = adapter.LoadSourceIndex(ctx, &Spec{Database: "Demo", Class: "Ghost"})
	assert.ErrorIs(t, err, source.ErrClassNotFound)
}

func TestMirrorAdapter_LoadIndexSet_ClearsLastScroll(t *testing.T) {
	ctx := context.Background()
	sink := new(mocks.Sink)
	sink.On("Scroll", mock.Anything, "demo", "Person", scrollPageSize, scrollKeepAlive).
		Return(search.ScrollPage{ScrollID: "s1", Hits: []search.Hit{{ID: "#10:0"}}}, nil)
	sink.On("ScrollNext", mock.Anything, "s1", scrollKeepAlive).
		Return(search.ScrollPage{ScrollID: "s2", Hits: []search.Hit{{ID: "#10:1"}}}, nil)
	sink.On("ScrollNext", mock.Anything, "s2", scrollKeepAlive).
		Return(search.ScrollPage{}, nil)
	sink.On("ClearScroll", mock.Anything, "s2").Return(nil).Once()

	registry := mirror.NewRegistry(func(ctx context.Context, database string) (*mirror.Binding, error) {
		return &mirror.Binding{
			Database: database,
			Index:    search.IndexName(database),
			Policy:   policy.NewConfiguration(nil, nil, nil, nil),
			Sink:     sink,
		}, nil
	}, zap.NewNop())
	adapter := NewMirrorAdapter(nil, mirror.NewPlugin(registry, nil, zap.NewNop()), zap.NewNop())

	set, err := adapter.LoadIndexSet(ctx, &Spec{Database: "Demo", Class: "Person"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"#10:0": {}, "#10:1": {}}, set)
	sink.AssertExpectations(t)
}
