package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"essync/core/database"
	"essync/core/document"
	"essync/core/policy"
	"essync/core/search"
	"essync/core/search/mocks"
	"essync/core/search/searchtest"
	"essync/core/source"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type clusterMap map[int]string

func (m clusterMap) ClusterNameFor(rid document.RID) string { return m[rid.Cluster] }

type harness struct {
	es        *searchtest.Server
	server    *source.Server
	plugin    *Plugin
	policyDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		es:        searchtest.NewServer(t),
		policyDir: t.TempDir(),
	}
	sinks := ElasticSinks(zap.NewNop())
	factory := NewFactory(policy.FileLoader{Dir: h.policyDir}, sinks, search.ElasticConfig{RequestTimeout: 5 * time.Second})
	registry := NewRegistry(factory, zap.NewNop())
	h.plugin = NewPlugin(registry, NewBatcher(sinks, search.DefaultBulkConfig(), zap.NewNop()), zap.NewNop())
	t.Cleanup(func() { _ = h.plugin.Shutdown() })

	h.server = source.NewServer(database.Config{Driver: "sqlite", Dir: t.TempDir(), TimeoutSeconds: 5}, zap.NewNop())
	t.Cleanup(func() { _ = h.server.Close() })
	return h
}

// writePolicy stores the policy of db, pointing it at the fake search engine.
func (h *harness) writePolicy(t *testing.T, db, body string) {
	t.Helper()
	doc := map[string]any{}
	if body != "" {
		require.NoError(t, json.Unmarshal([]byte(body), &doc))
	}
	doc["es.url"] = h.es.URL
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	dir := filepath.Join(h.policyDir, db)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, policy.DefaultFileName), data, 0o644))
}

func (h *harness) database(t *testing.T, name string, hooked bool) *source.Database {
	t.Helper()
	if hooked {
		h.server.AddLifecycleListener(h.plugin)
	}
	db, err := h.server.Create(context.Background(), name)
	require.NoError(t, err)
	return db
}

func TestProjector_Project(t *testing.T) {
	clusters := clusterMap{10: "person", 11: "city", 12: "secret"}

	t.Run("Named Fields", func(t *testing.T) {
		cfg := policy.NewConfiguration(map[string][]string{"Person": {"name"}}, nil, nil, nil)
		rec := document.NewRecord("Person").Set("name", "Ann").Set("age", 30)
		rec.SetIdentity(document.MustParseRID("#10:3"))

		doc, err := NewProjector(cfg, clusters).Project(rec)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"@rid": "#10:3", "@class": "Person", "name": "Ann"}, doc)
	})

	t.Run("Absent Fields Omitted", func(t *testing.T) {
		cfg := policy.NewConfiguration(map[string][]string{"Person": {"name", "email"}}, nil, nil, nil)
		rec := document.NewRecord("Person").Set("name", "Ann")
		rec.SetIdentity(document.MustParseRID("#10:4"))

		doc, err := NewProjector(cfg, clusters).Project(rec)
		require.NoError(t, err)
		assert.NotContains(t, doc, "email")
		assert.Len(t, doc, 3)
	})

	t.Run("Empty Field Set Means All", func(t *testing.T) {
		cfg := policy.NewConfiguration(map[string][]string{"Person": {}}, nil, nil, nil)
		rec := document.NewRecord("Person").Set("name", "Ann").Set("age", 30)
		rec.SetIdentity(document.MustParseRID("#10:3"))

		doc, err := NewProjector(cfg, clusters).Project(rec)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"@rid": "#10:3", "@class": "Person", "name": "Ann", "age": 30}, doc)
	})

	t.Run("Exclusion Dominates", func(t *testing.T) {
		cfg := policy.NewConfiguration(map[string][]string{"Person": {}}, map[string][]string{"person": {}}, []string{"Person"}, nil)
		rec := document.NewRecord("Person").Set("name", "Ann")
		rec.SetIdentity(document.MustParseRID("#10:3"))

		doc, err := NewProjector(cfg, clusters).Project(rec)
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("No Class", func(t *testing.T) {
		rec := document.NewRecord("").Set("name", "Ann")
		doc, err := NewProjector(policy.NewConfiguration(nil, nil, nil, nil), clusters).Project(rec)
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("Nil Record", func(t *testing.T) {
		_, err := NewProjector(policy.NewConfiguration(nil, nil, nil, nil), clusters).Project(nil)
		assert.ErrorIs(t, err, ErrMalformedRecord)
	})

	t.Run("References", func(t *testing.T) {
		city := document.NewRecord("City").Set("name", "Rome")
		city.SetIdentity(document.MustParseRID("#11:0"))
		address := document.NewRecord("Address").Set("street", "Via Appia")

		rec := document.NewRecord("Person").
			Set("friends", document.NewRidBag(document.MustParseRID("#10:1"), document.MustParseRID("#10:2"))).
			Set("city", city).
			Set("address", address).
			Set("manager", document.MustParseRID("#10:9")).
			Set("nickname", nil)
		rec.SetIdentity(document.MustParseRID("#10:3"))

		doc, err := NewProjector(policy.NewConfiguration(nil, nil, nil, nil), clusters).Project(rec)
		require.NoError(t, err)
		assert.Equal(t, []string{"#10:1", "#10:2"}, doc["friends"])
		assert.Equal(t, "#11:0", doc["city"])
		assert.Equal(t, map[string]any{"@class": "Address", "street": "Via Appia"}, doc["address"])
		assert.Equal(t, "#10:9", doc["manager"])
		assert.Contains(t, doc, "nickname")
		assert.Nil(t, doc["nickname"])
	})

	t.Run("Nested References", func(t *testing.T) {
		alice := document.NewRecord("Person").Set("name", "Alice").Set("secret", "pw")
		alice.SetIdentity(document.MustParseRID("#10:0"))

		rec := document.NewRecord("Person").
			Set("friends", []any{alice, document.MustParseRID("#10:1")}).
			Set("team", []*document.Record{alice}).
			Set("meta", map[string]any{
				"owner": alice,
				"bag":   document.NewRidBag(document.MustParseRID("#10:2")),
				"home":  document.NewRecord("Address").Set("city", alice),
			})
		rec.SetIdentity(document.MustParseRID("#10:3"))

		doc, err := NewProjector(policy.NewConfiguration(nil, nil, nil, nil), clusters).Project(rec)
		require.NoError(t, err)
		assert.Equal(t, []any{"#10:0", "#10:1"}, doc["friends"])
		assert.Equal(t, []any{"#10:0"}, doc["team"])
		assert.Equal(t, map[string]any{
			"owner": "#10:0",
			"bag":   []string{"#10:2"},
			"home":  map[string]any{"@class": "Address", "city": "#10:0"},
		}, doc["meta"])
	})

	t.Run("In Memory And Stored Bodies Project Alike", func(t *testing.T) {
		alice := document.NewRecord("Person").Set("name", "Alice").Set("secret", "pw")
		alice.SetIdentity(document.MustParseRID("#10:0"))
		cfg := policy.NewConfiguration(map[string][]string{"Person": {"name", "friends", "links", "home"}}, nil, nil, nil)

		rec := document.NewRecord("Person").
			Set("name", "Ann").
			Set("secret", "x").
			Set("friends", []any{alice, document.NewRidBag(document.MustParseRID("#10:5"))}).
			Set("links", map[string]any{"best": alice, "list": []*document.Record{alice}}).
			Set("home", document.NewRecord("Address").Set("street", "Via Roma").Set("owner", alice))
		rec.SetIdentity(document.MustParseRID("#10:3"))

		body, err := document.EncodeBody(rec)
		require.NoError(t, err)
		stored := document.NewRecord("Person")
		stored.SetIdentity(rec.Identity())
		require.NoError(t, document.DecodeBody(stored, body))

		projector := NewProjector(cfg, clusters)
		live, err := projector.Project(rec)
		require.NoError(t, err)
		reread, err := projector.Project(stored)
		require.NoError(t, err)

		liveJSON, err := json.Marshal(live)
		require.NoError(t, err)
		rereadJSON, err := json.Marshal(reread)
		require.NoError(t, err)
		assert.JSONEq(t, string(rereadJSON), string(liveJSON))
		assert.NotContains(t, string(liveJSON), "pw")
		assert.NotContains(t, live, "secret")
	})
}

func TestBatcher_LargeBatch(t *testing.T) {
	es := searchtest.NewServer(t)
	binding := &Binding{
		Database: "Concerts",
		Index:    "concerts",
		Policy:   policy.NewConfiguration(nil, nil, nil, nil),
		Config:   search.ElasticConfig{Address: es.URL, RequestTimeout: 10 * time.Second},
	}

	records := make([]*document.Record, 25000)
	for i := range records {
		rec := document.NewRecord("Show").Set("seq", i)
		rec.SetIdentity(document.RID{Cluster: 1, Position: int64(i)})
		records[i] = rec
	}

	batcher := NewBatcher(ElasticSinks(zap.NewNop()), search.DefaultBulkConfig(), zap.NewNop())
	res, err := batcher.SyncBatch(context.Background(), binding, clusterMap{1: "show"}, source.NewSliceIterator(records...))
	require.NoError(t, err)

	assert.Equal(t, 25000, res.Synchronized)
	assert.Equal(t, int64(25000), res.Confirmed)
	assert.GreaterOrEqual(t, es.BulkCalls(), 2)
	assert.Equal(t, []int{10000, 10000, 5000}, es.BulkSizes())
	assert.Len(t, es.IDs("concerts", "Show"), 25000)
}

type faultyIterator struct {
	failAt  int
	pos     int
	fatal   error
	closed  bool
	records []*document.Record
}

func (it *faultyIterator) Next() bool {
	if it.pos >= len(it.records) {
		return false
	}
	it.pos++
	return true
}

func (it *faultyIterator) Record() (*document.Record, error) {
	if it.pos-1 == it.failAt {
		return nil, errors.New("corrupted body")
	}
	return it.records[it.pos-1], nil
}

func (it *faultyIterator) Err() error {
	if it.pos == len(it.records) {
		return it.fatal
	}
	return nil
}

func (it *faultyIterator) Close() error {
	it.closed = true
	return nil
}

func TestBatcher_Accounting(t *testing.T) {
	es := searchtest.NewServer(t)
	es.Reject("#1:3")
	binding := &Binding{
		Database: "demo",
		Index:    "demo",
		Policy:   policy.NewConfiguration(nil, nil, []string{"Secret"}, nil),
		Config:   search.ElasticConfig{Address: es.URL},
	}

	var records []*document.Record
	for i, class := range []string{"Person", "Secret", "Person", "Person", "Person"} {
		rec := document.NewRecord(class).Set("i", i)
		rec.SetIdentity(document.RID{Cluster: 1, Position: int64(i)})
		records = append(records, rec)
	}
	it := &faultyIterator{failAt: 4, records: records}

	batcher := NewBatcher(ElasticSinks(zap.NewNop()), search.DefaultBulkConfig(), zap.NewNop())
	res, err := batcher.SyncBatch(context.Background(), binding, clusterMap{1: "person"}, it)
	require.NoError(t, err)

	// #1:3 is rejected by the engine yet still counts as synchronized
	assert.Equal(t, BatchResult{Synchronized: 3, Skipped: 1, Malformed: 1, Confirmed: 2, Rejected: 1}, res)
	assert.Equal(t, []string{"#1:0", "#1:2"}, es.IDs("demo", ""))
	assert.True(t, it.closed)
}

func TestBatcher_IterationFailure(t *testing.T) {
	es := searchtest.NewServer(t)
	binding := &Binding{Database: "demo", Index: "demo", Policy: policy.NewConfiguration(nil, nil, nil, nil), Config: search.ElasticConfig{Address: es.URL}}

	rec := document.NewRecord("Person")
	rec.SetIdentity(document.RID{Cluster: 1, Position: 0})
	it := &faultyIterator{failAt: -1, records: []*document.Record{rec}, fatal: errors.New("cursor lost")}

	batcher := NewBatcher(ElasticSinks(zap.NewNop()), search.DefaultBulkConfig(), zap.NewNop())
	res, err := batcher.SyncBatch(context.Background(), binding, clusterMap{}, it)
	assert.Error(t, err)
	assert.Equal(t, 1, res.Synchronized)
	assert.True(t, it.closed)
	// buffered work is still flushed
	assert.Equal(t, []string{"#1:0"}, es.IDs("demo", ""))
}

func TestBatcher_SinkUnavailable(t *testing.T) {
	binding := &Binding{Database: "demo", Index: "demo", Policy: policy.NewConfiguration(nil, nil, nil, nil)}
	failing := func(context.Context, search.ElasticConfig) (search.Sink, error) {
		return nil, errors.New("connection refused")
	}
	it := &faultyIterator{failAt: -1}

	_, err := NewBatcher(failing, search.DefaultBulkConfig(), zap.NewNop()).SyncBatch(context.Background(), binding, clusterMap{}, it)
	assert.Error(t, err)
	assert.True(t, it.closed)
}

func TestHook_Realtime(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.writePolicy(t, "Demo", `{"exclude.classes": ["Secret"]}`)
	db := h.database(t, "Demo", true)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	require.NoError(t, db.CreateClass(ctx, "Secret"))

	rec := document.NewRecord("Person").Set("name", "Ann")
	require.NoError(t, db.Save(ctx, rec))
	id := rec.Identity().String()

	stored, ok := h.es.Doc("demo", id)
	require.True(t, ok)
	assert.Equal(t, "Ann", stored["name"])
	assert.Equal(t, "Person", stored["@class"])

	require.NoError(t, db.Save(ctx, rec.Set("name", "Anna")))
	stored, _ = h.es.Doc("demo", id)
	assert.Equal(t, "Anna", stored["name"])
	assert.Len(t, h.es.IDs("demo", ""), 1)

	secret := document.NewRecord("Secret").Set("code", "x")
	require.NoError(t, db.Save(ctx, secret))
	_, ok = h.es.Doc("demo", secret.Identity().String())
	assert.False(t, ok)

	// a stale document of a skipped class is removed on delete
	h.es.Seed("demo", secret.Identity().String(), map[string]any{"@class": "Secret"})
	require.NoError(t, db.Delete(ctx, secret.Identity()))
	_, ok = h.es.Doc("demo", secret.Identity().String())
	assert.False(t, ok)

	require.NoError(t, db.Delete(ctx, rec.Identity()))
	assert.Empty(t, h.es.IDs("demo", ""))
}

func TestHook_MatchesBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.writePolicy(t, "Demo", `{"include": {"classes": {"Person": ["name", "friends", "best", "circle", "home"]}}}`)
	db := h.database(t, "Demo", true)
	require.NoError(t, db.CreateClass(ctx, "Person"))

	alice := document.NewRecord("Person").Set("name", "Alice").Set("secret", "pw")
	require.NoError(t, db.Save(ctx, alice))
	bob := document.NewRecord("Person").Set("name", "Bob")
	require.NoError(t, db.Save(ctx, bob))

	rec := document.NewRecord("Person").
		Set("name", "Ann").
		Set("secret", "x").
		Set("best", alice).
		Set("friends", document.NewRidBag(alice.Identity(), bob.Identity())).
		Set("circle", []any{alice, map[string]any{"partner": bob}}).
		Set("home", document.NewRecord("Address").Set("owner", alice))
	require.NoError(t, db.Save(ctx, rec))
	id := rec.Identity().String()

	t.Run("Named Fields", func(t *testing.T) {
		stored, ok := h.es.Doc("demo", id)
		require.True(t, ok)
		assert.Equal(t, "Ann", stored["name"])
		assert.NotContains(t, stored, "secret")

		storedAlice, ok := h.es.Doc("demo", alice.Identity().String())
		require.True(t, ok)
		assert.NotContains(t, storedAlice, "secret")
	})

	t.Run("References Flattened", func(t *testing.T) {
		stored, _ := h.es.Doc("demo", id)
		assert.Equal(t, alice.Identity().String(), stored["best"])
		assert.Equal(t, []any{alice.Identity().String(), bob.Identity().String()}, stored["friends"])
		assert.Equal(t, []any{
			alice.Identity().String(),
			map[string]any{"partner": bob.Identity().String()},
		}, stored["circle"])
		assert.Equal(t, map[string]any{"@class": "Address", "owner": alice.Identity().String()}, stored["home"])
	})

	t.Run("Batch Stores The Same Document", func(t *testing.T) {
		realtime, _ := h.es.Doc("demo", id)
		h.es.Seed("demo", id, map[string]any{"@class": "Person"})

		res, err := h.plugin.SyncClasses(ctx, db, []string{"Person"})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Synchronized)

		batch, ok := h.es.Doc("demo", id)
		require.True(t, ok)
		assert.Equal(t, realtime, batch)
	})
}

func TestHook_SinkUnavailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.writePolicy(t, "Demo", "")
	h.es.Close()

	db := h.database(t, "Demo", true)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	err := db.Save(ctx, document.NewRecord("Person").Set("name", "Ann"))
	assert.ErrorIs(t, err, source.ErrHookFailed)
	assert.Empty(t, h.plugin.Registry().Databases())
}

func TestPlugin_SyncClusters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.writePolicy(t, "Demo", "")
	db := h.database(t, "Demo", false)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	_, err := db.CreateCluster(ctx, "default")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.SaveToCluster(ctx, document.NewRecord("Person").Set("i", i), "default"))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("i", i)))
	}

	res, err := h.plugin.SyncClusters(ctx, db, []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Synchronized)
	assert.Len(t, h.es.IDs("demo", ""), 3)

	_, err = h.plugin.SyncClusters(ctx, db, []string{"nope"})
	assert.ErrorIs(t, err, source.ErrClusterNotFound)

	res, err = h.plugin.SyncAll(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Synchronized)
	assert.Len(t, h.es.IDs("demo", ""), 8)
}

func TestPlugin_SyncCommand(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.writePolicy(t, "Demo", "")
	db := h.database(t, "Demo", false)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	for _, name := range []string{"Ann", "Bob", "Cid"} {
		require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("name", name)))
	}

	res, err := h.plugin.SyncCommand(ctx, db, "SELECT FROM Person WHERE name != 'Bob'")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synchronized)

	clusterID, _ := db.ClusterID("person")
	res, err = h.plugin.SyncCommand(ctx, db, fmt.Sprintf("LOAD RECORD #%d:1", clusterID))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synchronized)
	assert.Len(t, h.es.IDs("demo", ""), 3)

	_, err = h.plugin.SyncCommand(ctx, db, "SELECT COUNT(*) FROM Person")
	assert.ErrorIs(t, err, ErrUnsyncableResult)
}

func TestPlugin_DropClassRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.writePolicy(t, "Demo", "")
	db := h.database(t, "Demo", false)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	require.NoError(t, db.CreateClass(ctx, "City"))
	for i := 0; i < 250; i++ {
		require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("i", i)))
	}
	require.NoError(t, db.Save(ctx, document.NewRecord("City").Set("name", "Rome")))

	_, err := h.plugin.SyncAll(ctx, db)
	require.NoError(t, err)
	before := h.es.IDs("demo", "Person")
	require.Len(t, before, 250)

	deleted, err := h.plugin.DropClass(ctx, "Demo", "Person")
	require.NoError(t, err)
	assert.Equal(t, 250, deleted)
	assert.Empty(t, h.es.IDs("demo", "Person"))
	assert.Len(t, h.es.IDs("demo", "City"), 1)
	assert.Equal(t, 1, h.es.ClearedScrolls())

	res, err := h.plugin.SyncClasses(ctx, db, []string{"Person"})
	require.NoError(t, err)
	assert.Equal(t, 250, res.Synchronized)
	assert.Equal(t, before, h.es.IDs("demo", "Person"))

	calls := h.es.BulkCalls()
	deleted, err = h.plugin.DropClass(ctx, "Demo", "Unknown")
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, calls, h.es.BulkCalls())
}

func TestPlugin_LifecycleEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.writePolicy(t, "Demo", "")
	db := h.database(t, "Demo", true)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	require.NoError(t, db.CreateClass(ctx, "City"))
	require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("name", "Ann")))
	require.NoError(t, db.Save(ctx, document.NewRecord("City").Set("name", "Rome")))
	require.Len(t, h.es.IDs("demo", ""), 2)

	require.NoError(t, db.DropClass(ctx, "Person"))
	assert.Empty(t, h.es.IDs("demo", "Person"))
	assert.Len(t, h.es.IDs("demo", "City"), 1)

	require.NoError(t, db.Drop(ctx))
	assert.False(t, h.es.HasIndex("demo"))
	_, ok := h.plugin.Registry().Peek("Demo")
	assert.False(t, ok)
}

func TestDrop_MissingIndex(t *testing.T) {
	es := searchtest.NewServer(t)
	sink, err := search.NewElasticSink(context.Background(), search.ElasticConfig{Address: es.URL}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, Drop(context.Background(), sink, "missing", zap.NewNop()))

	n, err := DropClass(context.Background(), sink, "missing", "Person", zap.NewNop())
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistry_Get(t *testing.T) {
	t.Run("Builds Once", func(t *testing.T) {
		var builds atomic.Int32
		release := make(chan struct{})
		factory := func(ctx context.Context, database string) (*Binding, error) {
			builds.Add(1)
			<-release
			sink := new(mocks.Sink)
			sink.On("Close").Return(nil)
			return &Binding{Database: database, Index: search.IndexName(database), Sink: sink}, nil
		}
		registry := NewRegistry(factory, zap.NewNop())

		var wg sync.WaitGroup
		results := make([]*Binding, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b, err := registry.Get(context.Background(), "Demo")
				assert.NoError(t, err)
				results[i] = b
			}(i)
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), builds.Load())
		for _, b := range results {
			assert.Same(t, results[0], b)
		}
		assert.Equal(t, []string{"Demo"}, registry.Databases())

		require.NoError(t, registry.Close())
		results[0].Sink.(*mocks.Sink).AssertCalled(t, "Close")
		_, err := registry.Get(context.Background(), "Demo")
		assert.ErrorIs(t, err, ErrRegistryClosed)
	})

	t.Run("Failures Are Not Cached", func(t *testing.T) {
		var builds int
		factory := func(ctx context.Context, database string) (*Binding, error) {
			builds++
			if builds == 1 {
				return nil, errors.New("unreachable")
			}
			sink := new(mocks.Sink)
			sink.On("Close").Return(nil)
			return &Binding{Database: database, Sink: sink}, nil
		}
		registry := NewRegistry(factory, zap.NewNop())

		_, err := registry.Get(context.Background(), "Demo")
		assert.Error(t, err)
		b, err := registry.Get(context.Background(), "Demo")
		require.NoError(t, err)
		assert.NotNil(t, b)
		assert.Equal(t, 2, builds)
	})

	t.Run("Race Loser Closes Its Sink", func(t *testing.T) {
		winner := new(mocks.Sink)
		loser := new(mocks.Sink)
		loser.On("Close").Return(nil)
		registry := NewRegistry(nil, zap.NewNop())

		published, err := registry.publish(&Binding{Database: "Demo", Sink: winner})
		require.NoError(t, err)
		adopted, err := registry.publish(&Binding{Database: "Demo", Sink: loser})
		require.NoError(t, err)
		assert.Same(t, published, adopted)
		loser.AssertCalled(t, "Close")
		winner.AssertNotCalled(t, "Close")
	})
}

func TestChain(t *testing.T) {
	a := document.NewRecord("A")
	b := document.NewRecord("B")
	c := newChain(
		func() (source.Iterator, error) { return source.NewSliceIterator(a), nil },
		func() (source.Iterator, error) { return source.NewSliceIterator(), nil },
		func() (source.Iterator, error) { return source.NewSliceIterator(b), nil },
	)
	var got []*document.Record
	for c.Next() {
		rec, err := c.Record()
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.NoError(t, c.Err())
	assert.Equal(t, []*document.Record{a, b}, got)

	failing := newChain(func() (source.Iterator, error) { return nil, errors.New("boom") })
	assert.False(t, failing.Next())
	assert.Error(t, failing.Err())

	closed := newChain(func() (source.Iterator, error) { return source.NewSliceIterator(a), nil })
	require.NoError(t, closed.Close())
	assert.False(t, closed.Next())
	assert.ErrorIs(t, closed.Err(), source.ErrIteratorClosed)
}
