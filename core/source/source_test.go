package source

import (
	"context"
	"errors"
	"testing"

	"essync/core/database"
	"essync/core/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	passwordCost = bcrypt.MinCost
}

type recordingListener struct {
	created    []string
	opened     []string
	droppedCls []string
	dropped    []string
}

func (l *recordingListener) OnCreate(db *Database) { l.created = append(l.created, db.Name()) }
func (l *recordingListener) OnOpen(db *Database)   { l.opened = append(l.opened, db.Name()) }
func (l *recordingListener) OnDropClass(db *Database, class string) {
	l.droppedCls = append(l.droppedCls, class)
}
func (l *recordingListener) OnDrop(db *Database) { l.dropped = append(l.dropped, db.Name()) }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(database.Config{Driver: "sqlite", Dir: t.TempDir(), TimeoutSeconds: 5}, zap.NewNop())
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := newTestServer(t).Create(context.Background(), "test")
	require.NoError(t, err)
	return db
}

func TestServer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	listener := &recordingListener{}
	srv.AddLifecycleListener(listener)

	_, err := srv.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)

	_, err = srv.Create(ctx, "../escape")
	assert.ErrorIs(t, err, ErrInvalidName)

	db, err := srv.Create(ctx, "Demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Demo"}, listener.created)

	again, err := srv.Open(ctx, "Demo")
	require.NoError(t, err)
	assert.Same(t, db, again)

	require.NoError(t, srv.Close())
	_, err = srv.Open(ctx, "Demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Demo"}, listener.opened)

	require.NoError(t, srv.Drop(ctx, "Demo"))
	assert.Equal(t, []string{"Demo"}, listener.dropped)
	_, err = srv.Open(ctx, "Demo")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)
}

func TestDatabase_Classes(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	require.NoError(t, db.CreateClass(ctx, "Person"))
	require.NoError(t, db.CreateClass(ctx, "Person"))
	assert.True(t, db.HasClass("Person"))
	assert.Equal(t, []string{"Person"}, db.Classes())
	assert.Equal(t, []string{"person"}, db.ClusterNames())

	_, err := db.CreateCluster(ctx, "archive")
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "archive"}, db.ClusterNames())
}

func TestDatabase_SaveLoad(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	require.NoError(t, db.CreateClass(ctx, "Person"))

	first := document.NewRecord("Person").Set("name", "Jerry")
	second := document.NewRecord("Person").Set("name", "Bob").Set("friend", first)
	require.NoError(t, db.Save(ctx, first))
	require.NoError(t, db.Save(ctx, second))

	clusterID, _ := db.ClusterID("person")
	assert.Equal(t, document.RID{Cluster: clusterID, Position: 0}, first.Identity())
	assert.Equal(t, document.RID{Cluster: clusterID, Position: 1}, second.Identity())
	assert.Equal(t, "person", db.ClusterNameFor(first.Identity()))

	loaded, err := db.Load(ctx, second.Identity())
	require.NoError(t, err)
	assert.Equal(t, "Bob", loaded.Field("name"))
	assert.Equal(t, first.Identity(), loaded.Field("friend"))
	assert.Equal(t, 1, loaded.Version())

	loaded.Set("name", "Bobby")
	require.NoError(t, db.Save(ctx, loaded))
	reloaded, err := db.Load(ctx, second.Identity())
	require.NoError(t, err)
	assert.Equal(t, "Bobby", reloaded.Field("name"))
	assert.Equal(t, 2, reloaded.Version())

	_, err = db.Load(ctx, document.RID{Cluster: clusterID, Position: 99})
	assert.ErrorIs(t, err, ErrNotFound)

	err = db.Save(ctx, document.NewRecord("Unknown"))
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestDatabase_Hooks(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	require.NoError(t, db.CreateClass(ctx, "Person"))

	var kinds []EventKind
	db.RegisterHook(HookFunc(func(ctx context.Context, event Event) error {
		kinds = append(kinds, event.Kind)
		assert.Equal(t, "test", event.Database)
		assert.True(t, event.Record.Identity().IsPersistent())
		return nil
	}))

	rec := document.NewRecord("Person").Set("name", "Jerry")
	require.NoError(t, db.Save(ctx, rec))
	require.NoError(t, db.Save(ctx, rec.Set("age", 53)))
	require.NoError(t, db.Delete(ctx, rec.Identity()))
	assert.Equal(t, []EventKind{AfterCreate, AfterUpdate, AfterDelete}, kinds)

	err := db.Delete(ctx, rec.Identity())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatabase_HookErrorKeepsWrite(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	require.NoError(t, db.CreateClass(ctx, "Person"))

	boom := errors.New("index unavailable")
	db.RegisterHook(HookFunc(func(context.Context, Event) error { return boom }))

	rec := document.NewRecord("Person").Set("name", "Jerry")
	err := db.Save(ctx, rec)
	assert.ErrorIs(t, err, ErrHookFailed)
	assert.ErrorIs(t, err, boom)

	_, err = db.Load(ctx, rec.Identity())
	assert.NoError(t, err)
}

func TestDatabase_Browse(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	_, err := db.CreateCluster(ctx, "archive")
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("name", name)))
	}
	require.NoError(t, db.SaveToCluster(ctx, document.NewRecord("Person").Set("name", "d"), "archive"))

	it, err := db.BrowseClass(ctx, "Person")
	require.NoError(t, err)
	var names []any
	for it.Next() {
		rec, err := it.Record()
		require.NoError(t, err)
		names = append(names, rec.Field("name"))
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	assert.Equal(t, []any{"a", "b", "c", "d"}, names)

	it, err = db.BrowseCluster(ctx, "archive")
	require.NoError(t, err)
	require.True(t, it.Next())
	rec, err := it.Record()
	require.NoError(t, err)
	assert.Equal(t, "d", rec.Field("name"))
	require.NoError(t, it.Close())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrIteratorClosed)

	_, err = db.BrowseCluster(ctx, "nope")
	assert.ErrorIs(t, err, ErrClusterNotFound)
	_, err = db.BrowseClass(ctx, "Nope")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestDatabase_MalformedRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("name", "ok")))

	clusterID, _ := db.ClusterID("person")
	require.NoError(t, db.Conn().Create(&recordRow{ClusterID: clusterID, Position: 1, Class: "Person", Version: 1, Body: []byte("{broken")}).Error)

	it, err := db.BrowseClass(ctx, "Person")
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	_, err = it.Record()
	assert.NoError(t, err)

	require.True(t, it.Next())
	_, err = it.Record()
	var malformed *MalformedRecordError
	assert.ErrorAs(t, err, &malformed)

	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

func TestDatabase_DropClass(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	listener := &recordingListener{}
	srv.AddLifecycleListener(listener)
	db, err := srv.Create(ctx, "test")
	require.NoError(t, err)

	require.NoError(t, db.CreateClass(ctx, "Person"))
	require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("name", "x")))

	require.NoError(t, db.DropClass(ctx, "Person"))
	assert.Equal(t, []string{"Person"}, listener.droppedCls)
	assert.False(t, db.HasClass("Person"))
	n, err := db.CountClass(ctx, "Person")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, db.DropClass(ctx, "Person"), ErrClassNotFound)
}

func TestDatabase_ExecuteCommand(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	require.NoError(t, db.CreateClass(ctx, "Person"))
	for i, name := range []string{"Jerry", "Bob", "Phil"} {
		require.NoError(t, db.Save(ctx, document.NewRecord("Person").Set("name", name).Set("age", i*10)))
	}

	t.Run("Select With Where", func(t *testing.T) {
		res, err := db.ExecuteCommand(ctx, "SELECT FROM Person WHERE age >= 10")
		require.NoError(t, err)
		it, ok := res.(Iterator)
		require.True(t, ok)
		var n int
		for it.Next() {
			n++
		}
		assert.Equal(t, 2, n)
	})

	t.Run("Count", func(t *testing.T) {
		res, err := db.ExecuteCommand(ctx, "select count(*) from Person where name == 'Bob'")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res)
	})

	t.Run("Limit", func(t *testing.T) {
		res, err := db.ExecuteCommand(ctx, "SELECT COUNT(*) FROM cluster:person LIMIT 2")
		require.NoError(t, err)
		assert.Equal(t, int64(2), res)
	})

	t.Run("Load Record", func(t *testing.T) {
		clusterID, _ := db.ClusterID("person")
		rid := document.RID{Cluster: clusterID, Position: 2}
		res, err := db.ExecuteCommand(ctx, "LOAD RECORD "+rid.String())
		require.NoError(t, err)
		rec, ok := res.(*document.Record)
		require.True(t, ok)
		assert.Equal(t, "Phil", rec.Field("name"))
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := db.ExecuteCommand(ctx, "DELETE FROM Person")
		assert.ErrorIs(t, err, ErrInvalidCommand)
		_, err = db.ExecuteCommand(ctx, "SELECT FROM Person WHERE (")
		assert.ErrorIs(t, err, ErrInvalidCommand)
	})
}

func TestDatabase_Authenticate(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	require.NoError(t, db.CreateUser(ctx, "admin", "secret"))
	assert.NoError(t, db.Authenticate(ctx, "admin", "secret"))
	assert.ErrorIs(t, db.Authenticate(ctx, "admin", "wrong"), ErrUnauthorized)
	assert.ErrorIs(t, db.Authenticate(ctx, "ghost", "secret"), ErrUnauthorized)

	require.NoError(t, db.CreateUser(ctx, "admin", "rotated"))
	assert.NoError(t, db.Authenticate(ctx, "admin", "rotated"))
}
