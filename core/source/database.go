package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"essync/core/document"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var passwordCost = bcrypt.DefaultCost

// Database is one open source database.
type Database struct {
	name   string
	conn   *gorm.DB
	server *Server
	logger *zap.Logger

	mu         sync.RWMutex
	hooks      []Hook
	clusters   map[int]string
	clusterIDs map[string]int
	classes    map[string]int
}

func newDatabase(name string, conn *gorm.DB, server *Server) *Database {
	return &Database{
		name:       name,
		conn:       conn,
		server:     server,
		logger:     server.logger.With(zap.String("database", name)),
		clusters:   make(map[int]string),
		clusterIDs: make(map[string]int),
		classes:    make(map[string]int),
	}
}

// Name returns the database name.
func (d *Database) Name() string {
	return d.name
}

// Conn returns the underlying connection.
func (d *Database) Conn() *gorm.DB {
	return d.conn
}

// RegisterHook adds h to the hooks notified after every committed write.
func (d *Database) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

func (d *Database) loadClusters(ctx context.Context) error {
	var clusters []clusterRow
	if err := d.conn.WithContext(ctx).Find(&clusters).Error; err != nil {
		return fmt.Errorf("failed to load clusters: %w", err)
	}
	var classes []classRow
	if err := d.conn.WithContext(ctx).Find(&classes).Error; err != nil {
		return fmt.Errorf("failed to load classes: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range clusters {
		d.clusters[c.ID] = c.Name
		d.clusterIDs[c.Name] = c.ID
	}
	for _, c := range classes {
		d.classes[c.Name] = c.DefaultClusterID
	}
	return nil
}

// CreateCluster creates a named cluster and returns its id.
// Creating a cluster that already exists returns the existing id.
func (d *Database) CreateCluster(ctx context.Context, name string) (int, error) {
	name = strings.ToLower(name)
	if id, ok := d.ClusterID(name); ok {
		return id, nil
	}

	row := clusterRow{Name: name}
	if err := d.conn.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to create cluster %s: %w", name, err)
	}

	d.mu.Lock()
	d.clusters[row.ID] = row.Name
	d.clusterIDs[row.Name] = row.ID
	d.mu.Unlock()
	return row.ID, nil
}

// CreateClass creates a class together with its default cluster, named after
// the class in lower case. Creating a class that already exists is a no-op.
func (d *Database) CreateClass(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("class name must not be empty")
	}
	if d.HasClass(name) {
		return nil
	}

	clusterID, err := d.CreateCluster(ctx, name)
	if err != nil {
		return err
	}
	row := classRow{Name: name, DefaultClusterID: clusterID}
	if err := d.conn.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create class %s: %w", name, err)
	}

	d.mu.Lock()
	d.classes[name] = clusterID
	d.mu.Unlock()
	return nil
}

// HasClass reports whether the class exists.
func (d *Database) HasClass(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.classes[name]
	return ok
}

// Classes returns the class names in lexical order.
func (d *Database) Classes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.classes))
	for name := range d.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClusterNames returns the cluster names ordered by cluster id.
func (d *Database) ClusterNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]int, 0, len(d.clusters))
	for id := range d.clusters {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, d.clusters[id])
	}
	return names
}

// ClusterID resolves a cluster name.
func (d *Database) ClusterID(name string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.clusterIDs[strings.ToLower(name)]
	return id, ok
}

// ClusterNameFor returns the name of the cluster holding rid, or "" when unknown.
func (d *Database) ClusterNameFor(rid document.RID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.clusters[rid.Cluster]
}

// Save writes rec into the default cluster of its class.
// New records receive an identity; hooks are notified after the write commits.
func (d *Database) Save(ctx context.Context, rec *document.Record) error {
	return d.save(ctx, rec, -1)
}

// SaveToCluster writes a new record into the named cluster.
func (d *Database) SaveToCluster(ctx context.Context, rec *document.Record, cluster string) error {
	id, ok := d.ClusterID(cluster)
	if !ok {
		return fmt.Errorf("%w: %s", ErrClusterNotFound, cluster)
	}
	return d.save(ctx, rec, id)
}

func (d *Database) save(ctx context.Context, rec *document.Record, clusterID int) error {
	class := rec.ClassName()
	if class != "" && !d.HasClass(class) {
		return fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}

	body, err := document.EncodeBody(rec)
	if err != nil {
		return err
	}

	kind := AfterUpdate
	if rec.Identity().IsPersistent() {
		rid := rec.Identity()
		res := d.conn.WithContext(ctx).Model(&recordRow{}).
			Where("cluster_id = ? AND position = ?", rid.Cluster, rid.Position).
			Updates(map[string]any{
				"class":   class,
				"body":    body,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update record %s: %w", rid, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, rid)
		}
		rec.SetVersion(rec.Version() + 1)
	} else {
		kind = AfterCreate
		if clusterID < 0 {
			if class == "" {
				return fmt.Errorf("record without class requires an explicit cluster")
			}
			d.mu.RLock()
			clusterID = d.classes[class]
			d.mu.RUnlock()
		}

		err := d.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var last sql.NullInt64
			if err := tx.Model(&recordRow{}).Where("cluster_id = ?", clusterID).
				Select("MAX(position)").Row().Scan(&last); err != nil {
				return err
			}
			var position int64
			if last.Valid {
				position = last.Int64 + 1
			}

			row := recordRow{ClusterID: clusterID, Position: position, Class: class, Version: 1, Body: body}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			rec.SetIdentity(document.RID{Cluster: clusterID, Position: position})
			rec.SetVersion(1)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to create record: %w", err)
		}
	}

	return d.fire(ctx, kind, rec)
}

// Delete removes the record with the given identity and notifies hooks with
// the record as it was before removal.
func (d *Database) Delete(ctx context.Context, rid document.RID) error {
	rec, err := d.Load(ctx, rid)
	if err != nil {
		var malformed *MalformedRecordError
		if !errors.As(err, &malformed) {
			return err
		}
		rec = document.NewRecord("")
		rec.SetIdentity(rid)
	}

	res := d.conn.WithContext(ctx).
		Where("cluster_id = ? AND position = ?", rid.Cluster, rid.Position).
		Delete(&recordRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete record %s: %w", rid, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, rid)
	}

	return d.fire(ctx, AfterDelete, rec)
}

// Load reads a single record.
func (d *Database) Load(ctx context.Context, rid document.RID) (*document.Record, error) {
	var row recordRow
	err := d.conn.WithContext(ctx).
		Where("cluster_id = ? AND position = ?", rid.Cluster, rid.Position).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", rid, err)
	}
	return toRecord(row)
}

// BrowseClass returns a lazy iterator over every record of the class, in identity order.
func (d *Database) BrowseClass(ctx context.Context, class string) (Iterator, error) {
	if !d.HasClass(class) {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}
	return d.browse(ctx, d.conn.Where("class = ?", class))
}

// BrowseCluster returns a lazy iterator over every record of the cluster, in position order.
func (d *Database) BrowseCluster(ctx context.Context, cluster string) (Iterator, error) {
	id, ok := d.ClusterID(cluster)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClusterNotFound, cluster)
	}
	return d.browse(ctx, d.conn.Where("cluster_id = ?", id))
}

func (d *Database) browse(ctx context.Context, query *gorm.DB) (Iterator, error) {
	rows, err := query.WithContext(ctx).Model(&recordRow{}).
		Order("cluster_id").Order("position").Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to browse records: %w", err)
	}
	return newRowsIterator(d.conn, rows), nil
}

// CountClass returns the number of records of the class.
func (d *Database) CountClass(ctx context.Context, class string) (int64, error) {
	var n int64
	if err := d.conn.WithContext(ctx).Model(&recordRow{}).Where("class = ?", class).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// DropClass removes the class and all of its records. The default cluster is kept.
func (d *Database) DropClass(ctx context.Context, class string) error {
	if !d.HasClass(class) {
		return fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}

	for _, l := range d.server.snapshotListeners() {
		l.OnDropClass(d, class)
	}

	err := d.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class = ?", class).Delete(&recordRow{}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", class).Delete(&classRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to drop class %s: %w", class, err)
	}

	d.mu.Lock()
	delete(d.classes, class)
	d.mu.Unlock()

	d.logger.Info("Dropped class", zap.String("class", class))
	return nil
}

// Drop removes the whole database through its server.
func (d *Database) Drop(ctx context.Context) error {
	return d.server.Drop(ctx, d.name)
}

// CreateUser creates or replaces a database user.
func (d *Database) CreateUser(ctx context.Context, name, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	row := userRow{Name: name, PasswordHash: string(hash)}
	return d.conn.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// Authenticate checks the credentials of a database user.
func (d *Database) Authenticate(ctx context.Context, name, password string) error {
	var row userRow
	err := d.conn.WithContext(ctx).Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
		return ErrUnauthorized
	}
	return nil
}

func (d *Database) fire(ctx context.Context, kind EventKind, rec *document.Record) error {
	d.mu.RLock()
	hooks := append([]Hook(nil), d.hooks...)
	d.mu.RUnlock()

	event := Event{Kind: kind, Database: d.name, Record: rec}
	var errs []error
	for _, h := range hooks {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrHookFailed, errors.Join(errs...))
	}
	return nil
}
