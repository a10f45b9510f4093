package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"essync/core/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Server owns the set of open source databases and notifies lifecycle listeners.
type Server struct {
	cfg    database.Config
	logger *zap.Logger

	mu        sync.Mutex
	databases map[string]*Database
	listeners []LifecycleListener
}

// NewServer creates a server for the databases described by cfg.
// With the sqlite driver each database is a file under cfg.Dir; with mysql each
// database is a schema of the same name on cfg.Host.
func NewServer(cfg database.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		databases: make(map[string]*Database),
	}
}

// AddLifecycleListener registers l for lifecycle events of databases opened afterwards.
func (s *Server) AddLifecycleListener(l LifecycleListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Create opens the named database, creating its schema when it does not exist yet.
func (s *Server) Create(ctx context.Context, name string) (*Database, error) {
	return s.open(ctx, name, true)
}

// Open opens an existing database. Databases already open are shared.
func (s *Server) Open(ctx context.Context, name string) (*Database, error) {
	return s.open(ctx, name, false)
}

func (s *Server) open(ctx context.Context, name string, create bool) (*Database, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	if db, ok := s.databases[name]; ok {
		s.mu.Unlock()
		return db, nil
	}

	if !create && s.isSQLite() {
		if _, err := os.Stat(s.filePath(name)); errors.Is(err, os.ErrNotExist) {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
		}
	}

	conn, err := s.connect(name)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	created := !conn.Migrator().HasTable(&classRow{})
	if created && !create {
		_ = database.Close(conn)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
	}
	if err := conn.WithContext(ctx).AutoMigrate(&classRow{}, &clusterRow{}, &recordRow{}, &userRow{}); err != nil {
		_ = database.Close(conn)
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to migrate database %s: %w", name, err)
	}

	db := newDatabase(name, conn, s)
	if err := db.loadClusters(ctx); err != nil {
		_ = database.Close(conn)
		s.mu.Unlock()
		return nil, err
	}
	s.databases[name] = db
	listeners := append([]LifecycleListener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Opened source database", zap.String("database", name), zap.Bool("created", created))
	for _, l := range listeners {
		if created {
			l.OnCreate(db)
		} else {
			l.OnOpen(db)
		}
	}
	return db, nil
}

// Names lists the databases currently open.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop removes the named database after notifying listeners.
func (s *Server) Drop(ctx context.Context, name string) error {
	db, err := s.Open(ctx, name)
	if err != nil {
		return err
	}

	for _, l := range s.snapshotListeners() {
		l.OnDrop(db)
	}

	s.mu.Lock()
	delete(s.databases, name)
	s.mu.Unlock()

	if s.isSQLite() {
		if err := database.Close(db.conn); err != nil {
			return err
		}
		if err := os.Remove(s.filePath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove database %s: %w", name, err)
		}
	} else {
		if err := db.conn.WithContext(ctx).Migrator().DropTable(&recordRow{}, &classRow{}, &clusterRow{}, &userRow{}); err != nil {
			_ = database.Close(db.conn)
			return fmt.Errorf("failed to drop database %s: %w", name, err)
		}
		if err := database.Close(db.conn); err != nil {
			return err
		}
	}

	s.logger.Info("Dropped source database", zap.String("database", name))
	return nil
}

// Close closes every open database.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, db := range s.databases {
		if err := database.Close(db.conn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		delete(s.databases, name)
	}
	return errors.Join(errs...)
}

func (s *Server) snapshotListeners() []LifecycleListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LifecycleListener(nil), s.listeners...)
}

func (s *Server) isSQLite() bool {
	return strings.EqualFold(s.cfg.Driver, "sqlite")
}

func (s *Server) filePath(name string) string {
	return filepath.Join(s.cfg.Dir, name+".db")
}

func (s *Server) connect(name string) (*gorm.DB, error) {
	cfg := s.cfg
	if s.isSQLite() {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Name = s.filePath(name)
	} else {
		cfg.Name = name
	}
	return database.Connect(cfg)
}
