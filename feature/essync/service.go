package essync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"essync/core/mirror"
	"essync/core/reconcile"
	"essync/core/source"

	"go.uber.org/zap"
)

// ErrAmbiguousRequest is returned when a request sets more than one selector.
var ErrAmbiguousRequest = errors.New("at most one of command, classes or clusters may be set")

// ErrClassRequired is returned by Verify without a class.
var ErrClassRequired = errors.New("class is required")

// SyncRequest selects the records to synchronize. An empty request selects
// every cluster of the database.
type SyncRequest struct {
	Command  string   `json:"command"`
	Classes  []string `json:"classes"`
	Clusters []string `json:"clusters"`
}

// Detail describes the selection for logs.
func (r SyncRequest) Detail() string {
	switch {
	case r.Command != "":
		return "command: " + r.Command
	case len(r.Classes) > 0:
		return "classes: " + strings.Join(r.Classes, ",")
	case len(r.Clusters) > 0:
		return "clusters: " + strings.Join(r.Clusters, ",")
	default:
		return "database"
	}
}

func (r SyncRequest) validate() error {
	set := 0
	if strings.TrimSpace(r.Command) != "" {
		set++
	}
	if len(r.Classes) > 0 {
		set++
	}
	if len(r.Clusters) > 0 {
		set++
	}
	if set > 1 {
		return ErrAmbiguousRequest
	}
	return nil
}

// Service runs the administrative operations against named databases.
type Service struct {
	server  *source.Server
	plugin  *mirror.Plugin
	adapter *reconcile.MirrorAdapter
	store   *reconcile.Store
	ttl     time.Duration
	logger  *zap.Logger
}

// NewService creates a service. cacheTTL bounds how long verification reuses
// a previous comparison.
func NewService(server *source.Server, plugin *mirror.Plugin, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		server:  server,
		plugin:  plugin,
		adapter: reconcile.NewMirrorAdapter(server, plugin, logger),
		store:   reconcile.NewStore(),
		ttl:     cacheTTL,
		logger:  logger,
	}
}

// Authenticate checks user credentials against the database.
func (s *Service) Authenticate(ctx context.Context, database, user, password string) error {
	db, err := s.server.Open(ctx, database)
	if err != nil {
		return err
	}
	return db.Authenticate(ctx, user, password)
}

// Synchronize mirrors the records selected by req.
func (s *Service) Synchronize(ctx context.Context, database string, req SyncRequest) (mirror.BatchResult, error) {
	if err := req.validate(); err != nil {
		return mirror.BatchResult{}, err
	}
	db, err := s.server.Open(ctx, database)
	if err != nil {
		return mirror.BatchResult{}, err
	}

	log := s.logger.With(zap.String("database", database), zap.String("selection", req.Detail()))
	log.Info("Synchronizing records")

	var res mirror.BatchResult
	switch {
	case strings.TrimSpace(req.Command) != "":
		res, err = s.plugin.SyncCommand(ctx, db, req.Command)
	case len(req.Classes) > 0:
		res, err = s.plugin.SyncClasses(ctx, db, req.Classes)
	case len(req.Clusters) > 0:
		res, err = s.plugin.SyncClusters(ctx, db, req.Clusters)
	default:
		res, err = s.plugin.SyncAll(ctx, db)
	}
	if err != nil {
		return res, err
	}

	log.Info("Synchronized records",
		zap.Int("synchronized", res.Synchronized),
		zap.Int("skipped", res.Skipped),
		zap.Int64("rejected", res.Rejected))
	return res, nil
}

// DropClass removes the documents of class from the index of database.
func (s *Service) DropClass(ctx context.Context, database, class string) (int, error) {
	if _, err := s.server.Open(ctx, database); err != nil {
		return 0, err
	}
	return s.plugin.DropClass(ctx, database, class)
}

// DropIndex deletes the index of database. The source database is kept.
func (s *Service) DropIndex(ctx context.Context, database string) error {
	if _, err := s.server.Open(ctx, database); err != nil {
		return err
	}
	return s.plugin.Drop(ctx, database)
}

// Verify compares class with its index documents and applies the repairs
// opts asks for.
func (s *Service) Verify(ctx context.Context, database, class string, opts reconcile.Options) (*reconcile.Plan, int, error) {
	if class == "" {
		return nil, 0, ErrClassRequired
	}
	spec := &reconcile.Spec{Database: database, Class: class, CacheTTL: s.ttl}
	plan, executed, err := reconcile.ReconcileAndApply(ctx, spec, s.adapter, s.store, opts)
	if err != nil {
		return plan, executed, fmt.Errorf("verification of %s.%s failed: %w", database, class, err)
	}
	return plan, executed, nil
}
