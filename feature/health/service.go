package health

import (
	"context"

	"essync/core/mirror"
	"essync/core/source"
	"essync/core/storage"
	"essync/feature/health/checks"

	"go.uber.org/zap"
)

// Service runs health checks.
type Service struct {
	server   *source.Server
	registry *mirror.Registry
	client   storage.Client
	bucket   string
	fileName string
	logger   *zap.Logger
}

// NewService creates a health service. client is nil when policies are read
// from the local directory; registry is nil when the mirror is disabled.
func NewService(server *source.Server, registry *mirror.Registry, client storage.Client, bucket, fileName string, logger *zap.Logger) *Service {
	return &Service{
		server:   server,
		registry: registry,
		client:   client,
		bucket:   bucket,
		fileName: fileName,
		logger:   logger,
	}
}

// Databases lists the open source databases.
func (s *Service) Databases() []string {
	return s.server.Names()
}

// CheckSchema inspects the tables of database.
func (s *Service) CheckSchema(ctx context.Context, database string) (*checks.SchemaReport, error) {
	db, err := s.server.Open(ctx, database)
	if err != nil {
		return nil, err
	}
	return checks.CheckSchema(db.Conn().WithContext(ctx), database, source.Schema)
}

// CheckSearch pings the search engine of database. It returns nil when the
// mirror is disabled.
func (s *Service) CheckSearch(ctx context.Context, database string) *checks.SearchReport {
	if s.registry == nil {
		return nil
	}
	return checks.CheckSearch(ctx, s.registry, database)
}

// StorageEnabled reports whether policies live in object storage.
func (s *Service) StorageEnabled() bool {
	return s.client != nil
}

// CheckStorage verifies the policy bucket against the open databases.
func (s *Service) CheckStorage(ctx context.Context) (*checks.StorageReport, error) {
	return checks.CheckStorage(ctx, s.client, s.bucket, s.fileName, s.server.Names())
}

// FixStorage creates the policy bucket.
func (s *Service) FixStorage(ctx context.Context) error {
	return checks.FixStorage(ctx, s.client, s.bucket, s.logger)
}
