package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"essync/core/storage"

	"github.com/minio/minio-go/v7"
)

// DefaultFileName is the policy document name inside a database's directory or prefix.
const DefaultFileName = "elastic-search-config.json"

// Loader fetches the policy document of a source database.
// A database without a document gets Default().
type Loader interface {
	Load(ctx context.Context, database string) (*Document, error)
}

// FileLoader reads <Dir>/<database>/<FileName> from the local filesystem.
type FileLoader struct {
	Dir      string
	FileName string
}

// Load implements Loader.
func (l FileLoader) Load(_ context.Context, database string) (*Document, error) {
	name := l.FileName
	if name == "" {
		name = DefaultFileName
	}
	data, err := os.ReadFile(filepath.Join(l.Dir, database, name))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy for %s: %w", database, err)
	}
	return Parse(data)
}

// BucketLoader reads object <database>/<FileName> from object storage.
type BucketLoader struct {
	Client   storage.Client
	Bucket   string
	FileName string
}

// ObjectName returns the object key of the database's policy document.
func (l BucketLoader) ObjectName(database string) string {
	name := l.FileName
	if name == "" {
		name = DefaultFileName
	}
	return path.Join(database, name)
}

// Load implements Loader.
func (l BucketLoader) Load(ctx context.Context, database string) (*Document, error) {
	obj, err := l.Client.GetObject(ctx, l.Bucket, l.ObjectName(database), minio.GetObjectOptions{})
	if storage.IsNotFound(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch policy for %s: %w", database, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if storage.IsNotFound(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy for %s: %w", database, err)
	}
	return Parse(data)
}
