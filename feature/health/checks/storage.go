package checks

import (
	"context"
	"fmt"
	"path"

	"essync/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// StorageReport is the result of a policy bucket check.
type StorageReport struct {
	Bucket string `json:"bucket"`
	Exists bool   `json:"exists"`
	// Policies lists the databases that have a policy document.
	Policies []string `json:"policies"`
	// Missing lists the requested databases without a policy document.
	Missing []string `json:"missing"`
}

// CheckStorage verifies the policy bucket and looks for the policy document
// of each database.
func CheckStorage(ctx context.Context, client storage.Client, bucket, fileName string, databases []string) (*StorageReport, error) {
	report := &StorageReport{Bucket: bucket, Policies: []string{}, Missing: []string{}}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	report.Exists = exists
	if !exists {
		report.Missing = append(report.Missing, databases...)
		return report, nil
	}

	for _, db := range databases {
		opts := minio.ListObjectsOptions{
			Prefix:  path.Join(db, fileName),
			MaxKeys: 1,
		}

		found := false
		for obj := range client.ListObjects(ctx, bucket, opts) {
			if obj.Err != nil {
				return nil, fmt.Errorf("failed to list policy of %s: %w", db, obj.Err)
			}
			found = true
			break
		}

		if found {
			report.Policies = append(report.Policies, db)
		} else {
			report.Missing = append(report.Missing, db)
		}
	}
	return report, nil
}

// FixStorage creates the policy bucket.
func FixStorage(ctx context.Context, client storage.Client, bucket string, logger *zap.Logger) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	logger.Info("Created policy bucket", zap.String("bucket", bucket))
	return nil
}
