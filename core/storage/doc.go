// Package storage wraps the MinIO client for the bucket that holds per-database
// sync policy documents.
//
// The Client interface covers the handful of operations the policy loader, the
// policy CLI and the health check need, and is mocked in core/storage/mocks.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
package storage
