package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"essync/core/policy"
	"essync/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// policyCmd manages policy documents in the object storage bucket.
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage per-database policy documents in object storage",
	Long: `Manage the policy documents read by the search mirror when object storage
is enabled (STORAGE_ENABLED=true). Each document lives at <database>/<file name>.`,
}

var policyPushCmd = &cobra.Command{
	Use:   "push <database> <file>",
	Short: "Validate and upload a policy document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}
		doc, err := policy.Parse(data)
		if err != nil {
			return err
		}

		return withBucket(func(ctx context.Context, loader policy.BucketLoader, l *zap.Logger) error {
			exists, err := loader.Client.BucketExists(ctx, loader.Bucket)
			if err != nil {
				return err
			}
			if !exists {
				if err := loader.Client.MakeBucket(ctx, loader.Bucket, minio.MakeBucketOptions{}); err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", loader.Bucket, err)
				}
			}

			name := loader.ObjectName(args[0])
			_, err = loader.Client.PutObject(ctx, loader.Bucket, name, bytes.NewReader(data), int64(len(data)),
				minio.PutObjectOptions{ContentType: "application/json"})
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", name, err)
			}
			l.Info("Policy uploaded",
				zap.String("database", args[0]),
				zap.String("object", name),
				zap.String("endpoint", doc.Endpoint.Address()))
			return nil
		})
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show <database>",
	Short: "Print the stored policy document of a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBucket(func(ctx context.Context, loader policy.BucketLoader, l *zap.Logger) error {
			name := loader.ObjectName(args[0])
			obj, err := loader.Client.GetObject(ctx, loader.Bucket, name, minio.GetObjectOptions{})
			if err == nil {
				defer obj.Close()
				var data []byte
				data, err = io.ReadAll(obj)
				if err == nil {
					fmt.Println(string(data))
					return nil
				}
			}
			if storage.IsNotFound(err) {
				l.Info("No policy stored; everything is synchronized to the default endpoint",
					zap.String("database", args[0]))
				return nil
			}
			return fmt.Errorf("failed to fetch %s: %w", name, err)
		})
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List databases with a stored policy document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBucket(func(ctx context.Context, loader policy.BucketLoader, l *zap.Logger) error {
			suffix := "/" + loader.ObjectName("")
			count := 0
			for obj := range loader.Client.ListObjects(ctx, loader.Bucket, minio.ListObjectsOptions{Recursive: true}) {
				if obj.Err != nil {
					return obj.Err
				}
				database := strings.TrimPrefix(strings.TrimSuffix("/"+obj.Key, suffix), "/")
				if database == "" || !strings.HasSuffix("/"+obj.Key, suffix) {
					continue
				}
				count++
				l.Info("Policy",
					zap.String("database", database),
					zap.String("object", obj.Key),
					zap.Int64("size", obj.Size),
					zap.Time("modified", obj.LastModified))
			}
			l.Info("Policies listed", zap.Int("count", count))
			return nil
		})
	},
}

var policyRemoveCmd = &cobra.Command{
	Use:   "remove <database>",
	Short: "Delete the stored policy document of a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDestructiveAction() {
			return nil
		}
		return withBucket(func(ctx context.Context, loader policy.BucketLoader, l *zap.Logger) error {
			name := loader.ObjectName(args[0])
			if err := loader.Client.RemoveObject(ctx, loader.Bucket, name, minio.RemoveObjectOptions{}); err != nil {
				return fmt.Errorf("failed to remove %s: %w", name, err)
			}
			l.Info("Policy removed", zap.String("database", args[0]), zap.String("object", name))
			return nil
		})
	},
}

func init() {
	policyRemoveCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	policyCmd.AddCommand(policyPushCmd, policyShowCmd, policyListCmd, policyRemoveCmd)
	RootCmd.AddCommand(policyCmd)
}

// withBucket runs fn against the configured policy bucket.
func withBucket(fn func(ctx context.Context, loader policy.BucketLoader, l *zap.Logger) error) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	loader, ok := rt.policyLoader().(policy.BucketLoader)
	if !ok {
		return errors.New("object storage is disabled (STORAGE_ENABLED=false); policies are read from " + rt.cfg.Search.ConfigDir)
	}
	return fn(context.Background(), loader, rt.logger)
}
