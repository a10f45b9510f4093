package cmd

import (
	"context"

	"essync/feature/essync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncCommand  string
	syncClasses  []string
	syncClusters []string
)

// syncCmd re-synchronizes records of a database into its index.
var syncCmd = &cobra.Command{
	Use:   "sync <database>",
	Short: "Synchronize records of a database into its index",
	Long: `Synchronize records of a database into its search index.

Without a selection every cluster is synchronized. At most one of --command,
--classes and --clusters may be given.

Examples:
  # Everything
  essync sync Demo

  # Two classes
  essync sync Demo --classes Person,City

  # The result of a query
  essync sync Demo --command "select from Person where age > 30"`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncCommand, "command", "", "Query whose result is synchronized")
	syncCmd.Flags().StringSliceVar(&syncClasses, "classes", nil, "Classes to synchronize")
	syncCmd.Flags().StringSliceVar(&syncClusters, "clusters", nil, "Clusters to synchronize")
	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	plugin, err := rt.requirePlugin()
	if err != nil {
		return err
	}

	svc := essync.NewService(rt.server, plugin, 0, rt.logger)
	req := essync.SyncRequest{Command: syncCommand, Classes: syncClasses, Clusters: syncClusters}
	res, err := svc.Synchronize(ctx, args[0], req)
	if err != nil {
		return err
	}

	rt.logger.Info("Synchronization finished",
		zap.String("database", args[0]),
		zap.String("selection", req.Detail()),
		zap.Int("synchronized", res.Synchronized),
		zap.Int("skipped", res.Skipped),
		zap.Int("malformed", res.Malformed),
		zap.Int64("confirmed", res.Confirmed),
		zap.Int64("rejected", res.Rejected))
	return nil
}
