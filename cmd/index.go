package cmd

import (
	"context"

	"essync/feature/essync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// indexCmd groups index maintenance commands.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain search indices",
}

var indexDropCmd = &cobra.Command{
	Use:   "drop <database>",
	Short: "Delete the index of a database",
	Long:  `Deletes the whole search index of a database. The source database is not touched.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDestructiveAction() {
			return nil
		}
		return withService(func(ctx context.Context, svc *essync.Service, l *zap.Logger) error {
			if err := svc.DropIndex(ctx, args[0]); err != nil {
				return err
			}
			l.Info("Index deleted", zap.String("database", args[0]))
			return nil
		})
	},
}

var indexDropClassCmd = &cobra.Command{
	Use:   "drop-class <database> <class>",
	Short: "Remove the documents of one class from the index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDestructiveAction() {
			return nil
		}
		return withService(func(ctx context.Context, svc *essync.Service, l *zap.Logger) error {
			n, err := svc.DropClass(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			l.Info("Class removed from index",
				zap.String("database", args[0]), zap.String("class", args[1]), zap.Int("deleted", n))
			return nil
		})
	},
}

func init() {
	indexDropCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	indexDropClassCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	indexCmd.AddCommand(indexDropCmd, indexDropClassCmd)
	RootCmd.AddCommand(indexCmd)
}

// withService runs fn with a service bound to a fresh runtime.
func withService(fn func(ctx context.Context, svc *essync.Service, l *zap.Logger) error) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	plugin, err := rt.requirePlugin()
	if err != nil {
		return err
	}
	return fn(context.Background(), essync.NewService(rt.server, plugin, 0, rt.logger), rt.logger)
}
