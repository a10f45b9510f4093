package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"essync/core/reconcile"
	"essync/feature/essync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileClass string
	doReindex      bool
	doPurge        bool
	dryRun         bool
	yesConfirm     bool
)

// reconcileCmd compares a class with its index documents and repairs drift.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <database>",
	Short: "Compare a class with its index (report + optionally reindex/purge)",
	Long: `Compare the records of a class with the documents of the search index.

Reports records that are missing from the index and documents that are stale
(deleted in the source or excluded by the policy). Optionally reindex missing
records or purge stale documents.

Examples:
  # Report only
  essync reconcile Demo --class Person

  # Reindex missing records (with interactive confirmation)
  essync reconcile Demo --class Person --reindex

  # Both reindex and purge with auto-confirm
  essync reconcile Demo --class Person --reindex --purge --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileClass, "class", "", "Class to compare (required)")
	reconcileCmd.Flags().BoolVar(&doReindex, "reindex", false, "Index records missing from the index")
	reconcileCmd.Flags().BoolVar(&doPurge, "purge", false, "Delete stale documents from the index")
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Force dry-run (no mutations even with --yes)")
	reconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	_ = reconcileCmd.MarkFlagRequired("class")

	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
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
	l := rt.logger.With(zap.String("database", args[0]), zap.String("class", reconcileClass))
	svc := essync.NewService(rt.server, plugin, 0, rt.logger)

	opts := reconcile.Options{
		DoReindex: doReindex,
		DoPurge:   doPurge,
		DryRun:    true,
	}

	l.Info("Planning reconciliation...")
	plan, _, err := svc.Verify(ctx, args[0], reconcileClass, opts)
	if err != nil {
		return err
	}
	printReconcileReport(l, plan)

	if !doReindex && !doPurge {
		l.Info("No actions requested. Use --reindex to index missing records or --purge to delete stale documents.")
		return nil
	}
	if dryRun {
		l.Info("Dry-run mode: No changes were made.")
		return nil
	}
	if len(plan.Actions) == 0 {
		l.Info("No actions required based on current flags.")
		return nil
	}
	if !confirmDestructiveAction() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	opts.DryRun = false
	opts.Confirmed = true
	l.Info("Applying actions...")
	_, executed, err := svc.Verify(ctx, args[0], reconcileClass, opts)
	if err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}
	l.Info("Successfully executed actions", zap.Int("count", executed))
	return nil
}

// printReconcileReport logs the plan summary and a sample of its actions.
func printReconcileReport(l *zap.Logger, plan *reconcile.Plan) {
	s := plan.Summary

	l.Info("Reconciliation report",
		zap.Int("total_items", s.TotalItems),
		zap.Int("in_sync", s.InSync),
		zap.Int("missing_index", s.MissingIndex),
		zap.Int("stale_index", s.StaleIndex),
	)

	if len(plan.Actions) == 0 {
		return
	}
	l.Info("Planned actions",
		zap.Int("reindex_actions", s.ReindexActions),
		zap.Int("purge_actions", s.PurgeActions),
		zap.Int("total_actions", len(plan.Actions)),
	)

	maxShow := min(5, len(plan.Actions))
	for _, action := range plan.Actions[:maxShow] {
		l.Info("Sample action",
			zap.String("type", string(action.Type)),
			zap.String("key", action.Key),
			zap.String("reason", action.Reason),
		)
	}
	if len(plan.Actions) > maxShow {
		l.Info("Additional actions not shown", zap.Int("count", len(plan.Actions)-maxShow))
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}
