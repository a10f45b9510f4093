package cmd

import (
	"context"
	"fmt"

	"essync/feature/health"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fixStorage bool

// checkCmd runs the health checks from the command line.
var checkCmd = &cobra.Command{
	Use:   "check [database...]",
	Short: "Check source schemas, search engines and policy storage",
	Long: `Opens each named database, verifies its storage schema and pings the search
engine its policy points at. The policy bucket is checked when object storage
is enabled; --fix creates it when missing.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&fixStorage, "fix", false, "Create the policy bucket when missing")
	RootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	l := rt.logger

	svc := health.NewService(rt.server, rt.registry(), rt.storage, rt.cfg.Storage.Bucket, rt.cfg.Search.ConfigFile, l)
	failed := 0

	for _, name := range args {
		schema, err := svc.CheckSchema(ctx, name)
		if err != nil {
			l.Error("Schema check failed", zap.String("database", name), zap.Error(err))
			failed++
			continue
		}
		if !schema.Matched {
			failed++
		}
		for table, report := range schema.Tables {
			if len(report.MissingColumns) > 0 {
				l.Warn("Table is missing columns",
					zap.String("database", name),
					zap.String("table", table),
					zap.Strings("columns", report.MissingColumns))
			}
		}
		l.Info("Schema checked", zap.String("database", name), zap.Bool("matched", schema.Matched))

		if search := svc.CheckSearch(ctx, name); search != nil {
			l.Info("Search engine checked",
				zap.String("database", name),
				zap.String("address", search.Address),
				zap.String("status", search.Status),
				zap.String("error", search.Error))
			if search.Error != "" {
				failed++
			}
		}
	}

	if svc.StorageEnabled() {
		if fixStorage {
			if err := svc.FixStorage(ctx); err != nil {
				return err
			}
		}
		st, err := svc.CheckStorage(ctx)
		if err != nil {
			return err
		}
		l.Info("Policy storage checked",
			zap.String("bucket", st.Bucket),
			zap.Bool("exists", st.Exists),
			zap.Strings("policies", st.Policies),
			zap.Strings("missing", st.Missing))
		if !st.Exists {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	l.Info("All checks passed")
	return nil
}
