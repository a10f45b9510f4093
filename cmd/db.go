package cmd

import (
	"context"
	"fmt"
	"os"

	"essync/core/document"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dbUser     string
	dbPassword string
	importInto string
)

// dbCmd administers source databases. Writes go through the mirror hook, so
// the index follows them when the search mirror is enabled.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Administer source databases",
}

var dbCreateCmd = &cobra.Command{
	Use:   "create <database>",
	Short: "Create a database, optionally with a first user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			db, err := rt.server.Create(ctx, args[0])
			if err != nil {
				return err
			}
			if dbUser != "" {
				if err := db.CreateUser(ctx, dbUser, dbPassword); err != nil {
					return err
				}
			}
			rt.logger.Info("Database ready", zap.String("database", db.Name()), zap.Strings("clusters", db.ClusterNames()))
			return nil
		})
	},
}

var dbDropCmd = &cobra.Command{
	Use:   "drop <database>",
	Short: "Drop a database and its index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDestructiveAction() {
			return nil
		}
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			return rt.server.Drop(ctx, args[0])
		})
	},
}

var dbUserCmd = &cobra.Command{
	Use:   "user <database> <name>",
	Short: "Create or replace a database user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			db, err := rt.server.Open(ctx, args[0])
			if err != nil {
				return err
			}
			if err := db.CreateUser(ctx, args[1], dbPassword); err != nil {
				return err
			}
			rt.logger.Info("User saved", zap.String("database", args[0]), zap.String("user", args[1]))
			return nil
		})
	},
}

var dbClassCmd = &cobra.Command{
	Use:   "class <database> <class>",
	Short: "Create a class with its default cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			db, err := rt.server.Open(ctx, args[0])
			if err != nil {
				return err
			}
			return db.CreateClass(ctx, args[1])
		})
	},
}

var dbDropClassCmd = &cobra.Command{
	Use:   "drop-class <database> <class>",
	Short: "Drop a class, its records and its index documents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDestructiveAction() {
			return nil
		}
		return withRuntime(func(ctx context.Context, rt *runtime) error {
			db, err := rt.server.Open(ctx, args[0])
			if err != nil {
				return err
			}
			return db.DropClass(ctx, args[1])
		})
	},
}

var dbImportCmd = &cobra.Command{
	Use:   "import <database> <file>",
	Short: "Save the objects of a JSON array as records of a class",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}
		var rows []map[string]any
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[1], err)
		}

		return withRuntime(func(ctx context.Context, rt *runtime) error {
			db, err := rt.server.Open(ctx, args[0])
			if err != nil {
				return err
			}
			if err := db.CreateClass(ctx, importInto); err != nil {
				return err
			}
			for i, row := range rows {
				rec := document.NewRecord(importInto)
				for k, v := range row {
					rec.Set(k, v)
				}
				if err := db.Save(ctx, rec); err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
			}
			rt.logger.Info("Records imported",
				zap.String("database", args[0]), zap.String("class", importInto), zap.Int("count", len(rows)))
			return nil
		})
	},
}

func init() {
	dbCreateCmd.Flags().StringVar(&dbUser, "user", "", "First user of the database")
	dbCreateCmd.Flags().StringVar(&dbPassword, "password", "", "Password of --user")
	dbUserCmd.Flags().StringVar(&dbPassword, "password", "", "Password of the user")
	_ = dbUserCmd.MarkFlagRequired("password")
	dbImportCmd.Flags().StringVar(&importInto, "class", "", "Target class, created when missing")
	_ = dbImportCmd.MarkFlagRequired("class")
	dbDropCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	dbDropClassCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	dbCmd.AddCommand(dbCreateCmd, dbDropCmd, dbUserCmd, dbClassCmd, dbDropClassCmd, dbImportCmd)
	RootCmd.AddCommand(dbCmd)
}

func withRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(context.Background(), rt)
}
