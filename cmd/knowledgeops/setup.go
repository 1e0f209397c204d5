package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(env func() string) *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the vector index and apply database migrations",
		Long: "Creates the vector index if it is missing and brings the SQLite schema up to date. " +
			"Safe to run repeatedly. --recreate drops the vector index first and rebuilds it " +
			"over the stored records, e.g. after changing HNSW parameters.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			// opening the app applies pending migrations
			a, err := newApp(ctx, env())
			if err != nil {
				return err
			}
			defer a.Close()

			if recreate {
				if err := a.index.DropIndex(ctx); err != nil {
					return fmt.Errorf("drop vector index: %w", err)
				}
				a.logger.Info("Dropped vector index")
			}
			if err := a.index.EnsureIndex(ctx); err != nil {
				return fmt.Errorf("ensure vector index: %w", err)
			}

			schema, err := a.sql.SchemaVersion(ctx)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}

			a.logger.Info("Setup complete",
				zap.String("driver", a.cfg.Database.Driver),
				zap.Int("dimensions", a.cfg.Embedding.Dimensions),
				zap.String("sqlite", a.sql.Path()),
				zap.Int("schema_version", schema),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "vector index ready (%s, dim %d)\nsqlite %s at schema version %d\n",
				a.cfg.Database.Driver, a.cfg.Embedding.Dimensions, a.sql.Path(), schema)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop and rebuild the vector index")
	return cmd
}
