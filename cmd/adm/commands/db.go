package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"

	"noisewatch/internal/config"
	"noisewatch/internal/database"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the record store maintenance commands. They open their own
// connection, so they work against a database the services could not start on.
func DatabaseCommands(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for NoiseWatch.

Available commands:
  migrate - Apply pending schema migrations (PostgreSQL) or create indexes (MongoDB)
  status  - Show the applied schema version
  down    - Roll back schema migrations (PostgreSQL only)`,
	}

	dbCmd.AddCommand(migrateCmd(cfg, logger))
	dbCmd.AddCommand(migrationStatusCmd(cfg, logger))
	dbCmd.AddCommand(migrateDownCmd(cfg, logger))

	return dbCmd
}

func migrateCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the record store schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dm := database.NewManager(logger)
			out := cmd.OutOrStdout()

			if cfg.UsesMongo() {
				fmt.Fprintf(out, "Database: %s\n", contextutils.RedactURL(cfg.Storage.MongoURI))
				client, db, err := dm.ConnectMongo(ctx, cfg.Storage)
				if err != nil {
					return err
				}
				defer func() { _ = client.Disconnect(context.Background()) }()

				if err := dm.EnsureMongoIndexes(ctx, db); err != nil {
					return contextutils.WrapError(err, "failed to create indexes")
				}
				collections := make([]string, 0)
				for name := range database.MongoIndexes() {
					collections = append(collections, name)
				}
				sort.Strings(collections)
				for _, name := range collections {
					fmt.Fprintf(out, "Indexes ensured on %s\n", name)
				}
				return nil
			}

			return withPostgres(cfg, dm, out, func(db *sql.DB) error {
				if err := dm.RunMigrations(ctx, db); err != nil {
					return contextutils.WrapError(err, "failed to run migrations")
				}
				return printVersion(ctx, cmd, dm, db)
			})
		},
	}
}

func migrationStatusCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if cfg.UsesMongo() {
				fmt.Fprintln(out, "MongoDB stores are schemaless; run \"db migrate\" to ensure indexes")
				return nil
			}

			dm := database.NewManager(logger)
			return withPostgres(cfg, dm, out, func(db *sql.DB) error {
				if err := printVersion(ctx, cmd, dm, db); err != nil {
					return err
				}
				names, err := database.MigrationNames()
				if err != nil {
					return contextutils.WrapError(err, "failed to list migrations")
				}
				fmt.Fprintln(out, "Available migrations:")
				for _, name := range names {
					fmt.Fprintf(out, "  %s\n", name)
				}
				return nil
			})
		},
	}
}

func migrateDownCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cfg.UsesMongo() {
				return contextutils.WrapError(contextutils.ErrInvalidInput, "rolling back is only supported for PostgreSQL")
			}
			if steps < 1 {
				return contextutils.WrapError(contextutils.ErrInvalidInput, "--steps must be at least 1")
			}

			dm := database.NewManager(logger)
			return withPostgres(cfg, dm, cmd.OutOrStdout(), func(db *sql.DB) error {
				if err := dm.MigrateDown(ctx, db, steps); err != nil {
					return err
				}
				return printVersion(ctx, cmd, dm, db)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

// withPostgres opens a connection without migrating, runs fn and closes it
func withPostgres(cfg *config.Config, dm *database.Manager, out io.Writer, fn func(db *sql.DB) error) error {
	fmt.Fprintf(out, "Database: %s\n", contextutils.RedactURL(cfg.Database.URL))
	db, err := dm.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

func printVersion(ctx context.Context, cmd *cobra.Command, dm *database.Manager, db *sql.DB) error {
	version, dirty, err := dm.MigrationVersion(ctx, db)
	if err != nil {
		return contextutils.WrapError(err, "failed to read migration version")
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (%s)\n", version, state)
	return nil
}
