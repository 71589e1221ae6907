package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/internal/pkg/config"
	"github.com/ManuelReschke/AutoClub/internal/pkg/database"
	"github.com/ManuelReschke/AutoClub/internal/pkg/logging"
	"github.com/ManuelReschke/AutoClub/internal/pkg/sequence"
)

// flags collects command line values that override the loaded configuration.
type flags struct {
	port     int
	logLevel string
	dbDriver string
	dbPath   string
}

func (f *flags) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	if cmd.Flags().Changed("port") {
		out["app.port"] = f.port
	}
	if cmd.Flags().Changed("log-level") {
		out["log.level"] = f.logLevel
	}
	if cmd.Flags().Changed("db-driver") {
		out["db.driver"] = f.dbDriver
	}
	if cmd.Flags().Changed("db-path") {
		out["db.path"] = f.dbPath
	}
	return out
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:          "autoclub",
		Short:        "AutoClub membership and warranty backend",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "Log level: trace|debug|info|warn|error")
	root.PersistentFlags().StringVar(&f.dbDriver, "db-driver", "", "Database driver: mysql|postgres|sqlite")
	root.PersistentFlags().StringVar(&f.dbPath, "db-path", "", "SQLite database file (db-driver sqlite)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f.overrides(cmd))
		},
	}
	serveCmd.Flags().IntVar(&f.port, "port", 4000, "Listen port")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and seed the membership number sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), f.overrides(cmd), func(ctx context.Context, _ *config.Config, _ *gorm.DB, logger zerolog.Logger) error {
				logger.Info().Msg("database schema is up to date")
				return nil
			})
		},
	}

	sequenceCmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect and issue membership numbers",
	}
	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Issue one membership number and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), f.overrides(cmd), func(ctx context.Context, _ *config.Config, db *gorm.DB, _ zerolog.Logger) error {
				n, err := sequence.New(db).Next(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	peekCmd := &cobra.Command{
		Use:   "peek",
		Short: "Print the most recently issued membership number",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), f.overrides(cmd), func(ctx context.Context, _ *config.Config, db *gorm.DB, _ zerolog.Logger) error {
				n, err := sequence.New(db).Peek(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	sequenceCmd.AddCommand(nextCmd, peekCmd)

	root.AddCommand(serveCmd, migrateCmd, sequenceCmd)
	return root
}

// withDatabase loads the configuration, connects and migrates, runs fn and
// closes the pool.
func withDatabase(ctx context.Context, overrides map[string]any, fn func(ctx context.Context, cfg *config.Config, db *gorm.DB, logger zerolog.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)

	db, err := database.SetupDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("database setup failed")
		return err
	}
	defer closeDatabase(db, logger)

	return fn(ctx, cfg, db, logger)
}

func closeDatabase(db *gorm.DB, logger zerolog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close database")
	}
}
