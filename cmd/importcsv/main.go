// review-service/cmd/importcsv/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"review-service/internal/config"
	"review-service/internal/importer"
	"review-service/internal/logging"
	"review-service/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dir         string
		applySchema bool
		strict      bool
	)
	cmd := &cobra.Command{
		Use:   "importcsv",
		Short: "Load category, genre, title, user, review and comment CSV files into the database",
		Long: `importcsv reads category.csv, genre.csv, titles.csv, genre_title.csv,
users.csv, review.csv and comments.csv from a directory and inserts them in
dependency order. Rows that already exist are skipped, so the command can be
re-run safely. The database is configured the same way as the service.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, dir, applySchema, strict)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory containing the CSV files")
	cmd.Flags().BoolVar(&applySchema, "apply-schema", true, "create missing tables before importing")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any row is rejected")
	return cmd
}

func run(ctx context.Context, dir string, applySchema, strict bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if cfg.Database.URL == "" {
		err := errors.New("database URL is required for import")
		logger.Error("Import aborted", slog.String("error", err.Error()))
		return err
	}

	db, err := store.Connect(ctx, cfg.Database.URL, store.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		return err
	}
	defer db.Close()

	if applySchema {
		if err := store.ApplySchema(ctx, db, logger); err != nil {
			return err
		}
	}
	stores, err := store.NewPostgresStores(db, logger)
	if err != nil {
		return err
	}

	report, err := importer.New(stores, logger).ImportDir(ctx, dir)
	if err != nil {
		logger.Error("Import failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return err
	}
	for _, f := range report.Files {
		if f.Missing {
			continue
		}
		fmt.Fprintf(os.Stdout, "%-16s imported=%d skipped=%d failed=%d\n", f.File, f.Imported, f.Skipped, f.Failed)
	}
	if strict && report.Failed() > 0 {
		return fmt.Errorf("%d rows rejected", report.Failed())
	}
	return nil
}
