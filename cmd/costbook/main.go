package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"Costbook/internal/app"
	"Costbook/internal/config"
	"Costbook/internal/logging"
)

func main() {
	cliApp := &cli.App{
		Name:  "costbook",
		Usage: "ingest historical cost estimates into a priced recipe catalog",
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "scan configured sources and ingest new or changed documents",
				Action: runIngest,
			},
			{
				Name:   "sync-vectors",
				Usage:  "backfill the vector index for recipes missing an embedding",
				Action: runVectorSync,
			},
			{
				Name:   "reprice",
				Usage:  "recompute all cached prices from raw history",
				Action: runReprice,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runIngest(c *cli.Context) error {
	ctx, a, logger, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := a.Ingestion.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	logger.Info("run report",
		"files_scanned", report.FilesScanned,
		"files_skipped", report.FilesSkipped,
		"files_failed", report.FilesFailed,
		"recipes_branched", report.RecipesBranched,
		"recipes_merged", report.RecipesMerged,
		"components_written", report.ComponentsWritten,
		"observations_appended", report.ObservationsAppended,
		"parse_warnings", report.ParseWarnings,
		"provider_failures", report.ProviderFailures,
		"integrity_skips", report.IntegritySkips,
		"degraded", report.Degraded())
	return nil
}

func runVectorSync(c *cli.Context) error {
	ctx, a, logger, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	registered, err := a.VectorSync.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync vectors: %w", err)
	}
	logger.Info("vectors registered", "count", registered)
	return nil
}

func runReprice(c *cli.Context) error {
	ctx, a, logger, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	updated, err := a.Repricer.Run(ctx)
	if err != nil {
		return fmt.Errorf("reprice: %w", err)
	}
	logger.Info("recipes repriced", "count", updated)
	return nil
}

// setup loads configuration, wires the application and arms signal-driven
// cancellation. The returned cleanup releases both.
func setup(c *cli.Context) (context.Context, *app.App, *slog.Logger, func(), error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		stop()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		_ = a.Close()
		stop()
	}
	return ctx, a, logger, cleanup, nil
}
