package cmd

import (
	"context"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/services"
	"taxi-tip-pipeline/storage"

	"github.com/spf13/cobra"
)

func newIngestCommand() *cobra.Command {
	var (
		months   []string
		pattern  string
		failFast bool
	)
	c := &cobra.Command{
		Use:   "ingest",
		Short: "Append raw monthly files to the trip table.",
		Long: `
Appends every raw file whose month label (the part after the dash in
green_tripdata_2025-01.parquet) is listed in --months to the Postgres trip
table. The table is created from the first file's columns if it does not
exist. Files that fail are logged and skipped unless --fail-fast is given.

Month labels may also follow the flag as arguments: --months 01 02 03.
`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := monthList(append(months, args...))
			if err != nil {
				return err
			}
			env, err := newRunEnv(cmd, "ingest")
			if err != nil {
				return err
			}
			return env.finish(runIngest(cmd.Context(), env, ms, pattern, failFast))
		},
	}
	flags := c.Flags()
	flags.StringSliceVarP(&months, "months", "m", nil, "Month labels to import, e.g. --months 01,02")
	flags.StringVar(&pattern, "pattern", models.RawFilePattern, "Glob matched against raw file names")
	flags.BoolVar(&failFast, "fail-fast", false, "Stop at the first file that fails")
	flags.String("raw-path", "", "Raw file directory or s3://bucket/prefix (default $RAW_DATA_PATH or data/raw)")
	flags.Int("batch-size", 0, "Rows per COPY batch (default $INGEST_BATCH_SIZE or 10000)")
	_ = c.MarkFlagRequired("months")
	return c
}

func runIngest(ctx context.Context, env *runEnv, months []string, pattern string, failFast bool) error {
	cfg, logger := env.cfg, env.logger
	logger.Info("Months: %v | Table: %s | Batch size: %d", months, cfg.TableName, cfg.BatchSize)

	store, err := storage.NewRawStore(cfg.RawDataPath, cfg.AWSRegion)
	if err != nil {
		return err
	}

	pg, err := storage.NewPostgresWriter(ctx, cfg.DatabaseURL(), logger)
	if err != nil {
		logger.Error("Cannot connect to PostgreSQL at %s:%s", cfg.DB.Host, cfg.DB.Port)
		return err
	}
	defer pg.Close()

	ing := services.NewIngestor(store, pg, services.IngestConfig{
		TableName: cfg.TableName,
		BatchSize: cfg.BatchSize,
		FailFast:  failFast,
	}, logger, env.metrics)
	sum, err := ing.Ingest(ctx, months, pattern)
	logger.Info("Imported %d files (%d rows), skipped %d, failed %d",
		len(sum.Imported), sum.Rows, len(sum.Skipped), len(sum.Failed))
	return err
}
