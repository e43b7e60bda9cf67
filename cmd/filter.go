package cmd

import (
	"context"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/services"
	"taxi-tip-pipeline/storage"

	"github.com/spf13/cobra"
)

func newFilterCommand() *cobra.Command {
	var (
		failFast    bool
		previewRows int
	)
	c := &cobra.Command{
		Use:   "filter",
		Short: "Export cash trips from the trip table to parquet.",
		Long: `
Selects cash trips (payment_type 1) with positive fare, distance and total and
a non-negative tip, and writes them to green_tripdata_filtered.parquet in the
processed directory. A query or write failure is logged and the previous file
is left in place; with --fail-fast it also fails the command.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRunEnv(cmd, "filter")
			if err != nil {
				return err
			}
			return env.finish(runFilter(cmd.Context(), env, failFast, previewRows))
		},
	}
	flags := c.Flags()
	flags.BoolVar(&failFast, "fail-fast", false, "Fail the command when the query or the write fails")
	flags.IntVar(&previewRows, "preview-rows", models.DefaultPreviewRow, "Rows shown in the preview")
	flags.String("processed-path", "", "Output directory (default $PROCESSED_DATA_PATH or data/processed)")
	return c
}

func runFilter(ctx context.Context, env *runEnv, failFast bool, previewRows int) error {
	cfg := env.cfg
	pg, err := storage.NewPostgresWriter(ctx, cfg.DatabaseURL(), env.logger)
	if err != nil {
		env.logger.Error("Cannot connect to PostgreSQL at %s:%s", cfg.DB.Host, cfg.DB.Port)
		return err
	}
	defer pg.Close()

	f := services.NewFilterer(pg, services.FilterConfig{
		TableName:   cfg.TableName,
		OutputDir:   cfg.ProcessedDataPath,
		PreviewRows: previewRows,
		FailFast:    failFast,
	}, env.out, env.logger, env.metrics)
	_, err = f.Export(ctx)
	return err
}
