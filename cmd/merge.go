package cmd

import (
	"fmt"

	"taxi-tip-pipeline/services"
	"taxi-tip-pipeline/storage"

	"github.com/spf13/cobra"
)

func newMergeCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "merge",
		Short: "Merge every raw monthly file into one parquet file.",
		Long: `
Concatenates all green_tripdata_2025-*.parquet files of the raw directory, in
file name order, into green_tripdata_2025.parquet in the processed directory.
Fails without writing anything when no raw file matches.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRunEnv(cmd, "merge")
			if err != nil {
				return err
			}
			fmt.Fprintln(env.out, "--- Start Data ETL ---")
			store, err := storage.NewRawStore(env.cfg.RawDataPath, env.cfg.AWSRegion)
			if err != nil {
				return env.finish(err)
			}
			m := services.NewMerger(store, env.cfg.ProcessedDataPath, env.out, env.logger, env.metrics)
			if _, err := m.Merge(cmd.Context()); err != nil {
				return env.finish(err)
			}
			fmt.Fprintln(env.out, "--- Data ETL process finished ---")
			return env.finish(nil)
		},
	}
	flags := c.Flags()
	flags.String("raw-path", "", "Raw file directory or s3://bucket/prefix (default $RAW_DATA_PATH or data/raw)")
	flags.String("processed-path", "", "Output directory (default $PROCESSED_DATA_PATH or data/processed)")
	return c
}
