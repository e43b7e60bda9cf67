package cmd

import (
	"fmt"
	"path/filepath"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/services"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newTrainCommand() *cobra.Command {
	var trainMonths, testMonths []string
	c := &cobra.Command{
		Use:   "train",
		Short: "Fit the tip model on the merged file and evaluate it.",
		Long: `
Reads green_tripdata_2025.parquet from the processed directory, fits a linear
regression of tip_amount on the training months, reports MSE, RMSE and R2 on
the testing months and saves the fitted pipeline to the model path.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			train, err := monthList(trainMonths)
			if err != nil {
				return err
			}
			test, err := monthList(testMonths)
			if err != nil {
				return err
			}
			if err := disjoint(train, test); err != nil {
				return err
			}

			env, err := newRunEnv(cmd, "train")
			if err != nil {
				return err
			}
			fmt.Fprintln(env.out, "--- Start Model Training ---")
			path := filepath.Join(env.cfg.ProcessedDataPath, models.MergedFileName)
			t := services.NewTrainer(env.cfg.ModelPath, env.out, env.logger, env.metrics)
			if _, err := t.Run(cmd.Context(), path, train, test); err != nil {
				return env.finish(err)
			}
			fmt.Fprintln(env.out, "--- End Model Training ---")
			return env.finish(nil)
		},
	}
	flags := c.Flags()
	flags.StringSliceVar(&trainMonths, "train-months", models.DefaultTrainingMonths, "Months used for fitting")
	flags.StringSliceVar(&testMonths, "test-months", models.DefaultTestingMonths, "Months used for evaluation")
	flags.String("processed-path", "", "Directory holding the merged file (default $PROCESSED_DATA_PATH or data/processed)")
	flags.String("model-path", "", "Where to save the model (default $MODEL_PATH or model/green_taxi_tip_prediction_model.gob)")
	return c
}

func disjoint(train, test []string) error {
	if len(train) == 0 || len(test) == 0 {
		return errors.New("both --train-months and --test-months need at least one month")
	}
	in := make(map[string]bool, len(train))
	for _, m := range train {
		in[m] = true
	}
	for _, m := range test {
		if in[m] {
			return errors.Errorf("month %s is in both --train-months and --test-months", m)
		}
	}
	return nil
}
