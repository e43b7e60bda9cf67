package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"taxi-tip-pipeline/config"
	"taxi-tip-pipeline/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree; one subcommand per pipeline stage
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "taxi-tip-pipeline",
		Short: "Ingest, filter, merge and model NYC green taxi trips.",
		Long: `Batch pipeline over the monthly NYC TLC green taxi parquet files.

  ingest   append selected months to the Postgres trip table
  filter   export cash trips with sane amounts to parquet
  merge    concatenate every raw month into one parquet file
  train    fit a linear model predicting tip_amount on the merged file

Settings come from defaults, a .env file, the environment and flags, in
increasing priority.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.SetOut(stdout)
	rc.SetErr(stderr)

	flags := rc.PersistentFlags()
	flags.String("config", config.DefaultEnvFile, "Path of the .env file to read; a missing default file is ignored")
	flags.String("log-level", "", "Log level: debug, info, warn or error (default $LOG_LEVEL or info)")

	rc.AddCommand(newIngestCommand())
	rc.AddCommand(newFilterCommand())
	rc.AddCommand(newMergeCommand())
	rc.AddCommand(newTrainCommand())
	return rc
}

// Execute runs the command line and returns the process exit status
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rc := NewRootCommand(stdout, stderr)
	rc.SetArgs(args)
	if err := rc.ExecuteContext(ctx); err != nil {
		var logged *stageError
		if !errors.As(err, &logged) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// stageError marks an error that has already been logged
type stageError struct {
	err error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// runEnv is what every stage needs: configuration, a tagged logger and metrics
type runEnv struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *utils.Metrics
	out     io.Writer
	stage   string
	start   time.Time
}

func newRunEnv(cmd *cobra.Command, stage string) (*runEnv, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}
	base, err := utils.NewLoggerTo(cmd.OutOrStdout(), cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "LOG_LEVEL")
	}
	logger := base.WithField("run_id", uuid.New().String()).WithField("stage", stage)
	logger.Info("Green Taxi Tip Pipeline: %s", stage)

	return &runEnv{
		cfg:     cfg,
		logger:  logger,
		metrics: utils.NewMetrics(),
		out:     cmd.OutOrStdout(),
		stage:   stage,
		start:   time.Now(),
	}, nil
}

// finish records the stage duration, pushes metrics and logs a failure.
// A push failure never changes the outcome.
func (e *runEnv) finish(err error) error {
	e.metrics.StageDuration.WithLabelValues(e.stage).Set(time.Since(e.start).Seconds())
	if perr := e.metrics.Push(e.cfg.PushgatewayURL, "taxi_pipeline_"+e.stage); perr != nil {
		e.logger.Warn("Failed to push metrics: %v", perr)
	}
	if err != nil {
		e.logger.Error("Stage %s failed: %v", e.stage, err)
		return &stageError{err: err}
	}
	e.logger.Info("Stage %s finished in %s", e.stage, time.Since(e.start).Round(time.Millisecond))
	return nil
}

// monthList normalizes month labels given on the command line
func monthList(months []string) ([]string, error) {
	out := make([]string, 0, len(months))
	seen := make(map[string]bool, len(months))
	for _, m := range months {
		if m == "" {
			return nil, errors.New("empty month label")
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out, nil
}
