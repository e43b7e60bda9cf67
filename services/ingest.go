package services

import (
	"context"
	"path/filepath"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/storage"
	"taxi-tip-pipeline/utils"

	"github.com/pkg/errors"
)

const stageIngest = "ingest"

// IngestConfig controls where and how raw files are appended
type IngestConfig struct {
	TableName string
	BatchSize int
	FailFast  bool
}

// IngestSummary lists what happened to each raw file
type IngestSummary struct {
	Imported []string
	Skipped  []string
	Failed   []string
	Rows     int64
}

// Ingestor appends the raw monthly files of selected months to the trip table
type Ingestor struct {
	store   storage.RawStore
	table   storage.TripTable
	cfg     IngestConfig
	logger  *utils.Logger
	metrics *utils.Metrics
}

// NewIngestor creates a new Ingestor
func NewIngestor(store storage.RawStore, table storage.TripTable, cfg IngestConfig, logger *utils.Logger, metrics *utils.Metrics) *Ingestor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = models.IngestBatchSize
	}
	if cfg.TableName == "" {
		cfg.TableName = models.DefaultTableName
	}
	return &Ingestor{store: store, table: table, cfg: cfg, logger: logger, metrics: metrics}
}

// Ingest appends every file matching pattern whose month label is in months.
// A file that fails is logged and skipped unless FailFast is set.
func (i *Ingestor) Ingest(ctx context.Context, months []string, pattern string) (IngestSummary, error) {
	var sum IngestSummary
	if pattern == "" {
		pattern = models.RawFilePattern
	}
	want := make(map[string]bool, len(months))
	for _, m := range months {
		want[m] = true
	}

	i.logger.Info("%s Find %s Data", i.store.Location(), pattern)
	files, err := i.store.Glob(ctx, pattern)
	if err != nil {
		return sum, errors.Wrap(err, "listing raw files")
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		base := filepath.Base(name)

		month, err := models.MonthLabel(name)
		if err != nil {
			i.logger.Warn("Filename format is incorrect, skipping: %s", base)
			sum.Skipped = append(sum.Skipped, name)
			i.count("skipped")
			continue
		}
		if !want[month] {
			i.logger.Debug("Month %s not requested, skipping: %s", month, base)
			sum.Skipped = append(sum.Skipped, name)
			i.count("skipped")
			continue
		}

		i.logger.Info("Processing: %s...", base)
		n, err := i.importFile(ctx, name)
		if err != nil {
			i.logger.Error("Error occurred while processing file %s: %v", base, err)
			sum.Failed = append(sum.Failed, name)
			i.count("failed")
			if i.cfg.FailFast {
				return sum, errors.Wrapf(err, "file %s", base)
			}
			continue
		}

		sum.Imported = append(sum.Imported, name)
		sum.Rows += n
		i.count("imported")
		i.metrics.RowsWritten.WithLabelValues(stageIngest).Add(float64(n))
		i.logger.Info("Successfully imported %s into '%s' table.", base, i.cfg.TableName)
	}

	i.logger.Info("All specified months' data ingestion completed.")
	return sum, nil
}

func (i *Ingestor) importFile(ctx context.Context, name string) (int64, error) {
	f, err := i.store.Open(ctx, name)
	if err != nil {
		return 0, errors.Wrap(err, "opening file")
	}
	defer f.Close()

	tbl, err := storage.ReadParquet(ctx, f)
	if err != nil {
		return 0, err
	}
	defer tbl.Release()

	if err := i.table.EnsureTable(ctx, i.cfg.TableName, tbl.Schema()); err != nil {
		return 0, err
	}
	return i.table.AppendTable(ctx, i.cfg.TableName, tbl, i.cfg.BatchSize)
}

func (i *Ingestor) count(result string) {
	i.metrics.FilesProcessed.WithLabelValues(stageIngest, result).Inc()
}
