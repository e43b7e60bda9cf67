package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/utils"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresWriter handles appending trip records to Postgres and reading them back
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter creates a new PostgresWriter and pings the DB
func NewPostgresWriter(ctx context.Context, connStr string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open DB")
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping DB")
	}

	logger.Info("Connected to PostgreSQL successfully")
	return &PostgresWriter{db: db, logger: logger}, nil
}

// CreateTableSQL renders the DDL for a table whose columns follow schema
func CreateTableSQL(table string, schema *arrow.Schema) (string, error) {
	if len(schema.Fields()) == 0 {
		return "", errors.New("schema has no columns")
	}
	cols := make([]string, len(schema.Fields()))
	for i, f := range schema.Fields() {
		typ, err := pgType(f.Type)
		if err != nil {
			return "", errors.Wrapf(err, "column %q", f.Name)
		}
		cols[i] = fmt.Sprintf("\t%s %s", models.QuoteIdent(f.Name), typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", models.QuoteIdent(table), strings.Join(cols, ",\n")), nil
}

// EnsureTable creates the table from the file schema if it doesn't exist yet.
// An existing table is used as is.
func (w *PostgresWriter) EnsureTable(ctx context.Context, table string, schema *arrow.Schema) error {
	ddl, err := CreateTableSQL(table, schema)
	if err != nil {
		return err
	}
	if _, err := w.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrapf(err, "failed to create table %s", table)
	}
	w.logger.Debug("Table '%s' is ready", table)
	return nil
}

// AppendTable appends every row of tbl with one COPY per batch of at most batchSize rows.
// All batches of one call share a transaction, so a failed file leaves no rows behind.
func (w *PostgresWriter) AppendTable(ctx context.Context, table string, tbl arrow.Table, batchSize int) (n int64, err error) {
	if tbl.NumRows() == 0 {
		return 0, nil
	}

	cols := make([]string, len(tbl.Schema().Fields()))
	for i, f := range tbl.Schema().Fields() {
		cols[i] = f.Name
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	tr := array.NewTableReader(tbl, int64(batchSize))
	defer tr.Release()

	batches := 0
	for tr.Next() {
		rec := tr.Record()
		if err = copyRecord(ctx, tx, table, cols, rec); err != nil {
			return 0, errors.Wrapf(err, "batch %d", batches+1)
		}
		n += rec.NumRows()
		batches++
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}

	w.logger.Debug("Appended %d rows into '%s' in %d batches", n, table, batches)
	return n, nil
}

func copyRecord(ctx context.Context, tx *sql.Tx, table string, cols []string, rec arrow.Record) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, cols...))
	if err != nil {
		return errors.Wrap(err, "failed to prepare COPY")
	}
	defer stmt.Close()

	row := make([]interface{}, len(cols))
	for r := 0; r < int(rec.NumRows()); r++ {
		for c := range cols {
			v, err := sqlValue(rec.Column(c), r)
			if err != nil {
				return errors.Wrapf(err, "column %q", cols[c])
			}
			row[c] = v
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return errors.Wrapf(err, "row %d", r)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return errors.Wrap(err, "failed to flush COPY")
	}
	return nil
}

// QueryFiltered runs the fixed cash-trip extraction query
func (w *PostgresWriter) QueryFiltered(ctx context.Context, table string) (RowScanner, error) {
	rows, err := w.db.QueryContext(ctx, models.FilterQuery(table), models.FilterArgs()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run filter query")
	}
	return rows, nil
}

// Close closes the database connection
func (w *PostgresWriter) Close() {
	if w.db != nil {
		_ = w.db.Close()
		w.logger.Info("Database connection closed")
	}
}
