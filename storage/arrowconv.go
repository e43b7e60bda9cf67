package storage

import (
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/pkg/errors"
)

// ErrColumnNotFound is returned when a table lacks a required column
var ErrColumnNotFound = errors.New("column not found")

// column looks up a column by name
func column(tbl arrow.Table, name string) (*arrow.Column, error) {
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, errors.Wrapf(ErrColumnNotFound, "%q", name)
	}
	return tbl.Column(idx[0]), nil
}

// ColumnFloats returns a numeric column as float64, NaN where null
func ColumnFloats(tbl arrow.Table, name string) ([]float64, error) {
	col, err := column(tbl, name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, tbl.NumRows())
	for _, chunk := range col.Data().Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			if isNull(chunk, i) {
				out = append(out, math.NaN())
				continue
			}
			v, err := floatAt(chunk, i)
			if err != nil {
				return nil, errors.Wrapf(err, "column %q", name)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// ColumnTimes returns a timestamp column in UTC; ok[i] is false where null
func ColumnTimes(tbl arrow.Table, name string) (times []time.Time, ok []bool, err error) {
	col, err := column(tbl, name)
	if err != nil {
		return nil, nil, err
	}
	times = make([]time.Time, 0, tbl.NumRows())
	ok = make([]bool, 0, tbl.NumRows())
	for _, chunk := range col.Data().Chunks() {
		ts, isTS := chunk.(*array.Timestamp)
		if !isTS {
			return nil, nil, errors.Errorf("column %q is %s, not a timestamp", name, chunk.DataType())
		}
		unit := ts.DataType().(*arrow.TimestampType).Unit
		for i := 0; i < ts.Len(); i++ {
			if ts.IsNull(i) {
				times = append(times, time.Time{})
				ok = append(ok, false)
				continue
			}
			times = append(times, TimestampToTime(ts.Value(i), unit))
			ok = append(ok, true)
		}
	}
	return times, ok, nil
}

// TimestampToTime converts an arrow timestamp to a UTC time
func TimestampToTime(v arrow.Timestamp, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(int64(v), 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(int64(v)).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(int64(v)).UTC()
	default:
		return time.Unix(0, int64(v)).UTC()
	}
}

func floatAt(arr arrow.Array, i int) (float64, error) {
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Int64:
		return float64(a.Value(i)), nil
	case *array.Int32:
		return float64(a.Value(i)), nil
	case *array.Int16:
		return float64(a.Value(i)), nil
	case *array.Int8:
		return float64(a.Value(i)), nil
	case *array.Uint64:
		return float64(a.Value(i)), nil
	case *array.Uint32:
		return float64(a.Value(i)), nil
	case *array.Uint16:
		return float64(a.Value(i)), nil
	case *array.Uint8:
		return float64(a.Value(i)), nil
	}
	return 0, errors.Errorf("unsupported numeric type %s", arr.DataType())
}

// isNull also covers arrays of the null type, which carry no validity bitmap
func isNull(arr arrow.Array, i int) bool {
	return arr.DataType().ID() == arrow.NULL || arr.IsNull(i)
}

// sqlValue converts element i of arr into a value lib/pq can encode; nil for nulls
func sqlValue(arr arrow.Array, i int) (interface{}, error) {
	if isNull(arr, i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Timestamp:
		return TimestampToTime(a.Value(i), a.DataType().(*arrow.TimestampType).Unit), nil
	case *array.Date32:
		return a.Value(i).ToTime(), nil
	case *array.Date64:
		return a.Value(i).ToTime(), nil
	case *array.Float64, *array.Float32:
		return floatAt(arr, i)
	case *array.Int64:
		return a.Value(i), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Uint64:
		// may not fit in int64; NUMERIC takes the decimal text
		return strconv.FormatUint(a.Value(i), 10), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Uint16:
		return int64(a.Value(i)), nil
	case *array.Uint8:
		return int64(a.Value(i)), nil
	}
	return nil, errors.Errorf("unsupported arrow type %s", arr.DataType())
}

// pgType maps an arrow type onto the Postgres column type used for inferred tables
func pgType(dt arrow.DataType) (string, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return "BOOLEAN", nil
	case arrow.INT8, arrow.INT16, arrow.UINT8:
		return "SMALLINT", nil
	case arrow.INT32, arrow.UINT16:
		return "INTEGER", nil
	case arrow.INT64, arrow.UINT32:
		return "BIGINT", nil
	case arrow.UINT64:
		return "NUMERIC(20)", nil
	case arrow.FLOAT32:
		return "REAL", nil
	case arrow.FLOAT64, arrow.NULL:
		// all-null columns are stored as nullable doubles
		return "DOUBLE PRECISION", nil
	case arrow.STRING, arrow.LARGE_STRING:
		return "TEXT", nil
	case arrow.TIMESTAMP:
		return "TIMESTAMP", nil
	case arrow.DATE32, arrow.DATE64:
		return "DATE", nil
	}
	return "", errors.Errorf("unsupported arrow type %s", dt)
}
