package storage

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/pkg/errors"
)

// ReadParquetSchema reads only the arrow schema of a parquet stream
func ReadParquetSchema(r parquet.ReaderAtSeeker) (*arrow.Schema, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading parquet footer")
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, Pool)
	if err != nil {
		return nil, errors.Wrap(err, "creating arrow reader")
	}
	schema, err := fr.Schema()
	if err != nil {
		return nil, errors.Wrap(err, "converting parquet schema")
	}
	return schema, nil
}

// UnifySchemas returns a schema every given schema converts to. Columns must agree on
// names and order. Types may differ when one widens to the other: a null column takes
// the other type, integers widen to int64, and integers mixed with floats (or uint64)
// become float64. Anything else is a schema mismatch.
func UnifySchemas(schemas ...*arrow.Schema) (*arrow.Schema, error) {
	if len(schemas) == 0 {
		return nil, errors.New("no schemas to unify")
	}
	first := schemas[0]
	fields := append([]arrow.Field(nil), first.Fields()...)
	widened := false

	for _, s := range schemas[1:] {
		got := s.Fields()
		if len(got) != len(fields) {
			return nil, errors.Errorf("schema mismatch: %d columns, expected %d", len(got), len(fields))
		}
		for i, g := range got {
			f := fields[i]
			typ, ok := widen(f.Type, g.Type)
			if f.Name != g.Name || !ok {
				return nil, errors.Errorf("schema mismatch at column %d: %s %s, expected %s %s", i, g.Name, g.Type, f.Name, f.Type)
			}
			if !arrow.TypeEqual(typ, f.Type) {
				fields[i].Type = typ
				fields[i].Nullable = true
				widened = true
			}
		}
	}
	if !widened {
		return first, nil
	}
	return arrow.NewSchema(fields, nil), nil
}

func widen(a, b arrow.DataType) (arrow.DataType, bool) {
	switch {
	case arrow.TypeEqual(a, b):
		return a, true
	case a.ID() == arrow.NULL:
		return b, true
	case b.ID() == arrow.NULL:
		return a, true
	case isInteger(a) && isInteger(b) && a.ID() != arrow.UINT64 && b.ID() != arrow.UINT64:
		return arrow.PrimitiveTypes.Int64, true
	case isNumeric(a) && isNumeric(b):
		return arrow.PrimitiveTypes.Float64, true
	}
	return nil, false
}

func isInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

func isNumeric(dt arrow.DataType) bool {
	return isInteger(dt) || dt.ID() == arrow.FLOAT32 || dt.ID() == arrow.FLOAT64
}

// Conform converts tbl to schema, which must come from UnifySchemas over tbl's schema.
// The caller must Release the result.
func Conform(tbl arrow.Table, schema *arrow.Schema) (arrow.Table, error) {
	fields := schema.Fields()
	if err := sameNames(schema, tbl.Schema()); err != nil {
		return nil, err
	}
	same := true
	for i, f := range fields {
		if !arrow.TypeEqual(f.Type, tbl.Schema().Field(i).Type) {
			same = false
			break
		}
	}
	if same {
		tbl.Retain()
		return tbl, nil
	}

	var recs []arrow.Record
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()

	tr := array.NewTableReader(tbl, rowGroupRows)
	defer tr.Release()
	for tr.Next() {
		rec := tr.Record()
		cols := make([]arrow.Array, len(fields))
		for j, f := range fields {
			c, err := convertArray(rec.Column(j), f.Type)
			if err != nil {
				for _, done := range cols[:j] {
					done.Release()
				}
				return nil, errors.Wrapf(err, "column %q", f.Name)
			}
			cols[j] = c
		}
		recs = append(recs, array.NewRecord(schema, cols, rec.NumRows()))
		for _, c := range cols {
			c.Release()
		}
	}
	return array.NewTableFromRecords(schema, recs), nil
}

func sameNames(want, got *arrow.Schema) error {
	if len(want.Fields()) != len(got.Fields()) {
		return errors.Errorf("schema mismatch: %d columns, expected %d", len(got.Fields()), len(want.Fields()))
	}
	for i, f := range want.Fields() {
		if g := got.Field(i); f.Name != g.Name {
			return errors.Errorf("schema mismatch at column %d: %s, expected %s", i, g.Name, f.Name)
		}
	}
	return nil
}

func convertArray(arr arrow.Array, to arrow.DataType) (arrow.Array, error) {
	if arrow.TypeEqual(arr.DataType(), to) {
		arr.Retain()
		return arr, nil
	}

	b := array.NewBuilder(Pool, to)
	defer b.Release()
	n := arr.Len()

	switch tb := b.(type) {
	case *array.Int64Builder:
		for i := 0; i < n; i++ {
			if isNull(arr, i) {
				tb.AppendNull()
				continue
			}
			v, err := intAt(arr, i)
			if err != nil {
				return nil, err
			}
			tb.Append(v)
		}
	case *array.Float64Builder:
		for i := 0; i < n; i++ {
			if isNull(arr, i) {
				tb.AppendNull()
				continue
			}
			v, err := floatAt(arr, i)
			if err != nil {
				return nil, err
			}
			tb.Append(v)
		}
	default:
		if arr.DataType().ID() != arrow.NULL {
			return nil, errors.Errorf("cannot convert %s to %s", arr.DataType(), to)
		}
		for i := 0; i < n; i++ {
			b.AppendNull()
		}
	}
	return b.NewArray(), nil
}

func intAt(arr arrow.Array, i int) (int64, error) {
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Uint16:
		return int64(a.Value(i)), nil
	case *array.Uint8:
		return int64(a.Value(i)), nil
	}
	return 0, errors.Errorf("unsupported integer type %s", arr.DataType())
}
