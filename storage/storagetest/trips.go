// Package storagetest builds green-taxi shaped arrow tables and parquet files for tests.
package storagetest

import (
	"math"
	"os"
	"testing"
	"time"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/storage"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
)

// Trip is one synthetic trip. Zero times and NaN floats are written as nulls.
type Trip struct {
	VendorID             int32
	Pickup               time.Time
	Dropoff              time.Time
	StoreAndFwd          string
	PassengerCount       float64
	TripDistance         float64
	RatecodeID           float64
	FareAmount           float64
	Extra                float64
	MTATax               float64
	TipAmount            float64
	TollsAmount          float64
	ImprovementSurcharge float64
	TotalAmount          float64
	PaymentType          float64
	TripType             float64
	CongestionSurcharge  float64
	CBDCongestionFee     float64
}

var floatCols = []string{
	models.ColPassengerCount,
	models.ColTripDistance,
	models.ColRatecodeID,
	models.ColFareAmount,
	models.ColExtra,
	models.ColMTATax,
	models.ColTipAmount,
	models.ColTollsAmount,
	models.ColEhailFee,
	models.ColImprovementSurcharge,
	models.ColTotalAmount,
	models.ColPaymentType,
	models.ColTripType,
	models.ColCongestionSurcharge,
	models.ColCBDCongestionFee,
}

func (t Trip) floats() []float64 {
	return []float64{
		t.PassengerCount, t.TripDistance, t.RatecodeID, t.FareAmount, t.Extra, t.MTATax,
		t.TipAmount, t.TollsAmount, math.NaN(), t.ImprovementSurcharge, t.TotalAmount,
		t.PaymentType, t.TripType, t.CongestionSurcharge, t.CBDCongestionFee,
	}
}

// Layout varies raw column types the way some monthly releases differ
type Layout struct {
	VendorInt64 bool // VendorID as int64 instead of int32
	NullEhail   bool // ehail_fee with the arrow null type
}

// Schema is the raw file layout produced by Table
func Schema() *arrow.Schema {
	return LayoutSchema(Layout{})
}

// LayoutSchema is the raw file layout produced by LayoutTable
func LayoutSchema(l Layout) *arrow.Schema {
	vendor := arrow.DataType(arrow.PrimitiveTypes.Int32)
	if l.VendorInt64 {
		vendor = arrow.PrimitiveTypes.Int64
	}
	fields := []arrow.Field{
		{Name: models.ColVendorID, Type: vendor, Nullable: true},
		{Name: models.ColPickupDatetime, Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
		{Name: models.ColDropoffDatetime, Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
		{Name: "store_and_fwd_flag", Type: arrow.BinaryTypes.String, Nullable: true},
	}
	for _, name := range floatCols {
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if name == models.ColEhailFee && l.NullEhail {
			typ = arrow.Null
		}
		fields = append(fields, arrow.Field{Name: name, Type: typ, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// Table builds an arrow table from trips. The caller must Release it.
func Table(trips []Trip) arrow.Table {
	return LayoutTable(trips, Layout{})
}

// LayoutTable builds an arrow table from trips with the column types of l
func LayoutTable(trips []Trip, l Layout) arrow.Table {
	schema := LayoutSchema(l)
	b := array.NewRecordBuilder(storage.Pool, schema)
	defer b.Release()

	for _, t := range trips {
		switch vb := b.Field(0).(type) {
		case *array.Int64Builder:
			vb.Append(int64(t.VendorID))
		case *array.Int32Builder:
			vb.Append(t.VendorID)
		}
		appendTime(b.Field(1).(*array.TimestampBuilder), t.Pickup)
		appendTime(b.Field(2).(*array.TimestampBuilder), t.Dropoff)
		b.Field(3).(*array.StringBuilder).Append(t.StoreAndFwd)
		for i, v := range t.floats() {
			fb, ok := b.Field(4 + i).(*array.Float64Builder)
			switch {
			case !ok, math.IsNaN(v):
				b.Field(4 + i).AppendNull()
			default:
				fb.Append(v)
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec})
}

func appendTime(b *array.TimestampBuilder, t time.Time) {
	if t.IsZero() {
		b.AppendNull()
		return
	}
	b.Append(arrow.Timestamp(t.UnixMicro()))
}

// WriteFile writes trips as a parquet file at path
func WriteFile(t testing.TB, path string, trips []Trip) {
	t.Helper()
	WriteLayoutFile(t, path, trips, Layout{})
}

// WriteLayoutFile writes trips as a parquet file at path with the column types of l
func WriteLayoutFile(t testing.TB, path string, trips []Trip, l Layout) {
	t.Helper()
	tbl := LayoutTable(trips, l)
	defer tbl.Release()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pqarrow.WriteTable(tbl, f, 1024, parquet.NewWriterProperties(), pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())); err != nil {
		t.Fatal(err)
	}
}

// Trips returns n valid trips in the given month of 2025; hours cycle through the day
func Trips(month time.Month, n int) []Trip {
	out := make([]Trip, n)
	for i := range out {
		pickup := time.Date(2025, month, 1+i%28, i%24, (7*i)%60, 0, 0, time.UTC)
		dist := 0.5 + float64(i%10)
		fare := 3 + 2.5*dist
		tip := 0.15*fare + 0.1*float64(i%3)
		out[i] = Trip{
			VendorID:             int32(1 + i%2),
			Pickup:               pickup,
			Dropoff:              pickup.Add(time.Duration(5+i%30) * time.Minute),
			StoreAndFwd:          "N",
			PassengerCount:       float64(1 + i%4),
			TripDistance:         dist,
			RatecodeID:           float64(1 + i%2),
			FareAmount:           fare,
			Extra:                float64(i % 2),
			MTATax:               0.5,
			TipAmount:            tip,
			TollsAmount:          0,
			ImprovementSurcharge: 1,
			TotalAmount:          fare + tip + 1.5,
			PaymentType:          float64(1 + i%2),
			TripType:             1,
			CongestionSurcharge:  float64(i%2) * 2.75,
			CBDCongestionFee:     0,
		}
	}
	return out
}
