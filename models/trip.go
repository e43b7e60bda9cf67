package models

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/pkg/errors"
)

// Trip record column names as published in the NYC TLC green taxi files
const (
	ColVendorID             = "VendorID"
	ColPickupDatetime       = "lpep_pickup_datetime"
	ColDropoffDatetime      = "lpep_dropoff_datetime"
	ColPassengerCount       = "passenger_count"
	ColTripDistance         = "trip_distance"
	ColRatecodeID           = "RatecodeID"
	ColFareAmount           = "fare_amount"
	ColExtra                = "extra"
	ColMTATax               = "mta_tax"
	ColTipAmount            = "tip_amount"
	ColTollsAmount          = "tolls_amount"
	ColEhailFee             = "ehail_fee"
	ColImprovementSurcharge = "improvement_surcharge"
	ColTotalAmount          = "total_amount"
	ColPaymentType          = "payment_type"
	ColTripType             = "trip_type"
	ColCongestionSurcharge  = "congestion_surcharge"
	ColCBDCongestionFee     = "cbd_congestion_fee"
)

// Derived training columns
const (
	ColPickupHour          = "pickup_hour"
	ColTripDurationMinutes = "trip_duration_minutes"
	ColPickupMonth         = "pickup_month_str"
)

// File names and patterns shared by the stages
const (
	DefaultTableName  = "green_tripdata"
	RawFilePattern    = "green_tripdata_2025-*.parquet"
	FilteredFileName  = "green_tripdata_filtered.parquet"
	MergedFileName    = "green_tripdata_2025.parquet"
	IngestBatchSize   = 10000
	CashPaymentType   = 1
	DefaultPreviewRow = 5
)

// Column is a named output column with its arrow type
type Column struct {
	Name string
	Type arrow.DataType
}

// FilteredColumns is the fixed projection exported by the filter stage
var FilteredColumns = []Column{
	{ColVendorID, arrow.PrimitiveTypes.Int64},
	{ColPickupDatetime, arrow.FixedWidthTypes.Timestamp_us},
	{ColDropoffDatetime, arrow.FixedWidthTypes.Timestamp_us},
	{ColPassengerCount, arrow.PrimitiveTypes.Float64},
	{ColTripDistance, arrow.PrimitiveTypes.Float64},
	{ColRatecodeID, arrow.PrimitiveTypes.Float64},
	{ColFareAmount, arrow.PrimitiveTypes.Float64},
	{ColExtra, arrow.PrimitiveTypes.Float64},
	{ColMTATax, arrow.PrimitiveTypes.Float64},
	{ColTipAmount, arrow.PrimitiveTypes.Float64},
	{ColTollsAmount, arrow.PrimitiveTypes.Float64},
	{ColEhailFee, arrow.PrimitiveTypes.Float64},
	{ColImprovementSurcharge, arrow.PrimitiveTypes.Float64},
	{ColTotalAmount, arrow.PrimitiveTypes.Float64},
	{ColCongestionSurcharge, arrow.PrimitiveTypes.Float64},
	{ColCBDCongestionFee, arrow.PrimitiveTypes.Float64},
}

// FilteredSchema returns the arrow schema of the filtered export
func FilteredSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(FilteredColumns))
	for i, c := range FilteredColumns {
		fields[i] = arrow.Field{Name: c.Name, Type: c.Type, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Condition is one comparison of a numeric trip column against a constant
type Condition struct {
	Column string
	Op     string // one of "=", ">", ">="
	Value  float64
}

// FilterConditions are the predicates a trip must satisfy to be exported
var FilterConditions = []Condition{
	{ColPaymentType, "=", CashPaymentType},
	{ColFareAmount, ">", 0},
	{ColTipAmount, ">=", 0},
	{ColTripDistance, ">", 0},
	{ColTotalAmount, ">", 0},
}

// Holds reports whether v satisfies the condition. NaN stands for NULL and never does.
func (c Condition) Holds(v float64) bool {
	switch c.Op {
	case "=":
		return v == c.Value
	case ">":
		return v > c.Value
	case ">=":
		return v >= c.Value
	}
	return false
}

// KeepTrip reports whether a trip, given by column values, passes every filter condition.
// A missing column counts as NULL.
func KeepTrip(values map[string]float64) bool {
	for _, c := range FilterConditions {
		v, ok := values[c.Column]
		if !ok || !c.Holds(v) {
			return false
		}
	}
	return true
}

// FilterQuery returns the fixed extraction query against table; its placeholders take FilterArgs
func FilterQuery(table string) string {
	cols := make([]string, len(FilteredColumns))
	for i, c := range FilteredColumns {
		cols[i] = QuoteIdent(c.Name)
	}
	preds := make([]string, len(FilterConditions))
	for i, c := range FilterConditions {
		preds[i] = fmt.Sprintf("%s %s $%d", QuoteIdent(c.Column), c.Op, i+1)
	}
	return "SELECT " + strings.Join(cols, ", ") +
		" FROM " + QuoteIdent(table) +
		" WHERE " + strings.Join(preds, " AND ")
}

// FilterArgs are the bind values of FilterQuery, in placeholder order
func FilterArgs() []interface{} {
	args := make([]interface{}, len(FilterConditions))
	for i, c := range FilterConditions {
		args[i] = c.Value
	}
	return args
}

// QuoteIdent double-quotes a SQL identifier so mixed-case column names survive
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Training feature set
var (
	Target = ColTipAmount

	Features = []string{
		ColPassengerCount,
		ColTripDistance,
		ColRatecodeID,
		ColExtra,
		ColMTATax,
		ColTollsAmount,
		ColImprovementSurcharge,
		ColCongestionSurcharge,
		ColTripType,
		ColCBDCongestionFee,
		ColPickupHour,
		ColTripDurationMinutes,
	}

	CategoricalFeatures = []string{ColRatecodeID, ColPickupHour, ColTripType}

	DefaultTrainingMonths = []string{"01", "02", "03", "04"}
	DefaultTestingMonths  = []string{"05", "06"}
)

// NumericFeatures returns the features that are not categorical, in feature order
func NumericFeatures() []string {
	cat := make(map[string]bool, len(CategoricalFeatures))
	for _, c := range CategoricalFeatures {
		cat[c] = true
	}
	var out []string
	for _, f := range Features {
		if !cat[f] {
			out = append(out, f)
		}
	}
	return out
}

// ErrMalformedFileName is returned when a raw file name carries no month label
var ErrMalformedFileName = errors.New("filename format is incorrect")

// MonthLabel extracts the month label from a raw file name such as
// green_tripdata_2025-01.parquet: the second dash-separated segment, cut at the first dot.
func MonthLabel(path string) (string, error) {
	parts := strings.Split(filepath.Base(path), "-")
	if len(parts) < 2 {
		return "", errors.Wrapf(ErrMalformedFileName, "%s", filepath.Base(path))
	}
	return strings.SplitN(parts[1], ".", 2)[0], nil
}
