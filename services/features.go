package services

import (
	"fmt"
	"math"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/regression"
	"taxi-tip-pipeline/storage"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// FeatureFrame holds the training columns of the merged dataset: the raw features and
// target as read, plus the derived pickup hour, trip duration and pickup month.
type FeatureFrame struct {
	df     dataframe.DataFrame
	months []string
}

// NewFeatureFrame derives the training columns from tbl. A missing required column is an error.
func NewFeatureFrame(tbl arrow.Table) (*FeatureFrame, error) {
	pickups, pickupOK, err := storage.ColumnTimes(tbl, models.ColPickupDatetime)
	if err != nil {
		return nil, err
	}
	dropoffs, dropoffOK, err := storage.ColumnTimes(tbl, models.ColDropoffDatetime)
	if err != nil {
		return nil, err
	}

	n := len(pickups)
	hours := make([]float64, n)
	durations := make([]float64, n)
	months := make([]string, n)
	for i := 0; i < n; i++ {
		if !pickupOK[i] {
			hours[i], durations[i] = math.NaN(), math.NaN()
			continue
		}
		hours[i] = float64(pickups[i].Hour())
		months[i] = fmt.Sprintf("%02d", int(pickups[i].Month()))
		if dropoffOK[i] {
			durations[i] = dropoffs[i].Sub(pickups[i]).Seconds() / 60
		} else {
			durations[i] = math.NaN()
		}
	}

	cols := []series.Series{
		series.New(months, series.String, models.ColPickupMonth),
		series.New(hours, series.Float, models.ColPickupHour),
		series.New(durations, series.Float, models.ColTripDurationMinutes),
	}
	for _, name := range rawColumns() {
		vals, err := storage.ColumnFloats(tbl, name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, series.New(vals, series.Float, name))
	}

	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "building feature frame")
	}
	return &FeatureFrame{df: df, months: months}, nil
}

// rawColumns are the features read as is, followed by the target
func rawColumns() []string {
	derived := map[string]bool{models.ColPickupHour: true, models.ColTripDurationMinutes: true}
	var out []string
	for _, f := range models.Features {
		if !derived[f] {
			out = append(out, f)
		}
	}
	return append(out, models.Target)
}

// Nrow returns the number of trips in the frame
func (f *FeatureFrame) Nrow() int {
	return f.df.Nrow()
}

// Months selects the trips picked up in one of months, projected onto the features and
// the target. Rows with missing values are kept.
func (f *FeatureFrame) Months(months []string) (dataframe.DataFrame, error) {
	want := make(map[string]bool, len(months))
	for _, m := range months {
		want[m] = true
	}
	matched := 0
	for _, m := range f.months {
		if want[m] {
			matched++
		}
	}
	if matched == 0 {
		return dataframe.DataFrame{}, errors.Wrapf(ErrEmptySplit, "months %v", months)
	}

	sub := f.df.Filter(dataframe.F{
		Colname:    models.ColPickupMonth,
		Comparator: series.In,
		Comparando: months,
	})
	if sub.Err != nil {
		return sub, errors.Wrap(sub.Err, "filtering by month")
	}
	sub = sub.Select(append(append([]string(nil), models.Features...), models.Target))
	if sub.Err != nil {
		return sub, errors.Wrap(sub.Err, "selecting features")
	}
	return sub, nil
}

// toColumns converts a projected frame into regression input
func toColumns(df dataframe.DataFrame) (regression.Columns, []float64) {
	cols := make(regression.Columns, len(models.Features))
	for _, name := range models.Features {
		cols[name] = df.Col(name).Float()
	}
	return cols, df.Col(models.Target).Float()
}
