package models

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthLabel(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"green_tripdata_2025-01.parquet", "01"},
		{"/data/raw/green_tripdata_2025-12.parquet", "12"},
		{"green_tripdata_2025-03-extra.parquet", "03"},
		{"green_tripdata_2025-07", "07"},
	}
	for _, c := range cases {
		got, err := MonthLabel(c.name)
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestMonthLabelMalformed(t *testing.T) {
	_, err := MonthLabel("/data/raw/green_tripdata_202501.parquet")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedFileName))
}

func TestFilterQuery(t *testing.T) {
	q := FilterQuery("green_tripdata")
	assert.Contains(t, q, `FROM "green_tripdata"`)
	assert.Contains(t, q, `WHERE "payment_type" = $1 AND "fare_amount" > $2 AND "tip_amount" >= $3 AND "trip_distance" > $4 AND "total_amount" > $5`)
	assert.Contains(t, q, `"VendorID", "lpep_pickup_datetime"`)
	assert.Equal(t, []interface{}{1.0, 0.0, 0.0, 0.0, 0.0}, FilterArgs())
	assert.Len(t, FilteredColumns, 16)
	assert.Equal(t, 16, len(FilteredSchema().Fields()))
}

func validTrip() map[string]float64 {
	return map[string]float64{
		ColPaymentType:  1,
		ColFareAmount:   12.5,
		ColTipAmount:    0,
		ColTripDistance: 2.1,
		ColTotalAmount:  14,
	}
}

func TestKeepTrip(t *testing.T) {
	assert.True(t, KeepTrip(validTrip()), "zero tip is allowed")

	cases := map[string]func(map[string]float64){
		"card payment":      func(v map[string]float64) { v[ColPaymentType] = 2 },
		"zero fare":         func(v map[string]float64) { v[ColFareAmount] = 0 },
		"negative tip":      func(v map[string]float64) { v[ColTipAmount] = -0.5 },
		"zero distance":     func(v map[string]float64) { v[ColTripDistance] = 0 },
		"zero total":        func(v map[string]float64) { v[ColTotalAmount] = 0 },
		"negative total":    func(v map[string]float64) { v[ColTotalAmount] = -3 },
		"null payment type": func(v map[string]float64) { v[ColPaymentType] = math.NaN() },
		"missing fare":      func(v map[string]float64) { delete(v, ColFareAmount) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := validTrip()
			mutate(v)
			assert.False(t, KeepTrip(v))
		})
	}
}

func TestNumericFeatures(t *testing.T) {
	num := NumericFeatures()
	assert.Len(t, num, 9)
	assert.NotContains(t, num, ColRatecodeID)
	assert.NotContains(t, num, ColPickupHour)
	assert.NotContains(t, num, ColTripType)
	assert.Equal(t, ColPassengerCount, num[0])
	assert.Equal(t, ColTripDurationMinutes, num[len(num)-1])
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"RatecodeID"`, QuoteIdent("RatecodeID"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
