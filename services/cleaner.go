package services

import (
	"taxi-tip-pipeline/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

// ErrNoCompleteRows is returned when every row has a missing value
var ErrNoCompleteRows = errors.New("no complete rows")

// DataCleaner drops incomplete trips before fitting
type DataCleaner struct {
	logger *utils.Logger
}

// NewDataCleaner creates a new DataCleaner
func NewDataCleaner(logger *utils.Logger) *DataCleaner {
	return &DataCleaner{logger: logger}
}

// CompleteRows returns the indexes of rows with no NaN in any float column
func (c *DataCleaner) CompleteRows(df dataframe.DataFrame) []int {
	missing := make([]bool, df.Nrow())
	for _, name := range df.Names() {
		for i, nan := range df.Col(name).IsNaN() {
			if nan {
				missing[i] = true
			}
		}
	}
	keep := make([]int, 0, len(missing))
	for i, m := range missing {
		if !m {
			keep = append(keep, i)
		}
	}
	return keep
}

// DropIncomplete removes every row with a missing value
func (c *DataCleaner) DropIncomplete(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	keep := c.CompleteRows(df)
	if len(keep) == 0 {
		return df, errors.Wrapf(ErrNoCompleteRows, "all %d rows have missing values", df.Nrow())
	}
	if len(keep) == df.Nrow() {
		return df, nil
	}

	c.logger.Debug("Dropped %d rows with missing values out of %d", df.Nrow()-len(keep), df.Nrow())
	out := df.Subset(keep)
	if out.Err != nil {
		return out, errors.Wrap(out.Err, "dropping incomplete rows")
	}
	return out, nil
}
