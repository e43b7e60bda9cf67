package regression

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ColumnTransformer scales the numeric columns and one-hot encodes the categorical
// ones. Output columns are the numeric block followed by the categorical block.
type ColumnTransformer struct {
	Numeric     []string
	Categorical []string
	Scaler      StandardScaler
	Encoder     OneHotEncoder
}

// Fit learns scaler and encoder state from cols
func (t *ColumnTransformer) Fit(cols Columns) error {
	if len(t.Numeric) > 0 {
		num, err := cols.matrix(t.Numeric)
		if err != nil {
			return errors.Wrap(err, "numeric features")
		}
		t.Scaler.Fit(num)
	}
	if len(t.Categorical) > 0 {
		cat, err := cols.matrix(t.Categorical)
		if err != nil {
			return errors.Wrap(err, "categorical features")
		}
		t.Encoder.Fit(cat)
	}
	return nil
}

// Transform produces the design matrix for cols
func (t *ColumnTransformer) Transform(cols Columns) (*mat.Dense, error) {
	var blocks []*mat.Dense
	if len(t.Numeric) > 0 {
		num, err := cols.matrix(t.Numeric)
		if err != nil {
			return nil, errors.Wrap(err, "numeric features")
		}
		blocks = append(blocks, t.Scaler.Transform(num))
	}
	if len(t.Categorical) > 0 {
		cat, err := cols.matrix(t.Categorical)
		if err != nil {
			return nil, errors.Wrap(err, "categorical features")
		}
		blocks = append(blocks, t.Encoder.Transform(cat))
	}
	if len(blocks) == 0 {
		return nil, errors.New("transformer has no columns")
	}
	if len(blocks) == 1 {
		return blocks[0], nil
	}
	var out mat.Dense
	out.Augment(blocks[0], blocks[1])
	return &out, nil
}

// FeatureNames returns the names of the transformed columns
func (t *ColumnTransformer) FeatureNames() []string {
	names := append([]string(nil), t.Numeric...)
	return append(names, t.Encoder.FeatureNames(t.Categorical)...)
}
