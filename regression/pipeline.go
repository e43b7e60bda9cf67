package regression

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Pipeline chains the column transformer and the regressor
type Pipeline struct {
	Features     []string
	Preprocessor ColumnTransformer
	Regressor    LinearRegression
}

// NewPipeline creates an unfitted pipeline over the given feature columns
func NewPipeline(numeric, categorical []string) *Pipeline {
	features := append(append([]string(nil), numeric...), categorical...)
	return &Pipeline{
		Features: features,
		Preprocessor: ColumnTransformer{
			Numeric:     numeric,
			Categorical: categorical,
		},
	}
}

// Fit fits the transformer on cols, then the regressor on the transformed matrix
func (p *Pipeline) Fit(cols Columns, y []float64) error {
	if err := p.Preprocessor.Fit(cols); err != nil {
		return errors.Wrap(err, "fitting preprocessor")
	}
	X, err := p.Preprocessor.Transform(cols)
	if err != nil {
		return errors.Wrap(err, "transforming training data")
	}
	if err := p.Regressor.Fit(X, y); err != nil {
		return errors.Wrap(err, "fitting regressor")
	}
	return nil
}

// Predict transforms cols and applies the regressor
func (p *Pipeline) Predict(cols Columns) ([]float64, error) {
	X, err := p.Preprocessor.Transform(cols)
	if err != nil {
		return nil, errors.Wrap(err, "transforming input")
	}
	return p.Regressor.Predict(X)
}

// Coefficients maps each transformed feature name to its weight
func (p *Pipeline) Coefficients() map[string]float64 {
	names := p.Preprocessor.FeatureNames()
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(p.Regressor.Coef) {
			out[name] = p.Regressor.Coef[i]
		}
	}
	return out
}

// Save gob-encodes the pipeline to path, creating parent directories
func (p *Pipeline) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create model directory")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	if err := gob.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "gob encoding pipeline")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "moving model into place")
	}
	return nil
}

// Load decodes a pipeline written by Save
func Load(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p Pipeline
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return &p, nil
}
