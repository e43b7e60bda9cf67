package regression

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// OneHotEncoder expands each column into one indicator per category seen at fit time.
// Categories are kept sorted. Values not seen at fit time encode as all zeros.
type OneHotEncoder struct {
	Categories [][]float64
}

// Fit collects the sorted distinct values of every column
func (e *OneHotEncoder) Fit(X mat.Matrix) {
	n, p := X.Dims()
	e.Categories = make([][]float64, p)
	for j := 0; j < p; j++ {
		seen := make(map[float64]bool)
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			if !seen[v] {
				seen[v] = true
				e.Categories[j] = append(e.Categories[j], v)
			}
		}
		sort.Float64s(e.Categories[j])
	}
}

// Width returns the number of output columns
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, c := range e.Categories {
		w += len(c)
	}
	return w
}

// Transform returns the indicator matrix for X
func (e *OneHotEncoder) Transform(X mat.Matrix) *mat.Dense {
	n, p := X.Dims()
	out := mat.NewDense(n, e.Width(), nil)
	offset := 0
	for j := 0; j < p; j++ {
		cats := e.Categories[j]
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			k := sort.SearchFloat64s(cats, v)
			if k < len(cats) && cats[k] == v {
				out.Set(i, offset+k, 1)
			}
		}
		offset += len(cats)
	}
	return out
}

// FeatureNames returns output column names such as RatecodeID_1
func (e *OneHotEncoder) FeatureNames(inputs []string) []string {
	var names []string
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, inputs[j]+"_"+strconv.FormatFloat(c, 'f', -1, 64))
		}
	}
	return names
}
