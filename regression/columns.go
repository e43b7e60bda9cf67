package regression

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Columns holds named feature columns of equal length
type Columns map[string][]float64

// Rows returns the shared column length, or an error if lengths differ
func (c Columns) Rows() (int, error) {
	n := -1
	for name, col := range c {
		if n == -1 {
			n = len(col)
			continue
		}
		if len(col) != n {
			return 0, errors.Errorf("column %q has %d rows, expected %d", name, len(col), n)
		}
	}
	if n == -1 {
		return 0, nil
	}
	return n, nil
}

// matrix stacks the named columns into an n×len(names) matrix
func (c Columns) matrix(names []string) (*mat.Dense, error) {
	n, err := c.Rows()
	if err != nil {
		return nil, err
	}
	if n == 0 || len(names) == 0 {
		return nil, errors.New("no rows to transform")
	}
	m := mat.NewDense(n, len(names), nil)
	for j, name := range names {
		col, ok := c[name]
		if !ok {
			return nil, errors.Errorf("column %q not found", name)
		}
		m.SetCol(j, col)
	}
	return m, nil
}
