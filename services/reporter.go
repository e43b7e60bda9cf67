package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/storage"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
)

const (
	reportWidth     = 55
	topCoefficients = 10
	nullValue       = "null"
)

// PrintMetricsReport formats and prints the evaluation report
func PrintMetricsReport(w io.Writer, report *models.EvaluationReport) {
	border := strings.Repeat("═", reportWidth)
	thin := strings.Repeat("─", reportWidth)

	fmt.Fprintf(w, "\n╔%s╗\n", border)
	fmt.Fprintf(w, "║%s║\n", center("TIP MODEL EVALUATION", reportWidth))
	fmt.Fprintf(w, "╚%s╝\n", border)

	fmt.Fprintf(w, "\n DATA\n%s\n", thin)
	fmt.Fprintf(w, "  Training months : %s\n", strings.Join(report.TrainMonths, ", "))
	fmt.Fprintf(w, "  Testing months  : %s\n", strings.Join(report.TestMonths, ", "))
	fmt.Fprintf(w, "  Training rows   : %d\n", report.TrainRows)
	fmt.Fprintf(w, "  Testing rows    : %d\n", report.TestRows)

	fmt.Fprintf(w, "\n METRICS\n%s\n", thin)
	fmt.Fprintf(w, "  Mean Squared Error (MSE): %.2f\n", report.MSE)
	fmt.Fprintf(w, "  Root Mean Squared Error (RMSE): %.2f\n", report.RMSE)
	fmt.Fprintf(w, "  R-squared (R2): %.2f\n", report.R2)

	if len(report.Coefficients) > 0 {
		type coef struct {
			name  string
			value float64
		}
		coefs := make([]coef, 0, len(report.Coefficients))
		for name, v := range report.Coefficients {
			coefs = append(coefs, coef{name, v})
		}
		// Sort by magnitude, then name for stable output
		sort.Slice(coefs, func(i, j int) bool {
			ai, aj := math.Abs(coefs[i].value), math.Abs(coefs[j].value)
			if ai != aj {
				return ai > aj
			}
			return coefs[i].name < coefs[j].name
		})
		n := topCoefficients
		if len(coefs) < n {
			n = len(coefs)
		}
		fmt.Fprintf(w, "\n TOP %d COEFFICIENTS\n%s\n", n, thin)
		for i, c := range coefs[:n] {
			fmt.Fprintf(w, "  %2d. %-30s %+.4f\n", i+1, truncate(c.name, 30), c.value)
		}
		fmt.Fprintf(w, "      %-30s %+.4f\n", "(intercept)", report.Intercept)
	}

	fmt.Fprintf(w, "\n%s\n", border)
}

// PrintPreview renders the first n rows of tbl as a table
func PrintPreview(w io.Writer, tbl arrow.Table, n int) {
	if n <= 0 {
		n = models.DefaultPreviewRow
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	// Keep column names as they are in the file
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, len(tbl.Schema().Fields()))
	for i, f := range tbl.Schema().Fields() {
		header[i] = f.Name
	}
	t.AppendHeader(header)

	tr := array.NewTableReader(tbl, int64(n))
	defer tr.Release()
	if tr.Next() {
		rec := tr.Record()
		for r := 0; r < int(rec.NumRows()); r++ {
			row := make(table.Row, rec.NumCols())
			for c := range row {
				row[c] = cellString(rec.Column(c), r)
			}
			t.AppendRow(row)
		}
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d rows", tbl.NumRows())})
	t.Render()
}

func cellString(arr arrow.Array, i int) string {
	if arr.DataType().ID() == arrow.NULL || arr.IsNull(i) {
		return nullValue
	}
	switch a := arr.(type) {
	case *array.Timestamp:
		return storage.TimestampToTime(a.Value(i), a.DataType().(*arrow.TimestampType).Unit).Format("2006-01-02 15:04:05")
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(i)), 10)
	case *array.Float64:
		return strconv.FormatFloat(a.Value(i), 'f', -1, 64)
	case *array.String:
		return a.Value(i)
	}
	return arr.DataType().String()
}

func center(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	pad := (width - len(runes)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-len(runes)-pad)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
