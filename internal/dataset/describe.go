package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"
)

// ColumnSummary holds describe statistics for one column. Numeric columns fill
// the moment and quantile fields; others fill Unique/Top/Freq.
type ColumnSummary struct {
	Name    string
	Count   int
	Numeric bool

	Unique int
	Top    string
	Freq   int

	Mean, Std, Min, Q25, Q50, Q75, Max float64
}

// Summary describes a whole table.
type Summary struct {
	Rows    int
	Columns []ColumnSummary
}

// Describe computes per-column statistics. Empty cells are not counted.
func Describe(t *Table) Summary {
	s := Summary{Rows: len(t.Rows)}
	for i, name := range t.Columns {
		values := make([]string, 0, len(t.Rows))
		for _, r := range t.Rows {
			if v := strings.TrimSpace(r[i]); v != "" {
				values = append(values, v)
			}
		}
		s.Columns = append(s.Columns, describeColumn(name, values))
	}
	return s
}

func describeColumn(name string, values []string) ColumnSummary {
	cs := ColumnSummary{Name: name, Count: len(values)}
	if nums, ok := Floats(values); ok {
		cs.Numeric = true
		sort.Float64s(nums)
		cs.Mean = stat.Mean(nums, nil)
		cs.Std = math.NaN()
		if len(nums) > 1 {
			cs.Std = stat.StdDev(nums, nil)
		}
		cs.Min = nums[0]
		cs.Max = nums[len(nums)-1]
		cs.Q25 = quantile(nums, 0.25)
		cs.Q50 = quantile(nums, 0.50)
		cs.Q75 = quantile(nums, 0.75)
		return cs
	}

	freq := make(map[string]int, len(values))
	for _, v := range values {
		freq[v]++
	}
	cs.Unique = len(freq)
	for _, v := range values {
		if n := freq[v]; n > cs.Freq {
			cs.Top, cs.Freq = v, n
		}
	}
	return cs
}

// quantile uses linear interpolation between closest ranks on sorted input.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

var statRows = []string{"count", "unique", "top", "freq", "mean", "std", "min", "25%", "50%", "75%", "max"}

// String renders the summary as an aligned text table, one column per input
// column and one row per statistic.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows: %d, columns: %d\n", s.Rows, len(s.Columns))
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{""}
	for _, c := range s.Columns {
		header = append(header, c.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, row := range statRows {
		cells := []string{row}
		for _, c := range s.Columns {
			cells = append(cells, c.cell(row))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	_ = tw.Flush()
	return b.String()
}

func (c ColumnSummary) cell(row string) string {
	if row == "count" {
		return strconv.Itoa(c.Count)
	}
	if c.Numeric {
		switch row {
		case "mean":
			return formatFloat(c.Mean)
		case "std":
			return formatFloat(c.Std)
		case "min":
			return formatFloat(c.Min)
		case "25%":
			return formatFloat(c.Q25)
		case "50%":
			return formatFloat(c.Q50)
		case "75%":
			return formatFloat(c.Q75)
		case "max":
			return formatFloat(c.Max)
		}
		return "NaN"
	}
	switch row {
	case "unique":
		return strconv.Itoa(c.Unique)
	case "top":
		return c.Top
	case "freq":
		return strconv.Itoa(c.Freq)
	}
	return "NaN"
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}
