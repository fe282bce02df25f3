package datagen

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableagent/internal/dataset"
)

func value(t *testing.T, ds Dataset, date string) float64 {
	t.Helper()
	for _, r := range ds.Rows {
		if r[0] == date {
			v, err := strconv.ParseFloat(r[1], 64)
			require.NoError(t, err)
			return v
		}
	}
	t.Fatalf("%s not in %s", date, ds.Name)
	return 0
}

func TestBusinessShape(t *testing.T) {
	detailed, simple := Business(DefaultSeed)
	require.Len(t, detailed.Rows, 366, "2024 is a leap year")
	require.Len(t, simple.Rows, 366)
	assert.Equal(t, []string{"Date", "Sales", "Day_of_Week", "Month", "Quarter"}, detailed.Header)
	assert.Equal(t, []string{"2024-01-01", detailed.Rows[0][1], "Monday", "January", "Q1"}, detailed.Rows[0])
	assert.Equal(t, "2024-12-31", simple.Rows[365][0])
	assert.Equal(t, detailed.Rows[100][1], simple.Rows[100][1])

	// Black Friday week dwarfs an ordinary November Tuesday.
	assert.Greater(t, value(t, simple, "2024-11-25"), 1.5*value(t, simple, "2024-11-12"))
}

func TestGeneratorsAreDeterministic(t *testing.T) {
	a, _ := Business(DefaultSeed)
	b, _ := Business(DefaultSeed)
	c, _ := Business(7)
	assert.Equal(t, a.Rows, b.Rows)
	assert.NotEqual(t, a.Rows, c.Rows)

	r1, _ := Regular(DefaultSeed)
	r2, _ := Regular(DefaultSeed)
	assert.Equal(t, r1.Rows, r2.Rows)
}

func TestRegularPattern(t *testing.T) {
	simple, detailed := Regular(DefaultSeed)
	require.Len(t, simple.Rows, 366)
	assert.Len(t, detailed.Header, 7)

	var weekday, weekend []float64
	for i, r := range detailed.Rows {
		v := simple.Values[i]
		assert.Zero(t, int(v)%10, "values are rounded to tens")
		if r[6] == "True" {
			weekend = append(weekend, v)
		} else {
			weekday = append(weekday, v)
		}
	}
	assert.Len(t, weekend, 104)
	assert.Greater(t, avg(weekday), avg(weekend))

	// Summer peak over winter low.
	assert.Greater(t, value(t, simple, "2024-07-03"), value(t, simple, "2024-01-03"))
	assert.Equal(t, "1", detailed.Rows[0][3], "ISO week of 2024-01-01")
}

func avg(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func TestDatasets(t *testing.T) {
	all, err := Datasets(KindAll, DefaultSeed)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, ds := range all {
		names[i] = ds.Name
	}
	assert.Equal(t, []string{"business_sales_detailed.csv", "business_sales.csv", "regular_sales.csv", "regular_sales_detailed.csv"}, names)

	_, err = Datasets("weather", DefaultSeed)
	assert.Error(t, err)
}

func TestWriteReadsBack(t *testing.T) {
	dir := t.TempDir()
	sets, err := Datasets(KindRegular, DefaultSeed)
	require.NoError(t, err)

	paths, err := Write(dir, sets...)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	table, err := dataset.Load(context.Background(), paths[1])
	require.NoError(t, err)
	assert.Equal(t, sets[1].Header, table.Columns)
	assert.Len(t, table.Rows, 366)

	summary := dataset.Describe(table)
	assert.Equal(t, 366, summary.Rows)
}

func TestSummary(t *testing.T) {
	simple, _ := Regular(DefaultSeed)
	var buf bytes.Buffer
	simple.Summary(&buf)
	out := buf.String()
	assert.Contains(t, out, "Date range: 2024-01-01 to 2024-12-31")
	assert.Contains(t, out, "Total days: 366")
	assert.Contains(t, out, "Standard deviation")
}
