package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableagent/internal/dataset"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const fiveDays = "Date,Value\n2024-01-01,3\n2024-01-02,5\n2024-01-03,4\n2024-01-04,8\n2024-01-05,7\n"

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(&Profile{}, &Profile{})
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegistryListSorted(t *testing.T) {
	r := Default("data", "outputs")
	assert.Equal(t, []string{"chart", "profile"}, r.Names())

	decls := r.LLMTools()
	require.Len(t, decls, 2)
	assert.Equal(t, "chart", decls[0].Function.Name)
	assert.Equal(t, "function", decls[0].Type)

	oa := r.OpenAITools()
	require.Len(t, oa, 2)
	assert.Equal(t, "profile", oa[1].OfFunction.Function.Name)
}

func TestRegistryValidatesArguments(t *testing.T) {
	r := Default(t.TempDir(), t.TempDir())

	_, err := r.Execute(context.Background(), "profile", map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = r.Execute(context.Background(), "profile", map[string]any{"file": 42.0})
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = r.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestValidateTypes(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"n":    map[string]any{"type": "integer"},
			"flag": map[string]any{"type": "boolean"},
		},
		"required": []any{"n"},
	}
	assert.NoError(t, Validate(map[string]any{"n": 3.0, "extra": "x"}, schema))
	assert.Error(t, Validate(map[string]any{"n": 3.5}, schema))
	assert.Error(t, Validate(map[string]any{"n": 1.0, "flag": "yes"}, schema))
	assert.Error(t, Validate(nil, schema))
}

func TestProfileCountsRows(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "small.csv", "a,b\n1,x\n2,y\n3,x\n")

	out, err := (&Profile{}).Execute(context.Background(), map[string]any{"file": path})
	require.NoError(t, err)
	assert.Contains(t, out, "rows: 3")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "count") {
			assert.Equal(t, []string{"count", "3", "3"}, strings.Fields(line))
		}
	}
}

func TestProfileFallsBackToDataDir(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", "v\n1\n")
	out, err := (&Profile{DataDir: dir}).Execute(context.Background(), map[string]any{"file": "sales.csv"})
	require.NoError(t, err)
	assert.Contains(t, out, "rows: 1")
}

func TestProfileMissingFile(t *testing.T) {
	_, err := (&Profile{}).Execute(context.Background(), map[string]any{"file": filepath.Join(t.TempDir(), "none.csv")})
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestChartWritesPNG(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "outputs")
	path := writeCSV(t, dir, "series.csv", fiveDays)

	c := &Chart{OutputDir: outDir}
	res, err := c.Execute(context.Background(), map[string]any{"file": path, "x": "Date", "y": "Value"})
	require.NoError(t, err)

	want := filepath.Join(outDir, "plot.png")
	assert.Equal(t, "Saved plot to "+want, res)
	info, err := os.Stat(want)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestChartCustomOutName(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "series.csv", "x,y\n1,2\n2,4\n")
	res, err := (&Chart{OutputDir: dir}).Execute(context.Background(), map[string]any{"file": path, "x": "x", "y": "y", "out": "trend"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res, "trend.png"))
}

func TestChartRejectsNonPNGOut(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "series.csv", "x,y\n1,2\n2,4\n")
	_, err := (&Chart{OutputDir: dir}).Execute(context.Background(), map[string]any{"file": path, "x": "x", "y": "y", "out": "chart.jpg"})
	assert.ErrorIs(t, err, ErrIO)
	_, statErr := os.Stat(filepath.Join(dir, "chart.png"))
	assert.True(t, os.IsNotExist(statErr), "no png should be written for a rejected name")

	res, err := (&Chart{OutputDir: dir}).Execute(context.Background(), map[string]any{"file": path, "x": "x", "y": "y", "out": "Trend.PNG"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res, "Trend.PNG"))
}

func TestSeriesSkipsBlankX(t *testing.T) {
	tbl := &dataset.Table{
		Columns: []string{"x", "y"},
		Rows:    [][]string{{"1", "5"}, {"", "6"}, {"10", "7"}, {"12", ""}},
	}
	pts, isTime, err := series(context.Background(), tbl, 0, 1)
	require.NoError(t, err)
	assert.False(t, isTime)
	require.Len(t, pts, 2)
	assert.Equal(t, [2]float64{1, 5}, [2]float64{pts[0].X, pts[0].Y})
	assert.Equal(t, [2]float64{10, 7}, [2]float64{pts[1].X, pts[1].Y})
}

func TestSeriesKeepsDateAxisWithBlankX(t *testing.T) {
	tbl := &dataset.Table{
		Columns: []string{"Date", "Value"},
		Rows:    [][]string{{"2024-01-01", "3"}, {" ", "4"}, {"2024-01-03", "8"}},
	}
	pts, isTime, err := series(context.Background(), tbl, 0, 1)
	require.NoError(t, err)
	assert.True(t, isTime)
	require.Len(t, pts, 2)
	assert.Equal(t, float64(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC).Unix()), pts[1].X)
}

func TestSeriesNeedsCompleteRow(t *testing.T) {
	tbl := &dataset.Table{
		Columns: []string{"x", "y"},
		Rows:    [][]string{{"", "1"}, {"2", ""}},
	}
	_, _, err := series(context.Background(), tbl, 0, 1)
	assert.ErrorIs(t, err, ErrParse)
}

func TestChartErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "series.csv", fiveDays)
	bad := writeCSV(t, dir, "bad.csv", "Date,Value\n2024-01-01,abc\n")
	c := &Chart{OutputDir: dir}
	ctx := context.Background()

	_, err := c.Execute(ctx, map[string]any{"file": path, "x": "Day", "y": "Value"})
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, err = c.Execute(ctx, map[string]any{"file": bad, "x": "Date", "y": "Value"})
	assert.ErrorIs(t, err, ErrParse)

	_, err = c.Execute(ctx, map[string]any{"file": filepath.Join(dir, "gone.csv"), "x": "Date", "y": "Value"})
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = c.Execute(ctx, map[string]any{"file": path, "x": "Date", "y": "Value", "out": "../escape.png"})
	assert.ErrorIs(t, err, ErrIO)
}

func TestChartHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "series.csv", fiveDays)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Chart{OutputDir: dir}).Execute(ctx, map[string]any{"file": path, "x": "Date", "y": "Value"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestXValues(t *testing.T) {
	v, isTime := xValues([]string{"1", "2.5"})
	assert.False(t, isTime)
	assert.Equal(t, []float64{1, 2.5}, v)

	_, isTime = xValues([]string{"2024-01-01", "2024-02-01"})
	assert.True(t, isTime)

	v, isTime = xValues([]string{"Mon", "Tue"})
	assert.False(t, isTime)
	assert.Equal(t, []float64{0, 1}, v)
}
