package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"tableagent/internal/dataset"
)

// Chart renders one column against another as a PNG line plot.
type Chart struct {
	DataDir   string
	OutputDir string
}

func (c *Chart) Name() string { return "chart" }
func (c *Chart) Description() string {
	return "Draws a line chart of column y against column x from a CSV/TSV file " +
		"and saves it as a PNG in the outputs folder. Returns the saved path."
}
func (c *Chart) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file": map[string]any{
				"type":        "string",
				"description": "Path to the data file.",
			},
			"x": map[string]any{
				"type":        "string",
				"description": "Column for the horizontal axis (numbers or dates).",
			},
			"y": map[string]any{
				"type":        "string",
				"description": "Numeric column for the vertical axis.",
			},
			"out": map[string]any{
				"type":        "string",
				"description": "PNG file name inside the outputs folder (default plot.png). Only .png or no extension is accepted.",
			},
		},
		"required": []string{"file", "x", "y"},
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"2006-01",
}

func (c *Chart) Execute(ctx context.Context, args map[string]any) (string, error) {
	file, xCol, yCol := stringArg(args, "file"), stringArg(args, "x"), stringArg(args, "y")
	if file == "" || xCol == "" || yCol == "" {
		return "", fmt.Errorf("file, x and y are required")
	}
	path, err := resolveInput(file, c.DataDir)
	if err != nil {
		return "", err
	}
	tbl, err := dataset.Load(ctx, path)
	if err != nil {
		return "", err
	}
	xi, yi := tbl.Index(xCol), tbl.Index(yCol)
	if xi < 0 {
		return "", fmt.Errorf("%w: %q (have %s)", ErrColumnNotFound, xCol, strings.Join(tbl.Columns, ", "))
	}
	if yi < 0 {
		return "", fmt.Errorf("%w: %q (have %s)", ErrColumnNotFound, yCol, strings.Join(tbl.Columns, ", "))
	}

	pts, isTime, err := series(ctx, tbl, xi, yi)
	if err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s by %s", yCol, xCol)
	p.X.Label.Text = xCol
	p.Y.Label.Text = yCol
	if isTime {
		p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	p.Add(plotter.NewGrid(), line)

	out, err := resolveOutput(c.OutputDir, stringArg(args, "out"))
	if err != nil {
		return "", err
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	return "Saved plot to " + out, nil
}

// series pairs the x and y columns. Rows missing either value are skipped so
// the remaining x labels keep their own positions.
func series(ctx context.Context, tbl *dataset.Table, xi, yi int) (plotter.XYs, bool, error) {
	xCol, yCol := tbl.Columns[xi], tbl.Columns[yi]
	var xs []string
	var ys []float64
	for i, row := range tbl.Rows {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		x, raw := strings.TrimSpace(row[xi]), strings.TrimSpace(row[yi])
		if x == "" || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%w: column %q row %d: %q is not numeric", ErrParse, yCol, i+1, raw)
		}
		xs = append(xs, x)
		ys = append(ys, v)
	}
	if len(ys) == 0 {
		return nil, false, fmt.Errorf("%w: no rows with both %q and %q", ErrParse, xCol, yCol)
	}

	xv, isTime := xValues(xs)
	pts := make(plotter.XYs, len(ys))
	for i := range ys {
		pts[i].X, pts[i].Y = xv[i], ys[i]
	}
	return pts, isTime, nil
}

// xValues maps non-blank x labels to plot coordinates: numbers as-is, dates
// as unix seconds, anything else by row position.
func xValues(xs []string) ([]float64, bool) {
	if nums, ok := dataset.Floats(xs); ok && len(nums) == len(xs) {
		return nums, false
	}
	if times, ok := parseTimes(xs); ok {
		return times, true
	}
	out := make([]float64, len(xs))
	for i := range xs {
		out[i] = float64(i)
	}
	return out, false
}

func parseTimes(xs []string) ([]float64, bool) {
	for _, layout := range dateLayouts {
		out := make([]float64, len(xs))
		ok := true
		for i, s := range xs {
			t, err := time.Parse(layout, s)
			if err != nil {
				ok = false
				break
			}
			out[i] = float64(t.Unix())
		}
		if ok {
			return out, true
		}
	}
	return nil, false
}
