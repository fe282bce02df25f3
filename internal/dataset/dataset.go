// Package dataset loads delimited tabular files and summarizes their columns.
package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when the input file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrParse is returned for malformed or empty tables.
	ErrParse = errors.New("parse error")
)

// Table is a fully loaded delimited file. Rows are padded to the header width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Load reads path, sniffing the delimiter. ctx is checked between rows.
func Load(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	delim := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		delim = '\t'
	} else {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(string(head))
	}
	return read(ctx, br, delim)
}

// Parse reads a table from r using the given delimiter.
func Parse(ctx context.Context, r io.Reader, delim rune) (*Table, error) {
	return read(ctx, r, delim)
}

func read(ctx context.Context, r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	t := &Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if len(rec) > len(t.Columns) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d", ErrParse, line, len(rec), len(t.Columns))
		}
		row := make([]string, len(t.Columns))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// sniffDelimiter picks the candidate that splits the header line into the
// most fields.
func sniffDelimiter(head string) rune {
	line := head
	if i := strings.IndexAny(head, "\r\n"); i >= 0 {
		line = head[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the raw values of a column.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, true
}

// Floats parses every non-empty value of values. ok is false when any value is
// not a number or when there are no values at all.
func Floats(values []string) (nums []float64, ok bool) {
	nums = make([]float64, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		nums = append(nums, f)
	}
	return nums, len(nums) > 0
}
