// Package datagen writes synthetic daily sales tables for trying the agent
// without real data.
package datagen

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultSeed keeps generated files identical between runs.
const DefaultSeed = 42

// Kinds accepted by Generate.
const (
	KindBusiness = "business"
	KindRegular  = "regular"
	KindAll      = "all"
)

// Dataset is one CSV file to be written.
type Dataset struct {
	Name   string
	Header []string
	Rows   [][]string
	// Values holds the sales column for summaries.
	Values []float64
}

var (
	start = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
)

func days() []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// weekday numbers Monday as 0.
func weekday(d time.Time) int { return (int(d.Weekday()) + 6) % 7 }

func quarter(d time.Time) int { return (int(d.Month())-1)/3 + 1 }

func daysInMonth(d time.Time) int {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

const dateLayout = "2006-01-02"

// Business returns a noisy series with trend, weekday, month-end, quarter and
// holiday effects, as (detailed, simple).
func Business(seed int64) (Dataset, Dataset) {
	rng := rand.New(rand.NewSource(seed))
	const base = 1000.0

	detailed := Dataset{
		Name:   "business_sales_detailed.csv",
		Header: []string{"Date", "Sales", "Day_of_Week", "Month", "Quarter"},
	}
	simple := Dataset{Name: "business_sales.csv", Header: []string{"Date", "Value"}}

	for _, d := range days() {
		elapsed := d.Sub(start).Hours() / 24
		trend := base * (1 + 0.15*elapsed/365)

		var dow float64
		switch wd := weekday(d); wd {
		case 5:
			dow = 0.7
		case 6:
			dow = 0.6
		default:
			dow = 1.0 + 0.1*float64(4-abs(wd-2)) // peak on Wednesday
		}

		month := 1.0
		switch {
		case d.Day() >= daysInMonth(d)-3:
			month = 1.3
		case d.Day() <= 5:
			month = 0.9
		}

		q := 1.0
		switch quarter(d) {
		case 4:
			q = 1.25
		case 1:
			q = 0.85
		}

		special := 1.0
		switch m, day := d.Month(), d.Day(); {
		case m == time.November && day >= 23 && day <= 25:
			special = 2.5
		case m == time.November && day >= 26 && day <= 28:
			special = 2.0
		case m == time.December && day >= 15 && day <= 24:
			special = 1.5
		case m == time.February && day >= 12 && day <= 14:
			special = 1.3
		}

		noise := 1.0 + 0.1*rng.NormFloat64()
		sales := math.RoundToEven(math.Max(0, trend*dow*month*q*special*noise))

		date := d.Format(dateLayout)
		v := strconv.Itoa(int(sales))
		detailed.Rows = append(detailed.Rows, []string{date, v, d.Weekday().String(), d.Month().String(), fmt.Sprintf("Q%d", quarter(d))})
		detailed.Values = append(detailed.Values, sales)
		simple.Rows = append(simple.Rows, []string{date, v})
		simple.Values = append(simple.Values, sales)
	}
	return detailed, simple
}

var weeklyPattern = [7]float64{1.0, 1.1, 1.2, 1.15, 1.05, 0.8, 0.7}

// Regular returns a smooth, predictable series rounded to tens, as
// (simple, detailed).
func Regular(seed int64) (Dataset, Dataset) {
	rng := rand.New(rand.NewSource(seed))
	const base = 1000.0

	simple := Dataset{Name: "regular_sales.csv", Header: []string{"Date", "Value"}}
	detailed := Dataset{
		Name:   "regular_sales_detailed.csv",
		Header: []string{"Date", "Value", "Day_of_Week", "Week_Number", "Month", "Quarter", "Is_Weekend"},
	}

	for _, d := range days() {
		elapsed := d.Sub(start).Hours() / 24
		trend := base + 200*elapsed/365
		wd := weekday(d)
		seasonal := 1.0 + 0.2*math.Sin(2*math.Pi*float64(d.YearDay())/365-math.Pi/2)
		noise := 1.0 + 0.02*rng.NormFloat64()

		value := math.Max(0, math.RoundToEven(trend*weeklyPattern[wd]*seasonal*noise/10)*10)

		date := d.Format(dateLayout)
		v := strconv.Itoa(int(value))
		_, week := d.ISOWeek()
		weekend := "False"
		if wd >= 5 {
			weekend = "True"
		}
		simple.Rows = append(simple.Rows, []string{date, v})
		simple.Values = append(simple.Values, value)
		detailed.Rows = append(detailed.Rows, []string{date, v, d.Weekday().String(), strconv.Itoa(week), d.Month().String(), fmt.Sprintf("Q%d", quarter(d)), weekend})
		detailed.Values = append(detailed.Values, value)
	}
	return simple, detailed
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Datasets returns the tables for kind.
func Datasets(kind string, seed int64) ([]Dataset, error) {
	switch kind {
	case KindBusiness:
		d, s := Business(seed)
		return []Dataset{d, s}, nil
	case KindRegular:
		s, d := Regular(seed)
		return []Dataset{s, d}, nil
	case KindAll, "":
		bd, bs := Business(seed)
		rs, rd := Regular(seed)
		return []Dataset{bd, bs, rs, rd}, nil
	}
	return nil, fmt.Errorf("unknown dataset kind %q (want business, regular or all)", kind)
}

// WriteCSV writes ds as CSV.
func (ds Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(ds.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Write stores each dataset under dir and returns the paths written.
func Write(dir string, sets ...Dataset) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(sets))
	for _, ds := range sets {
		path := filepath.Join(dir, ds.Name)
		f, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		err = ds.WriteCSV(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Summary prints date range and sales statistics for ds.
func (ds Dataset) Summary(w io.Writer) {
	if len(ds.Rows) == 0 {
		fmt.Fprintf(w, "%s: empty\n", ds.Name)
		return
	}
	fmt.Fprintf(w, "=== %s ===\n", ds.Name)
	fmt.Fprintf(w, "Date range: %s to %s\n", ds.Rows[0][0], ds.Rows[len(ds.Rows)-1][0])
	fmt.Fprintf(w, "Total days: %d\n", len(ds.Rows))
	fmt.Fprintf(w, "Average daily sales: $%.2f\n", stat.Mean(ds.Values, nil))
	fmt.Fprintf(w, "Min sales: $%.0f\n", floats.Min(ds.Values))
	fmt.Fprintf(w, "Max sales: $%.0f\n", floats.Max(ds.Values))
	fmt.Fprintf(w, "Standard deviation: $%.2f\n", stat.StdDev(ds.Values, nil))
	fmt.Fprintf(w, "Total annual sales: $%.0f\n", floats.Sum(ds.Values))
}
