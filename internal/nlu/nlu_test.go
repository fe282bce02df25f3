package nlu

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	e := NewEngine()
	e.MustRegister("chart",
		"chart {y} against {x} in {file}",
		"plot {y} by {x} from {file}",
	)
	e.MustRegister("profile",
		"profile {file}",
		"what columns are in {file}",
	)

	tests := []struct {
		input          string
		expectedIntent string
		expectedSlots  map[string]string
	}{
		{
			input:          "chart Sales against Date in data/sales.csv",
			expectedIntent: "chart",
			expectedSlots:  map[string]string{"y": "Sales", "x": "Date", "file": "data/sales.csv"},
		},
		{
			input:          "Plot  revenue by month from 'q1.csv'.",
			expectedIntent: "chart",
			expectedSlots:  map[string]string{"y": "revenue", "x": "month", "file": "q1.csv"},
		},
		{
			input:          "profile data/regular_sales.csv",
			expectedIntent: "profile",
			expectedSlots:  map[string]string{"file": "data/regular_sales.csv"},
		},
		{
			input:          "What columns are in sales.csv?",
			expectedIntent: "profile",
			expectedSlots:  map[string]string{"file": "sales.csv"},
		},
		{
			input:          "which month sold the most",
			expectedIntent: "",
		},
		{
			input:          "   ",
			expectedIntent: "",
		},
	}

	for _, tt := range tests {
		result := e.Parse(tt.input)
		if result.Intent != tt.expectedIntent {
			t.Errorf("Parse(%q): expected intent %q, got %q", tt.input, tt.expectedIntent, result.Intent)
		}
		if tt.expectedSlots != nil && !reflect.DeepEqual(result.Slots, tt.expectedSlots) {
			t.Errorf("Parse(%q): expected slots %v, got %v", tt.input, tt.expectedSlots, result.Slots)
		}
	}
}

func TestRegisterIntentRejectsBadTemplates(t *testing.T) {
	e := NewEngine()
	for _, u := range []string{"plot {y by x", "chart {} now", ""} {
		if err := e.RegisterIntent("bad", u); err == nil {
			t.Errorf("RegisterIntent(%q): expected error", u)
		}
	}
	if got := e.Parse("plot y by x"); got.Intent != "" {
		t.Fatalf("failed registration left a matcher behind: %+v", got)
	}
}
