// Package toolfocus narrows the declared tools when the user's request plainly
// names one, e.g. "profile data/sales.csv" or "plot Sales by Date from x.csv".
package toolfocus

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"tableagent/internal/nlu"
	mw "tableagent/internal/middleware"
)

func init() {
	mw.Register(NewToolFocus())
}

// Intent names equal the tool names they select.
var defaultEngine = nlu.NewEngine().
	MustRegister("chart",
		"chart {y} against {x} in {file}",
		"chart {y} against {x} from {file}",
		"chart {y} by {x} in {file}",
		"chart {y} by {x} from {file}",
		"plot {y} against {x} in {file}",
		"plot {y} against {x} from {file}",
		"plot {y} by {x} in {file}",
		"plot {y} by {x} from {file}",
		"plot {y} over {x} in {file}",
		"plot {y} over {x} from {file}",
	).
	MustRegister("profile",
		"profile {file}",
		"describe {file}",
		"summarize {file}",
		"what columns are in {file}",
		"what is in {file}",
	)

type ToolFocus struct {
	engine *nlu.Engine
}

func NewToolFocus() *ToolFocus {
	return &ToolFocus{engine: defaultEngine}
}

func (t *ToolFocus) ID() string    { return "tool_focus" }
func (t *ToolFocus) Priority() int { return 100 }

func (t *ToolFocus) ShouldLoad(_ context.Context, e *mw.Event) bool {
	if e != nil && e.Context != nil {
		if v, ok := e.Context["tool_focus"].(bool); ok {
			return v
		}
	}
	return true
}

// OnEvent only acts on the first model call of a turn; later iterations see
// every tool again.
func (t *ToolFocus) OnEvent(_ context.Context, e *mw.Event) (mw.Decision, error) {
	if e == nil || e.Name != mw.EventBeforeModelCall || e.Iteration > 1 || e.Params == nil {
		return mw.Decision{}, nil
	}
	res := t.engine.Parse(e.UserText)
	if res.Intent == "" {
		return mw.Decision{}, nil
	}

	var focused []llms.Tool
	for _, tool := range e.Params.Tools {
		if tool.Function != nil && tool.Function.Name == res.Intent {
			focused = append(focused, tool)
		}
	}
	if len(focused) == 0 || len(focused) == len(e.Params.Tools) {
		return mw.Decision{}, nil
	}

	params := *e.Params
	params.Tools = focused
	return mw.Decision{OverrideParams: &params, Reason: "focus:" + res.Intent}, nil
}
