// Package chartnote tells the user where generated charts went.
package chartnote

import (
	"context"
	"regexp"
	"strings"

	mw "tableagent/internal/middleware"
)

func init() {
	mw.Register(ChartNote{})
}

const Note = "📊 Chart saved to outputs folder."

var imageRef = regexp.MustCompile(`(?i)\.(png|jpe?g)\b`)

// ChartNote appends Note to replies that mention an image or the outputs
// folder.
type ChartNote struct{}

func (ChartNote) ID() string    { return "chart_note" }
func (ChartNote) Priority() int { return 10 }

func (ChartNote) OnEvent(_ context.Context, e *mw.Event) (mw.Decision, error) {
	if e == nil || e.Name != mw.EventBeforeUserReply {
		return mw.Decision{}, nil
	}
	text := e.LLMText
	if strings.Contains(text, Note) {
		return mw.Decision{}, nil
	}
	if !imageRef.MatchString(text) && !strings.Contains(text, "outputs") {
		return mw.Decision{}, nil
	}
	out := text + "\n\n" + Note
	return mw.Decision{ReplaceText: &out, Reason: "chart_note"}, nil
}
