package chartnote

import (
	"context"
	"strings"
	"testing"

	mw "tableagent/internal/middleware"
)

func TestChartNoteAppends(t *testing.T) {
	dec, err := ChartNote{}.OnEvent(context.Background(), &mw.Event{
		Name:    mw.EventBeforeUserReply,
		LLMText: "Saved plot to outputs/sales.png",
	})
	if err != nil {
		t.Fatal(err)
	}
	if dec.ReplaceText == nil || !strings.HasSuffix(*dec.ReplaceText, Note) {
		t.Fatalf("expected note appended, got %+v", dec)
	}
}

func TestChartNoteIgnoresPlainReplies(t *testing.T) {
	for _, text := range []string{"The mean revenue is 1200.", "Saved plot.png\n\n" + Note} {
		dec, _ := ChartNote{}.OnEvent(context.Background(), &mw.Event{Name: mw.EventBeforeUserReply, LLMText: text})
		if dec.ReplaceText != nil {
			t.Fatalf("%q: expected no change", text)
		}
	}
}
