package middleware

import (
	"encoding/json"
	"io"
	"sync"
	"time"
	"unicode/utf8"
)

// JSONL appends one JSON object per line to w. Safe for concurrent use; a nil
// *JSONL discards everything.
type JSONL struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONL(w io.Writer) *JSONL {
	if w == nil {
		return nil
	}
	return &JSONL{w: w}
}

// Write marshals v and appends it. Marshal failures are dropped.
func (j *JSONL) Write(v any) {
	if j == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = j.w.Write(append(b, '\n'))
}

type dispatchEntry struct {
	Timestamp    string `json:"ts"`
	Kind         string `json:"kind"`
	Event        string `json:"event"`
	MiddlewareID string `json:"middleware"`
	Priority     int    `json:"priority"`
	Iteration    int    `json:"iteration,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Cancel       bool   `json:"cancel,omitempty"`
	Params       bool   `json:"override_params,omitempty"`

	InputChars  int  `json:"in_chars"`
	OutputChars int  `json:"out_chars"`
	Replaced    bool `json:"replaced,omitempty"`
}

func (j *JSONL) dispatch(e *Event, mw Middleware, skipped bool, inText, outText string, dec Decision) {
	if j == nil || e == nil {
		return
	}
	j.Write(dispatchEntry{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Kind:         "middleware",
		Event:        string(e.Name),
		MiddlewareID: mw.ID(),
		Priority:     mw.Priority(),
		Iteration:    e.Iteration,
		Skipped:      skipped,
		Reason:       dec.Reason,
		Cancel:       dec.Cancel,
		Params:       dec.OverrideParams != nil,
		InputChars:   utf8.RuneCountInString(inText),
		OutputChars:  utf8.RuneCountInString(outText),
		Replaced:     dec.ReplaceText != nil,
	})
}
