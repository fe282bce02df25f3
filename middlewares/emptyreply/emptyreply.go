// Package emptyreply substitutes a fallback for blank final answers.
package emptyreply

import (
	"context"
	"strings"

	mw "tableagent/internal/middleware"
)

func init() {
	mw.Register(EmptyReply{})
}

const Fallback = "I processed your request but couldn't generate a response."

type EmptyReply struct{}

func (EmptyReply) ID() string    { return "empty_reply" }
func (EmptyReply) Priority() int { return 100 }

func (EmptyReply) OnEvent(_ context.Context, e *mw.Event) (mw.Decision, error) {
	if e == nil || e.Name != mw.EventBeforeUserReply || strings.TrimSpace(e.LLMText) != "" {
		return mw.Decision{}, nil
	}
	s := Fallback
	return mw.Decision{ReplaceText: &s, Reason: "empty model reply"}, nil
}
