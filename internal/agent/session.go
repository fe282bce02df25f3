package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tableagent/internal/chat"
	"tableagent/internal/middleware"
)

// DefaultSystemPrompt is sent at the start of every conversation unless
// replaced with WithSystemPrompt.
const DefaultSystemPrompt = "You are a data analysis assistant. Use the profile tool to inspect CSV files " +
	"and the chart tool to plot one column against another. Call profile before charting " +
	"so you use real column names. Answer concisely."

// Session is one conversation: its own client, tools, middleware and
// history. Calls are serialized; nothing is shared with other sessions.
type Session struct {
	id     string
	loop   *Loop
	chain  *middleware.Chain
	system string
	evctx  map[string]any

	mu      sync.Mutex
	history []chat.Message
}

type SessionOption func(*Session)

func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithSystemPrompt replaces the default system message. Empty disables it.
func WithSystemPrompt(p string) SessionOption {
	return func(s *Session) { s.system = p }
}

// WithReplyChain sets the chain that sees before_user_reply.
func WithReplyChain(chain *middleware.Chain) SessionOption {
	return func(s *Session) { s.chain = chain }
}

// WithReplyContext is passed to before_user_reply middleware.
func WithReplyContext(m map[string]any) SessionOption {
	return func(s *Session) { s.evctx = m }
}

func NewSession(loop *Loop, opts ...SessionOption) *Session {
	s := &Session{
		id:     uuid.NewString(),
		loop:   loop,
		system: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Send runs one turn. History is committed only when the turn succeeds.
func (s *Session) Send(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := make([]chat.Message, 0, len(s.history)+2)
	if len(s.history) == 0 && s.system != "" {
		start = append(start, chat.Message{Role: chat.RoleSystem, Content: s.system})
	}
	start = append(start, s.history...)
	start = append(start, chat.Message{Role: chat.RoleUser, Content: input})

	out, err := s.loop.Run(ctx, start)
	if err != nil {
		return "", err
	}
	reply, _ := chat.LastAssistant(out)

	e := &middleware.Event{
		Name:     middleware.EventBeforeUserReply,
		UserText: input,
		LLMText:  reply,
		Context:  s.evctx,
	}
	if _, err := s.chain.Dispatch(ctx, e); err != nil {
		return "", fmt.Errorf("middleware %s: %w", e.Name, err)
	}

	s.history = out
	return strings.TrimSpace(e.LLMText), nil
}

// Clear forgets the conversation.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// History returns a copy of the committed conversation.
func (s *Session) History() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.CloneHistory(s.history)
}
