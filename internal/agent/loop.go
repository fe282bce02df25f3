// Package agent runs the model/tool loop for one conversation turn.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"

	"tableagent/internal/chat"
	"tableagent/internal/middleware"
	"tableagent/internal/tools"
)

const (
	DefaultMaxIterations = 10
	DefaultModelTimeout  = 120 * time.Second
	DefaultToolTimeout   = 60 * time.Second
	// DefaultToolDrain is how long a timed-out tool gets to return after its
	// context is canceled.
	DefaultToolDrain     = 2 * time.Second
)

type State int

const (
	AwaitingModel State = iota
	AwaitingTools
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingModel:
		return "awaiting_model"
	case AwaitingTools:
		return "awaiting_tools"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Toolbox is what the loop needs from a tool registry.
type Toolbox interface {
	Get(name string) (tools.Tool, bool)
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
	LLMTools() []llms.Tool
}

// Loop drives one turn: model call, tool calls, model call, until the model
// answers without requesting tools.
type Loop struct {
	client chat.Adapter
	tools  Toolbox
	chain  *middleware.Chain
	trace  *middleware.JSONL

	maxIterations int
	modelTimeout  time.Duration
	toolTimeout   time.Duration
	toolDrain     time.Duration
	parallelTools bool
	params        chat.Params
	eventContext  map[string]any
}

type Option func(*Loop)

func WithMiddlewareChain(chain *middleware.Chain) Option {
	return func(l *Loop) { l.chain = chain }
}

// WithTrace records every state transition and tool execution as JSONL.
func WithTrace(t *middleware.JSONL) Option {
	return func(l *Loop) { l.trace = t }
}

// WithMaxIterations caps model calls per turn. n <= 0 keeps the default.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithModelTimeout bounds each model call. d <= 0 disables the bound.
func WithModelTimeout(d time.Duration) Option {
	return func(l *Loop) { l.modelTimeout = d }
}

// WithToolTimeout bounds each tool execution. d <= 0 disables the bound.
func WithToolTimeout(d time.Duration) Option {
	return func(l *Loop) { l.toolTimeout = d }
}

// WithToolDrain sets how long the loop waits for a timed-out tool to return
// before failing the turn. A tool that ignores its context may outlive the
// wait.
func WithToolDrain(d time.Duration) Option {
	return func(l *Loop) { l.toolDrain = d }
}

// WithParallelTools runs the calls of one step concurrently. Results are
// still appended in request order.
func WithParallelTools(on bool) Option {
	return func(l *Loop) { l.parallelTools = on }
}

// WithParams sets the base model parameters. Tools are filled in per call.
func WithParams(p chat.Params) Option {
	return func(l *Loop) { l.params = p }
}

// WithEventContext is passed to middleware as Event.Context.
func WithEventContext(m map[string]any) Option {
	return func(l *Loop) { l.eventContext = m }
}

func NewLoop(client chat.Adapter, toolbox Toolbox, opts ...Option) *Loop {
	l := &Loop{
		client:        client,
		tools:         toolbox,
		maxIterations: DefaultMaxIterations,
		modelTimeout:  DefaultModelTimeout,
		toolTimeout:   DefaultToolTimeout,
		toolDrain:     DefaultToolDrain,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes one turn over a copy of history and returns the extended
// history. On any error the partial history is discarded and nil returned.
func (l *Loop) Run(ctx context.Context, history []chat.Message) ([]chat.Message, error) {
	hist := chat.CloneHistory(history)
	userText := lastUserText(hist)

	state := AwaitingModel
	iteration := 0
	var pending []chat.ToolCall

	for {
		switch state {
		case AwaitingModel:
			if err := ctxErr(ctx); err != nil {
				return nil, l.fail(state, iteration, err)
			}
			if iteration >= l.maxIterations {
				return nil, l.fail(state, iteration, fmt.Errorf("%w: %d model calls", ErrIterationLimitExceeded, l.maxIterations))
			}
			iteration++
			msg, err := l.callModel(ctx, hist, userText, iteration)
			if err != nil {
				return nil, l.fail(state, iteration, err)
			}
			hist = append(hist, msg)
			pending = msg.ToolCalls
			next := Done
			if len(pending) > 0 {
				next = AwaitingTools
			}
			l.transition(state, next, iteration, len(pending))
			state = next

		case AwaitingTools:
			if err := ctxErr(ctx); err != nil {
				return nil, l.fail(state, iteration, err)
			}
			if err := l.resolve(pending); err != nil {
				return nil, l.fail(state, iteration, err)
			}
			results, err := l.runTools(ctx, pending)
			if err != nil {
				return nil, l.fail(state, iteration, err)
			}
			hist = append(hist, results...)
			pending = nil
			l.transition(state, AwaitingModel, iteration, 0)
			state = AwaitingModel

		case Done:
			return hist, nil
		}
	}
}

func (l *Loop) callParams() *chat.Params {
	p := l.params
	if l.tools != nil {
		p.Tools = l.tools.LLMTools()
	}
	return &p
}

func (l *Loop) callModel(ctx context.Context, hist []chat.Message, userText string, iteration int) (chat.Message, error) {
	before := &middleware.Event{
		Name:      middleware.EventBeforeModelCall,
		UserText:  userText,
		Params:    l.callParams(),
		Iteration: iteration,
		Context:   l.eventContext,
	}
	results, err := l.chain.Dispatch(ctx, before)
	if err != nil {
		return chat.Message{}, fmt.Errorf("middleware %s: %w", before.Name, err)
	}
	if middleware.Canceled(results) {
		if strings.TrimSpace(before.LLMText) != "" {
			return chat.Message{Role: chat.RoleAssistant, Content: before.LLMText}, nil
		}
		return chat.Message{}, fmt.Errorf("model call canceled by middleware: %s", cancelReason(results))
	}

	callCtx, cancel := withTimeout(ctx, l.modelTimeout)
	msg, err := l.client.Reply(callCtx, hist, before.Params)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if cerr := ctxErr(ctx); cerr != nil {
			return chat.Message{}, cerr
		}
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			return chat.Message{}, fmt.Errorf("%w: model call exceeded %s", ErrTimeout, l.modelTimeout)
		}
		return chat.Message{}, &ProviderError{Err: err}
	}
	msg.Role = chat.RoleAssistant

	after := &middleware.Event{
		Name:      middleware.EventAfterModelResponse,
		UserText:  userText,
		LLMText:   msg.Content,
		Params:    before.Params,
		Iteration: iteration,
		ToolCalls: len(msg.ToolCalls),
		Context:   l.eventContext,
	}
	results, err = l.chain.Dispatch(ctx, after)
	if err != nil {
		return chat.Message{}, fmt.Errorf("middleware %s: %w", after.Name, err)
	}
	msg.Content = after.LLMText
	if middleware.Canceled(results) {
		// A canceled response ends the turn with whatever text is left.
		if strings.TrimSpace(msg.Content) == "" {
			return chat.Message{}, fmt.Errorf("model response canceled by middleware: %s", cancelReason(results))
		}
		msg.ToolCalls = nil
	}
	return msg, nil
}

// resolve checks every requested name before anything runs, so an unknown
// tool fails the turn without side effects.
func (l *Loop) resolve(calls []chat.ToolCall) error {
	for _, tc := range calls {
		if l.tools == nil {
			return &UnknownToolError{Name: tc.Name}
		}
		if _, ok := l.tools.Get(tc.Name); !ok {
			return &UnknownToolError{Name: tc.Name}
		}
	}
	return nil
}

func (l *Loop) runTools(ctx context.Context, calls []chat.ToolCall) ([]chat.Message, error) {
	results := make([]chat.Message, len(calls))
	if !l.parallelTools || len(calls) < 2 {
		for i, tc := range calls {
			msg, err := l.execTool(ctx, tc)
			if err != nil {
				return nil, err
			}
			results[i] = msg
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range calls {
		g.Go(func() error {
			msg, err := l.execTool(gctx, tc)
			if err != nil {
				return err
			}
			results[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// drain waits up to the drain period for a canceled tool so it can release
// files it holds before the turn ends.
func (l *Loop) drain(done <-chan toolOutcome) {
	if l.toolDrain <= 0 {
		return
	}
	t := time.NewTimer(l.toolDrain)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
	}
}

type toolOutcome struct {
	out string
	err error
}

// execTool runs one call under the tool timeout. Tool failures become a
// tool_error message; only timeouts and cancellation fail the turn.
func (l *Loop) execTool(ctx context.Context, tc chat.ToolCall) (chat.Message, error) {
	toolCtx, cancel := withTimeout(ctx, l.toolTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan toolOutcome, 1)
	go func() {
		out, err := l.tools.Execute(toolCtx, tc.Name, tc.Args())
		done <- toolOutcome{out: out, err: err}
	}()

	var res toolOutcome
	select {
	case res = <-done:
	case <-toolCtx.Done():
		res = toolOutcome{err: toolCtx.Err()}
		cancel()
		l.drain(done)
	}

	if res.err != nil {
		if cerr := ctxErr(ctx); cerr != nil {
			l.toolTrace(tc, start, cerr)
			return chat.Message{}, cerr
		}
		if errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
			err := fmt.Errorf("%w: tool %s exceeded %s", ErrTimeout, tc.Name, l.toolTimeout)
			l.toolTrace(tc, start, err)
			return chat.Message{}, err
		}
	}
	l.toolTrace(tc, start, res.err)

	msg := chat.Message{
		Role:       chat.RoleTool,
		Content:    res.out,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
	}
	if res.err != nil {
		msg.Role = chat.RoleToolError
		msg.Content = res.err.Error()
	}
	return msg, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func lastUserText(hist []chat.Message) string {
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i].Role == chat.RoleUser {
			return hist[i].Content
		}
	}
	return ""
}

func cancelReason(results []middleware.DecisionResult) string {
	for _, r := range results {
		if r.Decision.Cancel {
			if r.Decision.Reason != "" {
				return r.Decision.Reason
			}
			return r.MiddlewareID
		}
	}
	return "unknown"
}
