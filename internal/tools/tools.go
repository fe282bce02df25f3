// Package tools holds the data tools the agent can call and the registry that
// declares them to the model.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/openai/openai-go/v3"
	"github.com/tmc/langchaingo/llms"

	"tableagent/internal/dataset"
	"tableagent/internal/llm"
)

var (
	ErrFileNotFound     = dataset.ErrNotFound
	ErrParse            = dataset.ErrParse
	ErrColumnNotFound   = errors.New("column not found")
	ErrIO               = errors.New("i/o error")
	ErrDuplicateTool    = errors.New("duplicate tool")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Tool defines something the model can invoke by name.
type Tool interface {
	// Name returns the unique name of the tool (e.g. "profile").
	Name() string
	// Description returns a human-readable description for the model.
	Description() string
	// Parameters returns the JSON schema for the arguments as a map.
	Parameters() map[string]any
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the available tools.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry with profile and chart bound to the given
// directories.
func Default(dataDir, outputDir string) *Registry {
	r, err := NewRegistry(
		&Profile{DataDir: dataDir},
		&Chart{DataDir: dataDir, OutputDir: outputDir},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Register(t Tool) error {
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools sorted by name.
func (r *Registry) List() []Tool {
	list := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.List() {
		names = append(names, t.Name())
	}
	return names
}

// Execute validates args against the tool schema and runs it.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err := Validate(args, t.Parameters()); err != nil {
		return "", fmt.Errorf("%s: %w: %v", name, ErrInvalidArguments, err)
	}
	return t.Execute(ctx, args)
}

// LLMTools renders the registry as langchaingo function tools.
func (r *Registry) LLMTools() []llms.Tool {
	list := r.List()
	out := make([]llms.Tool, 0, len(list))
	for _, t := range list {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// OpenAITools renders the registry for openai-go backed clients.
func (r *Registry) OpenAITools() []openai.ChatCompletionToolUnionParam {
	return llm.ToOpenAITools(r.LLMTools())
}
