package agent

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrTimeout                = errors.New("timeout")
	ErrIterationLimitExceeded = errors.New("iteration limit exceeded")
	// ErrCanceled is returned together with context.Canceled when the caller
	// abandons a turn.
	ErrCanceled   = errors.New("turn canceled")
	ErrEmptyInput = errors.New("empty input")
)

// UnknownToolError fails a turn whose model requested a tool that is not
// registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string { return fmt.Sprintf("unknown tool %q", e.Name) }

// ProviderError wraps failures reported by the model client.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return "provider error: " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

func canceled() error { return fmt.Errorf("%w: %w", ErrCanceled, context.Canceled) }

// ctxErr maps a finished caller context to the turn error taxonomy.
func ctxErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return canceled()
	}
}
