package greeting

import (
	"context"
	"regexp"
	"strings"

	mw "tableagent/internal/middleware"
)

func init() {
	mw.Register(Greeting{})
}

// Reply is the canned answer to a bare salutation.
const Reply = "Hi! Give me the path to a CSV file and I can profile its columns or chart one column against another."

// Greeting answers simple salutations on the first model call of a turn
// without hitting the model. It is off unless enabled in config.
type Greeting struct{}

func (Greeting) ID() string    { return "greeting" }
func (Greeting) Priority() int { return 110 } // run early

func (Greeting) OptIn() bool { return true }

func (Greeting) ShouldLoad(_ context.Context, e *mw.Event) bool {
	if e == nil || e.Context == nil {
		return false
	}
	v, _ := e.Context["greeting"].(bool)
	return v
}

var salutation = regexp.MustCompile(`(?i)^(hi|hello|hey|heya|howdy|yo|greetings|good (morning|afternoon|evening))( there)?[\s!.,]*$`)

func (Greeting) OnEvent(_ context.Context, e *mw.Event) (mw.Decision, error) {
	if e == nil || e.Name != mw.EventBeforeModelCall || e.Iteration > 1 {
		return mw.Decision{}, nil
	}
	if !salutation.MatchString(strings.TrimSpace(e.UserText)) {
		return mw.Decision{}, nil
	}
	reply := Reply
	return mw.Decision{
		Cancel:      true,
		ReplaceText: &reply,
		Reason:      "greeting",
	}, nil
}
