// Package nlu matches user text against utterance templates such as
// "chart {y} against {x} in {file}" and extracts the named slots.
package nlu

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// IntentResult is the outcome of Parse. Intent is empty when nothing matched.
type IntentResult struct {
	Intent     string
	Confidence float64
	Slots      map[string]string
}

// Engine holds compiled utterances in registration order; the first match wins.
type Engine struct {
	mu       sync.RWMutex
	matchers []*intentMatcher
}

type intentMatcher struct {
	intentName string
	regex      *regexp.Regexp
	slotNames  []string
}

func NewEngine() *Engine {
	return &Engine{}
}

// RegisterIntent adds utterances for intent. Slots are written {name}.
func (e *Engine) RegisterIntent(intent string, utterances ...string) error {
	compiled := make([]*intentMatcher, 0, len(utterances))
	for _, u := range utterances {
		m, err := compileUtterance(intent, u)
		if err != nil {
			return fmt.Errorf("intent %s: %w", intent, err)
		}
		compiled = append(compiled, m)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.matchers = append(e.matchers, compiled...)
	return nil
}

// MustRegister is RegisterIntent for package-level setup.
func (e *Engine) MustRegister(intent string, utterances ...string) *Engine {
	if err := e.RegisterIntent(intent, utterances...); err != nil {
		panic(err)
	}
	return e
}

// Parse matches input, ignoring case, extra spaces and trailing punctuation.
func (e *Engine) Parse(input string) IntentResult {
	input = normalize(input)
	if input == "" {
		return IntentResult{}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, m := range e.matchers {
		matches := m.regex.FindStringSubmatch(input)
		if matches == nil {
			continue
		}
		slots := make(map[string]string, len(m.slotNames))
		for i, name := range m.slotNames {
			if i+1 < len(matches) {
				slots[name] = strings.Trim(strings.TrimSpace(matches[i+1]), `"'`+"`")
			}
		}
		return IntentResult{Intent: m.intentName, Confidence: 1.0, Slots: slots}
	}
	return IntentResult{}
}

func normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, "?!. ")
}

// compileUtterance turns "plot {y} by {x}" into (?i)^plot\s+(.+?)\s+by\s+(.+?)$.
func compileUtterance(intent, utterance string) (*intentMatcher, error) {
	utterance = strings.Join(strings.Fields(utterance), " ")
	if utterance == "" {
		return nil, fmt.Errorf("empty utterance")
	}

	segments := strings.Split(utterance, "{")
	parts := []string{literal(segments[0])}
	var slots []string

	for _, seg := range segments[1:] {
		name, suffix, ok := strings.Cut(seg, "}")
		if !ok {
			return nil, fmt.Errorf("unclosed brace in %q", utterance)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty slot name in %q", utterance)
		}
		slots = append(slots, name)
		parts = append(parts, `(.+?)`, literal(suffix))
	}

	re, err := regexp.Compile(`(?i)^` + strings.Join(parts, "") + `$`)
	if err != nil {
		return nil, err
	}
	return &intentMatcher{intentName: intent, regex: re, slotNames: slots}, nil
}

func literal(s string) string {
	return strings.ReplaceAll(regexp.QuoteMeta(s), " ", `\s+`)
}
