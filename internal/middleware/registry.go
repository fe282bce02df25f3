package middleware

import (
	"strings"
	"sync"
)

// registry holds globally-registered middleware plugins.
var (
	registryMu sync.Mutex
	registry   []Middleware
)

// Register should be called by middleware packages (typically in init) to
// register themselves with the core chain builder.
func Register(m Middleware) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, m)
}

// Registered returns a shallow copy of all registered middleware.
func Registered() []Middleware {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]Middleware, len(registry))
	copy(out, registry)
	return out
}

// ParseIDs splits a comma-separated list of middleware ids, as found in
// TABLEAGENT_DISABLED_MIDDLEWARES and TABLEAGENT_ENABLED_MIDDLEWARES.
func ParseIDs(v string) []string {
	var out []string
	for _, id := range strings.Split(v, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// NewChainFromRegistry builds a chain from all registered middleware except
// the disabled ids. It returns nil when nothing is left.
func NewChainFromRegistry(disabled []string, trace *JSONL) *Chain {
	mws := Registered()

	if len(disabled) > 0 {
		disabledSet := make(map[string]struct{}, len(disabled))
		for _, id := range disabled {
			disabledSet[id] = struct{}{}
		}
		filtered := make([]Middleware, 0, len(mws))
		for _, mw := range mws {
			if _, ok := disabledSet[mw.ID()]; !ok {
				filtered = append(filtered, mw)
			}
		}
		mws = filtered
	}

	if len(mws) == 0 {
		return nil
	}
	c := NewChain(mws...)
	c.SetTrace(trace)
	return c
}
