// Package catalog knows which models can take structured tool-call requests.
package catalog

import (
	"sort"
	"strings"
)

// Provider identifies a chat completion backend.
type Provider string

const (
	ProviderOllama      Provider = "ollama"
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderAzureOpenAI Provider = "azure_openai"
	ProviderGemini      Provider = "gemini"
)

// IsLocal reports whether the provider runs on the local inference server.
func (p Provider) IsLocal() bool { return p == ProviderOllama }

// ModelFamily groups local model tags that share tool-calling behavior.
type ModelFamily int

const (
	Unknown ModelFamily = iota
	Llama31
	Llama32
	Qwen25
	Mistral
	Mixtral
	CommandR
	CommandRPlus
	FireFunction
	NousHermes2
	NousHermes2Mixtral
)

// Capabilities describes what a family is known to support.
type Capabilities struct {
	Tools bool
}

var familyNames = map[ModelFamily]string{
	Llama31:            "llama3.1",
	Llama32:            "llama3.2",
	Qwen25:             "qwen2.5",
	Mistral:            "mistral",
	Mixtral:            "mixtral",
	CommandR:           "command-r",
	CommandRPlus:       "command-r-plus",
	FireFunction:       "firefunction-v2",
	NousHermes2:        "nous-hermes2",
	NousHermes2Mixtral: "nous-hermes2-mixtral",
}

var capabilities = map[ModelFamily]Capabilities{
	Llama31:            {Tools: true},
	Llama32:            {Tools: true},
	Qwen25:             {Tools: true},
	Mistral:            {Tools: true},
	Mixtral:            {Tools: true},
	CommandR:           {Tools: true},
	CommandRPlus:       {Tools: true},
	FireFunction:       {Tools: true},
	NousHermes2:        {Tools: true},
	NousHermes2Mixtral: {Tools: true},
}

// Remote models known to reject tool declarations.
var remoteExclusions = map[Provider][]string{
	ProviderOpenAI:      {"gpt-3.5-turbo-instruct", "o1-mini", "o1-preview", "davinci-002", "babbage-002"},
	ProviderAzureOpenAI: {"gpt-35-turbo-instruct"},
	ProviderAnthropic:   {"claude-instant-1", "claude-2.0"},
	ProviderGemini:      {"gemini-1.0-pro-vision"},
}

// byLength holds families ordered longest name first so that
// "nous-hermes2-mixtral" is tried before "nous-hermes2".
var byLength []ModelFamily

func init() {
	for f := range familyNames {
		byLength = append(byLength, f)
	}
	sort.Slice(byLength, func(i, j int) bool {
		a, b := familyNames[byLength[i]], familyNames[byLength[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
}

func (f ModelFamily) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return "unknown"
}

// Capabilities returns the static capability flags. Unknown families get the
// zero value: no tool support.
func (f ModelFamily) Capabilities() Capabilities {
	return capabilities[f]
}

// Stem returns the part of a model name before the first ':' separator.
func Stem(model string) string {
	if i := strings.IndexByte(model, ':'); i >= 0 {
		return model[:i]
	}
	return model
}

// MatchesFamily is the case-sensitive prefix match used for family checks:
// the stem of model must start with family.
func MatchesFamily(model, family string) bool {
	if family == "" {
		return false
	}
	return strings.HasPrefix(Stem(model), family)
}

// FamilyOf resolves a local model tag like "qwen2.5:14b" to its family.
func FamilyOf(model string) ModelFamily {
	for _, f := range byLength {
		if MatchesFamily(model, familyNames[f]) {
			return f
		}
	}
	return Unknown
}

// ParseFamily maps a family name back to its enum value.
func ParseFamily(name string) ModelFamily {
	for f, n := range familyNames {
		if n == name {
			return f
		}
	}
	return Unknown
}

// SupportsTools reports whether (provider, model) should get tool declarations.
// Local models need a known tool-capable family. Remote providers are presumed
// capable unless the model is excluded; the client factory still has to cope
// with a provider refusing tools at call time.
func SupportsTools(provider Provider, model string) bool {
	if provider.IsLocal() {
		return FamilyOf(model).Capabilities().Tools
	}
	for _, excluded := range remoteExclusions[provider] {
		if model == excluded || strings.HasPrefix(model, excluded+"-") {
			return false
		}
	}
	return true
}

// ToolCapableModels lists recommended local model tags, in preference order.
func ToolCapableModels() []string {
	return []string{
		"qwen2.5:7b", "llama3.1:8b", "llama3.2", "qwen2.5:14b", "llama3.1:70b",
		"mistral:7b-instruct", "mixtral:8x7b", "command-r:35b", "firefunction-v2",
	}
}
