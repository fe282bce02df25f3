package onboarding

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableagent/internal/config"
)

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	space = tea.KeyMsg{Type: tea.KeySpace}
)

func typed(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestTUI(t *testing.T, local ...string) (TUIModel, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewTUIModel(path)
	m.listLocal = func(string) []string { return local }
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(TUIModel), path
}

// drive feeds msgs in order and returns the final model and the last command.
func drive(t *testing.T, m TUIModel, msgs ...tea.Msg) (TUIModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(TUIModel)
	}
	return m, cmd
}

func finish(t *testing.T, m TUIModel, cmd tea.Cmd) TUIModel {
	t.Helper()
	require.Equal(t, stateDone, m.state)
	require.NotNil(t, cmd)
	m, _ = drive(t, m, cmd())
	require.True(t, m.saved)
	require.NoError(t, m.Err())
	return m
}

func TestTUIOllamaFlow(t *testing.T) {
	m, path := newTestTUI(t, "qwen2.5:7b", "llama3.2:1b")

	m, _ = drive(t, m, enter)
	require.Equal(t, stateModel, m.state)
	assert.Equal(t, config.DefaultOllamaURL, m.File().OllamaBaseURL)

	m, _ = drive(t, m, down, enter)
	require.Equal(t, stateDataDir, m.state)
	assert.Equal(t, "llama3.2:1b", m.File().Model)

	m, cmd := drive(t, m, enter, enter, space, enter)
	m = finish(t, m, cmd)
	assert.Contains(t, m.View(), "Done!")

	f, err := config.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", f.Provider)
	assert.Equal(t, "llama3.2:1b", f.Model)
	assert.Equal(t, config.DefaultDataDir, f.DataDir)
	assert.Equal(t, config.DefaultOutputDir, f.OutputDir)
	require.NotEmpty(t, f.Middlewares)
	assert.False(t, f.Middlewares[0].Enabled)

	m, cmd = drive(t, m, typed("x"))
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestTUIOllamaWithoutModelsSuggestsToolCapable(t *testing.T) {
	m, _ := newTestTUI(t)
	m, _ = drive(t, m, enter, enter)
	assert.Equal(t, "qwen2.5:7b", m.File().Model)
}

func TestTUIAzureFlow(t *testing.T) {
	m, path := newTestTUI(t)

	m, _ = drive(t, m, down, down, down, enter)
	require.Equal(t, stateAPIKey, m.state)
	assert.Equal(t, "azure_openai", m.File().Provider)
	assert.NotContains(t, m.View(), "k-123")

	m, _ = drive(t, m, typed("k-123"), enter)
	require.Equal(t, stateEndpoint, m.state)

	m, _ = drive(t, m, typed("https://res.openai.azure.com"), enter)
	require.Equal(t, stateModel, m.state)

	m, cmd := drive(t, m, enter, enter, enter, enter)
	finish(t, m, cmd)

	f, err := config.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "azure_openai", f.Provider)
	assert.Equal(t, "gpt-4o-mini", f.Model)
	assert.Equal(t, "k-123", f.APIKey)
	assert.Equal(t, "https://res.openai.azure.com", f.BaseURL)

	cfg, err := config.Loader{Path: path, EnvFile: filepath.Join(t.TempDir(), "none"), Getenv: func(string) string { return "" }}.Load()
	require.NoError(t, err)
	assert.Equal(t, "k-123", cfg.AzureAPIKey)
}

func TestTUIQuitKeys(t *testing.T) {
	m, _ := newTestTUI(t)
	m, _ = drive(t, m, down, enter)
	require.Equal(t, stateAPIKey, m.state)

	m, _ = drive(t, m, typed("q"))
	assert.False(t, m.quitting, "q is part of an API key")
	assert.Equal(t, "q", m.input.Value())

	m, cmd := drive(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestStateTabs(t *testing.T) {
	assert.Equal(t, 0, stateEndpoint.tab())
	assert.Equal(t, 1, stateModel.tab())
	assert.Equal(t, 2, stateOutputDir.tab())
	assert.Equal(t, 3, stateMiddlewares.tab())
	assert.Equal(t, 4, stateDone.tab())
}

func TestPlainWizard(t *testing.T) {
	in := strings.Join([]string{
		"9",                            // invalid provider
		"4",                            // azure_openai
		"https://res.openai.azure.com", // endpoint
		"",                             // default model
		"k-1",                          // key
		"",                             // data dir
		"charts",                       // output dir
		"1",                            // toggle first middleware
		"b", "500",                     // token budget
		"0",
	}, "\n") + "\n"
	var out bytes.Buffer
	w := NewWizard(strings.NewReader(in), &out)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, RunPlain(w, path))

	f, err := config.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "azure_openai", f.Provider)
	assert.Equal(t, "gpt-4o-mini", f.Model)
	assert.Equal(t, "https://res.openai.azure.com", f.BaseURL)
	assert.Equal(t, "k-1", f.APIKey)
	assert.Equal(t, "data", f.DataDir)
	assert.Equal(t, "charts", f.OutputDir)
	assert.Equal(t, 500, f.TokenBudget)
	require.NotEmpty(t, f.Middlewares)
	assert.False(t, f.Middlewares[0].Enabled)

	assert.Contains(t, out.String(), "Invalid choice")
	assert.Contains(t, out.String(), "export AZURE_OPENAI_API_KEY=***")
}

func TestPlainWizardDefaultsOnEOF(t *testing.T) {
	var out bytes.Buffer
	w := NewWizard(strings.NewReader(""), &out)
	w.ListLocal = func(string) []string { return []string{"llama3.1:8b"} }

	f, err := w.Run()
	require.NoError(t, err)
	assert.Equal(t, "ollama", f.Provider)
	assert.Equal(t, config.DefaultOllamaURL, f.OllamaBaseURL)
	assert.Equal(t, "llama3.1:8b", f.Model)
	assert.Empty(t, f.APIKey)
}
