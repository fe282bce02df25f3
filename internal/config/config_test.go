package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableagent/internal/catalog"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestDefaults(t *testing.T) {
	cfg, err := Loader{
		Path:    filepath.Join(t.TempDir(), "none.json"),
		EnvFile: noEnvFile(t),
		Getenv:  envMap(nil),
	}.Load()
	// An explicit path that does not exist is an error.
	require.Error(t, err)

	// A missing default config file is fine.
	t.Setenv("HOME", t.TempDir())
	cfg, err = Loader{EnvFile: noEnvFile(t), Getenv: envMap(nil)}.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaURL, cfg.OllamaBaseURL)
	assert.Equal(t, "outputs", cfg.OutputDir)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.False(t, cfg.HasOverride())
}

func TestLayering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	prefer := true
	require.NoError(t, (&File{
		Provider:    "ollama",
		Model:       "from-file",
		OutputDir:   "file-out",
		DataDir:     "file-data",
		PreferLocal: &prefer,
		Middlewares: []MiddlewareSetting{{ID: "greeting", Enabled: false}, {ID: "chart_note", Enabled: true}},
	}).SaveToFile(cfgPath))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LLM_MODEL=from-dotenv\nOUTPUT_DIR=dotenv-out\nOPENAI_API_KEY=sk-dotenv\n"), 0o644))

	cfg, err := Loader{
		Path:    cfgPath,
		EnvFile: envFile,
		Getenv:  envMap(map[string]string{"OUTPUT_DIR": "env-out", "TABLEAGENT_MODEL_TIMEOUT": "30"}),
	}.Load()
	require.NoError(t, err)

	assert.Equal(t, cfgPath, cfg.Path)
	assert.Equal(t, catalog.ProviderOllama, cfg.Provider)
	assert.Equal(t, "from-dotenv", cfg.Model, ".env beats file")
	assert.Equal(t, "env-out", cfg.OutputDir, "env beats .env")
	assert.Equal(t, "file-data", cfg.DataDir)
	assert.True(t, cfg.PreferLocal)
	assert.Equal(t, "sk-dotenv", cfg.OpenAIAPIKey)
	assert.Equal(t, 30*time.Second, cfg.ModelTimeout)
	assert.Equal(t, []string{"greeting"}, cfg.DisabledMiddlewares)
	assert.Equal(t, []string{"chart_note"}, cfg.EnabledMiddlewares)
	assert.True(t, cfg.HasOverride())
}

func TestEnabledMiddlewaresFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Loader{EnvFile: noEnvFile(t), Getenv: envMap(map[string]string{
		"TABLEAGENT_ENABLED_MIDDLEWARES": " greeting , ",
	})}.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"greeting"}, cfg.EnabledMiddlewares)
	assert.Empty(t, cfg.DisabledMiddlewares)
}

func TestYAMLConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: anthropic\nmodel: claude-3-haiku-20240307\napi_key: sk-ant\ntool_timeout: 5s\n"), 0o644))

	cfg, err := Loader{Path: path, EnvFile: noEnvFile(t), Getenv: envMap(nil)}.Load()
	require.NoError(t, err)
	assert.Equal(t, catalog.ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "sk-ant", cfg.AnthropicAPIKey)
	assert.Equal(t, 5*time.Second, cfg.ToolTimeout)

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-haiku-20240307", f.Model)
}

func TestDockerOllamaURL(t *testing.T) {
	cfg, err := Loader{Path: "", EnvFile: noEnvFile(t), Getenv: envMap(map[string]string{
		"TABLEAGENT_CONFIG": filepath.Join(t.TempDir(), "c.json"),
	})}.Load()
	require.Error(t, err, "explicit TABLEAGENT_CONFIG must exist")

	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, (&File{}).SaveToFile(path))

	cfg, err = Loader{Path: path, EnvFile: noEnvFile(t), Getenv: envMap(map[string]string{
		"OLLAMA_BASE_URL": "http://host:11434",
		"IN_DOCKER":       "true",
	})}.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaContainerURL, cfg.OllamaBaseURL)

	cfg, err = Loader{Path: path, EnvFile: noEnvFile(t), Getenv: envMap(map[string]string{
		"IN_DOCKER":            "true",
		"OLLAMA_CONTAINER_URL": "http://llm:11434",
	})}.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://llm:11434", cfg.OllamaBaseURL)
}

func TestInvalidEnvValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, (&File{}).SaveToFile(path))

	_, err := Loader{Path: path, EnvFile: noEnvFile(t), Getenv: envMap(map[string]string{"TABLEAGENT_MAX_ITERATIONS": "zero"})}.Load()
	assert.Error(t, err)
	_, err = Loader{Path: path, EnvFile: noEnvFile(t), Getenv: envMap(map[string]string{"TABLEAGENT_TOOL_TIMEOUT": "soon"})}.Load()
	assert.Error(t, err)
}

func TestProviderConfig(t *testing.T) {
	cfg := Defaults()
	cfg.AzureAPIKey = "k"
	cfg.AzureEndpoint = "https://res.openai.azure.com"
	cfg.AzureDeployment = "prod-4o"

	pc := cfg.ProviderConfig(catalog.ProviderAzureOpenAI, "gpt-4o-mini")
	assert.Equal(t, "prod-4o", pc.Model)
	assert.Equal(t, "https://res.openai.azure.com", pc.BaseURL)
	assert.Equal(t, DefaultAzureAPIVersion, pc.APIVersion)
	require.NoError(t, pc.Validate())

	pc = cfg.ProviderConfig(catalog.ProviderOllama, "qwen2.5:7b")
	assert.Equal(t, DefaultOllamaURL, pc.BaseURL)

	assert.Equal(t, "k", cfg.Env("AZURE_OPENAI_API_KEY"))
	assert.Empty(t, cfg.Env("OPENAI_API_KEY"))
}

func TestSaveToFileIsPrivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, (&File{APIKey: "secret"}).SaveToFile(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
