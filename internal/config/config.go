// Package config resolves runtime settings from defaults, the config file,
// a .env file and the process environment, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tableagent/internal/catalog"
	"tableagent/internal/middleware"
)

const (
	DefaultOllamaURL          = "http://localhost:11434"
	DefaultOllamaContainerURL = "http://ollama:11434"
	DefaultOutputDir          = "outputs"
	DefaultDataDir            = "data"
	DefaultWebAddr            = ":8000"
	DefaultAzureAPIVersion    = "2023-12-01-preview"
	DefaultPath               = "~/.tableagent/config.json"
)

// MiddlewareSetting holds the user's choice for a specific middleware.
type MiddlewareSetting struct {
	ID      string `json:"id" yaml:"id"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// File is the persisted part of the configuration, written by setup.
type File struct {
	Provider      string              `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model         string              `json:"model,omitempty" yaml:"model,omitempty"`
	OllamaBaseURL string              `json:"ollama_base_url,omitempty" yaml:"ollama_base_url,omitempty"`
	APIKey        string              `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL       string              `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	PreferLocal   *bool               `json:"prefer_local,omitempty" yaml:"prefer_local,omitempty"`
	OutputDir     string              `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	DataDir       string              `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	MaxIterations int                 `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	ModelTimeout  string              `json:"model_timeout,omitempty" yaml:"model_timeout,omitempty"`
	ToolTimeout   string              `json:"tool_timeout,omitempty" yaml:"tool_timeout,omitempty"`
	Temperature   *float64            `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TokenBudget   int                 `json:"token_budget,omitempty" yaml:"token_budget,omitempty"`
	SystemPrompt  string              `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Middlewares   []MiddlewareSetting `json:"middlewares,omitempty" yaml:"middlewares,omitempty"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Path string // config file consulted, if any

	OllamaBaseURL string
	// Provider and Model form the selection override; both must be set.
	Provider    catalog.Provider
	Model       string
	PreferLocal bool

	OutputDir string
	DataDir   string
	WebAddr   string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AzureAPIKey     string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string
	GoogleAPIKey    string

	MaxIterations int
	ModelTimeout  time.Duration
	ToolTimeout   time.Duration
	Temperature   float64
	TokenBudget   int
	SystemPrompt  string

	DisabledMiddlewares []string
	// EnabledMiddlewares lists ids switched on explicitly; opt-in
	// middleware only runs when listed here.
	EnabledMiddlewares []string
	TracePath          string
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		OllamaBaseURL:   DefaultOllamaURL,
		OutputDir:       DefaultOutputDir,
		DataDir:         DefaultDataDir,
		WebAddr:         DefaultWebAddr,
		AzureAPIVersion: DefaultAzureAPIVersion,
		MaxIterations:   10,
		ModelTimeout:    120 * time.Second,
		ToolTimeout:     60 * time.Second,
	}
}

// HasOverride reports whether provider and model were both given.
func (c Config) HasOverride() bool {
	return c.Provider != "" && c.Model != ""
}

// Loader reads configuration. Zero fields fall back to the process
// environment, ./.env and TABLEAGENT_CONFIG or DefaultPath.
type Loader struct {
	Path    string
	EnvFile string
	Getenv  func(string) string
}

// Load resolves configuration with the default Loader.
func Load() (Config, error) {
	return Loader{}.Load()
}

func (l Loader) Load() (Config, error) {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	envFile := l.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	cfg := Defaults()

	path := l.Path
	if path == "" {
		path = lookup("TABLEAGENT_CONFIG")
	}
	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}
	f, err := ReadFile(path)
	switch {
	case err == nil:
		cfg.Path = ExpandHome(path)
		if err := cfg.applyFile(f); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(f *File) error {
	if f.Provider != "" {
		c.Provider = catalog.Provider(f.Provider)
	}
	setString(&c.Model, f.Model)
	setString(&c.OllamaBaseURL, f.OllamaBaseURL)
	setString(&c.OutputDir, f.OutputDir)
	setString(&c.DataDir, f.DataDir)
	setString(&c.SystemPrompt, f.SystemPrompt)
	if f.PreferLocal != nil {
		c.PreferLocal = *f.PreferLocal
	}
	if f.MaxIterations > 0 {
		c.MaxIterations = f.MaxIterations
	}
	if f.Temperature != nil {
		c.Temperature = *f.Temperature
	}
	if f.TokenBudget > 0 {
		c.TokenBudget = f.TokenBudget
	}
	if err := setDuration(&c.ModelTimeout, f.ModelTimeout); err != nil {
		return fmt.Errorf("model_timeout: %w", err)
	}
	if err := setDuration(&c.ToolTimeout, f.ToolTimeout); err != nil {
		return fmt.Errorf("tool_timeout: %w", err)
	}
	// The wizard stores one credential for the chosen provider.
	if f.APIKey != "" || f.BaseURL != "" {
		switch catalog.Provider(f.Provider) {
		case catalog.ProviderOpenAI:
			setString(&c.OpenAIAPIKey, f.APIKey)
			setString(&c.OpenAIBaseURL, f.BaseURL)
		case catalog.ProviderAnthropic:
			setString(&c.AnthropicAPIKey, f.APIKey)
		case catalog.ProviderAzureOpenAI:
			setString(&c.AzureAPIKey, f.APIKey)
			setString(&c.AzureEndpoint, f.BaseURL)
		case catalog.ProviderGemini:
			setString(&c.GoogleAPIKey, f.APIKey)
		}
	}
	for _, m := range f.Middlewares {
		if m.Enabled {
			c.EnabledMiddlewares = append(c.EnabledMiddlewares, m.ID)
		} else {
			c.DisabledMiddlewares = append(c.DisabledMiddlewares, m.ID)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) string) error {
	setString(&c.OllamaBaseURL, lookup("OLLAMA_BASE_URL"))
	if strings.EqualFold(lookup("IN_DOCKER"), "true") {
		c.OllamaBaseURL = DefaultOllamaContainerURL
		setString(&c.OllamaBaseURL, lookup("OLLAMA_CONTAINER_URL"))
	}
	if p := lookup("LLM_PROVIDER"); p != "" {
		c.Provider = catalog.Provider(strings.ToLower(p))
	}
	setString(&c.Model, lookup("LLM_MODEL"))
	if v := lookup("PREFER_LOCAL_LLM"); v != "" {
		c.PreferLocal = strings.EqualFold(v, "true")
	}
	setString(&c.OutputDir, lookup("OUTPUT_DIR"))
	setString(&c.DataDir, lookup("DATA_DIR"))
	setString(&c.WebAddr, lookup("TABLEAGENT_WEB_ADDR"))

	setString(&c.OpenAIAPIKey, lookup("OPENAI_API_KEY"))
	setString(&c.OpenAIBaseURL, lookup("OPENAI_BASE_URL"))
	setString(&c.AnthropicAPIKey, lookup("ANTHROPIC_API_KEY"))
	setString(&c.AzureAPIKey, lookup("AZURE_OPENAI_API_KEY"))
	setString(&c.AzureEndpoint, lookup("AZURE_OPENAI_ENDPOINT"))
	setString(&c.AzureDeployment, lookup("AZURE_OPENAI_DEPLOYMENT"))
	setString(&c.AzureAPIVersion, lookup("AZURE_OPENAI_API_VERSION"))
	setString(&c.GoogleAPIKey, lookup("GOOGLE_API_KEY"))

	if v := lookup("TABLEAGENT_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("TABLEAGENT_MAX_ITERATIONS: want a positive integer, got %q", v)
		}
		c.MaxIterations = n
	}
	if err := setDuration(&c.ModelTimeout, lookup("TABLEAGENT_MODEL_TIMEOUT")); err != nil {
		return fmt.Errorf("TABLEAGENT_MODEL_TIMEOUT: %w", err)
	}
	if err := setDuration(&c.ToolTimeout, lookup("TABLEAGENT_TOOL_TIMEOUT")); err != nil {
		return fmt.Errorf("TABLEAGENT_TOOL_TIMEOUT: %w", err)
	}
	if v := lookup("TABLEAGENT_DISABLED_MIDDLEWARES"); v != "" {
		c.DisabledMiddlewares = middleware.ParseIDs(v)
	}
	if v := lookup("TABLEAGENT_ENABLED_MIDDLEWARES"); v != "" {
		c.EnabledMiddlewares = middleware.ParseIDs(v)
	}
	setString(&c.TracePath, lookup("TABLEAGENT_TRACE"))
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// setDuration accepts Go durations ("90s") or plain seconds ("90").
func setDuration(dst *time.Duration, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ReadFile loads a JSON or YAML (by extension) config file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return nil, err
	}
	var f File
	if isYAML(path) {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// SaveToFile writes f as JSON or YAML depending on the extension.
func (f *File) SaveToFile(path string) error {
	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(f)
	} else {
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return err
	}
	// The file may hold an API key.
	return os.WriteFile(path, data, 0o600)
}
