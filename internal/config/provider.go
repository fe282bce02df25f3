package config

import (
	"tableagent/internal/catalog"
	"tableagent/internal/llm"
)

// ProviderConfig fills credentials and endpoints for the chosen provider.
func (c Config) ProviderConfig(provider catalog.Provider, model string) llm.ProviderConfig {
	pc := llm.ProviderConfig{
		Provider:    provider,
		Model:       model,
		Temperature: c.Temperature,
	}
	switch provider {
	case catalog.ProviderOllama:
		pc.BaseURL = c.OllamaBaseURL
	case catalog.ProviderOpenAI:
		pc.APIKey = c.OpenAIAPIKey
		pc.BaseURL = c.OpenAIBaseURL
	case catalog.ProviderAnthropic:
		pc.APIKey = c.AnthropicAPIKey
	case catalog.ProviderAzureOpenAI:
		pc.APIKey = c.AzureAPIKey
		pc.BaseURL = c.AzureEndpoint
		pc.APIVersion = c.AzureAPIVersion
		if c.AzureDeployment != "" {
			pc.Model = c.AzureDeployment
		}
	case catalog.ProviderGemini:
		pc.APIKey = c.GoogleAPIKey
	}
	return pc
}

// Env exposes credential presence the way the availability checker reads it.
func (c Config) Env(key string) string {
	switch key {
	case "OPENAI_API_KEY":
		return c.OpenAIAPIKey
	case "ANTHROPIC_API_KEY":
		return c.AnthropicAPIKey
	case "AZURE_OPENAI_API_KEY":
		return c.AzureAPIKey
	case "AZURE_OPENAI_ENDPOINT":
		return c.AzureEndpoint
	case "GOOGLE_API_KEY":
		return c.GoogleAPIKey
	}
	return ""
}
