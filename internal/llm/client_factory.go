package llm

import (
	"fmt"

	"qatriage/internal/config"
	"qatriage/internal/logging"
)

// NewClientFromConfig creates the single configured backend.
// A missing API key is not an error here; the client reports it per call.
func NewClientFromConfig(cfg *config.Config) (Client, error) {
	timeout := cfg.GetLLMTimeout()

	switch Provider(cfg.LLM.Provider) {
	case ProviderOpenAI, "":
		logging.Boot("llm backend: openai model=%s base_url=%s", cfg.LLM.Model, cfg.LLM.BaseURL)
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     timeout,
		}), nil

	case ProviderGemini:
		model := cfg.LLM.Model
		// The shipped default names an OpenAI model; let the backend pick its own.
		if model == config.DefaultConfig().LLM.Model {
			model = ""
		}
		logging.Boot("llm backend: gemini model=%s", model)
		return NewGeminiClient(GeminiConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     timeout,
		}), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.LLM.Provider)
	}
}
