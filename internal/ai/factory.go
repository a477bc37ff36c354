package ai

import (
	"fmt"

	"github.com/kiranshivaraju/storyforge/internal/ai/openai"
	"github.com/kiranshivaraju/storyforge/internal/config"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

// NewProvider constructs the appropriate story provider based on config.
// Ollama and vLLM both expose the OpenAI chat completions API, so all three
// share one client.
// Called once at startup.
func NewProvider(cfg config.AIConfig) (models.StoryProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(openai.Options{
			Name:    "openai",
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Format:  openai.FormatJSONSchema,
		}), nil
	case "ollama":
		return openai.NewProvider(openai.Options{
			Name: "ollama",
			// Ollama ignores the key but the client always sends one.
			APIKey:  "ollama",
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Format:  openai.FormatJSONObject,
		}), nil
	case "vllm":
		return openai.NewProvider(openai.Options{
			Name:    "vllm",
			APIKey:  cfg.VLLM.APIKey,
			BaseURL: cfg.VLLM.BaseURL,
			Model:   cfg.VLLM.Model,
			Format:  openai.FormatJSONSchema,
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, ollama, vllm", cfg.Provider)
	}
}
