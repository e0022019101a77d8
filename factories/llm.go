package factories

import (
	"errors"

	"vocalis/core"
	llmhandler "vocalis/handlers/llm"
	openaillm "vocalis/services/openai/llm"
)

// LLMFactoryConfig holds provider-specific configs for LLM service
// construction. Set exactly one provider config; the rest should be left
// nil. Every provider speaks the OpenAI-compatible protocol and is
// implemented by the same service with a provider-specific base URL.
type LLMFactoryConfig struct {
	OpenAIConfig     *openaillm.Config `json:"openai,omitempty"`
	TogetherConfig   *openaillm.Config `json:"together,omitempty"`
	GroqConfig       *openaillm.Config `json:"groq,omitempty"`
	DeepSeekConfig   *openaillm.Config `json:"deepseek,omitempty"`
	OpenRouterConfig *openaillm.Config `json:"openrouter,omitempty"`
	FireworksConfig  *openaillm.Config `json:"fireworks,omitempty"`
	CerebrasConfig   *openaillm.Config `json:"cerebras,omitempty"`
	XAIConfig        *openaillm.Config `json:"xai,omitempty"`
	MistralConfig    *openaillm.Config `json:"mistral,omitempty"`
	PerplexityConfig *openaillm.Config `json:"perplexity,omitempty"`
}

// BuildLLMService constructs an LLMService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (llmhandler.LLMService, error) {
	switch {
	case config.OpenAIConfig != nil:
		return buildProvider(*config.OpenAIConfig, "openai", "gpt-4o-mini", logger), nil
	case config.TogetherConfig != nil:
		return buildProvider(*config.TogetherConfig, "together", "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger), nil
	case config.GroqConfig != nil:
		return buildProvider(*config.GroqConfig, "groq", "llama-3.3-70b-versatile", logger), nil
	case config.DeepSeekConfig != nil:
		return buildProvider(*config.DeepSeekConfig, "deepseek", "deepseek-chat", logger), nil
	case config.OpenRouterConfig != nil:
		return buildProvider(*config.OpenRouterConfig, "openrouter", "openai/gpt-4o", logger), nil
	case config.FireworksConfig != nil:
		return buildProvider(*config.FireworksConfig, "fireworks", "accounts/fireworks/models/llama-v3p3-70b-instruct", logger), nil
	case config.CerebrasConfig != nil:
		return buildProvider(*config.CerebrasConfig, "cerebras", "llama-3.3-70b", logger), nil
	case config.XAIConfig != nil:
		return buildProvider(*config.XAIConfig, "xai", "grok-3", logger), nil
	case config.MistralConfig != nil:
		return buildProvider(*config.MistralConfig, "mistral", "mistral-large-latest", logger), nil
	case config.PerplexityConfig != nil:
		return buildProvider(*config.PerplexityConfig, "perplexity", "sonar-pro", logger), nil
	}
	return nil, errors.New("LLMFactoryConfig: no provider config specified")
}

// buildProvider fills in the provider name and default model when the config
// leaves them blank.
func buildProvider(cfg openaillm.Config, provider, defaultModel string, logger *core.Logger) *openaillm.OpenAILLMService {
	if cfg.Provider == "" {
		cfg.Provider = provider
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openaillm.NewOpenAILLMService(cfg, logger)
}
