package llm

// LLMHandlerConfig tunes the generation handler.
type LLMHandlerConfig struct {
	// AllowToolCalls forwards model-requested tool invocations downstream
	// instead of dropping them.
	AllowToolCalls bool
}
