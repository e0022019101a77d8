package factories

import (
	"fmt"

	"vocalis/agent"
	"vocalis/core"
	llmhandler "vocalis/handlers/llm"
	stthandler "vocalis/handlers/stt"
	ttshandler "vocalis/handlers/tts"
	cartesia "vocalis/services/cartesia/tts"
	deepgramstt "vocalis/services/deepgram/stt"
	elevenlabs "vocalis/services/elevenlabs/tts"
	openaillm "vocalis/services/openai/llm"
)

// SessionSTTConfig couples a handler config with a primary service config and
// an ordered list of fallbacks.
type SessionSTTConfig struct {
	HandlerConfig          *stthandler.STTConfig `json:"handler,omitempty"`
	ServiceConfig          STTFactoryConfig      `json:"service"`
	FallbackServiceConfigs []STTFactoryConfig    `json:"fallback_services,omitempty"`
}

func (c SessionSTTConfig) BuildHandler(logger *core.Logger) (*stthandler.STTHandler, error) {
	service, err := BuildSTTService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("session STT service: %w", err)
	}

	backups := make([]stthandler.ISTTService, 0, len(c.FallbackServiceConfigs))
	for i, fallback := range c.FallbackServiceConfigs {
		backup, err := BuildSTTService(fallback, logger)
		if err != nil {
			return nil, fmt.Errorf("session STT fallback %d: %w", i, err)
		}
		backups = append(backups, backup)
	}

	handlerConfig := stthandler.DefaultSTTConfig()
	if c.HandlerConfig != nil {
		handlerConfig = *c.HandlerConfig
	}
	return stthandler.NewSTTHandler(service, backups, logger, handlerConfig), nil
}

// SessionLLMConfig couples a handler config with a primary service config and
// an ordered list of fallbacks.
type SessionLLMConfig struct {
	HandlerConfig          *llmhandler.LLMHandlerConfig `json:"handler,omitempty"`
	ServiceConfig          LLMFactoryConfig             `json:"service"`
	FallbackServiceConfigs []LLMFactoryConfig           `json:"fallback_services,omitempty"`
}

func (c SessionLLMConfig) BuildHandler(logger *core.Logger) (*llmhandler.LLMHandler, error) {
	service, err := BuildLLMService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("session LLM service: %w", err)
	}

	handlerConfig := llmhandler.LLMHandlerConfig{}
	if c.HandlerConfig != nil {
		handlerConfig = *c.HandlerConfig
	}
	handler := llmhandler.NewLLMHandler(service, handlerConfig, logger)

	for i, fallback := range c.FallbackServiceConfigs {
		backup, err := BuildLLMService(fallback, logger)
		if err != nil {
			return nil, fmt.Errorf("session LLM fallback %d: %w", i, err)
		}
		handler.WithBackupService(backup)
	}
	return handler, nil
}

// SessionTTSConfig couples a handler config with a primary service config and
// an ordered list of fallbacks.
type SessionTTSConfig struct {
	HandlerConfig          *ttshandler.TTSConfig `json:"handler,omitempty"`
	ServiceConfig          TTSFactoryConfig      `json:"service"`
	FallbackServiceConfigs []TTSFactoryConfig    `json:"fallback_services,omitempty"`
}

func (c SessionTTSConfig) BuildHandler(logger *core.Logger) (*ttshandler.TTSHandler, error) {
	service, err := BuildTTSService(c.ServiceConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("session TTS service: %w", err)
	}

	backups := make([]ttshandler.ITTSService, 0, len(c.FallbackServiceConfigs))
	for i, fallback := range c.FallbackServiceConfigs {
		backup, err := BuildTTSService(fallback, logger)
		if err != nil {
			return nil, fmt.Errorf("session TTS fallback %d: %w", i, err)
		}
		backups = append(backups, backup)
	}

	handlerConfig := ttshandler.DefaultConfig()
	if c.HandlerConfig != nil {
		handlerConfig = *c.HandlerConfig
	}
	return ttshandler.NewTTSHandler(service, backups, logger, handlerConfig), nil
}

// APIKeys carries provider credentials injected from the environment, so
// session configs shipped over the wire never contain secrets.
type APIKeys struct {
	Deepgram   string
	Cartesia   string
	ElevenLabs string
	OpenAI     string
	Groq       string
	Together   string
	DeepSeek   string
	OpenRouter string
	Fireworks  string
	Cerebras   string
	XAI        string
	Mistral    string
	Perplexity string
}

// SessionConfig describes one voice session: the subscription tier, the voice
// preset, and the per-stage service configs. Tier and Voice drive defaults;
// explicit service config values win over tier defaults.
type SessionConfig struct {
	Tier  string `json:"tier,omitempty"`
	Voice string `json:"voice,omitempty"`
	// Language overrides the voice preset's language ("en" or "es").
	Language string `json:"language,omitempty"`

	STT SessionSTTConfig `json:"stt"`
	LLM SessionLLMConfig `json:"llm"`
	TTS SessionTTSConfig `json:"tts"`
}

// InjectAPIKeys fills in API keys on every service config that has one
// missing. Fallback configs are covered too.
func (c *SessionConfig) InjectAPIKeys(keys APIKeys) {
	injectSTTKeys := func(cfg *STTFactoryConfig) {
		if cfg.DeepgramConfig != nil && cfg.DeepgramConfig.APIKey == "" {
			cfg.DeepgramConfig.APIKey = keys.Deepgram
		}
	}
	injectSTTKeys(&c.STT.ServiceConfig)
	for i := range c.STT.FallbackServiceConfigs {
		injectSTTKeys(&c.STT.FallbackServiceConfigs[i])
	}

	injectLLMKeys := func(cfg *LLMFactoryConfig) {
		for _, pair := range []struct {
			cfg *openaillm.Config
			key string
		}{
			{cfg.OpenAIConfig, keys.OpenAI},
			{cfg.TogetherConfig, keys.Together},
			{cfg.GroqConfig, keys.Groq},
			{cfg.DeepSeekConfig, keys.DeepSeek},
			{cfg.OpenRouterConfig, keys.OpenRouter},
			{cfg.FireworksConfig, keys.Fireworks},
			{cfg.CerebrasConfig, keys.Cerebras},
			{cfg.XAIConfig, keys.XAI},
			{cfg.MistralConfig, keys.Mistral},
			{cfg.PerplexityConfig, keys.Perplexity},
		} {
			if pair.cfg != nil && pair.cfg.APIKey == "" {
				pair.cfg.APIKey = pair.key
			}
		}
	}
	injectLLMKeys(&c.LLM.ServiceConfig)
	for i := range c.LLM.FallbackServiceConfigs {
		injectLLMKeys(&c.LLM.FallbackServiceConfigs[i])
	}

	injectTTSKeys := func(cfg *TTSFactoryConfig) {
		if cfg.CartesiaConfig != nil && cfg.CartesiaConfig.APIKey == "" {
			cfg.CartesiaConfig.APIKey = keys.Cartesia
		}
		if cfg.ElevenLabsConfig != nil && cfg.ElevenLabsConfig.APIKey == "" {
			cfg.ElevenLabsConfig.APIKey = keys.ElevenLabs
		}
	}
	injectTTSKeys(&c.TTS.ServiceConfig)
	for i := range c.TTS.FallbackServiceConfigs {
		injectTTSKeys(&c.TTS.FallbackServiceConfigs[i])
	}
}

// ResolveTier parses the configured tier and voice preset names. An empty
// tier resolves to free.
func (c *SessionConfig) ResolveTier() (agent.TierSettings, agent.VoicePreset, error) {
	tierName := c.Tier
	if tierName == "" {
		tierName = string(agent.TierFree)
	}
	tier, err := agent.ParseTier(tierName)
	if err != nil {
		return agent.TierSettings{}, agent.VoicePreset{}, err
	}
	presetName := c.Voice
	if presetName == "" {
		presetName = agent.DefaultVoicePreset
	}
	preset, err := agent.PresetByName(presetName)
	if err != nil {
		return agent.TierSettings{}, agent.VoicePreset{}, err
	}
	if c.Language != "" {
		preset.Language = c.Language
	}
	settings, err := agent.SettingsForTier(tier)
	if err != nil {
		return agent.TierSettings{}, agent.VoicePreset{}, err
	}
	return settings, preset, nil
}

// ApplyTierDefaults resolves Tier and Voice and writes their settings into
// any service config field the caller left zero. It creates default service
// configs where none were given, so a SessionConfig holding nothing but a
// tier and a voice name is fully buildable.
func (c *SessionConfig) ApplyTierDefaults() error {
	settings, preset, err := c.ResolveTier()
	if err != nil {
		return err
	}

	if c.STT.ServiceConfig.DeepgramConfig == nil {
		// The stock default carries its own model and endpointing; the tier
		// values replace them outright on the default path.
		dg := deepgramstt.DefaultConfig()
		dg.Model = settings.STTModel
		dg.Language = preset.Language
		dg.Endpointing = settings.EndpointingMs
		c.STT.ServiceConfig.DeepgramConfig = dg
	} else {
		dg := c.STT.ServiceConfig.DeepgramConfig
		if dg.Model == "" {
			dg.Model = settings.STTModel
		}
		if dg.Language == "" {
			dg.Language = preset.Language
		}
		if dg.Endpointing == 0 {
			dg.Endpointing = settings.EndpointingMs
		}
	}

	if !c.LLM.ServiceConfig.hasProvider() {
		c.LLM.ServiceConfig.GroqConfig = &openaillm.Config{Streaming: true}
	}
	for _, llmCfg := range c.LLM.ServiceConfig.providerConfigs() {
		if llmCfg.Model == "" {
			llmCfg.Model = settings.LLMModel
		}
		if llmCfg.MaxTokens == 0 {
			llmCfg.MaxTokens = settings.MaxTokens
		}
	}

	if c.TTS.ServiceConfig.CartesiaConfig == nil && c.TTS.ServiceConfig.ElevenLabsConfig == nil {
		c.TTS.ServiceConfig.CartesiaConfig = &cartesia.CartesiaTTSConfig{}
	}
	if ct := c.TTS.ServiceConfig.CartesiaConfig; ct != nil {
		if ct.ModelID == "" {
			ct.ModelID = settings.TTSModel
		}
		if ct.VoiceID == "" {
			ct.VoiceID = preset.VoiceID
		}
		if ct.Language == "" {
			ct.Language = preset.Language
		}
		if ct.Speed == "" && ct.Emotion == nil {
			ct.Speed, ct.Emotion = preset.Emotion.CartesiaControls()
		}
	}
	// Fallback synthesizers speak the session's language too.
	applyElevenLabsDefaults := func(el *elevenlabs.ElevenLabsTTSConfig) {
		if el == nil {
			return
		}
		if el.Language == "" {
			el.Language = preset.Language
		}
	}
	applyElevenLabsDefaults(c.TTS.ServiceConfig.ElevenLabsConfig)
	for i := range c.TTS.FallbackServiceConfigs {
		applyElevenLabsDefaults(c.TTS.FallbackServiceConfigs[i].ElevenLabsConfig)
	}
	return nil
}

// SessionHandlers is the assembled pipeline for one session, in chain order.
type SessionHandlers struct {
	STT  *stthandler.STTHandler
	Turn *agent.TurnHandler
	LLM  *llmhandler.LLMHandler
	TTS  *ttshandler.TTSHandler
}

// Handlers returns the chain in pipeline order.
func (s SessionHandlers) Handlers() []core.IHandler {
	return []core.IHandler{s.STT, s.Turn, s.LLM, s.TTS}
}

// BuildHandlers applies tier defaults and constructs the full handler chain.
func (c *SessionConfig) BuildHandlers(logger *core.Logger) (SessionHandlers, error) {
	if err := c.ApplyTierDefaults(); err != nil {
		return SessionHandlers{}, err
	}
	settings, preset, err := c.ResolveTier()
	if err != nil {
		return SessionHandlers{}, err
	}

	sttHandler, err := c.STT.BuildHandler(logger)
	if err != nil {
		return SessionHandlers{}, err
	}
	llmHandler, err := c.LLM.BuildHandler(logger)
	if err != nil {
		return SessionHandlers{}, err
	}
	ttsHandler, err := c.TTS.BuildHandler(logger)
	if err != nil {
		return SessionHandlers{}, err
	}

	return SessionHandlers{
		STT:  sttHandler,
		Turn: agent.NewTurnHandler(settings, preset, logger),
		LLM:  llmHandler,
		TTS:  ttsHandler,
	}, nil
}

// hasProvider reports whether any provider config is set.
func (c LLMFactoryConfig) hasProvider() bool {
	return len(c.providerConfigs()) > 0
}

// providerConfigs returns the non-nil provider configs.
func (c LLMFactoryConfig) providerConfigs() []*openaillm.Config {
	all := []*openaillm.Config{
		c.OpenAIConfig, c.TogetherConfig, c.GroqConfig, c.DeepSeekConfig,
		c.OpenRouterConfig, c.FireworksConfig, c.CerebrasConfig,
		c.XAIConfig, c.MistralConfig, c.PerplexityConfig,
	}
	configs := make([]*openaillm.Config, 0, 1)
	for _, cfg := range all {
		if cfg != nil {
			configs = append(configs, cfg)
		}
	}
	return configs
}
