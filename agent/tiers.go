package agent

import "fmt"

// Tier is a named bundle of latency, model, and interaction settings
// selected by the caller when a session starts.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// TierSettings is the full settings bundle a tier resolves to.
type TierSettings struct {
	TargetLatencyMs int
	LLMModel        string
	MaxTokens       int
	STTModel        string
	TTSModel        string
	// AllowInterrupts enables barge-in: user speech cuts off in-progress
	// synthesized audio.
	AllowInterrupts bool
	// EndpointingMs is the silence window the transcriber waits for before
	// finalizing an utterance.
	EndpointingMs int
}

var tierSettings = map[Tier]TierSettings{
	TierFree: {
		TargetLatencyMs: 3000,
		LLMModel:        "llama-3.1-8b-instant",
		MaxTokens:       256,
		STTModel:        "nova-2",
		TTSModel:        "sonic-english",
		AllowInterrupts: false,
		EndpointingMs:   500,
	},
	TierStarter: {
		TargetLatencyMs: 2500,
		LLMModel:        "llama-3.1-8b-instant",
		MaxTokens:       512,
		STTModel:        "nova-2",
		TTSModel:        "sonic-english",
		AllowInterrupts: true,
		EndpointingMs:   400,
	},
	TierPro: {
		TargetLatencyMs: 600,
		LLMModel:        "llama-3.1-70b-versatile",
		MaxTokens:       1024,
		STTModel:        "nova-2",
		TTSModel:        "sonic-multilingual",
		AllowInterrupts: true,
		EndpointingMs:   300,
	},
	TierEnterprise: {
		TargetLatencyMs: 400,
		LLMModel:        "llama-3.1-70b-versatile",
		MaxTokens:       2048,
		STTModel:        "nova-2",
		TTSModel:        "sonic-multilingual",
		AllowInterrupts: true,
		EndpointingMs:   250,
	},
}

// ParseTier validates a tier name from config or the wire.
func ParseTier(name string) (Tier, error) {
	t := Tier(name)
	if _, ok := tierSettings[t]; !ok {
		return "", fmt.Errorf("unknown tier %q", name)
	}
	return t, nil
}

// SettingsForTier resolves a tier to its settings bundle.
func SettingsForTier(t Tier) (TierSettings, error) {
	s, ok := tierSettings[t]
	if !ok {
		return TierSettings{}, fmt.Errorf("unknown tier %q", t)
	}
	return s, nil
}

// Tiers lists the valid tier names.
func Tiers() []Tier {
	return []Tier{TierFree, TierStarter, TierPro, TierEnterprise}
}
