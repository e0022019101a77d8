package agent

import "fmt"

// Emotion controls the synthesized voice's delivery.
type Emotion string

const (
	EmotionNeutral      Emotion = "neutral"
	EmotionHappy        Emotion = "happy"
	EmotionWarm         Emotion = "warm"
	EmotionProfessional Emotion = "professional"
	EmotionSympathetic  Emotion = "sympathetic"
	EmotionExcited      Emotion = "excited"
	EmotionCalm         Emotion = "calm"
)

// CartesiaControls maps an emotion to the synthesizer's experimental
// delivery controls: a speed setting and an emotion tag list.
func (e Emotion) CartesiaControls() (speed string, emotion []string) {
	switch e {
	case EmotionHappy:
		return "normal", []string{"positivity:high"}
	case EmotionWarm:
		return "slow", []string{"positivity:medium"}
	case EmotionProfessional:
		return "normal", nil
	case EmotionSympathetic:
		return "slow", []string{"positivity:low"}
	case EmotionExcited:
		return "fast", []string{"positivity:highest"}
	case EmotionCalm:
		return "slow", nil
	default: // EmotionNeutral
		return "normal", nil
	}
}

// VoicePreset names a synthesizer voice plus its language and default
// delivery.
type VoicePreset struct {
	Name     string
	VoiceID  string
	Language string
	Emotion  Emotion
}

var voicePresets = map[string]VoicePreset{
	"mexican-woman": {
		Name:     "mexican-woman",
		VoiceID:  "a0e99841-438c-4a64-b679-ae501e7d6091",
		Language: "es",
		Emotion:  EmotionWarm,
	},
	"american-man": {
		Name:     "american-man",
		VoiceID:  "bf991597-6c13-47e4-8411-91ec2de5c466",
		Language: "en",
		Emotion:  EmotionProfessional,
	},
	"spanish-man": {
		Name:     "spanish-man",
		VoiceID:  "846d6cb0-2301-48b6-9571-15daae6f6f82",
		Language: "es",
		Emotion:  EmotionCalm,
	},
	"british-woman": {
		Name:     "british-woman",
		VoiceID:  "71a7ad14-091c-4e8e-a314-022ece01c121",
		Language: "en",
		Emotion:  EmotionProfessional,
	},
}

// DefaultVoicePreset is used when a session does not pick a voice.
const DefaultVoicePreset = "american-man"

// PresetByName resolves a voice preset.
func PresetByName(name string) (VoicePreset, error) {
	p, ok := voicePresets[name]
	if !ok {
		return VoicePreset{}, fmt.Errorf("unknown voice preset %q", name)
	}
	return p, nil
}

// VoicePresets lists the available preset names.
func VoicePresets() []string {
	names := make([]string, 0, len(voicePresets))
	for name := range voicePresets {
		names = append(names, name)
	}
	return names
}
