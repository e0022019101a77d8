package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetByName(t *testing.T) {
	tests := []struct {
		name     string
		voiceID  string
		language string
		emotion  Emotion
	}{
		{"mexican-woman", "a0e99841-438c-4a64-b679-ae501e7d6091", "es", EmotionWarm},
		{"american-man", "bf991597-6c13-47e4-8411-91ec2de5c466", "en", EmotionProfessional},
		{"spanish-man", "846d6cb0-2301-48b6-9571-15daae6f6f82", "es", EmotionCalm},
		{"british-woman", "71a7ad14-091c-4e8e-a314-022ece01c121", "en", EmotionProfessional},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preset, err := PresetByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.voiceID, preset.VoiceID)
			assert.Equal(t, tt.language, preset.Language)
			assert.Equal(t, tt.emotion, preset.Emotion)
		})
	}

	_, err := PresetByName("robot-voice")
	assert.Error(t, err)
}

func TestEmotionCartesiaControls(t *testing.T) {
	tests := []struct {
		emotion Emotion
		speed   string
		tags    []string
	}{
		{EmotionNeutral, "normal", nil},
		{EmotionHappy, "normal", []string{"positivity:high"}},
		{EmotionWarm, "slow", []string{"positivity:medium"}},
		{EmotionProfessional, "normal", nil},
		{EmotionSympathetic, "slow", []string{"positivity:low"}},
		{EmotionExcited, "fast", []string{"positivity:highest"}},
		{EmotionCalm, "slow", nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.emotion), func(t *testing.T) {
			speed, tags := tt.emotion.CartesiaControls()
			assert.Equal(t, tt.speed, speed)
			assert.Equal(t, tt.tags, tags)
		})
	}
}

func TestDefaultVoicePresetExists(t *testing.T) {
	_, err := PresetByName(DefaultVoicePreset)
	require.NoError(t, err)
}
