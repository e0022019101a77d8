package elevenlabs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"vocalis/core"
)

func TestNewElevenLabsTTSDefaults(t *testing.T) {
	tts := NewElevenLabsTTS(ElevenLabsTTSConfig{APIKey: "test"}, nil)

	assert.Equal(t, defaultElevenLabsURL, tts.config.BaseURL)
	assert.Equal(t, defaultElevenLabsVoiceID, tts.config.VoiceID)
	assert.Equal(t, defaultElevenLabsModelID, tts.config.ModelID)
	assert.Equal(t, defaultStability, tts.config.Stability)
	assert.Equal(t, defaultSimilarityBoost, tts.config.SimilarityBoost)
	assert.Empty(t, tts.config.Language)
}

func TestStreamURL(t *testing.T) {
	tts := NewElevenLabsTTS(ElevenLabsTTSConfig{
		APIKey:  "test",
		VoiceID: "voice-123",
		ModelID: "eleven_turbo_v2_5",
	}, nil)

	url := tts.streamURL()
	assert.Contains(t, url, defaultElevenLabsURL+"/voice-123/stream-input?")
	assert.Contains(t, url, "model_id=eleven_turbo_v2_5")
	assert.Contains(t, url, "output_format=pcm_24000")
	assert.NotContains(t, url, "language_code")
}

func TestStreamURLCarriesLanguage(t *testing.T) {
	tts := NewElevenLabsTTS(ElevenLabsTTSConfig{
		APIKey:   "test",
		Language: "es",
	}, nil)

	assert.Contains(t, tts.streamURL(), "language_code=es")
}

func TestOutputFormatString(t *testing.T) {
	assert.Equal(t, "ulaw_8000", outputFormatString(core.ULAW, 8000))
	assert.Equal(t, "pcm_16000", outputFormatString(core.PCM, 16000))
	assert.Equal(t, "pcm_44100", outputFormatString(core.PCM, 44100))
	assert.Equal(t, "pcm_24000", outputFormatString(core.PCM, 24000))
	assert.Equal(t, "pcm_24000", outputFormatString(core.PCM, 48000))
}

func TestInitializeRequiresAPIKey(t *testing.T) {
	tts := NewElevenLabsTTS(ElevenLabsTTSConfig{}, nil)
	assert.Error(t, tts.Initialize(context.Background()))
}
