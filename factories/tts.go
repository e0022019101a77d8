package factories

import (
	"errors"

	"vocalis/core"
	ttshandler "vocalis/handlers/tts"
	cartesia "vocalis/services/cartesia/tts"
	elevenlabs "vocalis/services/elevenlabs/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service
// construction. Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	CartesiaConfig   *cartesia.CartesiaTTSConfig     `json:"cartesia,omitempty"`
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
}

// BuildTTSService constructs an ITTSService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (ttshandler.ITTSService, error) {
	if config.CartesiaConfig != nil {
		return cartesia.NewCartesiaTTS(*config.CartesiaConfig, logger), nil
	}
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
