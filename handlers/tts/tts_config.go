package tts

// TTSConfig tunes sentence chunking for synthesis.
type TTSConfig struct {
	// BreakWords are the sentence-final markers that trigger dispatch of
	// buffered text to the synthesizer.
	BreakWords []string `json:"break_words"`
	// MinTextLength is the minimum buffered length before a sentence is
	// dispatched early; prevents synthesizing one-word fragments.
	MinTextLength int `json:"min_text_length"`
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		BreakWords:    []string{".", "!", "?"},
		MinTextLength: 20,
	}
}
