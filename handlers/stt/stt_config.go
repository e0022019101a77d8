package stt

import "vocalis/core"

// STTConfig pins the audio shape delivered to the transcription service.
type STTConfig struct {
	RequiredSampleRate  int
	RequiredChannels    int
	RequiredAudioFormat core.AudioEncodingFormat
}

// DefaultSTTConfig matches what the live transcription endpoint expects:
// 16kHz mono linear PCM.
func DefaultSTTConfig() STTConfig {
	return STTConfig{
		RequiredSampleRate:  16000,
		RequiredChannels:    1,
		RequiredAudioFormat: core.PCM,
	}
}
