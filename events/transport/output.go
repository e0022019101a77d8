package transport

import "vocalis/core"

type TransportAudioInputEvent struct {
	AudioChunk core.AudioChunk
}

func (e *TransportAudioInputEvent) GetId() string {
	return "transport.audio_input"
}

type TransportTextInputEvent struct {
	Text string
}

func (e *TransportTextInputEvent) GetId() string {
	return "transport.text_input"
}
