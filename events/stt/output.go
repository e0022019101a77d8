package stt

type STTInterimOutputEvent struct {
	Text string
}

func (e *STTInterimOutputEvent) GetId() string {
	return "stt.interim_output"
}

type STTFinalOutputEvent struct {
	Text string
}

func (e *STTFinalOutputEvent) GetId() string {
	return "stt.final_output"
}

// STTSpeechStartedEvent is relayed when the transcription service detects
// the start of user speech. The turn handler uses it for barge-in.
type STTSpeechStartedEvent struct {
	Timestamp float64
}

func (e *STTSpeechStartedEvent) GetId() string {
	return "stt.speech_started"
}

// STTUtteranceEndEvent is relayed when the transcription service decides the
// user has stopped speaking (no words for utterance_end_ms).
type STTUtteranceEndEvent struct {
	LastWordEnd float64
}

func (e *STTUtteranceEndEvent) GetId() string {
	return "stt.utterance_end"
}
