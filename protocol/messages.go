package protocol

import "encoding/json"

// MessageType enumerates the control messages exchanged with a connected
// client over the demo WebSocket transport.
type MessageType string

const (
	// Server -> client
	MsgSessionStarted MessageType = "session_started"
	MsgInterim        MessageType = "interim_transcript"
	MsgTranscript     MessageType = "transcript"
	MsgAssistantText  MessageType = "assistant_text"
	MsgAudioHeader    MessageType = "audio" // followed by a binary PCM frame
	MsgSpeakingStart  MessageType = "speaking_started"
	MsgSpeakingEnd    MessageType = "speaking_ended"
	MsgBargeIn        MessageType = "barge_in"
	MsgTurnCompleted  MessageType = "turn_completed"
	MsgWarning        MessageType = "warning"
	MsgSessionEnded   MessageType = "session_ended"

	// Client -> server
	MsgTextInput MessageType = "text_input"
	MsgEndCall   MessageType = "end_call"
)

// Envelope is the outer JSON wrapper for all text WebSocket messages.
// Audio travels as binary frames announced by a preceding MsgAudioHeader.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SessionStartedPayload is sent once when a pipeline is ready.
type SessionStartedPayload struct {
	SessionID string `json:"session_id"`
	Tier      string `json:"tier"`
	Voice     string `json:"voice"`
	Language  string `json:"language"`
}

// TranscriptPayload carries a final or interim user transcript.
type TranscriptPayload struct {
	Text string `json:"text"`
}

// AssistantTextPayload carries the assistant's full response for a turn.
type AssistantTextPayload struct {
	Text string `json:"text"`
}

// AudioHeaderPayload announces a binary audio frame that follows.
type AudioHeaderPayload struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Encoding   string `json:"encoding"`
	Size       int    `json:"size"`
}

// TurnCompletedPayload summarizes one finished conversation turn.
type TurnCompletedPayload struct {
	UserText      string `json:"user_text"`
	AssistantText string `json:"assistant_text"`
}

// WarningPayload carries a non-fatal session warning (e.g. a skipped turn).
type WarningPayload struct {
	Message string `json:"message"`
}

// TextInputPayload is a typed user turn, used when the client has no
// microphone (demo mode over the wire).
type TextInputPayload struct {
	Text string `json:"text"`
}

// SessionEndedPayload is the last message before the server closes the socket.
type SessionEndedPayload struct {
	Reason string `json:"reason,omitempty"`
}
