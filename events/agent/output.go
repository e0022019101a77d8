package agent

// BargeInEvent is fired by the turn handler when user speech is detected
// while the agent is speaking and the session tier allows interrupts. The
// TTS handler reacts by resetting its synthesis context; nothing cancels
// in-flight network calls.
type BargeInEvent struct {
}

func (e *BargeInEvent) GetId() string {
	return "agent.barge_in"
}

// TurnStartedEvent marks the beginning of turn processing for a final
// user transcript.
type TurnStartedEvent struct {
	UserText string
}

func (e *TurnStartedEvent) GetId() string {
	return "agent.turn_started"
}

// TurnCompletedEvent marks the end of a turn: the assistant's full response
// text has been recorded in the conversation history.
type TurnCompletedEvent struct {
	UserText      string
	AssistantText string
}

func (e *TurnCompletedEvent) GetId() string {
	return "agent.turn_completed"
}

// TurnSkippedEvent is fired when a final transcript arrives while a prior
// turn is still processing. The transcript is dropped.
type TurnSkippedEvent struct {
	UserText string
}

func (e *TurnSkippedEvent) GetId() string {
	return "agent.turn_skipped"
}
