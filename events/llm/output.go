package llm

import "vocalis/core"

type LLMGenerateResponseEvent struct {
	Context core.LLMContext `json:"context"`
}

func (*LLMGenerateResponseEvent) GetId() string {
	return "llm.generate_response"
}

type LLMResponseStartedEvent struct {
}

func (e *LLMResponseStartedEvent) GetId() string {
	return "llm.response_started"
}

type LLMResponseChunkEvent struct {
	Chunk string // A chunk of the LLM response text.
}

func (e *LLMResponseChunkEvent) GetId() string {
	return "llm.response_chunk"
}

type LLMResponseCompletedEvent struct {
	FullText string // The complete LLM response text.
}

func (e *LLMResponseCompletedEvent) GetId() string {
	return "llm.response_completed"
}

// LLMResponseFailedEvent is fired when a generation fails outright. The turn
// handler reacts by speaking the localized error message.
type LLMResponseFailedEvent struct {
	Error string
}

func (e *LLMResponseFailedEvent) GetId() string {
	return "llm.response_failed"
}

type LLMToolInvocationRequestedEvent struct {
	ToolId string          // Identifier of the tool to be invoked.
	Params *map[string]any // Parameters required for the tool invocation.
}

func (e *LLMToolInvocationRequestedEvent) GetId() string {
	return "llm.tool_invocation_requested"
}

type LLMToolInvocationResultEvent struct {
	ToolId string // Identifier of the tool that was invoked.
	Result string // Result returned from the tool invocation, typically as a string.
}

func (e *LLMToolInvocationResultEvent) GetId() string {
	return "llm.tool_invocation_result"
}
