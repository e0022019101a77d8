package core

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
	LLMMessageRoleTool      LLMMessageRole = "tool"
)

type LLMMediaType string

const (
	LLMMediaTypeAudioWAV  LLMMediaType = "audio/wav"
	LLMMediaTypeAudioMP3  LLMMediaType = "audio/mpeg"
	LLMMediaTypeImagePNG  LLMMediaType = "image/png"
	LLMMediaTypeImageJPEG LLMMediaType = "image/jpeg"
)

type LLMMedia struct {
	Data      []byte       // Raw media data, base64-encoded when sent over the wire.
	MediaType LLMMediaType // MIME type of the media.
}

// LLMMessage represents a message exchanged with the LLM.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`
	Message string         `json:"message"`
	Media   *[]LLMMedia    `json:"media,omitempty"`
}

type LLMParameterType string

const (
	LLMParameterTypeString  LLMParameterType = "string"
	LLMParameterTypeInteger LLMParameterType = "number"
	LLMParameterTypeBoolean LLMParameterType = "boolean"
	LLMParameterTypeObject  LLMParameterType = "object"
)

// Parameter represents a parameter for an LLM tool.
type Parameter struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Required    bool             `json:"required"`
	Example     string           `json:"example"`
	Type        LLMParameterType `json:"type"`
}

// LLMTool represents a tool that can be used by the LLM.
type LLMTool struct {
	Name        string      `json:"name"`
	ToolId      string      `json:"tool_id"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
}

// LLMContext carries the message window and tools handed to a completion.
type LLMContext struct {
	Messages []LLMMessage
	Tools    []LLMTool
}

func (c *LLMContext) AddSystemMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleSystem, Message: text})
}

func (c *LLMContext) AddUserMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Message: text})
}

func (c *LLMContext) AddAssistantMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleAssistant, Message: text})
}

// AddAssistantMessageChunk appends a streamed chunk to the trailing assistant
// message, creating one if the last message has a different role.
func (c *LLMContext) AddAssistantMessageChunk(chunk string) {
	if n := len(c.Messages); n > 0 && c.Messages[n-1].Role == LLMMessageRoleAssistant {
		c.Messages[n-1].Message += chunk
		return
	}
	c.AddAssistantMessage(chunk)
}

// SetAssistantMessage replaces the trailing assistant message, creating one
// if the last message has a different role.
func (c *LLMContext) SetAssistantMessage(text string) {
	if n := len(c.Messages); n > 0 && c.Messages[n-1].Role == LLMMessageRoleAssistant {
		c.Messages[n-1].Message = text
		return
	}
	c.AddAssistantMessage(text)
}

func (c *LLMContext) GetLastAssistantMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == LLMMessageRoleAssistant {
			return c.Messages[i].Message
		}
	}
	return ""
}

// LLMToolCall represents a call to an LLM tool.
type LLMToolCall struct {
	ToolId     string          `json:"tool_id"`
	Parameters *map[string]any `json:"parameters,omitempty"`
}
