package training

// Example is one raw input/output pair before conversation formatting. Input
// is the user's message text; Output is the assistant's JSON answer.
type Example struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ConversationMessage is one message in a training conversation.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrainingRecord is one JSONL line: a system/user/assistant triple.
type TrainingRecord struct {
	Conversations []ConversationMessage `json:"conversations"`
}

// FormatForTraining wraps an example into the conversation triple the
// trainer expects.
func FormatForTraining(systemPrompt string, example Example) TrainingRecord {
	return TrainingRecord{
		Conversations: []ConversationMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: example.Input},
			{Role: "assistant", Content: example.Output},
		},
	}
}

// UserText returns the user message of a record, or "".
func (r TrainingRecord) UserText() string {
	for _, m := range r.Conversations {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

// AssistantText returns the assistant message of a record, or "".
func (r TrainingRecord) AssistantText() string {
	for _, m := range r.Conversations {
		if m.Role == "assistant" {
			return m.Content
		}
	}
	return ""
}
