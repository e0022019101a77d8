package agent

import (
	"time"

	"vocalis/core"
)

// historyWindow is how many recent turns feed the LLM context alongside the
// system prompt.
const historyWindow = 10

// Turn is one conversation turn.
type Turn struct {
	Role      core.LLMMessageRole `json:"role"`
	Content   string              `json:"content"`
	Timestamp time.Time           `json:"timestamp"`
}

// History is the in-memory conversation record for a session. Not safe for
// concurrent use; the turn handler owns it from a single goroutine.
type History struct {
	turns []Turn
}

func NewHistory() *History {
	return &History{}
}

func (h *History) AddUserTurn(text string) {
	h.add(core.LLMMessageRoleUser, text)
}

func (h *History) AddAssistantTurn(text string) {
	h.add(core.LLMMessageRoleAssistant, text)
}

func (h *History) add(role core.LLMMessageRole, text string) {
	h.turns = append(h.turns, Turn{
		Role:      role,
		Content:   text,
		Timestamp: time.Now(),
	})
}

// Len returns the total number of recorded turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Window returns the most recent n turns.
func (h *History) Window(n int) []Turn {
	if len(h.turns) <= n {
		return h.turns
	}
	return h.turns[len(h.turns)-n:]
}

// BuildContext assembles the completion context: the system prompt followed
// by the recent turn window.
func (h *History) BuildContext(systemPrompt string) core.LLMContext {
	ctx := core.LLMContext{}
	ctx.AddSystemMessage(systemPrompt)
	for _, turn := range h.Window(historyWindow) {
		ctx.Messages = append(ctx.Messages, core.LLMMessage{
			Role:    turn.Role,
			Message: turn.Content,
		})
	}
	return ctx
}
