package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis/core"
)

func TestHistoryWindow(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 15; i++ {
		h.AddUserTurn(fmt.Sprintf("question %d", i))
		h.AddAssistantTurn(fmt.Sprintf("answer %d", i))
	}

	assert.Equal(t, 30, h.Len())

	window := h.Window(10)
	require.Len(t, window, 10)
	assert.Equal(t, "question 10", window[0].Content)
	assert.Equal(t, "answer 14", window[9].Content)
}

func TestHistoryWindowSmallerThanN(t *testing.T) {
	h := NewHistory()
	h.AddUserTurn("hello")

	window := h.Window(10)
	require.Len(t, window, 1)
	assert.Equal(t, core.LLMMessageRoleUser, window[0].Role)
}

func TestBuildContext(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 8; i++ {
		h.AddUserTurn(fmt.Sprintf("q%d", i))
		h.AddAssistantTurn(fmt.Sprintf("a%d", i))
	}

	ctx := h.BuildContext("be helpful")

	// System prompt plus the last 10 turns.
	require.Len(t, ctx.Messages, 11)
	assert.Equal(t, core.LLMMessageRoleSystem, ctx.Messages[0].Role)
	assert.Equal(t, "be helpful", ctx.Messages[0].Message)
	assert.Equal(t, "q3", ctx.Messages[1].Message)
	assert.Equal(t, "a7", ctx.Messages[10].Message)
}
