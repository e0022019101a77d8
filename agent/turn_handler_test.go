package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis/core"
	agentevents "vocalis/events/agent"
	llmevents "vocalis/events/llm"
	sttevents "vocalis/events/stt"
	ttsevents "vocalis/events/tts"
)

func newTestTurnHandler(t *testing.T, tier Tier) (*TurnHandler, chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	settings, err := SettingsForTier(tier)
	require.NoError(t, err)

	handler := NewTurnHandler(settings, mustPreset(t, DefaultVoicePreset), core.NewDevelopmentLogger())

	input := make(chan *core.EventPacket, 100)
	next := make(chan *core.EventPacket, 100)
	top := make(chan *core.EventPacket, 100)
	require.NoError(t, handler.Initialize(input, next, top, context.Background()))
	return handler, next, top
}

func mustPreset(t *testing.T, name string) VoicePreset {
	t.Helper()
	preset, err := PresetByName(name)
	require.NoError(t, err)
	return preset
}

func finalTranscript(text string) *core.EventPacket {
	return core.NewEventPacket(&sttevents.STTFinalOutputEvent{Text: text},
		core.EventRelayDestinationNextService, "test")
}

// drainNext collects everything currently buffered on the next channel.
func drainNext(ch chan *core.EventPacket) []core.IEvent {
	var events []core.IEvent
	for {
		select {
		case packet := <-ch:
			events = append(events, packet.Event)
		default:
			return events
		}
	}
}

func TestTurnHandlerStartsTurn(t *testing.T) {
	handler, next, _ := newTestTurnHandler(t, TierFree)

	require.NoError(t, handler.HandleEvent(finalTranscript("what time is it")))

	events := drainNext(next)
	require.Len(t, events, 3)

	started, ok := events[0].(*agentevents.TurnStartedEvent)
	require.True(t, ok)
	assert.Equal(t, "what time is it", started.UserText)

	generate, ok := events[1].(*llmevents.LLMGenerateResponseEvent)
	require.True(t, ok)
	require.NotEmpty(t, generate.Context.Messages)
	assert.Equal(t, core.LLMMessageRoleSystem, generate.Context.Messages[0].Role)
	last := generate.Context.Messages[len(generate.Context.Messages)-1]
	assert.Equal(t, "what time is it", last.Message)

	// The transcript itself still goes downstream.
	_, ok = events[2].(*sttevents.STTFinalOutputEvent)
	assert.True(t, ok)
}

func TestTurnHandlerDropsTranscriptWhileProcessing(t *testing.T) {
	handler, next, _ := newTestTurnHandler(t, TierFree)

	require.NoError(t, handler.HandleEvent(finalTranscript("first question")))
	drainNext(next)

	require.NoError(t, handler.HandleEvent(finalTranscript("second question")))

	events := drainNext(next)
	require.Len(t, events, 2)
	skipped, ok := events[0].(*agentevents.TurnSkippedEvent)
	require.True(t, ok)
	assert.Equal(t, "second question", skipped.UserText)
}

func TestTurnHandlerIgnoresEmptyTranscript(t *testing.T) {
	handler, next, _ := newTestTurnHandler(t, TierFree)

	require.NoError(t, handler.HandleEvent(finalTranscript("")))

	events := drainNext(next)
	// Only the transcript passthrough, no turn started.
	require.Len(t, events, 1)
	_, ok := events[0].(*sttevents.STTFinalOutputEvent)
	assert.True(t, ok)
}

func TestTurnHandlerCompletesTurn(t *testing.T) {
	handler, next, _ := newTestTurnHandler(t, TierFree)

	require.NoError(t, handler.HandleEvent(finalTranscript("hello there")))
	drainNext(next)

	require.NoError(t, handler.HandleEvent(core.NewEventPacket(
		&llmevents.LLMResponseCompletedEvent{FullText: "hi, how can I help?"},
		core.EventRelayDestinationNextService, "test")))

	events := drainNext(next)
	require.Len(t, events, 2)
	completed, ok := events[0].(*agentevents.TurnCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, "hello there", completed.UserText)
	assert.Equal(t, "hi, how can I help?", completed.AssistantText)

	assert.Equal(t, 2, handler.History().Len())

	// A new transcript starts a fresh turn once the prior one completed.
	require.NoError(t, handler.HandleEvent(finalTranscript("next question")))
	events = drainNext(next)
	_, ok = events[0].(*agentevents.TurnStartedEvent)
	assert.True(t, ok)
}

func TestTurnHandlerBargeInRequiresInterruptsAndSpeech(t *testing.T) {
	speechStarted := core.NewEventPacket(&sttevents.STTSpeechStartedEvent{},
		core.EventRelayDestinationNextService, "test")
	speakingStarted := core.NewEventPacket(&ttsevents.TTSSpeakingStartedEvent{},
		core.EventRelayDestinationNextService, "test")

	t.Run("pro tier while speaking fires barge-in", func(t *testing.T) {
		handler, _, top := newTestTurnHandler(t, TierPro)
		require.NoError(t, handler.HandleEvent(speakingStarted))
		require.NoError(t, handler.HandleEvent(speechStarted))

		select {
		case packet := <-top:
			_, ok := packet.Event.(*agentevents.BargeInEvent)
			assert.True(t, ok)
			assert.Equal(t, core.EventRelayDestinationTopService, packet.Destination)
		case <-time.After(time.Second):
			t.Fatal("expected barge-in event on top channel")
		}
	})

	t.Run("free tier never interrupts", func(t *testing.T) {
		handler, _, top := newTestTurnHandler(t, TierFree)
		require.NoError(t, handler.HandleEvent(speakingStarted))
		require.NoError(t, handler.HandleEvent(speechStarted))
		assert.Empty(t, len(top))
	})

	t.Run("pro tier while silent does not interrupt", func(t *testing.T) {
		handler, _, top := newTestTurnHandler(t, TierPro)
		require.NoError(t, handler.HandleEvent(speechStarted))
		assert.Empty(t, len(top))
	})

	t.Run("speaking ended clears barge-in eligibility", func(t *testing.T) {
		handler, _, top := newTestTurnHandler(t, TierPro)
		require.NoError(t, handler.HandleEvent(speakingStarted))
		require.NoError(t, handler.HandleEvent(core.NewEventPacket(
			&ttsevents.TTSSpeakingEndedEvent{},
			core.EventRelayDestinationNextService, "test")))
		require.NoError(t, handler.HandleEvent(speechStarted))
		assert.Empty(t, len(top))
	})
}

func TestTurnHandlerSpeaksErrorOnFailure(t *testing.T) {
	handler, next, _ := newTestTurnHandler(t, TierFree)

	require.NoError(t, handler.HandleEvent(finalTranscript("hello")))
	drainNext(next)

	require.NoError(t, handler.HandleEvent(core.NewEventPacket(
		&llmevents.LLMResponseFailedEvent{Error: "provider unavailable"},
		core.EventRelayDestinationNextService, "test")))

	events := drainNext(next)
	require.Len(t, events, 2)
	speak, ok := events[0].(*ttsevents.TTSSpeakEvent)
	require.True(t, ok)
	assert.Equal(t, SpokenErrorMessage("en"), speak.Text)

	// The spoken apology is recorded so the history stays consistent.
	assert.Equal(t, 2, handler.History().Len())

	// And the handler accepts new turns again.
	require.NoError(t, handler.HandleEvent(finalTranscript("try again")))
	events = drainNext(next)
	_, ok = events[0].(*agentevents.TurnStartedEvent)
	assert.True(t, ok)
}

func TestTurnHandlerReset(t *testing.T) {
	handler, next, _ := newTestTurnHandler(t, TierFree)

	require.NoError(t, handler.HandleEvent(finalTranscript("hello")))
	drainNext(next)

	require.NoError(t, handler.Reset())

	// Reset clears turn state but keeps history.
	assert.Equal(t, 1, handler.History().Len())
	require.NoError(t, handler.HandleEvent(finalTranscript("again")))
	events := drainNext(next)
	_, ok := events[0].(*agentevents.TurnStartedEvent)
	assert.True(t, ok)
}
