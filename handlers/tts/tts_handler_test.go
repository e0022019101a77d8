package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis/core"
	"vocalis/events/agent"
	"vocalis/events/llm"
	ttsevents "vocalis/events/tts"
)

// fakeTTSService records buffered text and lifecycle calls.
type fakeTTSService struct {
	mu            sync.Mutex
	buffered      []string
	flushes       int
	resets        int
	startSessions int

	bufferedCh chan string
	flushCh    chan struct{}
}

func newFakeTTSService() *fakeTTSService {
	return &fakeTTSService{
		bufferedCh: make(chan string, 16),
		flushCh:    make(chan struct{}, 16),
	}
}

func (s *fakeTTSService) Initialize(ctx context.Context) error { return nil }
func (s *fakeTTSService) Cleanup() error                       { return nil }

func (s *fakeTTSService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return nil
}

func (s *fakeTTSService) StartTTSSession(
	outChan chan<- core.AudioChunk,
	errorChan chan<- error,
	doneChan chan<- bool,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startSessions++
	return nil
}

func (s *fakeTTSService) startSessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startSessions
}

func (s *fakeTTSService) BufferText(text string) error {
	s.mu.Lock()
	s.buffered = append(s.buffered, text)
	s.mu.Unlock()
	s.bufferedCh <- text
	return nil
}

func (s *fakeTTSService) Flush() error {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
	s.flushCh <- struct{}{}
	return nil
}

func (s *fakeTTSService) resetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

func newTestTTSHandler(t *testing.T, service *fakeTTSService, config TTSConfig) (*TTSHandler, chan *core.EventPacket) {
	t.Helper()
	handler := NewTTSHandler(service, nil, core.NewDevelopmentLogger(), config)

	input := make(chan *core.EventPacket, 100)
	next := make(chan *core.EventPacket, 100)
	top := make(chan *core.EventPacket, 100)
	require.NoError(t, handler.Initialize(input, next, top, context.Background()))
	return handler, next
}

func chunkPacket(text string) *core.EventPacket {
	return core.NewEventPacket(&llm.LLMResponseChunkEvent{Chunk: text},
		core.EventRelayDestinationNextService, "test")
}

func waitForText(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case text := <-ch:
		return text
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for buffered text")
		return ""
	}
}

func waitForFlush(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func TestTTSHandlerDispatchesCompleteSentences(t *testing.T) {
	service := newFakeTTSService()
	handler, next := newTestTTSHandler(t, service, TTSConfig{
		BreakWords:    []string{".", "!", "?"},
		MinTextLength: 5,
	})

	require.NoError(t, handler.HandleEvent(chunkPacket("We start ")))
	require.NoError(t, handler.HandleEvent(chunkPacket("Monday. And")))

	assert.Equal(t, "We start Monday.", waitForText(t, service.bufferedCh))

	// The unterminated tail stays buffered until completion.
	require.NoError(t, handler.HandleEvent(core.NewEventPacket(
		&llm.LLMResponseCompletedEvent{FullText: "We start Monday. And"},
		core.EventRelayDestinationNextService, "test")))
	assert.Equal(t, "And", waitForText(t, service.bufferedCh))
	waitForFlush(t, service.flushCh)

	// Spoken text chunks mirror what went to the synthesizer.
	var spoken []string
	for len(next) > 0 {
		packet := <-next
		if event, ok := packet.Event.(*ttsevents.TTSSpokenTextChunkEvent); ok {
			spoken = append(spoken, event.Text)
		}
	}
	assert.Equal(t, []string{"We start Monday.", "And"}, spoken)
}

func TestTTSHandlerWaitsForMinTextLength(t *testing.T) {
	service := newFakeTTSService()
	handler, _ := newTestTTSHandler(t, service, TTSConfig{
		BreakWords:    []string{".", "!", "?"},
		MinTextLength: 20,
	})

	// "Yes." ends a sentence but is too short to speak alone.
	require.NoError(t, handler.HandleEvent(chunkPacket("Yes.")))
	select {
	case text := <-service.bufferedCh:
		t.Fatalf("dispatched %q before reaching the minimum length", text)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, handler.HandleEvent(chunkPacket(" We can begin right away.")))
	assert.Equal(t, "Yes. We can begin right away.", waitForText(t, service.bufferedCh))
}

func TestTTSHandlerSpeakEventBypassesAssembly(t *testing.T) {
	service := newFakeTTSService()
	handler, next := newTestTTSHandler(t, service, DefaultConfig())

	require.NoError(t, handler.HandleEvent(core.NewEventPacket(
		&ttsevents.TTSSpeakEvent{Text: "Sorry, could you repeat that?"},
		core.EventRelayDestinationNextService, "test")))

	assert.Equal(t, "Sorry, could you repeat that?", waitForText(t, service.bufferedCh))
	waitForFlush(t, service.flushCh)

	found := false
	for len(next) > 0 {
		packet := <-next
		if event, ok := packet.Event.(*ttsevents.TTSSpokenTextChunkEvent); ok {
			assert.Equal(t, "Sorry, could you repeat that?", event.Text)
			found = true
		}
	}
	assert.True(t, found)
}

func TestTTSHandlerBargeInDropsPendingText(t *testing.T) {
	service := newFakeTTSService()
	handler, _ := newTestTTSHandler(t, service, TTSConfig{
		BreakWords:    []string{".", "!", "?"},
		MinTextLength: 5,
	})

	require.NoError(t, handler.HandleEvent(chunkPacket("this text never finishes")))
	require.NoError(t, handler.HandleEvent(core.NewEventPacket(
		&agent.BargeInEvent{}, core.EventRelayDestinationNextService, "test")))

	require.Eventually(t, func() bool {
		return service.resetCount() == 1
	}, time.Second, 10*time.Millisecond)

	// After the barge-in the dropped text must not surface on completion.
	require.NoError(t, handler.HandleEvent(core.NewEventPacket(
		&llm.LLMResponseCompletedEvent{}, core.EventRelayDestinationNextService, "test")))
	waitForFlush(t, service.flushCh)
	select {
	case text := <-service.bufferedCh:
		t.Fatalf("dropped text %q was synthesized after barge-in", text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTTSHandlerNormalizesMarkdown(t *testing.T) {
	service := newFakeTTSService()
	handler, _ := newTestTTSHandler(t, service, TTSConfig{
		BreakWords:    []string{".", "!", "?"},
		MinTextLength: 5,
	})

	require.NoError(t, handler.HandleEvent(chunkPacket("**Great** news, we can start today.")))
	assert.Equal(t, "Great news, we can start today.", waitForText(t, service.bufferedCh))
}

func waitForEvent(t *testing.T, ch chan *core.EventPacket, match func(core.IEvent) bool, what string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case packet := <-ch:
			if match(packet.Event) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func TestTTSHandlerFailoverRestartsSession(t *testing.T) {
	primary := newFakeTTSService()
	backup := newFakeTTSService()
	handler := NewTTSHandler(primary, []ITTSService{backup}, core.NewDevelopmentLogger(), DefaultConfig())

	input := make(chan *core.EventPacket, 100)
	next := make(chan *core.EventPacket, 100)
	top := make(chan *core.EventPacket, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, handler.Initialize(input, next, top, ctx))

	handler.HandleError(errors.New("synthesis socket died"))

	// The promoted backup must come up with a live streaming session.
	require.Eventually(t, func() bool {
		return backup.startSessionCount() == 1
	}, time.Second, 10*time.Millisecond)
	waitForEvent(t, top, func(e core.IEvent) bool {
		_, ok := e.(*core.WarningEvent)
		return ok
	}, "failover warning")

	// Speech after the switch reaches the backup, not the dead primary.
	require.NoError(t, handler.HandleEvent(core.NewEventPacket(
		&ttsevents.TTSSpeakEvent{Text: "Still here."},
		core.EventRelayDestinationNextService, "test")))
	assert.Equal(t, "Still here.", waitForText(t, backup.bufferedCh))
}

func TestTTSHandlerBargeInRearmsSpeakingEvents(t *testing.T) {
	service := newFakeTTSService()
	handler := NewTTSHandler(service, nil, core.NewDevelopmentLogger(), DefaultConfig())

	input := make(chan *core.EventPacket, 100)
	next := make(chan *core.EventPacket, 100)
	top := make(chan *core.EventPacket, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, handler.Initialize(input, next, top, ctx))
	require.NoError(t, handler.Start())

	isSpeakingStarted := func(e core.IEvent) bool {
		_, ok := e.(*ttsevents.TTSSpeakingStartedEvent)
		return ok
	}

	data := []byte{0, 0}
	handler.audioChunkOutChan <- core.AudioChunk{Data: &data}
	waitForEvent(t, top, isSpeakingStarted, "first speaking-started event")

	// Barge-in clears the speaking flag even though no done signal arrived.
	input <- core.NewEventPacket(&agent.BargeInEvent{},
		core.EventRelayDestinationNextService, "test")
	require.Eventually(t, func() bool {
		return service.resetCount() == 1
	}, time.Second, 10*time.Millisecond)

	// The next turn's audio announces itself again.
	handler.audioChunkOutChan <- core.AudioChunk{Data: &data}
	waitForEvent(t, top, isSpeakingStarted, "second speaking-started event")
}

func TestTTSHandlerDefaultsConfig(t *testing.T) {
	service := newFakeTTSService()
	handler := NewTTSHandler(service, nil, core.NewDevelopmentLogger(), TTSConfig{})
	assert.Equal(t, DefaultConfig().BreakWords, handler.config.BreakWords)
	assert.Equal(t, DefaultConfig().MinTextLength, handler.config.MinTextLength)
}
