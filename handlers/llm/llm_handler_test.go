package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis/core"
	llmevents "vocalis/events/llm"
)

// fakeLLMService streams canned chunks, or reports a failed completion when
// fail is set.
type fakeLLMService struct {
	mu     sync.Mutex
	fail   bool
	chunks []string
	runs   int
}

func (s *fakeLLMService) Initialize(ctx context.Context) error { return nil }
func (s *fakeLLMService) Cleanup() error                       { return nil }
func (s *fakeLLMService) Reset() error                         { return nil }

func (s *fakeLLMService) RunCompletion(
	llmContext core.LLMContext,
	outChan chan<- string,
	toolInvocationChan chan<- core.LLMToolCall,
	fatalServiceErrorChan chan<- error,
	completionStartChan chan<- struct{},
	completionEndChan chan<- struct{},
) {
	s.mu.Lock()
	s.runs++
	fail := s.fail
	chunks := s.chunks
	s.mu.Unlock()

	completionStartChan <- struct{}{}
	if fail {
		fatalServiceErrorChan <- errors.New("completion stream failed mid-response: connection reset")
		return
	}
	for _, chunk := range chunks {
		outChan <- chunk
	}
	completionEndChan <- struct{}{}
}

func (s *fakeLLMService) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func newTestLLMHandler(t *testing.T, service LLMService, backups []LLMService) (*LLMHandler, chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	handler := NewLLMHandler(service, LLMHandlerConfig{}, core.NewDevelopmentLogger())
	for _, backup := range backups {
		handler.WithBackupService(backup)
	}

	input := make(chan *core.EventPacket, 100)
	next := make(chan *core.EventPacket, 100)
	top := make(chan *core.EventPacket, 100)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, handler.Initialize(input, next, top, ctx))
	require.NoError(t, handler.Start())
	return handler, next, top
}

func generatePacket() *core.EventPacket {
	return core.NewEventPacket(&llmevents.LLMGenerateResponseEvent{},
		core.EventRelayDestinationNextService, "test")
}

func waitForTopEvent(t *testing.T, top chan *core.EventPacket, match func(core.IEvent) bool, what string) core.IEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case packet := <-top:
			if match(packet.Event) {
				return packet.Event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
			return nil
		}
	}
}

func isFailedEvent(e core.IEvent) bool {
	_, ok := e.(*llmevents.LLMResponseFailedEvent)
	return ok
}

func isCompletedEvent(e core.IEvent) bool {
	_, ok := e.(*llmevents.LLMResponseCompletedEvent)
	return ok
}

func isCriticalEvent(e core.IEvent) bool {
	_, ok := e.(*core.CriticalErrorEvent)
	return ok
}

func TestLLMHandlerStreamsCompletion(t *testing.T) {
	service := &fakeLLMService{chunks: []string{"Hello ", "there."}}
	handler, next, top := newTestLLMHandler(t, service, nil)

	require.NoError(t, handler.HandleEvent(generatePacket()))

	event := waitForTopEvent(t, top, isCompletedEvent, "completed event")
	assert.Equal(t, "Hello there.", event.(*llmevents.LLMResponseCompletedEvent).FullText)

	var streamed string
	for len(next) > 0 {
		packet := <-next
		if chunk, ok := packet.Event.(*llmevents.LLMResponseChunkEvent); ok {
			streamed += chunk.Chunk
		}
	}
	assert.Equal(t, "Hello there.", streamed)
}

func TestLLMHandlerSingleFailureKeepsSessionAlive(t *testing.T) {
	service := &fakeLLMService{fail: true}
	handler, _, top := newTestLLMHandler(t, service, nil)

	require.NoError(t, handler.HandleEvent(generatePacket()))

	waitForTopEvent(t, top, isFailedEvent, "failed event")

	// One bad completion is a turn-level problem: the session must not be
	// torn down, and no completed event may masquerade over the failure.
	select {
	case packet := <-top:
		if isCriticalEvent(packet.Event) {
			t.Fatal("single completion failure escalated to a critical error")
		}
		if isCompletedEvent(packet.Event) {
			t.Fatal("failed completion emitted a completed event")
		}
	case <-time.After(100 * time.Millisecond):
	}

	// The handler still accepts the next turn.
	service.mu.Lock()
	service.fail = false
	service.chunks = []string{"Recovered."}
	service.mu.Unlock()
	require.NoError(t, handler.HandleEvent(generatePacket()))
	event := waitForTopEvent(t, top, isCompletedEvent, "completed event after recovery")
	assert.Equal(t, "Recovered.", event.(*llmevents.LLMResponseCompletedEvent).FullText)
}

func TestLLMHandlerRepeatedFailuresEscalate(t *testing.T) {
	service := &fakeLLMService{fail: true}
	handler, _, top := newTestLLMHandler(t, service, nil)

	for i := 0; i < maxCompletionFailures; i++ {
		require.NoError(t, handler.HandleEvent(generatePacket()))
		waitForTopEvent(t, top, isFailedEvent, "failed event")
	}

	// Three strikes with no backups registered: the session gets the
	// critical error.
	waitForTopEvent(t, top, isCriticalEvent, "critical error event")
}

func TestLLMHandlerRepeatedFailuresSwitchToBackup(t *testing.T) {
	primary := &fakeLLMService{fail: true}
	backup := &fakeLLMService{chunks: []string{"Backup speaking."}}
	handler, _, top := newTestLLMHandler(t, primary, []LLMService{backup})

	for i := 0; i < maxCompletionFailures; i++ {
		require.NoError(t, handler.HandleEvent(generatePacket()))
		waitForTopEvent(t, top, isFailedEvent, "failed event")
	}

	waitForTopEvent(t, top, func(e core.IEvent) bool {
		_, ok := e.(*core.WarningEvent)
		return ok
	}, "failover warning")

	require.NoError(t, handler.HandleEvent(generatePacket()))
	event := waitForTopEvent(t, top, isCompletedEvent, "completed event from backup")
	assert.Equal(t, "Backup speaking.", event.(*llmevents.LLMResponseCompletedEvent).FullText)
	assert.Equal(t, 1, backup.runCount())
	assert.Equal(t, maxCompletionFailures, primary.runCount())
}
