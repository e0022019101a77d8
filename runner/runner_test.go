package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis/core"
)

type testEvent struct {
	id string
}

func (e *testEvent) GetId() string { return e.id }

// passthroughHandler forwards everything and records what it saw. When
// promoteToTop is set, matching events are redirected to the top channel.
type passthroughHandler struct {
	name         string
	promoteToTop string

	mu       sync.Mutex
	seen     []string
	promoted bool

	ctx            context.Context
	inputChan      <-chan *core.EventPacket
	outputNextChan chan<- *core.EventPacket
	outputTopChan  chan<- *core.EventPacket
	cleanedUp      bool
}

func (h *passthroughHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	h.inputChan = inputChan
	h.outputNextChan = outputNextChan
	h.outputTopChan = outputTopChan
	h.ctx = ctx
	return nil
}

func (h *passthroughHandler) Start() error {
	go func() {
		for {
			select {
			case packet := <-h.inputChan:
				h.HandleEvent(packet)
			case <-h.ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (h *passthroughHandler) HandleEvent(packet *core.EventPacket) error {
	h.mu.Lock()
	h.seen = append(h.seen, packet.Event.GetId())
	h.mu.Unlock()

	h.mu.Lock()
	shouldPromote := h.promoteToTop != "" && packet.Event.GetId() == h.promoteToTop && !h.promoted
	if shouldPromote {
		h.promoted = true
	}
	h.mu.Unlock()
	if shouldPromote {
		h.outputTopChan <- packet
		return nil
	}

	switch packet.Destination {
	case core.EventRelayDestinationTopService:
		h.outputTopChan <- packet
	default:
		h.outputNextChan <- packet
	}
	return nil
}

func (h *passthroughHandler) Cleanup() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanedUp = true
	return nil
}

func (h *passthroughHandler) Reset() error { return nil }

func (h *passthroughHandler) sawEvent(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.seen {
		if s == id {
			return true
		}
	}
	return false
}

func TestRunnerForwardsThroughChain(t *testing.T) {
	first := &passthroughHandler{name: "first"}
	second := &passthroughHandler{name: "second"}

	var mu sync.Mutex
	var outputs []string
	runner := NewRunner([]core.IHandler{first, second}, core.NewDevelopmentLogger())
	runner.OnFinalOutput = func(packet *core.EventPacket) {
		mu.Lock()
		outputs = append(outputs, packet.Event.GetId())
		mu.Unlock()
	}
	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.NoError(t, runner.Inject(core.NewEventPacket(&testEvent{id: "hello"},
		core.EventRelayDestinationNextService, "test")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(outputs) == 1 && outputs[0] == "hello"
	}, time.Second, 10*time.Millisecond)

	assert.True(t, first.sawEvent("hello"))
	assert.True(t, second.sawEvent("hello"))
}

func TestRunnerEchoesTopPacketsToHead(t *testing.T) {
	// The second handler promotes "interrupt" to the top channel; the runner
	// must echo it back through the first handler exactly once.
	first := &passthroughHandler{name: "first"}
	second := &passthroughHandler{name: "second", promoteToTop: "interrupt"}

	runner := NewRunner([]core.IHandler{first, second}, core.NewDevelopmentLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.NoError(t, runner.Inject(core.NewEventPacket(&testEvent{id: "interrupt"},
		core.EventRelayDestinationNextService, "test")))

	require.Eventually(t, func() bool {
		first.mu.Lock()
		defer first.mu.Unlock()
		count := 0
		for _, s := range first.seen {
			if s == "interrupt" {
				count++
			}
		}
		return count == 2 // original injection plus the echo
	}, time.Second, 10*time.Millisecond)
}

func TestRunnerStopsOnEndCall(t *testing.T) {
	first := &passthroughHandler{name: "first"}

	endReason := ""
	runner := NewRunner([]core.IHandler{first}, core.NewDevelopmentLogger())
	runner.OnEndCall = func(reason string) { endReason = reason }
	require.NoError(t, runner.Start())

	require.NoError(t, runner.Inject(core.NewEventPacket(&core.EndCallEvent{
		Reason: "caller hung up",
	}, core.EventRelayDestinationNextService, "test")))

	select {
	case <-runner.Done():
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop on end call")
	}

	assert.Equal(t, "caller hung up", endReason)
	first.mu.Lock()
	assert.True(t, first.cleanedUp)
	first.mu.Unlock()
}

func TestRunnerStopsOnCriticalError(t *testing.T) {
	first := &passthroughHandler{name: "first"}

	runner := NewRunner([]core.IHandler{first}, core.NewDevelopmentLogger())
	require.NoError(t, runner.Start())

	require.NoError(t, runner.Inject(core.NewEventPacket(&core.CriticalErrorEvent{
		Error: "synthesizer gone",
	}, core.EventRelayDestinationNextService, "test")))

	select {
	case <-runner.Done():
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop on critical error")
	}
}

func TestRunnerEmptyChain(t *testing.T) {
	runner := NewRunner(nil, core.NewDevelopmentLogger())
	assert.NoError(t, runner.Start())
}
