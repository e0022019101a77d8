package tts

import (
	"context"
	"strings"
	"sync/atomic"

	"vocalis/core"
	"vocalis/events/agent"
	"vocalis/events/llm"
	"vocalis/events/tts"
	text "vocalis/utils/text"
)

// ITTSService is the contract a streaming synthesis backend fulfils.
type ITTSService interface {
	core.IService
	StartTTSSession(
		outChan chan<- core.AudioChunk,
		errorChan chan<- error,
		doneChan chan<- bool,
	) error
	BufferText(text string) error
	Flush() error
}

// TTSHandler buffers streamed response text and dispatches it to the
// synthesizer one sentence at a time. Speech for a sentence starts only
// after its trailing punctuation arrives.
type TTSHandler struct {
	core.BaseHandler
	config            TTSConfig
	audioChunkOutChan chan core.AudioChunk
	errorChan         chan error
	doneChan          chan bool

	// Sentence assembly state, touched only from the input loop goroutine.
	pending strings.Builder
	// speaking is 1 while synthesized audio is flowing. Shared between the
	// audio loop and the input loop (barge-in clears it), hence atomic.
	speaking int32
}

func NewTTSHandler(service ITTSService, backupServices []ITTSService, logger *core.Logger, config TTSConfig) *TTSHandler {
	typedServices := make([]core.IService, len(backupServices))
	for i, s := range backupServices {
		typedServices[i] = s
	}
	if len(config.BreakWords) == 0 {
		config.BreakWords = DefaultConfig().BreakWords
	}
	if config.MinTextLength == 0 {
		config.MinTextLength = DefaultConfig().MinTextLength
	}
	h := &TTSHandler{
		BaseHandler: *core.NewBaseHandler(service, typedServices, logger),
		config:      config,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	// A promoted backup needs its streaming session wired to the same
	// channels the audio loop drains, or synthesis never resumes.
	h.SetServiceSwitchFunc(func(service core.IService) error {
		return service.(ITTSService).StartTTSSession(h.audioChunkOutChan, h.errorChan, h.doneChan)
	})
	return h
}

func (h *TTSHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	h.audioChunkOutChan = make(chan core.AudioChunk, 100)
	h.errorChan = make(chan error)
	h.doneChan = make(chan bool)
	return h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx)
}

func (h *TTSHandler) Start() error {
	if err := h.Service.(ITTSService).StartTTSSession(h.audioChunkOutChan, h.errorChan, h.doneChan); err != nil {
		return err
	}
	go h.audioLoop()
	go h.RunInputLoop()
	return nil
}

func (h *TTSHandler) audioLoop() {
	for {
		select {
		case audioChunk := <-h.audioChunkOutChan:
			if atomic.CompareAndSwapInt32(&h.speaking, 0, 1) {
				// Top destination: echoed through the chain so upstream
				// barge-in tracking knows the agent is audible.
				h.SendPacket(core.NewEventPacket(&tts.TTSSpeakingStartedEvent{},
					core.EventRelayDestinationTopService, "TTSHandler"))
			}
			h.SendPacket(core.NewEventPacket(&tts.TTSOutputEvent{
				AudioChunk: audioChunk,
			}, core.EventRelayDestinationNextService, "TTSHandler"))
		case <-h.doneChan:
			if atomic.CompareAndSwapInt32(&h.speaking, 1, 0) {
				h.SendPacket(core.NewEventPacket(&tts.TTSSpeakingEndedEvent{},
					core.EventRelayDestinationTopService, "TTSHandler"))
			}
		case err := <-h.errorChan:
			h.HandleError(err)
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *TTSHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *llm.LLMResponseChunkEvent:
		h.pending.WriteString(event.Chunk)
		h.dispatchCompleteSentences()

	case *llm.LLMResponseCompletedEvent:
		h.dispatchRemaining()
		go func() {
			if err := h.Service.(ITTSService).Flush(); err != nil {
				h.HandleError(err)
			}
		}()

	case *tts.TTSSpeakEvent:
		// Direct speech request, bypasses sentence assembly.
		normalized := text.NormalizeForSpeech(event.Text)
		if normalized != "" {
			go func() {
				if err := h.Service.(ITTSService).BufferText(normalized); err != nil {
					h.HandleError(err)
					return
				}
				if err := h.Service.(ITTSService).Flush(); err != nil {
					h.HandleError(err)
				}
			}()
			h.SendPacket(core.NewEventPacket(&tts.TTSSpokenTextChunkEvent{Text: normalized},
				core.EventRelayDestinationNextService, "TTSHandler"))
		}

	case *agent.BargeInEvent:
		// Drop queued text and cancel in-flight synthesis.
		h.pending.Reset()
		atomic.StoreInt32(&h.speaking, 0)
		go func() {
			if err := h.Service.Reset(); err != nil {
				h.Logger.Warn("failed to reset TTS service on barge-in", "error", err)
			}
		}()

	default:
	}
	h.SendPacket(eventPacket)
	return nil
}

// dispatchCompleteSentences sends every fully terminated sentence in the
// buffer to the synthesizer, keeping the unterminated tail buffered.
func (h *TTSHandler) dispatchCompleteSentences() {
	buffered := h.pending.String()
	cut := h.lastBreakIndex(buffered)
	if cut < 0 {
		return
	}
	if cut+1 < h.config.MinTextLength {
		// Too short to speak on its own; wait for a later break. The
		// completion flush picks it up if nothing else arrives.
		return
	}

	sentence := strings.TrimSpace(buffered[:cut+1])
	rest := buffered[cut+1:]
	h.pending.Reset()
	h.pending.WriteString(rest)

	h.speakText(sentence)
}

// dispatchRemaining flushes whatever is buffered, terminated or not. Used
// when the response is complete.
func (h *TTSHandler) dispatchRemaining() {
	remaining := strings.TrimSpace(h.pending.String())
	h.pending.Reset()
	if remaining == "" {
		return
	}
	h.speakText(remaining)
}

func (h *TTSHandler) speakText(raw string) {
	normalized := text.NormalizeForSpeech(raw)
	if normalized == "" {
		return
	}
	go func() {
		if err := h.Service.(ITTSService).BufferText(normalized); err != nil {
			h.HandleError(err)
		}
	}()
	h.SendPacket(core.NewEventPacket(&tts.TTSSpokenTextChunkEvent{Text: normalized},
		core.EventRelayDestinationNextService, "TTSHandler"))
}

// lastBreakIndex returns the index of the last sentence-final marker in s,
// or -1 when none is present.
func (h *TTSHandler) lastBreakIndex(s string) int {
	last := -1
	for _, brk := range h.config.BreakWords {
		if idx := strings.LastIndex(s, brk); idx > last {
			last = idx
		}
	}
	return last
}

func (h *TTSHandler) Cleanup() error {
	return h.BaseHandler.Cleanup()
}
