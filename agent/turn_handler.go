package agent

import (
	"context"

	"vocalis/core"
	agentevents "vocalis/events/agent"
	llmevents "vocalis/events/llm"
	sttevents "vocalis/events/stt"
	ttsevents "vocalis/events/tts"
)

// TurnHandler owns conversation state between transcription and generation.
// It gates turns (one at a time, extras dropped with a warning), maintains
// the history window, and decides barge-in. It sits in the pipeline between
// the STT and LLM handlers and has no vendor service of its own.
type TurnHandler struct {
	logger       *core.Logger
	settings     TierSettings
	preset       VoicePreset
	history      *History
	systemPrompt string

	ctx            context.Context
	inputChan      <-chan *core.EventPacket
	outputNextChan chan<- *core.EventPacket
	outputTopChan  chan<- *core.EventPacket

	// Turn state. Touched only from the input loop goroutine.
	processing bool
	speaking   bool
}

func NewTurnHandler(settings TierSettings, preset VoicePreset, logger *core.Logger) *TurnHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TurnHandler{
		logger:       logger,
		settings:     settings,
		preset:       preset,
		history:      NewHistory(),
		systemPrompt: DefaultSystemPrompt(preset.Language),
	}
}

// History exposes the conversation record, mainly for tests and session
// logging.
func (h *TurnHandler) History() *History {
	return h.history
}

func (h *TurnHandler) Initialize(
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

func (h *TurnHandler) Start() error {
	go h.inputLoop()
	return nil
}

func (h *TurnHandler) inputLoop() {
	for {
		select {
		case packet := <-h.inputChan:
			if err := h.HandleEvent(packet); err != nil {
				h.logger.Warn("turn handler event failed", "error", err)
			}
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *TurnHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *sttevents.STTFinalOutputEvent:
		h.onFinalTranscript(event.Text)
		// The transcript itself still travels downstream for observers.

	case *sttevents.STTSpeechStartedEvent:
		h.onSpeechStarted()

	case *ttsevents.TTSSpeakingStartedEvent:
		h.speaking = true

	case *ttsevents.TTSSpeakingEndedEvent:
		h.speaking = false

	case *llmevents.LLMResponseCompletedEvent:
		h.onResponseCompleted(event.FullText)

	case *llmevents.LLMResponseFailedEvent:
		h.onResponseFailed(event.Error)

	default:
	}
	h.sendPacket(packet)
	return nil
}

// onFinalTranscript starts a turn, or drops the transcript with a warning
// when a previous turn is still mid-flight.
func (h *TurnHandler) onFinalTranscript(text string) {
	if text == "" {
		return
	}
	if h.processing {
		h.logger.Warn("turn still processing, dropping new transcript", "text", text)
		h.sendPacket(core.NewEventPacket(&agentevents.TurnSkippedEvent{
			UserText: text,
		}, core.EventRelayDestinationNextService, "TurnHandler"))
		return
	}

	h.processing = true
	h.history.AddUserTurn(text)

	h.sendPacket(core.NewEventPacket(&agentevents.TurnStartedEvent{
		UserText: text,
	}, core.EventRelayDestinationNextService, "TurnHandler"))

	h.sendPacket(core.NewEventPacket(&llmevents.LLMGenerateResponseEvent{
		Context: h.history.BuildContext(h.systemPrompt),
	}, core.EventRelayDestinationNextService, "TurnHandler"))
}

// onSpeechStarted decides barge-in: only when the tier allows interrupts and
// the agent is currently audible.
func (h *TurnHandler) onSpeechStarted() {
	if !h.settings.AllowInterrupts || !h.speaking {
		return
	}
	h.logger.Info("barge-in detected, interrupting speech")
	h.speaking = false
	// Top destination: the runner echoes this through the chain so the LLM
	// handler discards stale chunks and the TTS handler cancels synthesis.
	h.sendPacket(core.NewEventPacket(&agentevents.BargeInEvent{},
		core.EventRelayDestinationTopService, "TurnHandler"))
}

func (h *TurnHandler) onResponseCompleted(fullText string) {
	if !h.processing {
		return
	}
	h.processing = false
	h.history.AddAssistantTurn(fullText)

	userText := ""
	if turns := h.history.Window(2); len(turns) == 2 {
		userText = turns[0].Content
	}
	h.sendPacket(core.NewEventPacket(&agentevents.TurnCompletedEvent{
		UserText:      userText,
		AssistantText: fullText,
	}, core.EventRelayDestinationNextService, "TurnHandler"))
}

// onResponseFailed speaks the localized error message and still records the
// turn so the history stays consistent.
func (h *TurnHandler) onResponseFailed(errMsg string) {
	h.logger.Error("generation failed for turn", "error", errMsg)
	if !h.processing {
		return
	}
	h.processing = false

	spoken := SpokenErrorMessage(h.preset.Language)
	h.history.AddAssistantTurn(spoken)
	h.sendPacket(core.NewEventPacket(&ttsevents.TTSSpeakEvent{
		Text: spoken,
	}, core.EventRelayDestinationNextService, "TurnHandler"))
}

func (h *TurnHandler) sendPacket(packet *core.EventPacket) {
	switch packet.Destination {
	case core.EventRelayDestinationTopService:
		h.outputTopChan <- packet
	default:
		h.outputNextChan <- packet
	}
}

func (h *TurnHandler) Cleanup() error {
	return nil
}

// Reset clears turn state but keeps the conversation history.
func (h *TurnHandler) Reset() error {
	h.processing = false
	h.speaking = false
	return nil
}
