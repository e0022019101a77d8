package stt

import (
	"context"

	"vocalis/core"
	"vocalis/events/stt"
	"vocalis/events/transport"
	"vocalis/utils/audio"
)

// ISTTService is the contract a streaming transcription backend fulfils.
// The VAD channels may receive nothing when the backend has VAD disabled.
type ISTTService interface {
	core.IService
	StartTranscriptionSession(
		outChan chan<- string,
		interimOutputChan chan<- string,
		speechStartedChan chan<- float64,
		utteranceEndChan chan<- float64,
		fatalServiceErrorChan chan<- error,
	)
	SendTranscriptionAudio(chunk core.AudioChunk) error
}

// STTHandler feeds transport audio into the transcription service and turns
// its callbacks into pipeline events. Typed text input bypasses the service
// and is emitted directly as a final transcript.
type STTHandler struct {
	core.BaseHandler
	messageOutChan    chan string
	interimOutChan    chan string
	speechStartedChan chan float64
	utteranceEndChan  chan float64
	config            STTConfig
}

func NewSTTHandler(service ISTTService, backupServices []ISTTService, logger *core.Logger, config STTConfig) *STTHandler {
	typedServices := make([]core.IService, len(backupServices))
	for i, s := range backupServices {
		typedServices[i] = s
	}
	h := &STTHandler{
		BaseHandler: *core.NewBaseHandler(service, typedServices, logger),
		config:      config,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	// A promoted backup has to start transcribing into the same channels
	// the event loop drains.
	h.SetServiceSwitchFunc(func(service core.IService) error {
		service.(ISTTService).StartTranscriptionSession(
			h.messageOutChan,
			h.interimOutChan,
			h.speechStartedChan,
			h.utteranceEndChan,
			h.FatalServiceErrorChan,
		)
		return nil
	})
	return h
}

func (h *STTHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	h.messageOutChan = make(chan string)
	h.interimOutChan = make(chan string)
	h.speechStartedChan = make(chan float64)
	h.utteranceEndChan = make(chan float64)
	return h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx)
}

func (h *STTHandler) Start() error {
	go h.eventLoop()
	go h.RunInputLoop()
	h.Service.(ISTTService).StartTranscriptionSession(
		h.messageOutChan,
		h.interimOutChan,
		h.speechStartedChan,
		h.utteranceEndChan,
		h.FatalServiceErrorChan,
	)
	return nil
}

func (h *STTHandler) eventLoop() {
	for {
		select {
		case text := <-h.messageOutChan:
			h.SendPacket(core.NewEventPacket(&stt.STTFinalOutputEvent{
				Text: text,
			}, core.EventRelayDestinationNextService, "STTHandler"))
		case text := <-h.interimOutChan:
			h.SendPacket(core.NewEventPacket(&stt.STTInterimOutputEvent{
				Text: text,
			}, core.EventRelayDestinationNextService, "STTHandler"))
		case ts := <-h.speechStartedChan:
			h.SendPacket(core.NewEventPacket(&stt.STTSpeechStartedEvent{
				Timestamp: ts,
			}, core.EventRelayDestinationNextService, "STTHandler"))
		case end := <-h.utteranceEndChan:
			h.SendPacket(core.NewEventPacket(&stt.STTUtteranceEndEvent{
				LastWordEnd: end,
			}, core.EventRelayDestinationNextService, "STTHandler"))
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *STTHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *transport.TransportAudioInputEvent:
		processedChunk, err := audio.ConvertAudioChunk(
			event.AudioChunk,
			h.config.RequiredAudioFormat,
			h.config.RequiredChannels,
			h.config.RequiredSampleRate,
		)
		if err != nil {
			h.HandleError(err)
			return nil
		}
		go func() {
			if err := h.Service.(ISTTService).SendTranscriptionAudio(processedChunk); err != nil {
				h.Logger.Warn("failed to send audio to STT service", "error", err)
			}
		}()
		// Audio chunks stop here; downstream handlers only see transcripts.
		return nil
	case *transport.TransportTextInputEvent:
		h.SendPacket(core.NewEventPacket(&stt.STTFinalOutputEvent{
			Text: event.Text,
		}, core.EventRelayDestinationNextService, "STTHandler"))
		return nil
	default:
	}
	h.SendPacket(eventPacket)
	return nil
}

func (h *STTHandler) Cleanup() error {
	return h.BaseHandler.Cleanup()
}
