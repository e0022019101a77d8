package core

import (
	"context"
	"errors"
)

// IService is the lifecycle contract shared by all vendor service wrappers
// (STT, LLM, TTS). Services are owned by handlers.
type IService interface {
	Initialize(ctx context.Context) error
	Cleanup() error
	Reset() error
}

type IHandler interface {
	Initialize(
		inputChan <-chan *EventPacket,
		outputNextChan chan<- *EventPacket,
		outputTopChan chan<- *EventPacket,
		ctx context.Context,
	) error
	Start() error // Starts the handler's main logic. This is where the handler begins processing events.
	HandleEvent(packet *EventPacket) error

	Cleanup() error // Cleans up resources used by the handler and its services.
	Reset() error   // Resets the handler to its initial state.
}

// BaseHandler carries the shared handler plumbing: the active service, an
// ordered list of backups, the pipeline channels, and the fatal-error loop
// that performs service failover.
type BaseHandler struct {
	Service               IService
	BackupServices        []IService
	Logger                *Logger
	Ctx                   context.Context
	InputChan             <-chan *EventPacket
	outputNextChan        chan<- *EventPacket
	outputTopChan         chan<- *EventPacket
	FatalServiceErrorChan chan error

	handleEventFunc   func(packet *EventPacket) error
	serviceSwitchFunc func(service IService) error
}

func NewBaseHandler(service IService, backupServices []IService, logger *Logger) *BaseHandler {
	if logger == nil {
		logger = GetLogger()
	}
	return &BaseHandler{
		Service:        service,
		BackupServices: backupServices,
		Logger:         logger,
	}
}

func (h *BaseHandler) Initialize(
	inputChan <-chan *EventPacket,
	outputNextChan chan<- *EventPacket,
	outputTopChan chan<- *EventPacket,
	ctx context.Context,
) error {
	h.InputChan = inputChan
	h.outputNextChan = outputNextChan
	h.outputTopChan = outputTopChan
	h.FatalServiceErrorChan = make(chan error, 1)
	h.Ctx = ctx
	go h.fatalErrorHandlerLoop()
	return h.Service.Initialize(ctx)
}

func (h *BaseHandler) Cleanup() error {
	return h.Service.Cleanup()
}

func (h *BaseHandler) Reset() error {
	return h.Service.Reset()
}

// SetHandleEventFunc registers the concrete handler's HandleEvent so that
// RunInputLoop can dispatch incoming packets to it.
func (h *BaseHandler) SetHandleEventFunc(fn func(packet *EventPacket) error) {
	h.handleEventFunc = fn
}

// SetServiceSwitchFunc registers a hook invoked on each failover candidate
// after Initialize succeeds. Handlers with a streaming session use it to
// re-establish that session on the promoted service; a hook error discards
// the candidate and moves to the next backup.
func (h *BaseHandler) SetServiceSwitchFunc(fn func(service IService) error) {
	h.serviceSwitchFunc = fn
}

// RunInputLoop drains the input channel and dispatches each packet to the
// registered HandleEvent func. Handlers call this from Start in a goroutine.
func (h *BaseHandler) RunInputLoop() {
	for {
		select {
		case packet := <-h.InputChan:
			if h.handleEventFunc == nil {
				continue
			}
			if err := h.handleEventFunc(packet); err != nil {
				h.HandleError(err)
			}
		case <-h.Ctx.Done():
			return
		}
	}
}

// SwitchToBackupService promotes the next working backup service to active.
// Every candidate is initialized and run through the registered switch hook,
// so a promoted streaming service comes up with a live session. Candidates
// that fail either step are discarded.
func (h *BaseHandler) SwitchToBackupService() error {
	for len(h.BackupServices) > 0 {
		candidate := h.BackupServices[0]
		h.BackupServices = h.BackupServices[1:]

		if err := candidate.Initialize(h.Ctx); err != nil {
			h.Logger.Warn("backup service failed to initialize, trying next", "error", err)
			continue
		}
		if h.serviceSwitchFunc != nil {
			if err := h.serviceSwitchFunc(candidate); err != nil {
				h.Logger.Warn("backup service failed to start a session, trying next", "error", err)
				candidate.Cleanup()
				continue
			}
		}
		h.Service = candidate
		return nil
	}
	return errors.New("no backup services available")
}

func (h *BaseHandler) SendPacket(packet *EventPacket) {
	switch packet.Destination {
	case EventRelayDestinationTopService:
		h.outputTopChan <- packet
	default:
		h.outputNextChan <- packet
	}
}

func (h *BaseHandler) HandleError(err error) {
	select {
	case h.FatalServiceErrorChan <- err:
	default:
		h.Logger.Warn("fatal error channel full, dropping error", "error", err)
	}
}

func (h *BaseHandler) fatalErrorHandlerLoop() {
	for {
		select {
		case err := <-h.FatalServiceErrorChan:
			h.Logger.Error("fatal service error, attempting failover", "error", err)
			if switchErr := h.SwitchToBackupService(); switchErr != nil {
				h.Logger.Error("service failover failed", "error", switchErr)
				h.SendPacket(
					NewEventPacket(&CriticalErrorEvent{Error: err.Error()}, EventRelayDestinationTopService, "BaseHandler"),
				)
				return
			}
			h.SendPacket(
				NewEventPacket(&WarningEvent{Error: "switched to backup service after: " + err.Error()}, EventRelayDestinationTopService, "BaseHandler"),
			)
		case <-h.Ctx.Done():
			return
		}
	}
}
