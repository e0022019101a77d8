package runner

import (
	"context"

	"vocalis/core"
)

const chanBuffer = 100

// Runner chains handlers into a pipeline. Each handler's next-output feeds
// the following handler's input; top-destined packets are echoed back to the
// head of the chain. The final handler's output is delivered to an optional
// sink callback.
type Runner struct {
	Handlers []core.IHandler
	logger   *core.Logger

	ctx            context.Context
	cancel         context.CancelFunc
	topOutputChan  chan *core.EventPacket
	lastOutputChan chan *core.EventPacket
	done           chan struct{}

	// OnFinalOutput, when set, receives every packet leaving the last
	// handler. Set before Start.
	OnFinalOutput func(packet *core.EventPacket)
	// OnEndCall, when set, is invoked after the pipeline stops due to an
	// EndCallEvent. Set before Start.
	OnEndCall func(reason string)
}

func NewRunner(handlers []core.IHandler, logger *core.Logger) *Runner {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Runner{
		Handlers: handlers,
		logger:   logger,
	}
}

func (r *Runner) Start() error {
	if len(r.Handlers) == 0 {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.topOutputChan = make(chan *core.EventPacket, chanBuffer)
	r.lastOutputChan = make(chan *core.EventPacket, chanBuffer)
	r.done = make(chan struct{})

	inputChans := make([]chan *core.EventPacket, len(r.Handlers))
	for i := range inputChans {
		inputChans[i] = make(chan *core.EventPacket, chanBuffer)
	}

	for i, handler := range r.Handlers {
		var outputNextChan chan<- *core.EventPacket
		if i < len(r.Handlers)-1 {
			outputNextChan = inputChans[i+1]
		} else {
			outputNextChan = r.lastOutputChan
		}

		if err := handler.Initialize(inputChans[i], outputNextChan, r.topOutputChan, r.ctx); err != nil {
			r.cancel()
			return err
		}
		if err := handler.Start(); err != nil {
			r.cancel()
			return err
		}
	}

	go r.listenToOutputs()
	return nil
}

// Inject pushes a packet into the head of the pipeline. Transports and demo
// drivers use this to feed audio or text input.
func (r *Runner) Inject(packet *core.EventPacket) error {
	return r.Handlers[0].HandleEvent(packet)
}

// Done is closed when the pipeline has stopped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) listenToOutputs() {
	defer close(r.done)
	for {
		select {
		case packet := <-r.lastOutputChan:
			if stop := r.processFinalOutput(packet); stop {
				return
			}
		case packet := <-r.topOutputChan:
			if stop := r.processTopOutput(packet); stop {
				return
			}
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) processFinalOutput(packet *core.EventPacket) bool {
	switch e := packet.Event.(type) {
	case *core.EndCallEvent:
		r.logger.Info("end call, stopping pipeline", "reason", e.Reason)
		r.stopLocked()
		if r.OnEndCall != nil {
			r.OnEndCall(e.Reason)
		}
		return true
	case *core.CriticalErrorEvent:
		r.logger.Error("critical pipeline error, stopping", "error", e.Error)
		r.stopLocked()
		return true
	case *core.WarningEvent:
		r.logger.Warn("pipeline warning", "warning", e.Error)
	}
	if r.OnFinalOutput != nil {
		r.OnFinalOutput(packet)
	}
	return false
}

func (r *Runner) processTopOutput(packet *core.EventPacket) bool {
	switch e := packet.Event.(type) {
	case *core.CriticalErrorEvent:
		r.logger.Error("critical pipeline error, stopping", "error", e.Error)
		r.stopLocked()
		return true
	case *core.WarningEvent:
		r.logger.Warn("pipeline warning", "warning", e.Error)
	default:
		// Echo back to the first handler so every handler observes it. The
		// destination flips to next-service so the packet traverses the
		// chain once instead of bouncing off the top channel again.
		packet.Destination = core.EventRelayDestinationNextService
		if err := r.Handlers[0].HandleEvent(packet); err != nil {
			r.logger.Warn("failed to echo top packet", "event", packet.Event.GetId(), "error", err)
		}
	}
	return false
}

func (r *Runner) stopLocked() {
	if r.cancel != nil {
		r.cancel()
	}
	for _, handler := range r.Handlers {
		if err := handler.Cleanup(); err != nil {
			r.logger.Warn("handler cleanup failed", "error", err)
		}
	}
}

func (r *Runner) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}

	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (r *Runner) Reset() error {
	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Reset(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
