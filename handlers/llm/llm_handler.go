package llm

import (
	"context"
	"sync/atomic"

	"vocalis/core"
	"vocalis/events/agent"
	"vocalis/events/llm"
)

// LLMService is the contract a completion backend fulfils. Completions
// stream tokens to outChan; errors surface on fatalServiceErrorChan.
type LLMService interface {
	core.IService
	RunCompletion(
		llmContext core.LLMContext,
		outChan chan<- string,
		toolInvocationChan chan<- core.LLMToolCall,
		fatalServiceErrorChan chan<- error,
		completionStartChan chan<- struct{},
		completionEndChan chan<- struct{},
	)
}

// maxCompletionFailures is how many completions in a row may fail before the
// handler escalates to service failover. A single failed completion is a
// turn-level event (the agent speaks an error and the conversation goes on);
// only a persistently broken service is worth abandoning.
const maxCompletionFailures = 3

// LLMHandler turns generate-response events into streamed response chunks.
// A barge-in flips the discarding flag so stale chunks from the cancelled
// generation never reach synthesis.
type LLMHandler struct {
	core.BaseHandler
	messageOutChan        chan string
	toolInvocationOutChan chan core.LLMToolCall
	completionStartChan   chan struct{}
	completionEndChan     chan struct{}
	completionErrChan     chan error
	config                LLMHandlerConfig
	discarding            int32 // atomic bool: 1 = discard stale chunks from a cancelled generation
}

// NewLLMHandler creates a new LLM handler. Chain WithBackupService to
// register fallbacks.
func NewLLMHandler(service LLMService, config LLMHandlerConfig, logger *core.Logger) *LLMHandler {
	h := &LLMHandler{
		BaseHandler: *core.NewBaseHandler(service, nil, logger),
		config:      config,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

// WithBackupService registers a fallback service used when the primary fails.
// Returns the handler to allow chaining.
func (h *LLMHandler) WithBackupService(service LLMService) *LLMHandler {
	h.BackupServices = append(h.BackupServices, service)
	return h
}

func (h *LLMHandler) Initialize(
	inputChan <-chan *core.EventPacket,
	outputNextChan chan<- *core.EventPacket,
	outputTopChan chan<- *core.EventPacket,
	ctx context.Context,
) error {
	h.messageOutChan = make(chan string, 10)
	h.toolInvocationOutChan = make(chan core.LLMToolCall)
	h.completionStartChan = make(chan struct{}, 1)
	h.completionEndChan = make(chan struct{}, 1)
	h.completionErrChan = make(chan error, 1)
	return h.BaseHandler.Initialize(inputChan, outputNextChan, outputTopChan, ctx)
}

func (h *LLMHandler) Start() error {
	go h.eventLoop()
	go h.RunInputLoop()
	return nil
}

func (h *LLMHandler) eventLoop() {
	var fullText string
	var consecutiveFailures int
	for {
		select {
		case msg := <-h.messageOutChan:
			if atomic.LoadInt32(&h.discarding) == 0 {
				h.SendPacket(core.NewEventPacket(&llm.LLMResponseChunkEvent{
					Chunk: msg,
				}, core.EventRelayDestinationNextService, "LLMHandler"))
				fullText += msg
			}
		case toolCall := <-h.toolInvocationOutChan:
			if atomic.LoadInt32(&h.discarding) == 0 && h.config.AllowToolCalls {
				h.SendPacket(core.NewEventPacket(&llm.LLMToolInvocationRequestedEvent{
					ToolId: toolCall.ToolId,
					Params: toolCall.Parameters,
				}, core.EventRelayDestinationNextService, "LLMHandler"))
			}
		case <-h.completionStartChan:
			fullText = ""
		case <-h.completionEndChan:
			consecutiveFailures = 0
			if atomic.LoadInt32(&h.discarding) == 0 {
				// Top destination: the runner echoes this through the whole
				// chain so upstream turn tracking sees it too.
				h.SendPacket(core.NewEventPacket(&llm.LLMResponseCompletedEvent{
					FullText: fullText,
				}, core.EventRelayDestinationTopService, "LLMHandler"))
			}
			fullText = ""
		case err := <-h.completionErrChan:
			if atomic.LoadInt32(&h.discarding) == 0 {
				h.SendPacket(core.NewEventPacket(&llm.LLMResponseFailedEvent{
					Error: err.Error(),
				}, core.EventRelayDestinationTopService, "LLMHandler"))
				consecutiveFailures++
				if consecutiveFailures >= maxCompletionFailures {
					consecutiveFailures = 0
					h.HandleError(err)
				}
			}
			fullText = ""
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *LLMHandler) HandleEvent(packet *core.EventPacket) error {
	switch e := packet.Event.(type) {
	case *llm.LLMGenerateResponseEvent:
		atomic.StoreInt32(&h.discarding, 0)

		h.SendPacket(core.NewEventPacket(
			&llm.LLMResponseStartedEvent{},
			core.EventRelayDestinationNextService,
			"LLMHandler",
		))

		// Run asynchronously so the handler stays responsive to barge-in
		// events during generation.
		go func(llmContext core.LLMContext) {
			if err := h.Service.Reset(); err != nil {
				h.Logger.Warn("failed to reset LLM service before generation", "error", err)
			}
			h.Service.(LLMService).RunCompletion(
				llmContext,
				h.messageOutChan,
				h.toolInvocationOutChan,
				h.completionErrChan,
				h.completionStartChan,
				h.completionEndChan,
			)
		}(e.Context)
		return nil

	case *agent.BargeInEvent:
		atomic.StoreInt32(&h.discarding, 1)
		if err := h.Service.Reset(); err != nil {
			h.Logger.Warn("failed to reset LLM service on barge-in", "error", err)
		}

	default:
	}
	h.SendPacket(packet)
	return nil
}
