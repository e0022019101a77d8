package factories

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"vocalis/core"
	"vocalis/runner"
)

// PipelineConfig configures a Pipeline's lifecycle behaviour.
type PipelineConfig struct {
	// Timeout caps a session's lifetime. Zero means no cap.
	Timeout time.Duration
}

// Pipeline builds and runs handler chains for voice sessions.
type Pipeline struct {
	config PipelineConfig
	logger *core.Logger
}

func NewPipeline(config PipelineConfig, logger *core.Logger) *Pipeline {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Pipeline{
		config: config,
		logger: logger,
	}
}

// Session is one live pipeline instance. Transports feed it input packets via
// Inject and consume synthesized output through the OnFinalOutput callback
// passed to Start.
type Session struct {
	Runner   *runner.Runner
	Handlers SessionHandlers
}

// Inject pushes a packet into the head of the pipeline.
func (s *Session) Inject(packet *core.EventPacket) error {
	return s.Runner.Inject(packet)
}

// Stop tears the pipeline down.
func (s *Session) Stop() error {
	return s.Runner.Stop()
}

// Start assembles the handler chain for cfg and starts it. onOutput receives
// every packet leaving the last handler; onEndCall fires if the conversation
// ends itself. Either callback may be nil.
func (p *Pipeline) Start(
	cfg SessionConfig,
	onOutput func(packet *core.EventPacket),
	onEndCall func(reason string),
) (*Session, error) {
	handlers, err := cfg.BuildHandlers(p.logger)
	if err != nil {
		p.logger.Error("failed to build session handlers", "error", err)
		return nil, err
	}

	r := runner.NewRunner(handlers.Handlers(), p.logger)
	r.OnFinalOutput = onOutput
	r.OnEndCall = onEndCall
	if err := r.Start(); err != nil {
		p.logger.Error("runner failed to start", "error", err)
		return nil, err
	}

	return &Session{Runner: r, Handlers: handlers}, nil
}

// Run starts a session and blocks until it finishes, the context is
// cancelled, or the configured timeout elapses.
func (p *Pipeline) Run(
	ctx context.Context,
	cfg SessionConfig,
	onOutput func(packet *core.EventPacket),
	onEndCall func(reason string),
) error {
	logger := core.SessionLoggerFromContext(ctx)
	if logger == nil {
		logger = p.logger
	}

	select {
	case <-ctx.Done():
		logger.Info("context already cancelled, skipping session")
		return nil
	default:
	}

	session, err := p.Start(cfg, onOutput, onEndCall)
	if err != nil {
		return err
	}

	logger.Info("session started, waiting for completion")

	var timerC <-chan time.Time
	if p.config.Timeout > 0 {
		timer := time.NewTimer(p.config.Timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	var result error
	select {
	case <-ctx.Done():
		logger.Info("context cancelled, stopping session")
		session.Stop()

	case <-timerC:
		logger.Warn("session timeout reached, stopping")
		session.Stop()
		result = context.DeadlineExceeded

	case <-session.Runner.Done():
		logger.Info("session finished")
	}

	// Sessions buffer a lot of audio; release it back to the OS promptly so
	// long-running workers keep a flat RSS.
	runtime.GC()
	debug.FreeOSMemory()

	return result
}
