package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"vocalis/core"
	agentevents "vocalis/events/agent"
	sttevents "vocalis/events/stt"
	transportevents "vocalis/events/transport"
	ttsevents "vocalis/events/tts"
	"vocalis/factories"
	wstransport "vocalis/transports/websocket"
)

func main() {
	var (
		settingsPath string
		tier         string
		voice        string
		language     string
		serveAddr    string
	)
	flag.StringVar(&settingsPath, "settings", "", "path to settings.json (optional)")
	flag.StringVar(&tier, "tier", "free", "subscription tier: free, starter, pro, enterprise")
	flag.StringVar(&voice, "voice", "", "voice preset name (default american-man)")
	flag.StringVar(&language, "language", "", "language override: en or es")
	flag.StringVar(&serveAddr, "serve", "", "serve websocket sessions on this address instead of the text demo (e.g. :8080)")
	flag.Parse()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().Debug("no .env.local file found")
	}
	logger := core.GetLogger()

	settings, err := factories.LoadSettings(settingsPath)
	if err != nil {
		// Flags alone are enough to drive a session.
		settings = factories.SettingsConfig{Session: &factories.SessionConfig{}}
	}
	if settings.Session == nil && settings.SessionAPI == nil {
		settings.Session = &factories.SessionConfig{}
	}
	if settings.Session != nil {
		if settings.Session.Tier == "" {
			settings.Session.Tier = tier
		}
		if voice != "" {
			settings.Session.Voice = voice
		}
		if language != "" {
			settings.Session.Language = language
		}
	}
	keys := factories.APIKeysFromEnv()

	if serveAddr != "" {
		serve(settings, keys, serveAddr, logger)
		return
	}
	runTextDemo(settings, keys, logger)
}

func serve(settings factories.SettingsConfig, keys factories.APIKeys, addr string, logger *core.Logger) {
	server := wstransport.NewServer(settings, keys, logger)
	logger.Info("serving voice sessions", "addr", addr)
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}

// runTextDemo drives one session from stdin: each line is a user turn, the
// agent's transcript is printed as it streams.
func runTextDemo(settings factories.SettingsConfig, keys factories.APIKeys, logger *core.Logger) {
	sessionCfg, err := settings.ResolveSession()
	if err != nil {
		logger.Fatal("failed to resolve session config", "error", err)
	}
	sessionCfg.InjectAPIKeys(keys)

	pipeline := factories.NewPipeline(factories.PipelineConfig{
		Timeout: settings.SessionTimeout(),
	}, logger)

	session, err := pipeline.Start(sessionCfg, printOutput, func(reason string) {
		fmt.Printf("\n[call ended: %s]\n", reason)
	})
	if err != nil {
		logger.Fatal("failed to start session", "error", err)
	}
	defer session.Stop()

	fmt.Printf("Voice agent demo (tier=%s voice=%s). Type a message, Ctrl-D to end.\n",
		sessionCfg.Tier, sessionCfg.Voice)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := scanner.Text()
			if text == "" {
				continue
			}
			session.Inject(core.NewEventPacket(&transportevents.TransportTextInputEvent{
				Text: text,
			}, core.EventRelayDestinationNextService, "demo"))
		}
		session.Inject(core.NewEventPacket(&core.EndCallEvent{
			Reason: "stdin closed",
		}, core.EventRelayDestinationNextService, "demo"))
	}()

	select {
	case <-session.Runner.Done():
	case <-sigCtx.Done():
	}
}

func printOutput(packet *core.EventPacket) {
	switch event := packet.Event.(type) {
	case *sttevents.STTFinalOutputEvent:
		fmt.Printf("you:   %s\n", event.Text)
	case *ttsevents.TTSSpokenTextChunkEvent:
		fmt.Printf("agent: %s\n", event.Text)
	case *agentevents.TurnCompletedEvent:
		fmt.Println("[turn complete]")
	case *agentevents.TurnSkippedEvent:
		fmt.Printf("[dropped while busy: %s]\n", event.UserText)
	}
}
