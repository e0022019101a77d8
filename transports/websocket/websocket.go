package websocket

import (
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vocalis/core"
	agentevents "vocalis/events/agent"
	sttevents "vocalis/events/stt"
	transportevents "vocalis/events/transport"
	ttsevents "vocalis/events/tts"
	"vocalis/factories"
	"vocalis/protocol"
)

const inputSampleRate = 16000

// Server hosts voice sessions over WebSocket. Each connection gets its own
// pipeline: audio in, transcripts and synthesized audio out. Control
// messages use the protocol envelope; audio travels as binary PCM frames.
type Server struct {
	settings factories.SettingsConfig
	keys     factories.APIKeys
	logger   *core.Logger
	upgrader websocket.Upgrader
}

func NewServer(settings factories.SettingsConfig, keys factories.APIKeys, logger *core.Logger) *Server {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Server{
		settings: settings,
		keys:     keys,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router returns the HTTP routes: GET /session upgrades to a WebSocket voice
// session, GET /health reports liveness.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/session", s.handleSession)

	return router
}

func (s *Server) handleSession(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionCfg, err := s.settings.ResolveSession()
	if err != nil {
		s.logger.Error("failed to resolve session config", "error", err)
		return
	}

	// Query params override the configured tier and voice per-connection.
	if tier := c.Query("tier"); tier != "" {
		sessionCfg.Tier = tier
	}
	if voice := c.Query("voice"); voice != "" {
		sessionCfg.Voice = voice
	}
	sessionCfg.InjectAPIKeys(s.keys)

	sessionID := uuid.New().String()
	logger, closeLog := s.sessionLogger(sessionID, sessionCfg)
	defer closeLog()

	client := &sessionConn{conn: conn, logger: logger}

	pipeline := factories.NewPipeline(factories.PipelineConfig{
		Timeout: s.settings.SessionTimeout(),
	}, logger)
	session, err := pipeline.Start(sessionCfg, client.writePacket, client.endCall)
	if err != nil {
		client.writeWarning(err.Error())
		return
	}
	defer session.Stop()

	_, preset, presetErr := sessionCfg.ResolveTier()
	language := ""
	if presetErr == nil {
		language = preset.Language
	}
	client.write(protocol.MsgSessionStarted, protocol.SessionStartedPayload{
		SessionID: sessionID,
		Tier:      sessionCfg.Tier,
		Voice:     sessionCfg.Voice,
		Language:  language,
	})

	logger.Info("voice session started", "session_id", sessionID,
		"tier", sessionCfg.Tier, "voice", sessionCfg.Voice)
	s.readLoop(client, session)
	logger.Info("voice session closed", "session_id", sessionID)
}

// sessionLogger tees session logs to a per-session .jsonl file when
// SESSION_LOG_DIR is set.
func (s *Server) sessionLogger(sessionID string, cfg factories.SessionConfig) (*core.Logger, func()) {
	logDir := os.Getenv("SESSION_LOG_DIR")
	if logDir == "" {
		return s.logger, func() {}
	}
	writer, err := core.NewSessionLogWriter(logDir, core.SessionMetadata{
		SessionID: sessionID,
		Tier:      cfg.Tier,
		Voice:     cfg.Voice,
	})
	if err != nil {
		s.logger.Warn("failed to create session log, console only", "error", err)
		return s.logger, func() {}
	}
	return core.NewSessionLogger(s.logger, writer), writer.Close
}

// readLoop consumes client frames until the connection drops or the client
// ends the call.
func (s *Server) readLoop(client *sessionConn, session *factories.Session) {
	for {
		messageType, msg, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				client.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			data := msg
			packet := core.NewEventPacket(&transportevents.TransportAudioInputEvent{
				AudioChunk: core.AudioChunk{
					Data:       &data,
					SampleRate: inputSampleRate,
					Channels:   1,
					Format:     core.PCM,
					Timestamp:  time.Now(),
				},
			}, core.EventRelayDestinationNextService, "WebSocketTransport")
			if err := session.Inject(packet); err != nil {
				client.logger.Warn("failed to inject audio", "error", err)
			}

		case websocket.TextMessage:
			msgType, payload, err := protocol.Unmarshal(msg)
			if err != nil {
				client.writeWarning("malformed message")
				continue
			}
			switch msgType {
			case protocol.MsgTextInput:
				input, err := protocol.UnmarshalPayload[protocol.TextInputPayload](payload)
				if err != nil {
					client.writeWarning("malformed text input")
					continue
				}
				packet := core.NewEventPacket(&transportevents.TransportTextInputEvent{
					Text: input.Text,
				}, core.EventRelayDestinationNextService, "WebSocketTransport")
				if err := session.Inject(packet); err != nil {
					client.logger.Warn("failed to inject text", "error", err)
				}
			case protocol.MsgEndCall:
				session.Inject(core.NewEventPacket(&core.EndCallEvent{
					Reason: "client requested end",
				}, core.EventRelayDestinationNextService, "WebSocketTransport"))
				return
			default:
				client.writeWarning("unknown message type: " + string(msgType))
			}
		}
	}
}

// sessionConn serializes writes to one WebSocket connection.
type sessionConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *core.Logger
}

// writePacket translates pipeline output events into wire frames.
func (c *sessionConn) writePacket(packet *core.EventPacket) {
	switch event := packet.Event.(type) {
	case *ttsevents.TTSOutputEvent:
		if event.AudioChunk.Data == nil {
			return
		}
		c.writeAudio(event.AudioChunk)
	case *sttevents.STTInterimOutputEvent:
		c.write(protocol.MsgInterim, protocol.TranscriptPayload{Text: event.Text})
	case *sttevents.STTFinalOutputEvent:
		c.write(protocol.MsgTranscript, protocol.TranscriptPayload{Text: event.Text})
	case *ttsevents.TTSSpokenTextChunkEvent:
		c.write(protocol.MsgAssistantText, protocol.AssistantTextPayload{Text: event.Text})
	case *ttsevents.TTSSpeakingStartedEvent:
		c.write(protocol.MsgSpeakingStart, nil)
	case *ttsevents.TTSSpeakingEndedEvent:
		c.write(protocol.MsgSpeakingEnd, nil)
	case *agentevents.BargeInEvent:
		c.write(protocol.MsgBargeIn, nil)
	case *agentevents.TurnCompletedEvent:
		c.write(protocol.MsgTurnCompleted, protocol.TurnCompletedPayload{
			UserText:      event.UserText,
			AssistantText: event.AssistantText,
		})
	case *agentevents.TurnSkippedEvent:
		c.writeWarning("turn dropped while busy: " + event.UserText)
	}
}

// writeAudio sends an audio header envelope followed by the raw PCM bytes.
func (c *sessionConn) writeAudio(chunk core.AudioChunk) {
	header, err := protocol.Marshal(protocol.MsgAudioHeader, protocol.AudioHeaderPayload{
		SampleRate: chunk.SampleRate,
		Channels:   chunk.Channels,
		Encoding:   "pcm_s16le",
		Size:       len(*chunk.Data),
	})
	if err != nil {
		c.logger.Warn("failed to marshal audio header", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, header); err != nil {
		c.logger.Warn("failed to write audio header", "error", err)
		return
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, *chunk.Data); err != nil {
		c.logger.Warn("failed to write audio frame", "error", err)
	}
}

func (c *sessionConn) write(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		c.logger.Warn("failed to marshal message", "type", string(msgType), "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Warn("failed to write message", "type", string(msgType), "error", err)
	}
}

func (c *sessionConn) writeWarning(msg string) {
	c.write(protocol.MsgWarning, protocol.WarningPayload{Message: msg})
}

func (c *sessionConn) endCall(reason string) {
	c.write(protocol.MsgSessionEnded, protocol.SessionEndedPayload{Reason: reason})

	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
}
