package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"vocalis/core"

	"github.com/gorilla/websocket"
)

const (
	defaultElevenLabsURL     = "wss://api.elevenlabs.io/v1/text-to-speech"
	defaultElevenLabsVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultElevenLabsModelID = "eleven_turbo_v2_5"
	defaultStability         = 0.5
	defaultSimilarityBoost   = 0.75
	outputSampleRate         = 24000
)

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service.
// Language maps to the stream-input language_code parameter (supported by
// turbo v2.5 and later models); the session factory fills it from the voice
// preset so a failover keeps speaking the session's language.
type ElevenLabsTTSConfig struct {
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	VoiceID  string `json:"voice_id"`
	ModelID  string `json:"model_id"`
	Language string `json:"language,omitempty"`

	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsTTS implements the TTSService interface for ElevenLabs'
// stream-input WebSocket API.
//
// The wire contract differs from Cartesia's context model. Each generation
// opens with an init frame carrying the voice settings, text arrives in
// incremental frames, and an empty text frame (Flush) tells the server to
// finish. Audio comes back base64-encoded inside JSON frames; the frame with
// isFinal set closes a generation and is reported exactly once per generation
// on the session's doneChan. The server drops the socket after a finished
// generation, so the read loop redials and re-inits before the next one.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	logger *core.Logger

	mu               sync.RWMutex
	reconnectMu      sync.RWMutex // write-locked during reconnection; senders hold RLock
	conn             *websocket.Conn
	session          *elevenSession
	ctx              context.Context
	cancel           context.CancelFunc
	heartbeatDone    chan struct{}
	heartbeatStarted bool

	isInitialized bool
}

// elevenSession tracks the channels for the currently active TTS session.
type elevenSession struct {
	outChan   chan<- core.AudioChunk
	errorChan chan<- error
	doneChan  chan<- bool
}

// WebSocket protocol messages.

// elevenInitRequest opens a generation. The single-space text primes the
// stream; real text follows in elevenTextRequest frames.
type elevenInitRequest struct {
	Text             string              `json:"text"`
	VoiceSettings    elevenVoiceSettings `json:"voice_settings"`
	GenerationConfig elevenGenConfig     `json:"generation_config"`
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// elevenGenConfig tunes how much text the server buffers before it starts
// emitting audio. Shorter leading windows trade quality for latency.
type elevenGenConfig struct {
	ChunkLengthSchedule []int `json:"chunk_length_schedule"`
}

// elevenTextRequest carries one text increment. Empty text is the
// end-of-input marker that makes the server finish the generation.
type elevenTextRequest struct {
	Text string `json:"text"`
}

// elevenResponse covers every JSON frame the server sends: base64 audio,
// the final marker, or an error.
type elevenResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewElevenLabsTTS creates a new ElevenLabs TTS service with sensible defaults.
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = defaultElevenLabsURL
	}
	if config.VoiceID == "" {
		config.VoiceID = defaultElevenLabsVoiceID
	}
	if config.ModelID == "" {
		config.ModelID = defaultElevenLabsModelID
	}
	if config.Stability == 0 {
		config.Stability = defaultStability
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = defaultSimilarityBoost
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsTTS{
		config:        config,
		logger:        logger,
		heartbeatDone: make(chan struct{}),
	}
}

// streamURL builds the stream-input endpoint for the configured voice,
// model, output format, and language.
func (e *ElevenLabsTTS) streamURL() string {
	q := url.Values{}
	q.Set("model_id", e.config.ModelID)
	q.Set("output_format", outputFormatString(core.PCM, outputSampleRate))
	if e.config.Language != "" {
		q.Set("language_code", e.config.Language)
	}
	return fmt.Sprintf("%s/%s/stream-input?%s", e.config.BaseURL, e.config.VoiceID, q.Encode())
}

// outputFormatString converts an encoding and sample rate to ElevenLabs'
// output_format parameter.
func outputFormatString(encoding core.AudioEncodingFormat, sampleRate int) string {
	switch encoding {
	case core.ULAW:
		return "ulaw_8000"
	case core.PCM:
		switch sampleRate {
		case 16000:
			return "pcm_16000"
		case 22050:
			return "pcm_22050"
		case 44100:
			return "pcm_44100"
		default:
			return "pcm_24000"
		}
	default:
		return "pcm_24000"
	}
}

// Initialize validates config and sets up the internal context.
func (e *ElevenLabsTTS) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isInitialized {
		return nil
	}
	if e.config.APIKey == "" {
		return errors.New("elevenlabs: API key is required")
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.heartbeatDone = make(chan struct{})
	e.isInitialized = true
	return nil
}

// Cleanup shuts down the service, closing any open connection.
func (e *ElevenLabsTTS) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isInitialized {
		return nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.heartbeatStarted && e.heartbeatDone != nil {
		select {
		case <-e.heartbeatDone:
		case <-time.After(5 * time.Second):
		}
	}
	e.closeConnectionLocked()
	e.session = nil
	e.isInitialized = false
	e.heartbeatStarted = false
	e.logger.Info("ElevenLabs TTS service cleaned up")
	return nil
}

// StartTTSSession opens a WebSocket connection, sends the init frame, and
// starts the read loop.
func (e *ElevenLabsTTS) StartTTSSession(
	outChan chan<- core.AudioChunk,
	errorChan chan<- error,
	doneChan chan<- bool,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isInitialized {
		return errors.New("elevenlabs: service not initialized")
	}
	if outChan == nil {
		return errors.New("elevenlabs: outChan cannot be nil")
	}
	if errorChan == nil {
		return errors.New("elevenlabs: errorChan cannot be nil")
	}
	if doneChan == nil {
		return errors.New("elevenlabs: doneChan cannot be nil")
	}

	if e.session != nil {
		e.cleanupSessionLocked(e.session)
	}

	conn, err := e.openGeneration()
	if err != nil {
		return fmt.Errorf("elevenlabs: failed to establish WebSocket connection: %w", err)
	}
	e.conn = conn

	session := &elevenSession{
		outChan:   outChan,
		errorChan: errorChan,
		doneChan:  doneChan,
	}
	e.session = session

	go e.handleIncomingMessages(session)
	e.heartbeatStarted = true
	go e.heartbeat()

	return nil
}

// BufferText sends a text chunk into the current generation.
func (e *ElevenLabsTTS) BufferText(text string) error {
	e.reconnectMu.RLock()
	defer e.reconnectMu.RUnlock()

	e.mu.RLock()
	if !e.isInitialized {
		e.mu.RUnlock()
		return errors.New("elevenlabs: service not initialized")
	}
	if e.conn == nil || e.session == nil {
		e.mu.RUnlock()
		return errors.New("elevenlabs: no active TTS session")
	}
	if text == "" {
		e.mu.RUnlock()
		return errors.New("elevenlabs: text cannot be empty")
	}
	conn := e.conn
	e.mu.RUnlock()

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return e.sendJSON(conn, elevenTextRequest{Text: text})
}

// Flush sends the end-of-input marker, making the server generate audio for
// all buffered text and finish the generation. The server closes the socket
// afterwards; the read loop redials for the next generation.
func (e *ElevenLabsTTS) Flush() error {
	e.reconnectMu.RLock()
	defer e.reconnectMu.RUnlock()

	e.mu.RLock()
	if !e.isInitialized {
		e.mu.RUnlock()
		return errors.New("elevenlabs: service not initialized")
	}
	if e.conn == nil || e.session == nil {
		e.mu.RUnlock()
		return errors.New("elevenlabs: no active TTS session")
	}
	conn := e.conn
	e.mu.RUnlock()

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return e.sendJSON(conn, elevenTextRequest{Text: ""})
}

// Reset abandons the current generation by dropping the socket and opening a
// fresh one. Unlike Cartesia there is no per-context cancel on this API, so
// barge-in costs a redial.
func (e *ElevenLabsTTS) Reset() error {
	e.reconnectMu.RLock()
	defer e.reconnectMu.RUnlock()

	e.mu.RLock()
	if !e.isInitialized {
		e.mu.RUnlock()
		return errors.New("elevenlabs: service not initialized")
	}
	if e.conn == nil || e.session == nil {
		e.mu.RUnlock()
		return errors.New("elevenlabs: no active TTS session")
	}
	e.mu.RUnlock()

	e.mu.Lock()
	e.closeConnectionLocked()
	e.mu.Unlock()

	conn, err := e.openGeneration()
	if err != nil {
		return fmt.Errorf("elevenlabs: failed to reconnect after reset: %w", err)
	}

	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()
	return nil
}

// WebSocket connection management.

// openGeneration dials the stream endpoint and sends the init frame, leaving
// the connection ready for text.
func (e *ElevenLabsTTS) openGeneration() (*websocket.Conn, error) {
	conn, err := e.establishConnection()
	if err != nil {
		return nil, err
	}
	init := elevenInitRequest{
		Text: " ",
		VoiceSettings: elevenVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		},
		GenerationConfig: elevenGenConfig{
			ChunkLengthSchedule: []int{120, 160, 250, 290},
		},
	}
	if err := e.sendJSON(conn, init); err != nil {
		conn.Close()
		return nil, fmt.Errorf("elevenlabs: failed to send init frame: %w", err)
	}
	return conn, nil
}

func (e *ElevenLabsTTS) establishConnection() (*websocket.Conn, error) {
	const maxRetries = 3
	const baseDelay = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			e.logger.Infof("ElevenLabs TTS: retrying connection (attempt %d/%d) in %v after: %v",
				attempt+1, maxRetries, delay, lastErr)
			select {
			case <-e.ctx.Done():
				return nil, e.ctx.Err()
			case <-time.After(delay):
			}
		}
		conn, err := e.dialConnection()
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}
	return nil, fmt.Errorf("elevenlabs: failed to connect after %d attempts: %w", maxRetries, lastErr)
}

func (e *ElevenLabsTTS) dialConnection() (*websocket.Conn, error) {
	headers := map[string][]string{
		"xi-api-key": {e.config.APIKey},
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(e.streamURL(), headers)
	if err != nil {
		return nil, err
	}
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return conn, nil
}

// reconnect redials and re-inits after the server drops the socket at the end
// of a generation.
func (e *ElevenLabsTTS) reconnect() error {
	e.reconnectMu.Lock()
	defer e.reconnectMu.Unlock()

	e.mu.Lock()
	e.closeConnectionLocked()
	e.mu.Unlock()

	conn, err := e.openGeneration()
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()
	return nil
}

// Incoming message loop.

func (e *ElevenLabsTTS) handleIncomingMessages(session *elevenSession) {
	defer func() {
		e.mu.Lock()
		if e.session == session {
			e.cleanupSessionLocked(session)
		}
		e.mu.Unlock()
	}()

	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}

		e.mu.RLock()
		conn := e.conn
		e.mu.RUnlock()

		if conn == nil {
			e.logger.Infof("ElevenLabs TTS: connection nil, attempting reconnect...")
			if err := e.reconnect(); err != nil {
				e.sendError(session, fmt.Errorf("elevenlabs: reconnect failed: %w", err))
				return
			}
			e.logger.Infof("ElevenLabs TTS: reconnected successfully")
			continue
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-e.ctx.Done():
				return
			default:
			}
			// Expected at the end of every generation: the server closes the
			// socket after the isFinal frame.
			e.logger.Infof("ElevenLabs TTS: read error, attempting reconnect: %v", err)
			if reconErr := e.reconnect(); reconErr != nil {
				e.sendError(session, fmt.Errorf("elevenlabs: reconnect failed after read error: %w", reconErr))
				return
			}
			e.logger.Infof("ElevenLabs TTS: reconnected successfully after read error")
			continue
		}

		switch msgType {
		case websocket.BinaryMessage:
			// Audio normally arrives base64-encoded in JSON frames; treat a
			// binary frame as raw PCM.
			e.forwardAudio(msg, session)

		case websocket.TextMessage:
			e.handleTextMessage(msg, session)
		}
	}
}

func (e *ElevenLabsTTS) handleTextMessage(msg []byte, session *elevenSession) {
	var resp elevenResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		e.logger.Infof("ElevenLabs TTS: failed to parse text message: %v, raw: %s", err, string(msg))
		return
	}

	if resp.Error != "" {
		e.sendError(session, fmt.Errorf("elevenlabs error (code %d): %s", resp.Code, resp.Message))
		return
	}

	if resp.Audio != "" {
		audioData, err := base64.StdEncoding.DecodeString(resp.Audio)
		if err != nil {
			e.logger.Infof("ElevenLabs TTS: failed to decode base64 audio: %v", err)
			return
		}
		e.forwardAudio(audioData, session)
	}

	if resp.IsFinal {
		e.logger.Debugf("ElevenLabs TTS: generation complete")
		if session.doneChan != nil {
			select {
			case session.doneChan <- true:
			default:
			}
		}
	}
}

// forwardAudio copies the raw audio bytes and sends them to the session output channel.
func (e *ElevenLabsTTS) forwardAudio(raw []byte, session *elevenSession) {
	dataCopy := make([]byte, len(raw))
	copy(dataCopy, raw)
	chunk := core.AudioChunk{
		Data:       &dataCopy,
		SampleRate: outputSampleRate,
		Format:     core.PCM,
		Channels:   1,
		Timestamp:  time.Now(),
	}
	select {
	case session.outChan <- chunk:
	default:
		e.logger.Infof("ElevenLabs TTS: outChan full, dropping audio chunk (%d bytes)", len(raw))
	}
}

func (e *ElevenLabsTTS) heartbeat() {
	defer func() {
		e.mu.Lock()
		if e.heartbeatDone != nil {
			close(e.heartbeatDone)
			e.heartbeatDone = nil
		}
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.mu.RLock()
			conn := e.conn
			e.mu.RUnlock()

			if conn != nil {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					e.logger.Infof("ElevenLabs TTS: heartbeat ping failed: %v", err)
					e.mu.Lock()
					e.closeConnectionLocked()
					e.mu.Unlock()
				}
			}
		}
	}
}

func (e *ElevenLabsTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("elevenlabs: failed to marshal message: %w", err)
	}
	e.logger.Debugf("ElevenLabs TTS: sending: %s", string(data))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (e *ElevenLabsTTS) sendError(session *elevenSession, err error) {
	if session == nil || session.errorChan == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Infof("ElevenLabs TTS: recovered from panic sending error: %v", r)
		}
	}()
	select {
	case session.errorChan <- err:
	default:
		e.logger.Infof("ElevenLabs TTS: error channel full or closed: %v", err)
	}
}

func (e *ElevenLabsTTS) closeConnectionLocked() {
	if e.conn != nil {
		e.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		e.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		e.conn.Close()
		e.conn = nil
	}
}

func (e *ElevenLabsTTS) cleanupSessionLocked(session *elevenSession) {
	if session == nil {
		return
	}
	session.outChan = nil
	session.errorChan = nil
	session.doneChan = nil
	e.closeConnectionLocked()
	if e.session == session {
		e.session = nil
	}
}

// IsConnected returns whether there is an active WebSocket connection.
func (e *ElevenLabsTTS) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conn != nil && e.session != nil
}
