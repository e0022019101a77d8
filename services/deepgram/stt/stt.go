package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"vocalis/core"
	"vocalis/utils/audio"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseURL   = "wss://api.deepgram.com"
	streamSampleRate = 16000
	keepAliveEvery   = 10 * time.Second
	reconnectAfter   = 5 * time.Second
)

// DeepgramSTTService streams audio to Deepgram's live transcription API over
// a WebSocket and forwards interim and final transcripts plus VAD signals.
type DeepgramSTTService struct {
	config *DeepgramConfig
	logger *core.Logger

	conn        *websocket.Conn
	connMu      sync.RWMutex
	isConnected bool

	outChan               chan<- string
	interimOutputChan     chan<- string
	speechStartedChan     chan<- float64
	utteranceEndChan      chan<- float64
	fatalServiceErrorChan chan<- error

	done        <-chan struct{}
	reconnectMu sync.Mutex
}

// DeepgramConfig holds the live transcription options. Endpointing and
// UtteranceEndMs are milliseconds; zero leaves the server default in place.
type DeepgramConfig struct {
	APIKey          string            `json:"api_key"`
	BaseURL         string            `json:"base_url"`
	Model           string            `json:"model"`
	Language        string            `json:"language"`
	InterimResults  bool              `json:"interim_results"`
	Punctuate       bool              `json:"punctuate"`
	SmartFormat     bool              `json:"smart_format"`
	ProfanityFilter bool              `json:"profanity_filter"`
	Numerals        bool              `json:"numerals"`
	Endpointing     int               `json:"endpointing"`
	VadEvents       bool              `json:"vad_events"`
	UtteranceEndMs  int               `json:"utterance_end_ms"`
	Keywords        []string          `json:"keywords"`
	Extra           map[string]string `json:"extra"`
}

// DefaultConfig returns a configuration suitable for conversational turns:
// interim results on, VAD events on, and a 500ms endpointing window.
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:        defaultBaseURL,
		Model:          "nova-2",
		Language:       "en",
		InterimResults: true,
		Punctuate:      true,
		SmartFormat:    true,
		VadEvents:      true,
		Endpointing:    500,
		UtteranceEndMs: 1000,
	}
}

// NewDeepgramSTTService creates a new Deepgram STT service instance.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) *DeepgramSTTService {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	return &DeepgramSTTService{
		config: config,
		logger: logger,
	}
}

func (d *DeepgramSTTService) Initialize(ctx context.Context) error {
	if d.config.APIKey == "" {
		return fmt.Errorf("Deepgram API key is required")
	}
	d.done = ctx.Done()
	return nil
}

func (d *DeepgramSTTService) Cleanup() error {
	d.closeConnection()
	d.outChan = nil
	d.interimOutputChan = nil
	d.speechStartedChan = nil
	d.utteranceEndChan = nil
	d.fatalServiceErrorChan = nil
	d.logger.Info("Deepgram STT service cleaned up")
	return nil
}

// Reset flushes any buffered audio server-side so the next turn starts from
// a clean transcript.
func (d *DeepgramSTTService) Reset() error {
	return d.Flush()
}

// Flush asks Deepgram to finalize whatever audio it has buffered. The
// resulting transcript arrives as a Results message with from_finalize set.
func (d *DeepgramSTTService) Flush() error {
	msg, err := json.Marshal(listenV1Control{Type: "Finalize"})
	if err != nil {
		return fmt.Errorf("failed to marshal finalize message: %w", err)
	}
	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.isConnected && d.conn != nil {
		_ = d.conn.WriteMessage(websocket.TextMessage, msg)
	}
	return nil
}

// StartTranscriptionSession starts a new transcription session with Deepgram.
// speechStartedChan and utteranceEndChan may be nil when the caller does not
// care about VAD timing.
func (d *DeepgramSTTService) StartTranscriptionSession(
	outChan chan<- string,
	interimOutputChan chan<- string,
	speechStartedChan chan<- float64,
	utteranceEndChan chan<- float64,
	fatalServiceErrorChan chan<- error,
) {
	d.outChan = outChan
	d.interimOutputChan = interimOutputChan
	d.speechStartedChan = speechStartedChan
	d.utteranceEndChan = utteranceEndChan
	d.fatalServiceErrorChan = fatalServiceErrorChan

	go d.runSession()
}

// SendTranscriptionAudio sends audio data to the active transcription session.
// The chunk is converted to 16kHz mono PCM before hitting the wire.
func (d *DeepgramSTTService) SendTranscriptionAudio(chunk core.AudioChunk) error {
	if !d.isConnected || d.conn == nil {
		return fmt.Errorf("not connected to Deepgram")
	}
	converted, convertErr := audio.ConvertAudioChunk(chunk, core.PCM, 1, streamSampleRate)
	if convertErr != nil {
		return fmt.Errorf("failed to convert audio chunk: %w", convertErr)
	}
	d.connMu.Lock()
	err := d.conn.WriteMessage(websocket.BinaryMessage, *converted.Data)
	d.connMu.Unlock()
	if err != nil {
		go d.handleConnectionError(err)
		return fmt.Errorf("failed to send audio: %w", err)
	}

	return nil
}

// runSession manages the WebSocket connection, reconnecting on failure until
// the session context is done.
func (d *DeepgramSTTService) runSession() {
	for {
		select {
		case <-d.done:
			return
		default:
			if err := d.connectAndListen(); err != nil {
				select {
				case <-d.done:
					return
				default:
					if d.fatalServiceErrorChan != nil {
						select {
						case d.fatalServiceErrorChan <- fmt.Errorf("Deepgram session error: %w", err):
						default:
						}
					}
				}

				select {
				case <-time.After(reconnectAfter):
				case <-d.done:
					return
				}
			}
		}
	}
}

func (d *DeepgramSTTService) connectAndListen() error {
	d.reconnectMu.Lock()
	defer d.reconnectMu.Unlock()

	wsURL, err := d.buildWebSocketURL()
	if err != nil {
		return fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	headers := map[string][]string{
		"Authorization": {"Token " + d.config.APIKey},
	}

	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), wsURL, headers)
	if err != nil {
		return fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	d.connMu.Lock()
	d.conn = conn
	d.isConnected = true
	d.connMu.Unlock()

	defer d.closeConnection()

	go d.keepAlive()

	for {
		select {
		case <-d.done:
			return nil
		default:
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("error reading message: %w", err)
			}

			if messageType == websocket.TextMessage {
				if err := d.handleMessage(message); err != nil {
					d.logger.Debugf("dropping unparseable Deepgram message: %v", err)
				}
			}
		}
	}
}

func (d *DeepgramSTTService) buildWebSocketURL() (string, error) {
	base, err := url.Parse(d.config.BaseURL + "/v1/listen")
	if err != nil {
		return "", err
	}

	q := base.Query()

	if d.config.Model != "" {
		q.Set("model", d.config.Model)
	}
	if d.config.Language != "" {
		q.Set("language", d.config.Language)
	}
	q.Set("interim_results", strconv.FormatBool(d.config.InterimResults))
	q.Set("punctuate", strconv.FormatBool(d.config.Punctuate))
	q.Set("smart_format", strconv.FormatBool(d.config.SmartFormat))
	q.Set("profanity_filter", strconv.FormatBool(d.config.ProfanityFilter))
	q.Set("numerals", strconv.FormatBool(d.config.Numerals))
	q.Set("vad_events", strconv.FormatBool(d.config.VadEvents))

	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(streamSampleRate))
	q.Set("channels", "1")

	if d.config.Endpointing > 0 {
		q.Set("endpointing", strconv.Itoa(d.config.Endpointing))
	}
	if d.config.UtteranceEndMs > 0 {
		q.Set("utterance_end_ms", strconv.Itoa(d.config.UtteranceEndMs))
	}

	for _, keyword := range d.config.Keywords {
		q.Add("keywords", keyword)
	}

	for key, value := range d.config.Extra {
		q.Set(key, value)
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (d *DeepgramSTTService) handleMessage(message []byte) error {
	d.logger.Debugf("Received message from Deepgram: %s", string(message))
	var base struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(message, &base); err != nil {
		return fmt.Errorf("failed to parse message type: %w", err)
	}

	switch base.Type {
	case "Results":
		var result ListenV1Results
		if err := json.Unmarshal(message, &result); err != nil {
			return fmt.Errorf("failed to parse results: %w", err)
		}
		d.processResults(result)

	case "Metadata":
		// Connection-level bookkeeping, nothing to forward.

	case "UtteranceEnd":
		var utteranceEnd ListenV1UtteranceEnd
		if err := json.Unmarshal(message, &utteranceEnd); err != nil {
			return fmt.Errorf("failed to parse utterance end: %w", err)
		}
		d.sendFloat(d.utteranceEndChan, utteranceEnd.LastWordEnd)

	case "SpeechStarted":
		var speechStarted ListenV1SpeechStarted
		if err := json.Unmarshal(message, &speechStarted); err != nil {
			return fmt.Errorf("failed to parse speech started: %w", err)
		}
		d.sendFloat(d.speechStartedChan, speechStarted.Timestamp)

	default:
		return fmt.Errorf("unknown message type: %s", base.Type)
	}

	return nil
}

func (d *DeepgramSTTService) processResults(result ListenV1Results) {
	if len(result.Channel.Alternatives) == 0 {
		return
	}

	transcript := result.Channel.Alternatives[0].Transcript
	if transcript == "" {
		d.logger.Debug("Received empty transcript, ignoring")
		return
	}

	if result.IsFinal || result.SpeechFinal || result.FromFinalize {
		d.logger.Debugf("STT Final Result: %s", transcript)
		d.sendString(d.outChan, transcript)
	} else {
		d.logger.Debugf("STT Interim Result: %s", transcript)
		d.sendString(d.interimOutputChan, transcript)
	}
}

func (d *DeepgramSTTService) sendString(ch chan<- string, value string) {
	select {
	case <-d.done:
		return
	default:
	}
	if ch == nil {
		return
	}
	select {
	case ch <- value:
	default:
	}
}

func (d *DeepgramSTTService) sendFloat(ch chan<- float64, value float64) {
	select {
	case <-d.done:
		return
	default:
	}
	if ch == nil {
		return
	}
	select {
	case ch <- value:
	default:
	}
}

// keepAlive keeps the socket open during silence. Deepgram closes idle
// connections after roughly 12 seconds without audio.
func (d *DeepgramSTTService) keepAlive() {
	ticker := time.NewTicker(keepAliveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.connMu.Lock()
			if d.isConnected && d.conn != nil {
				if msg, err := json.Marshal(listenV1Control{Type: "KeepAlive"}); err == nil {
					_ = d.conn.WriteMessage(websocket.TextMessage, msg)
				}
			}
			d.connMu.Unlock()
		}
	}
}

func (d *DeepgramSTTService) closeConnection() {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.conn != nil {
		if msg, err := json.Marshal(listenV1Control{Type: "CloseStream"}); err == nil {
			_ = d.conn.WriteMessage(websocket.TextMessage, msg)
		}

		_ = d.conn.Close()
		d.conn = nil
	}

	d.isConnected = false
}

func (d *DeepgramSTTService) handleConnectionError(_ error) {
	d.connMu.Lock()
	d.isConnected = false
	d.connMu.Unlock()
	// runSession notices the read failure and reconnects.
}

// Message structs based on the live API's AsyncAPI specification.

type ListenV1Results struct {
	Type         string  `json:"type"`
	ChannelIndex []int   `json:"channel_index"`
	Duration     float64 `json:"duration"`
	Start        float64 `json:"start"`
	IsFinal      bool    `json:"is_final"`
	SpeechFinal  bool    `json:"speech_final"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word           string  `json:"word"`
				Start          float64 `json:"start"`
				End            float64 `json:"end"`
				Confidence     float64 `json:"confidence"`
				PunctuatedWord string  `json:"punctuated_word,omitempty"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
	FromFinalize bool `json:"from_finalize,omitempty"`
}

type ListenV1UtteranceEnd struct {
	Type        string  `json:"type"`
	Channel     []int   `json:"channel"`
	LastWordEnd float64 `json:"last_word_end"`
}

type ListenV1SpeechStarted struct {
	Type      string  `json:"type"`
	Channel   []int   `json:"channel"`
	Timestamp float64 `json:"timestamp"`
}

// listenV1Control covers KeepAlive, Finalize, and CloseStream frames.
type listenV1Control struct {
	Type string `json:"type"`
}
