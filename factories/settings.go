package factories

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bytedance/sonic"
)

// SessionAPIConfig describes an HTTP endpoint that returns a SessionConfig
// JSON payload. Called per-session to allow dynamic configuration per call.
type SessionAPIConfig struct {
	// URL is the endpoint to request.
	URL string `json:"url"`
	// Method is the HTTP method. Defaults to "POST" when Body is set, "GET" otherwise.
	Method string `json:"method,omitempty"`
	// Headers are additional HTTP headers to include in the request.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is an optional JSON body to send with the request.
	Body json.RawMessage `json:"body,omitempty"`
}

var sessionAPIClient = &http.Client{Timeout: 10 * time.Second}

// Fetch calls the configured endpoint and parses the response as a SessionConfig.
func (c *SessionAPIConfig) Fetch() (SessionConfig, error) {
	method := c.Method
	if method == "" {
		if len(c.Body) > 0 {
			method = http.MethodPost
		} else {
			method = http.MethodGet
		}
	}

	req, err := http.NewRequest(method, c.URL, bytes.NewReader(c.Body))
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	if len(c.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := sessionAPIClient.Do(req)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SessionConfig{}, fmt.Errorf("session api: unexpected status %d from %s", resp.StatusCode, c.URL)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return SessionConfig{}, fmt.Errorf("session api: read response: %w", err)
	}

	return SessionConfigFromJSON(buf.Bytes())
}

// SessionConfigFromJSON parses a JSON blob into a SessionConfig.
func SessionConfigFromJSON(data []byte) (SessionConfig, error) {
	var cfg SessionConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

// SettingsConfig is the top-level config loaded from settings.json. It holds
// either an inline SessionConfig or an HTTP endpoint that serves one.
type SettingsConfig struct {
	// SessionAPI, when set, is called per-session to fetch the SessionConfig dynamically.
	SessionAPI *SessionAPIConfig `json:"session_api,omitempty"`
	// Session, when set, provides inline session config directly in settings.json.
	Session *SessionConfig `json:"session_config,omitempty"`
	// SessionTimeoutSeconds caps a session's lifetime. Zero means no cap.
	SessionTimeoutSeconds int `json:"session_timeout_seconds,omitempty"`
}

// SessionTimeout returns the configured session cap as a duration.
func (c SettingsConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// ResolveSession returns the SessionConfig to use: the session API result
// when one is configured, otherwise the inline config.
func (c SettingsConfig) ResolveSession() (SessionConfig, error) {
	if c.SessionAPI != nil {
		return c.SessionAPI.Fetch()
	}
	if c.Session != nil {
		return *c.Session, nil
	}
	return SessionConfig{}, fmt.Errorf("settings: neither session_api nor session_config set")
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	var cfg SettingsConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// LoadSettings resolves the settings from, in order of precedence, the
// SETTINGS_JSON_B64 environment variable (base64-encoded settings JSON) and
// the given file path. An empty path with no env var set is an error.
func LoadSettings(path string) (SettingsConfig, error) {
	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return SettingsConfig{}, fmt.Errorf("settings: decode SETTINGS_JSON_B64: %w", err)
		}
		return SettingsConfigFromJSON(data)
	}
	if path == "" {
		return SettingsConfig{}, fmt.Errorf("settings: no settings file and SETTINGS_JSON_B64 unset")
	}
	return SettingsConfigFromFile(path)
}

// APIKeysFromEnv gathers provider credentials from the environment.
func APIKeysFromEnv() APIKeys {
	return APIKeys{
		Deepgram:   os.Getenv("DEEPGRAM_API_KEY"),
		Cartesia:   os.Getenv("CARTESIA_API_KEY"),
		ElevenLabs: os.Getenv("ELEVENLABS_API_KEY"),
		OpenAI:     os.Getenv("OPENAI_API_KEY"),
		Groq:       os.Getenv("GROQ_API_KEY"),
		Together:   os.Getenv("TOGETHER_API_KEY"),
		DeepSeek:   os.Getenv("DEEPSEEK_API_KEY"),
		OpenRouter: os.Getenv("OPENROUTER_API_KEY"),
		Fireworks:  os.Getenv("FIREWORKS_API_KEY"),
		Cerebras:   os.Getenv("CEREBRAS_API_KEY"),
		XAI:        os.Getenv("XAI_API_KEY"),
		Mistral:    os.Getenv("MISTRAL_API_KEY"),
		Perplexity: os.Getenv("PERPLEXITY_API_KEY"),
	}
}
