package factories

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsJSON = `{
	"session_timeout_seconds": 300,
	"session_config": {
		"tier": "starter",
		"voice": "spanish-man"
	}
}`

func TestSettingsConfigFromJSON(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(settingsJSON))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.SessionTimeout())
	require.NotNil(t, cfg.Session)
	assert.Equal(t, "starter", cfg.Session.Tier)
	assert.Equal(t, "spanish-man", cfg.Session.Voice)

	_, err = SettingsConfigFromJSON([]byte("{broken"))
	assert.Error(t, err)
}

func TestLoadSettingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(settingsJSON), 0o644))

	cfg, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "starter", cfg.Session.Tier)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadSettings("")
	assert.Error(t, err)
}

func TestLoadSettingsEnvOverridesFile(t *testing.T) {
	envJSON := `{"session_config": {"tier": "enterprise"}}`
	t.Setenv("SETTINGS_JSON_B64", base64.StdEncoding.EncodeToString([]byte(envJSON)))

	cfg, err := LoadSettings("ignored-path.json")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", cfg.Session.Tier)

	t.Setenv("SETTINGS_JSON_B64", "%%% not base64 %%%")
	_, err = LoadSettings("ignored-path.json")
	assert.Error(t, err)
}

func TestResolveSessionPrecedence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"tier": "pro", "voice": "british-woman"}`))
	}))
	defer server.Close()

	cfg := SettingsConfig{
		SessionAPI: &SessionAPIConfig{
			URL:     server.URL,
			Headers: map[string]string{"Authorization": "Bearer token"},
			Body:    []byte(`{"caller": "+15550100"}`),
		},
		Session: &SessionConfig{Tier: "free"},
	}

	// The API wins over the inline config.
	session, err := cfg.ResolveSession()
	require.NoError(t, err)
	assert.Equal(t, "pro", session.Tier)
	assert.Equal(t, "british-woman", session.Voice)

	// Without an API, the inline config is used.
	cfg.SessionAPI = nil
	session, err = cfg.ResolveSession()
	require.NoError(t, err)
	assert.Equal(t, "free", session.Tier)

	// Neither configured is an error.
	cfg.Session = nil
	_, err = cfg.ResolveSession()
	assert.Error(t, err)
}

func TestSessionAPIFetchRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	api := &SessionAPIConfig{URL: server.URL}
	_, err := api.Fetch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestAPIKeysFromEnv(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg")
	t.Setenv("GROQ_API_KEY", "gq")
	t.Setenv("CARTESIA_API_KEY", "ct")

	keys := APIKeysFromEnv()
	assert.Equal(t, "dg", keys.Deepgram)
	assert.Equal(t, "gq", keys.Groq)
	assert.Equal(t, "ct", keys.Cartesia)
}
