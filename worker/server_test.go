package worker

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis/core"
)

func newTestServer(gen Generator) *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(NewWorker(gen, core.NewDevelopmentLogger()), core.NewDevelopmentLogger())
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := sonic.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServerRunSync(t *testing.T) {
	server := newTestServer(&fakeGenerator{output: Output{Text: "hello"}})
	router := server.Router()

	rec := postJSON(t, router, "/runsync", Job{
		ID:    "job-1",
		Input: InferenceInput{Prompt: "say hello"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result Result
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, StatusSuccess, result.Status)
	require.NotNil(t, result.Output)
	assert.Equal(t, "hello", result.Output.Text)
}

func TestServerRunValidationFailure(t *testing.T) {
	server := newTestServer(&fakeGenerator{})
	router := server.Router()

	rec := postJSON(t, router, "/run", Job{ID: "job-2"})

	require.Equal(t, http.StatusOK, rec.Code)
	var result Result
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, StatusValidationFailed, result.Status)
	assert.False(t, result.Retry)
}

func TestServerRejectsMalformedBody(t *testing.T) {
	server := newTestServer(&fakeGenerator{})
	router := server.Router()

	req := httptest.NewRequest(http.MethodPost, "/runsync", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerStream(t *testing.T) {
	server := newTestServer(&fakeGenerator{
		output: Output{Text: "hello world"},
		chunks: []string{"hello ", "world"},
	})
	router := server.Router()

	rec := postJSON(t, router, "/stream", Job{
		ID:    "job-3",
		Input: InferenceInput{Prompt: "greet"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var frames []streamFrame
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var frame streamFrame
		require.NoError(t, sonic.Unmarshal(scanner.Bytes(), &frame))
		frames = append(frames, frame)
	}

	require.Len(t, frames, 3)
	assert.Equal(t, "hello ", frames[0].Chunk)
	assert.Equal(t, "world", frames[1].Chunk)
	require.NotNil(t, frames[2].Result)
	assert.Equal(t, StatusSuccess, frames[2].Result.Status)
	assert.Equal(t, "hello world", frames[2].Result.Output.Text)
}

func TestServerHealthAndMetrics(t *testing.T) {
	server := newTestServer(&fakeGenerator{output: Output{Text: "ok"}})
	router := server.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	postJSON(t, router, "/runsync", Job{ID: "a", Input: InferenceInput{Prompt: "hi"}})

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap MetricsSnapshot
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, int64(1), snap.Succeeded)
}
