package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalis/core"
)

func userMessage(text string) core.LLMContext {
	return core.LLMContext{
		Messages: []core.LLMMessage{
			{Role: core.LLMMessageRoleUser, Message: text},
		},
	}
}

func newStreamingService(t *testing.T, baseURL string) *OpenAILLMService {
	t.Helper()
	svc := NewOpenAILLMService(Config{
		APIKey:    "test",
		BaseURL:   baseURL,
		Streaming: true,
	}, core.NewDevelopmentLogger())
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { svc.Cleanup() })
	return svc
}

type completionChans struct {
	out   chan string
	tools chan core.LLMToolCall
	errCh chan error
	start chan struct{}
	end   chan struct{}
}

func newCompletionChans() completionChans {
	return completionChans{
		out:   make(chan string, 10),
		tools: make(chan core.LLMToolCall, 1),
		errCh: make(chan error, 1),
		start: make(chan struct{}, 1),
		end:   make(chan struct{}, 1),
	}
}

func sseChunk(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`+"\n\n", content)
}

func TestRunCompletionStreamsToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hello "))
		fmt.Fprint(w, sseChunk("there."))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	svc := newStreamingService(t, server.URL)
	ch := newCompletionChans()
	go svc.RunCompletion(userMessage("hi"), ch.out, ch.tools, ch.errCh, ch.start, ch.end)

	var text string
	for {
		select {
		case chunk := <-ch.out:
			text += chunk
		case <-ch.end:
			// Drain chunks still buffered in out; end can become ready in the
			// same select round as the last chunk.
			for {
				select {
				case chunk := <-ch.out:
					text += chunk
					continue
				default:
				}
				break
			}
			assert.Equal(t, "Hello there.", text)
			return
		case err := <-ch.errCh:
			t.Fatalf("unexpected completion error: %v", err)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for completion end")
		}
	}
}

func TestRunCompletionTruncatedStreamReportsError(t *testing.T) {
	// The handler hijacks the connection and drops it without the terminating
	// chunk, so the client sees the body end mid-stream.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("server does not support hijacking")
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()

		buf.WriteString("HTTP/1.1 200 OK\r\n")
		buf.WriteString("Content-Type: text/event-stream\r\n")
		buf.WriteString("Transfer-Encoding: chunked\r\n\r\n")
		payload := sseChunk("Hel")
		fmt.Fprintf(buf, "%x\r\n%s\r\n", len(payload), payload)
		buf.Flush()
	}))
	defer server.Close()

	svc := newStreamingService(t, server.URL)
	ch := newCompletionChans()
	go svc.RunCompletion(userMessage("hi"), ch.out, ch.tools, ch.errCh, ch.start, ch.end)

	// The partial text still streams out before the drop.
	select {
	case chunk := <-ch.out:
		assert.Equal(t, "Hel", chunk)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the partial chunk")
	}

	// The drop surfaces as an error, never as a completed generation.
	select {
	case err := <-ch.errCh:
		assert.ErrorContains(t, err, "mid-response")
	case <-ch.end:
		t.Fatal("truncated stream signalled completion")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the stream error")
	}
	select {
	case <-ch.end:
		t.Fatal("truncated stream signalled completion after the error")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestResolveBaseURL(t *testing.T) {
	svc := NewOpenAILLMService(Config{APIKey: "test"}, nil)
	url, err := svc.resolveBaseURL()
	require.NoError(t, err)
	assert.Equal(t, providerBaseURLs["groq"], url)

	svc = NewOpenAILLMService(Config{APIKey: "test", Provider: "martian"}, nil)
	_, err = svc.resolveBaseURL()
	assert.Error(t, err)

	svc = NewOpenAILLMService(Config{APIKey: "test", Provider: "martian", BaseURL: "http://localhost:9"}, nil)
	url, err = svc.resolveBaseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9", url)
}
