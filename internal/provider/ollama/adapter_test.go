package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geekspace/arbiter/internal/domain"
	"github.com/geekspace/arbiter/internal/provider/ollama"
)

func newTestAdapter(t *testing.T, server *httptest.Server) *ollama.Adapter {
	t.Helper()

	adapter, err := ollama.NewAdapter(ollama.Config{
		BaseURL:      server.URL,
		Model:        "qwen2.5-coder",
		MaxTokens:    256,
		Timeout:      5,
		ProbeTimeout: 1,
	})
	require.NoError(t, err)
	return adapter
}

func TestNewAdapter_RequiresBaseURL(t *testing.T) {
	_, err := ollama.NewAdapter(ollama.Config{})
	require.Error(t, err)
}

func TestAdapter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "qwen2.5-coder", body["model"])
		require.Equal(t, false, body["stream"])
		opts := body["options"].(map[string]any)
		require.Equal(t, float64(128), opts["num_predict"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"message": {"content": "local answer"},
			"done": true,
			"prompt_eval_count": 9,
			"eval_count": 4
		}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	comp, err := adapter.Complete(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, 128)
	require.NoError(t, err)

	require.Equal(t, "local answer", comp.Content)
	require.Equal(t, 9, comp.TokensIn)
	require.Equal(t, 4, comp.TokensOut)
}

func TestAdapter_Complete_EstimatesMissingCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message": {"content": "12345678"}, "done": true}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	comp, err := adapter.Complete(context.Background(), []domain.Message{{Role: "user", Content: "abcd"}}, 128)
	require.NoError(t, err)

	require.Equal(t, 1, comp.TokensIn)
	require.Equal(t, 2, comp.TokensOut)
}

func TestAdapter_Complete_DefaultsMaxTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		opts := body["options"].(map[string]any)
		require.Equal(t, float64(256), opts["num_predict"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message": {"content": "ok"}, "done": true}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	_, err := adapter.Complete(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, 0)
	require.NoError(t, err)
}

func TestAdapter_Complete_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	_, err := adapter.Complete(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, 128)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestAdapter_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "application/x-ndjson")
		lines := []string{
			`{"message": {"content": "Hel"}, "done": false}`,
			`{"message": {"content": "lo"}, "done": false}`,
			`not valid json, skipped`,
			`{"message": {"content": ""}, "done": true, "prompt_eval_count": 7, "eval_count": 2}`,
		}
		_, _ = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	events, err := adapter.Stream(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, 128)
	require.NoError(t, err)

	var text strings.Builder
	var done domain.StreamEvent
	for event := range events {
		require.NoError(t, event.Err)
		text.WriteString(event.Delta)
		if event.Done {
			done = event
		}
	}

	require.Equal(t, "Hello", text.String())
	require.True(t, done.Done)
	require.Equal(t, 7, done.TokensIn)
	require.Equal(t, 2, done.TokensOut)
}

func TestAdapter_Stream_NonOKFailsBeforeChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	_, err := adapter.Stream(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, 128)
	require.Error(t, err)
}

func TestAdapter_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server)
	require.True(t, adapter.Probe(context.Background()))

	server.Close()
	require.False(t, adapter.Probe(context.Background()))
}
