// Package ollama adapts the local inference server. It speaks the Ollama
// chat API: JSON POST to /api/chat, NDJSON when streaming, model list at
// /api/tags for liveness.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/geekspace/arbiter/internal/domain"
	"github.com/geekspace/arbiter/internal/observability"
)

const defaultTemperature = 0.7

// Adapter implements domain.StreamingAdapter for the local inference server.
type Adapter struct {
	baseURL      string
	model        string
	maxTokens    int
	httpClient   *http.Client
	probeTimeout time.Duration
}

// NewAdapter creates a local inference adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("local inference base URL is required")
	}

	return &Adapter{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		probeTimeout: time.Duration(cfg.ProbeTimeout) * time.Second,
	}, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() domain.Provider {
	return domain.ProviderLocal
}

// Model returns the model identifier used for responses.
func (a *Adapter) Model() string {
	return a.model
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
	Options  chatOptions      `json:"options"`
}

// chatEvent is one NDJSON line from the server. Non-streaming responses use
// the same shape with Done implicitly true.
type chatEvent struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// Complete performs exactly one non-streaming call.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.Completion, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling local inference")

	resp, err := a.post(ctx, messages, maxTokens, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var event chatEvent
	if decodeErr := json.NewDecoder(resp.Body).Decode(&event); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode local inference response: %w", decodeErr)
	}

	content := ""
	if event.Message != nil {
		content = event.Message.Content
	}

	tokensIn := event.PromptEvalCount
	tokensOut := event.EvalCount
	if tokensIn == 0 {
		tokensIn = domain.EstimateTokens(joinContents(messages))
	}
	if tokensOut == 0 {
		tokensOut = domain.EstimateTokens(content)
	}

	return &domain.Completion{
		Content:   content,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}, nil
}

// Stream performs one streaming call. Events are emitted per NDJSON line;
// the final Done event carries the usage counters the server reports with
// its completion statistics. Malformed lines are skipped.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message, maxTokens int) (<-chan domain.StreamEvent, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("streaming from local inference")

	//nolint:bodyclose // Body is closed in the reader goroutine below.
	resp, err := a.post(ctx, messages, maxTokens, true)
	if err != nil {
		return nil, err
	}

	events := make(chan domain.StreamEvent)
	go a.readStream(ctx, resp, events)
	return events, nil
}

func (a *Adapter) readStream(ctx context.Context, resp *http.Response, events chan<- domain.StreamEvent) {
	defer close(events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event chatEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		out := domain.StreamEvent{}
		if event.Message != nil {
			out.Delta = event.Message.Content
		}
		if event.Done {
			out.Done = true
			out.TokensIn = event.PromptEvalCount
			out.TokensOut = event.EvalCount
		}

		select {
		case events <- out:
		case <-ctx.Done():
			return
		}

		if event.Done {
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		select {
		case events <- domain.StreamEvent{Err: fmt.Errorf("local inference stream error: %w", err)}:
		case <-ctx.Done():
		}
	}
}

func (a *Adapter) post(ctx context.Context, messages []domain.Message, maxTokens int, stream bool) (*http.Response, error) {
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model:    a.model,
		Messages: messages,
		Stream:   stream,
		Options: chatOptions{
			Temperature: defaultTemperature,
			NumPredict:  maxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		a.baseURL+"/api/chat",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("local inference request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("local inference returned status %d: %s", resp.StatusCode, string(snippet))
	}

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("local inference returned unexpected content type %q", ct)
	}

	return resp, nil
}

// Probe checks whether the server answers its model-list endpoint.
func (a *Adapter) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func joinContents(messages []domain.Message) string {
	var builder strings.Builder
	for _, m := range messages {
		builder.WriteString(m.Content)
	}
	return builder.String()
}
