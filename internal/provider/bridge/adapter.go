// Package bridge adapts the WebSocket-to-HTTP bridge that fronts the premium
// model. The bridge exposes an OpenAI-compatible chat-completions surface and
// a health endpoint reporting its upstream WebSocket state; this package only
// depends on that HTTP contract, not on the bridge's reconnection logic.
package bridge

import (
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

// Adapter implements domain.Adapter for the premium bridge.
type Adapter struct {
	baseURL      string
	token        string
	model        string
	httpClient   *http.Client
	probeTimeout time.Duration
}

// NewAdapter creates a bridge adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("bridge base URL is required")
	}

	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		probeTimeout: time.Duration(cfg.ProbeTimeout) * time.Second,
	}, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() domain.Provider {
	return domain.ProviderBridge
}

// Model returns the model identifier used for responses.
func (a *Adapter) Model() string {
	return a.model
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature,omitempty"`
}

// chatResponse accepts both the OpenAI-style shape and the flat shapes some
// bridge builds return.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`

	Content  string `json:"content"`
	Response string `json:"response"`
	Text     string `json:"text"`
	Output   string `json:"output"`
}

// content returns the reply text from whichever field the bridge populated.
func (r *chatResponse) content() string {
	if len(r.Choices) > 0 && r.Choices[0].Message.Content != "" {
		return r.Choices[0].Message.Content
	}
	for _, s := range []string{r.Content, r.Response, r.Text, r.Output} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Complete performs exactly one call through the bridge.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.Completion, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling premium bridge")

	body, err := json.Marshal(chatRequest{
		Model:       a.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		a.baseURL+"/v1/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("bridge returned status %d: %s", resp.StatusCode, string(snippet))
	}

	// A reverse proxy in front of the bridge can answer with an HTML error
	// page and a 200; treat that as a failed call.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("bridge returned unexpected content type %q", ct)
	}

	var parsed chatResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode bridge response: %w", decodeErr)
	}

	content := parsed.content()
	tokensIn := parsed.Usage.PromptTokens
	tokensOut := parsed.Usage.CompletionTokens
	if tokensIn == 0 {
		tokensIn = domain.EstimateTokens(joinContents(messages))
	}
	if tokensOut == 0 {
		tokensOut = domain.EstimateTokens(content)
	}

	logger.Debug("bridge call succeeded",
		observability.Int("tokens_in", tokensIn),
		observability.Int("tokens_out", tokensOut))

	return &domain.Completion{
		Content:   content,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}, nil
}

// Probe checks the bridge health endpoint. The bridge is only usable when its
// upstream WebSocket is connected, so a live HTTP listener alone is not
// enough.
func (a *Adapter) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var status struct {
		WSConnected bool `json:"ws_connected"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&status); decodeErr != nil {
		return false
	}
	return status.WSConnected
}

func joinContents(messages []domain.Message) string {
	var builder strings.Builder
	for _, m := range messages {
		builder.WriteString(m.Content)
	}
	return builder.String()
}
