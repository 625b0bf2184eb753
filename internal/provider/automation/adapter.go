// Package automation adapts the local automation gateway, the specialized
// fast path the router prefers for automation-intent messages on the local
// tier. The gateway takes a single prompt plus optional system text rather
// than a full message history.
package automation

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

// Config contains settings for the automation gateway client.
type Config struct {
	BaseURL string `env:"AUTOMATION_URL"`
	Model   string `env:"AUTOMATION_MODEL"         envDefault:"automation-haiku"`
	// Timeout is the request timeout in seconds; automation replies are fast.
	Timeout int `env:"AUTOMATION_TIMEOUT"       envDefault:"15"`
	// ProbeTimeout bounds the health probe, in seconds.
	ProbeTimeout int `env:"AUTOMATION_PROBE_TIMEOUT" envDefault:"3"`
}

// Adapter implements domain.Adapter for the automation gateway.
type Adapter struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	probeTimeout time.Duration
}

// NewAdapter creates an automation gateway adapter.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("automation gateway base URL is required")
	}

	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		probeTimeout: time.Duration(cfg.ProbeTimeout) * time.Second,
	}, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() domain.Provider {
	return domain.ProviderAutomation
}

// Model returns the model identifier used for responses.
func (a *Adapter) Model() string {
	return a.model
}

type queryRequest struct {
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
}

type queryResponse struct {
	Text      string `json:"text"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
}

// Complete sends the latest user message plus any system prompt to the
// gateway. The rest of the history is dropped: automation tasks are
// single-shot by design.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, _ int) (*domain.Completion, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling automation gateway")

	prompt := ""
	system := ""
	for _, m := range messages {
		if m.Role == "system" && system == "" {
			system = m.Content
		}
	}
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}

	body, err := json.Marshal(queryRequest{Prompt: prompt, System: system})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		a.baseURL+"/v1/query",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("automation gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("automation gateway returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed queryResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode automation response: %w", decodeErr)
	}

	tokensIn := parsed.TokensIn
	tokensOut := parsed.TokensOut
	if tokensIn == 0 {
		tokensIn = domain.EstimateTokens(prompt + system)
	}
	if tokensOut == 0 {
		tokensOut = domain.EstimateTokens(parsed.Text)
	}

	return &domain.Completion{
		Content:   parsed.Text,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}, nil
}

// Probe checks the gateway health endpoint.
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

	return resp.StatusCode == http.StatusOK
}
