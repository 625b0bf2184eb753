// Package openrouter adapts the OpenRouter-compatible cloud providers using
// the official OpenAI SDK pointed at the OpenRouter base URL. Two adapter
// instances exist: the paid tier and the free tier, differing only in
// credentials, model, and provider identity.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/geekspace/arbiter/internal/domain"
	"github.com/geekspace/arbiter/internal/observability"
)

// Adapter implements domain.Adapter for one OpenRouter tier.
type Adapter struct {
	client   openai.Client
	provider domain.Provider
	model    string
}

// NewPaidAdapter creates the paid-tier adapter.
func NewPaidAdapter(cfg Config) (*Adapter, error) {
	if !cfg.PaidConfigured() {
		return nil, errors.New("paid cloud API key is required")
	}
	return newAdapter(domain.ProviderCloudPaid, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg), nil
}

// NewFreeAdapter creates the free-tier adapter.
func NewFreeAdapter(cfg Config) (*Adapter, error) {
	if !cfg.FreeConfigured() {
		return nil, errors.New("free cloud API key and model are required")
	}
	return newAdapter(domain.ProviderCloudFree, cfg.FreeBaseURL, cfg.FreeAPIKey, cfg.FreeModel, cfg), nil
}

func newAdapter(provider domain.Provider, baseURL, apiKey, model string, cfg Config) *Adapter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHeader("HTTP-Referer", cfg.Referer),
		option.WithHeader("X-Title", cfg.Title),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Second))
	}

	return &Adapter{
		client:   openai.NewClient(opts...),
		provider: provider,
		model:    model,
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() domain.Provider {
	return a.provider
}

// Model returns the model identifier used for responses.
func (a *Adapter) Model() string {
	return a.model
}

// Complete performs exactly one upstream call via the SDK.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, maxTokens int) (*domain.Completion, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling cloud provider", observability.String("model", a.model))

	resp, err := a.client.Chat.Completions.New(ctx, a.toSDKParams(messages, maxTokens))
	if err != nil {
		logger.Error("cloud call failed", observability.Error(err))
		return nil, fmt.Errorf("cloud call failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	tokensIn := int(resp.Usage.PromptTokens)
	tokensOut := int(resp.Usage.CompletionTokens)
	if tokensIn == 0 {
		tokensIn = domain.EstimateTokens(joinContents(messages))
	}
	if tokensOut == 0 {
		tokensOut = domain.EstimateTokens(content)
	}

	logger.Debug("cloud call succeeded",
		observability.Int("tokens_in", tokensIn),
		observability.Int("tokens_out", tokensOut))

	return &domain.Completion{
		Content:   content,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}, nil
}

// toSDKParams converts router messages to SDK ChatCompletionNewParams.
func (a *Adapter) toSDKParams(messages []domain.Message, maxTokens int) openai.ChatCompletionNewParams {
	sdkMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "assistant":
			sdkMessages[i] = openai.AssistantMessage(msg.Content)
		case "system":
			sdkMessages[i] = openai.SystemMessage(msg.Content)
		default:
			sdkMessages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: sdkMessages,
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	return params
}

func joinContents(messages []domain.Message) string {
	total := ""
	for _, m := range messages {
		total += m.Content
	}
	return total
}
