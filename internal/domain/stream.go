package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geekspace/arbiter/internal/observability"
)

// StreamLocal streams a completion from the local inference provider,
// invoking onDelta for every incremental fragment, and returns the final
// accounted response. Streaming deliberately bypasses the fallback chain: a
// caller consuming a stream cannot be switched to another provider
// mid-response, so a failed stream is surfaced as an error instead.
func (r *Router) StreamLocal(ctx context.Context, req *ChatRequest, onDelta func(string)) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("request must contain at least one message")
	}

	start := r.now()
	intent := r.classifier.Classify(req.LastUserContent())

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = r.cfg.Tokens.MaxTokens(PersonaLocal, intent)
	}

	messages := req.Messages
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	adapter, err := r.registry.Get(ctx, ProviderLocal)
	if err != nil {
		return nil, err
	}
	streamer, ok := adapter.(StreamingAdapter)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support streaming", ProviderLocal)
	}

	events, err := streamer.Stream(ctx, messages, maxTokens)
	if err != nil {
		return nil, err
	}

	var accumulated strings.Builder
	tokensIn, tokensOut := 0, 0

	for event := range events {
		if event.Err != nil {
			return nil, event.Err
		}
		if event.Delta != "" {
			accumulated.WriteString(event.Delta)
			onDelta(event.Delta)
		}
		if event.Done {
			tokensIn = event.TokensIn
			tokensOut = event.TokensOut
		}
	}
	if ctx.Err() != nil {
		// Aborted mid-stream: no accounting for an unconsumed response.
		return nil, ctx.Err()
	}

	reply := r.sanitizer.Clean(accumulated.String())
	if tokensIn == 0 {
		tokensIn = EstimateTokens(joinMessageContents(messages))
	}
	if tokensOut == 0 {
		tokensOut = EstimateTokens(reply)
	}

	latency := r.now().Sub(start)
	resp := &ChatResponse{
		Reply:        reply,
		Persona:      PersonaLocal,
		Provider:     ProviderLocal,
		Model:        adapter.Model(),
		TokensIn:     tokensIn,
		TokensOut:    tokensOut,
		LatencyMs:    latency.Milliseconds(),
		CostEstimate: r.costs.EstimateCost(ProviderLocal, tokensIn, tokensOut),
		CreditCost:   r.costs.CreditCost(ProviderLocal, tokensIn, tokensOut),
		Intent:       intent,
	}

	if r.observer != nil {
		r.observer.ObserveRequest(ProviderLocal, PersonaLocal, "ok", latency)
	}

	observability.FromContext(ctx).Info("stream completed",
		observability.Int("tokens_out", resp.TokensOut),
		observability.Duration("latency", latency))

	return resp, nil
}

func joinMessageContents(messages []Message) string {
	var builder strings.Builder
	for _, m := range messages {
		builder.WriteString(m.Content)
	}
	return builder.String()
}
