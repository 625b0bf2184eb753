// Package stub provides the builtin terminal-fallback provider. It has no
// network dependency, never fails, and always answers with a fixed apology;
// it terminates every fallback chain.
package stub

import (
	"context"

	"github.com/geekspace/arbiter/internal/domain"
)

const (
	modelName = "builtin-fallback"

	// Reply is the static answer given when no real provider is usable.
	Reply = "I'm having a moment. Try again shortly, or use terminal commands for quick tasks."
)

// Adapter implements domain.Adapter with zero dependencies.
type Adapter struct{}

// NewAdapter creates the builtin stub adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the provider identifier.
func (a *Adapter) Name() domain.Provider {
	return domain.ProviderBuiltin
}

// Model returns the model identifier used for responses.
func (a *Adapter) Model() string {
	return modelName
}

// Complete returns the static apology. Token counts are estimates for
// telemetry symmetry; the charge is always zero.
func (a *Adapter) Complete(_ context.Context, messages []domain.Message, _ int) (*domain.Completion, error) {
	lastContent := ""
	if len(messages) > 0 {
		lastContent = messages[len(messages)-1].Content
	}

	return &domain.Completion{
		Content:   Reply,
		TokensIn:  domain.EstimateTokens(lastContent),
		TokensOut: domain.EstimateTokens(Reply),
	}, nil
}
