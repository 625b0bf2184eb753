package domain

import (
	"context"
	"errors"
	"time"

	"github.com/geekspace/arbiter/internal/observability"
)

// apologyReply is returned when every provider in the fallback chain has
// failed. This path never raises to the caller.
const apologyReply = "Sorry, couldn't process that. Let's try again!"

// exhaustedModel tags responses produced by the total-exhaustion path.
const exhaustedModel = "error-fallback"

// RouterConfig tunes the retry/fallback behavior of the orchestrator.
type RouterConfig struct {
	// PrimaryRetries is the retry budget for the first provider only.
	// Fallback hops are attempted once each.
	PrimaryRetries int
	// RetryBackoff spaces the primary retry and each fallback attempt.
	RetryBackoff time.Duration
	// Tokens is the per-persona output budget policy.
	Tokens TokenPolicy
}

// DefaultRouterConfig returns the stock orchestration settings.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		PrimaryRetries: 1,
		RetryBackoff:   500 * time.Millisecond,
		Tokens:         DefaultTokenPolicy(),
	}
}

// Router classifies a request, selects a provider, executes with a bounded
// retry, and degrades through a fallback chain when providers fail. It is
// stateless across requests; only the injected Availability caches are
// shared.
type Router struct {
	registry   AdapterRegistry
	avail      Availability
	classifier *Classifier
	costs      *CostTable
	sanitizer  *Sanitizer
	observer   RouteObserver
	cfg        RouterConfig

	// sleep and now are injected for deterministic tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewRouter creates the routing orchestrator (DI constructor).
func NewRouter(
	registry AdapterRegistry,
	avail Availability,
	classifier *Classifier,
	costs *CostTable,
	sanitizer *Sanitizer,
	observer RouteObserver,
	cfg RouterConfig,
) *Router {
	return &Router{
		registry:   registry,
		avail:      avail,
		classifier: classifier,
		costs:      costs,
		sanitizer:  sanitizer,
		observer:   observer,
		cfg:        cfg,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// WithSleep replaces the backoff sleeper. Tests use this to avoid real
// delays.
func (r *Router) WithSleep(sleep func(time.Duration)) *Router {
	r.sleep = sleep
	return r
}

// WithClock replaces the router's clock.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// Route handles one chat request end to end. It only returns an error when
// the caller's own context is cancelled; every upstream failure resolves to a
// degraded but well-formed response.
func (r *Router) Route(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("request must contain at least one message")
	}

	start := r.now()
	userMessage := req.LastUserContent()

	// SELECT: intent, persona, token budget, provider.
	intent := r.classifier.Classify(userMessage)
	persona := ResolvePersona(intent, req.ForcePersona)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = r.cfg.Tokens.MaxTokens(persona, intent)
	}

	messages := req.Messages
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	provider := req.ForceProvider
	if provider == "" {
		provider = r.selectProvider(ctx, persona, intent, hasCredits(req.Credits))
	}

	ctx = observability.WithIntent(ctx, string(intent))
	ctx = observability.WithPersona(ctx, string(persona))
	logger := observability.FromContext(ctx)

	// EXECUTE: primary call with its retry budget.
	actualProvider := provider
	comp, err := r.executePrimary(ctx, provider, messages, maxTokens)

	// RECOVER: walk the fallback chain, one attempt per hop.
	exhausted := false
	if err != nil {
		if cancelled(ctx) {
			return nil, ctx.Err()
		}
		logger.Warn("provider call failed, attempting fallback",
			observability.String("provider", string(provider)),
			observability.Error(err))

		comp, actualProvider, err = r.recover(ctx, provider, messages, maxTokens)
		if err != nil {
			if cancelled(ctx) {
				return nil, ctx.Err()
			}
			// Total exhaustion: static zero-cost apology.
			logger.Warn("all fallbacks exhausted, returning builtin reply")
			comp = &Completion{
				Content:   apologyReply,
				TokensIn:  EstimateTokens(userMessage),
				TokensOut: EstimateTokens(apologyReply),
			}
			actualProvider = ProviderBuiltin
			exhausted = true
		}
	}

	// ACCOUNT: attribute persona/model to whoever answered, sanitize once,
	// and price the actual call.
	actualPersona := PersonaForProvider(actualProvider, persona)
	ctx = observability.WithPersona(ctx, string(actualPersona))
	logger = observability.FromContext(ctx)
	model := exhaustedModel
	if !exhausted {
		model = r.modelFor(ctx, actualProvider)
	}

	reply := r.sanitizer.Clean(comp.Content)
	latency := r.now().Sub(start)

	resp := &ChatResponse{
		Reply:        reply,
		Persona:      actualPersona,
		Provider:     actualProvider,
		Model:        model,
		TokensIn:     comp.TokensIn,
		TokensOut:    comp.TokensOut,
		LatencyMs:    latency.Milliseconds(),
		CostEstimate: r.costs.EstimateCost(actualProvider, comp.TokensIn, comp.TokensOut),
		CreditCost:   r.costs.CreditCost(actualProvider, comp.TokensIn, comp.TokensOut),
		Intent:       intent,
	}

	status := "ok"
	switch {
	case exhausted:
		status = "exhausted"
	case actualProvider != provider:
		status = "fallback"
	}
	if r.observer != nil {
		r.observer.ObserveRequest(actualProvider, actualPersona, status, latency)
	}

	logger.Info("chat routed",
		observability.String("provider", string(actualProvider)),
		observability.String("model", model),
		observability.Int("tokens_in", resp.TokensIn),
		observability.Int("tokens_out", resp.TokensOut),
		observability.Int("credit_cost", resp.CreditCost),
		observability.Float64("cost_estimate", resp.CostEstimate),
		observability.Int64("latency_ms", resp.LatencyMs))

	return resp, nil
}

// selectProvider applies the per-persona selection policy: degrade towards
// free, then towards always-available. Credits gate the paid paths,
// reachability gates the networked ones, and the builtin stub terminates
// every chain.
func (r *Router) selectProvider(ctx context.Context, persona Persona, intent Intent, credits bool) Provider {
	switch persona {
	case PersonaPremium:
		switch {
		case credits && r.avail.BridgeReachable(ctx):
			return ProviderBridge
		case credits && r.avail.CloudPaidConfigured():
			return ProviderCloudPaid
		case r.avail.CloudFreeConfigured():
			return ProviderCloudFree
		case r.avail.LocalReachable(ctx):
			return ProviderLocal
		default:
			return ProviderBuiltin
		}
	case PersonaCloud:
		switch {
		case r.avail.CloudFreeConfigured():
			return ProviderCloudFree
		case r.avail.LocalReachable(ctx):
			return ProviderLocal
		default:
			return ProviderBuiltin
		}
	default: // PersonaLocal
		switch {
		case intent == IntentAutomation && r.avail.AutomationReachable(ctx):
			return ProviderAutomation
		case r.avail.LocalReachable(ctx):
			return ProviderLocal
		case r.avail.CloudFreeConfigured():
			return ProviderCloudFree
		default:
			return ProviderBuiltin
		}
	}
}

// executePrimary invokes the chosen adapter with the primary retry budget:
// one retry, fixed backoff, to absorb a single transient blip.
func (r *Router) executePrimary(ctx context.Context, provider Provider, messages []Message, maxTokens int) (*Completion, error) {
	adapter, err := r.registry.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.PrimaryRetries; attempt++ {
		if attempt > 0 {
			if r.observer != nil {
				r.observer.ObserveRetry(provider)
			}
			r.sleep(r.cfg.RetryBackoff)
			if cancelled(ctx) {
				return nil, ctx.Err()
			}
		}

		comp, callErr := adapter.Complete(ctx, messages, maxTokens)
		if callErr == nil {
			return comp, nil
		}
		lastErr = callErr
	}

	return nil, lastErr
}

// fallbackChain is the fixed recovery table, keyed by the provider that just
// failed, not by persona.
func fallbackChain(failed Provider) []Provider {
	switch failed {
	case ProviderBridge, ProviderCloudPaid:
		return []Provider{ProviderCloudFree, ProviderLocal}
	case ProviderCloudFree:
		return []Provider{ProviderLocal}
	case ProviderLocal, ProviderAutomation:
		return []Provider{ProviderCloudFree}
	default:
		return nil
	}
}

// recover walks the fallback chain for the failed provider. Each candidate
// is gated by its availability signal and attempted exactly once.
func (r *Router) recover(ctx context.Context, failed Provider, messages []Message, maxTokens int) (*Completion, Provider, error) {
	var lastErr error

	for _, candidate := range fallbackChain(failed) {
		if cancelled(ctx) {
			return nil, failed, ctx.Err()
		}

		switch candidate {
		case ProviderCloudFree:
			if !r.avail.CloudFreeConfigured() {
				continue
			}
		case ProviderLocal:
			if !r.avail.LocalReachable(ctx) {
				continue
			}
		}

		adapter, err := r.registry.Get(ctx, candidate)
		if err != nil {
			lastErr = err
			continue
		}

		if r.observer != nil {
			r.observer.ObserveFallback(failed, candidate)
		}
		r.sleep(r.cfg.RetryBackoff)

		comp, err := adapter.Complete(ctx, messages, maxTokens)
		if err == nil {
			return comp, candidate, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no fallback provider available")
	}
	return nil, failed, lastErr
}

// modelFor resolves the model identifier of the provider that answered.
func (r *Router) modelFor(ctx context.Context, provider Provider) string {
	adapter, err := r.registry.Get(ctx, provider)
	if err != nil {
		return exhaustedModel
	}
	return adapter.Model()
}

func hasCredits(credits *int) bool {
	return credits == nil || *credits > 0
}

func cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
