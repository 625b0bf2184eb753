package domain

import (
	"context"
	"time"
)

// Adapter performs a single call-and-parse cycle against one upstream provider.
type Adapter interface {
	// Name returns the provider this adapter serves.
	Name() Provider

	// Model returns the upstream model identifier used for responses.
	Model() string

	// Complete performs exactly one upstream call.
	Complete(ctx context.Context, messages []Message, maxTokens int) (*Completion, error)
}

// StreamingAdapter is implemented by adapters that can read the upstream
// response incrementally.
type StreamingAdapter interface {
	Adapter

	// Stream performs one upstream call and yields an ordered, finite event
	// sequence terminated by a Done event carrying usage counters.
	Stream(ctx context.Context, messages []Message, maxTokens int) (<-chan StreamEvent, error)
}

// AdapterRegistry manages the closed set of provider adapters.
type AdapterRegistry interface {
	// Register adds an adapter to the registry.
	Register(ctx context.Context, adapter Adapter) error

	// Get retrieves the adapter for a provider.
	Get(ctx context.Context, provider Provider) (Adapter, error)

	// List returns all registered providers.
	List(ctx context.Context) ([]Provider, error)
}

// Availability exposes the reachability and configuration signals the router
// consults during provider selection. Reachability checks may hit the network
// (TTL-cached); configuration checks never do.
type Availability interface {
	BridgeReachable(ctx context.Context) bool
	LocalReachable(ctx context.Context) bool
	AutomationReachable(ctx context.Context) bool
	CloudPaidConfigured() bool
	CloudFreeConfigured() bool
}

// RouteObserver receives routing outcomes for telemetry. Implementations must
// be safe for concurrent use.
type RouteObserver interface {
	// ObserveRequest records one completed routed request.
	ObserveRequest(provider Provider, persona Persona, status string, latency time.Duration)

	// ObserveRetry records a primary-provider retry.
	ObserveRetry(provider Provider)

	// ObserveFallback records a fallback hop.
	ObserveFallback(from, to Provider)
}

// UsageRecorder persists append-only usage records. Writes happen outside the
// router core, after a response is produced.
type UsageRecorder interface {
	Record(ctx context.Context, userID string, resp *ChatResponse) error
}
