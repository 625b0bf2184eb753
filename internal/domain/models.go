package domain

import "unicode/utf8"

// Intent is the classified category of the latest user message.
type Intent string

const (
	IntentSimple     Intent = "simple"
	IntentPlanning   Intent = "planning"
	IntentCoding     Intent = "coding"
	IntentAutomation Intent = "automation"
	IntentComplex    Intent = "complex"
)

// Persona is one of the three fixed assistant tiers presented to users.
type Persona string

const (
	PersonaPremium Persona = "premium"
	PersonaCloud   Persona = "cloud"
	PersonaLocal   Persona = "local"
)

// Provider identifies a concrete upstream backend.
type Provider string

const (
	// ProviderBridge relays to the premium model through the WS-to-HTTP bridge.
	ProviderBridge Provider = "bridge"
	// ProviderCloudPaid is the paid cloud model, bypassing the bridge.
	ProviderCloudPaid Provider = "cloud-paid"
	// ProviderCloudFree is the free-tier cloud model.
	ProviderCloudFree Provider = "cloud-free"
	// ProviderLocal is the local inference server.
	ProviderLocal Provider = "local"
	// ProviderAutomation is the local automation gateway fast path.
	ProviderAutomation Provider = "automation"
	// ProviderBuiltin is the zero-dependency terminal fallback.
	ProviderBuiltin Provider = "builtin"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// ChatRequest is a routed chat call plus optional caller overrides.
// Immutable once constructed; the router never mutates it.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// ForcePersona pins the persona tier, skipping intent-based resolution.
	ForcePersona Persona `json:"force_persona,omitempty"`
	// ForceProvider pins the provider, skipping availability-based selection.
	ForceProvider Provider `json:"force_provider,omitempty"`
	// Credits is the caller's remaining credit balance. Nil means unmetered.
	Credits *int `json:"credits,omitempty"`
	// MaxTokens overrides the persona/intent output-token policy when > 0.
	MaxTokens int `json:"max_tokens,omitempty"`
	// SystemPrompt is prepended to Messages before the upstream call.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// LastUserContent returns the content of the final message, which drives
// intent classification.
func (r *ChatRequest) LastUserContent() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// ChatResponse is the final routed result. Persona and Provider reflect
// whoever actually answered, which may differ from the initial selection
// when fallback occurred.
type ChatResponse struct {
	Reply        string   `json:"reply"`
	Persona      Persona  `json:"persona"`
	Provider     Provider `json:"provider"`
	Model        string   `json:"model"`
	TokensIn     int      `json:"tokens_in"`
	TokensOut    int      `json:"tokens_out"`
	LatencyMs    int64    `json:"latency_ms"`
	CostEstimate float64  `json:"cost_estimate"`
	CreditCost   int      `json:"credit_cost"`
	Intent       Intent   `json:"intent"`
}

// Completion is the result of a single adapter call.
type Completion struct {
	Content   string
	TokensIn  int
	TokensOut int
}

// StreamEvent is one element of a streaming completion sequence. The final
// event has Done set and carries the usage counters reported by the upstream.
type StreamEvent struct {
	Delta     string
	Done      bool
	TokensIn  int
	TokensOut int
	Err       error
}

// EstimateTokens approximates a token count as ceil(characters/4). Used when
// the upstream does not report usage; never affects conversation content.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
