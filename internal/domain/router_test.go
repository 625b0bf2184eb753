package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/geekspace/arbiter/internal/domain"
	"github.com/geekspace/arbiter/internal/observability"
	"github.com/geekspace/arbiter/internal/provider/registry"
)

// fakeAdapter counts calls and fails the first failUntil of them.
type fakeAdapter struct {
	mu        sync.Mutex
	name      domain.Provider
	model     string
	reply     string
	failUntil int

	calls        int
	lastMessages []domain.Message
	lastMax      int
	tokensIn     int
	tokensOut    int
}

func (f *fakeAdapter) Name() domain.Provider { return f.name }
func (f *fakeAdapter) Model() string         { return f.model }

func (f *fakeAdapter) Complete(_ context.Context, messages []domain.Message, maxTokens int) (*domain.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastMessages = messages
	f.lastMax = maxTokens
	if f.calls <= f.failUntil {
		return nil, errors.New("upstream unavailable")
	}
	return &domain.Completion{Content: f.reply, TokensIn: f.tokensIn, TokensOut: f.tokensOut}, nil
}

type fakeAvailability struct {
	bridge     bool
	local      bool
	automation bool
	cloudPaid  bool
	cloudFree  bool
}

func (f *fakeAvailability) BridgeReachable(context.Context) bool     { return f.bridge }
func (f *fakeAvailability) LocalReachable(context.Context) bool      { return f.local }
func (f *fakeAvailability) AutomationReachable(context.Context) bool { return f.automation }
func (f *fakeAvailability) CloudPaidConfigured() bool                { return f.cloudPaid }
func (f *fakeAvailability) CloudFreeConfigured() bool                { return f.cloudFree }

type observedFallback struct {
	from, to domain.Provider
}

type fakeObserver struct {
	mu        sync.Mutex
	retries   []domain.Provider
	fallbacks []observedFallback
	statuses  []string
}

func (f *fakeObserver) ObserveRequest(_ domain.Provider, _ domain.Persona, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeObserver) ObserveRetry(provider domain.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries = append(f.retries, provider)
}

func (f *fakeObserver) ObserveFallback(from, to domain.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks = append(f.fallbacks, observedFallback{from: from, to: to})
}

type routerFixture struct {
	router   *domain.Router
	registry *registry.Registry
	avail    *fakeAvailability
	observer *fakeObserver
	slept    *[]time.Duration
}

func newRouterFixture(t *testing.T, avail *fakeAvailability, adapters ...domain.Adapter) *routerFixture {
	t.Helper()

	reg := registry.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, reg.Register(context.Background(), a))
	}

	observer := &fakeObserver{}
	slept := &[]time.Duration{}
	router := domain.NewRouter(
		reg,
		avail,
		domain.NewClassifier(domain.DefaultClassifierConfig()),
		domain.DefaultCostTable(),
		domain.DefaultSanitizer(),
		observer,
		domain.DefaultRouterConfig(),
	).WithSleep(func(d time.Duration) {
		*slept = append(*slept, d)
	})

	return &routerFixture{
		router:   router,
		registry: reg,
		avail:    avail,
		observer: observer,
		slept:    slept,
	}
}

func simpleRequest(content string) *domain.ChatRequest {
	return &domain.ChatRequest{
		Messages: []domain.Message{{Role: "user", Content: content}},
	}
}

func TestRouter_RejectsInvalidRequests(t *testing.T) {
	fx := newRouterFixture(t, &fakeAvailability{})

	_, err := fx.router.Route(context.Background(), nil)
	require.Error(t, err)

	_, err = fx.router.Route(context.Background(), &domain.ChatRequest{})
	require.Error(t, err)
}

func TestRouter_SimpleMessageServedLocally(t *testing.T) {
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "hello!", tokensIn: 3, tokensOut: 5}
	fx := newRouterFixture(t, &fakeAvailability{local: true}, local)

	resp, err := fx.router.Route(context.Background(), simpleRequest("hi"))
	require.NoError(t, err)

	require.Equal(t, domain.IntentSimple, resp.Intent)
	require.Equal(t, domain.PersonaLocal, resp.Persona)
	require.Equal(t, domain.ProviderLocal, resp.Provider)
	require.Equal(t, "local-7b", resp.Model)
	require.Equal(t, "hello!", resp.Reply)
	require.Zero(t, resp.CreditCost)
	require.Zero(t, resp.CostEstimate)
	require.Equal(t, 1, local.calls)
	require.Equal(t, []string{"ok"}, fx.observer.statuses)
	require.Empty(t, fx.observer.retries)
	require.Empty(t, *fx.slept)
}

func TestRouter_PremiumWithCreditsUsesBridge(t *testing.T) {
	bridge := &fakeAdapter{name: domain.ProviderBridge, model: "premium", reply: "deep answer", tokensIn: 400, tokensOut: 800}
	fx := newRouterFixture(t, &fakeAvailability{bridge: true, local: true, cloudFree: true}, bridge)

	credits := 50
	req := simpleRequest("explain and analyze the architecture tradeoffs here")
	req.Credits = &credits

	resp, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, domain.IntentComplex, resp.Intent)
	require.Equal(t, domain.PersonaPremium, resp.Persona)
	require.Equal(t, domain.ProviderBridge, resp.Provider)
	require.Equal(t, 12, resp.CreditCost) // 1200 tokens at 10 credits per 1k
	require.Greater(t, resp.CostEstimate, 0.0)
	require.Equal(t, 4096, bridge.lastMax)
}

func TestRouter_PremiumWithoutCreditsDegradesToFree(t *testing.T) {
	free := &fakeAdapter{name: domain.ProviderCloudFree, model: "free-70b", reply: "ok", tokensIn: 100, tokensOut: 200}
	fx := newRouterFixture(t, &fakeAvailability{bridge: true, cloudPaid: true, cloudFree: true, local: true}, free)

	zero := 0
	req := simpleRequest("explain and analyze this in depth")
	req.Credits = &zero

	resp, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, domain.ProviderCloudFree, resp.Provider)
	require.Equal(t, domain.PersonaCloud, resp.Persona) // attributed to the tier that served it
	require.Zero(t, resp.CreditCost)
	require.Equal(t, []string{"ok"}, fx.observer.statuses)
}

func TestRouter_PremiumBridgeDownNoPaidKeyDegradesToFree(t *testing.T) {
	bridge := &fakeAdapter{name: domain.ProviderBridge, model: "premium", reply: "unused"}
	free := &fakeAdapter{name: domain.ProviderCloudFree, model: "free-70b", reply: "served free", tokensIn: 100, tokensOut: 200}
	fx := newRouterFixture(t, &fakeAvailability{bridge: false, cloudPaid: false, cloudFree: true, local: true}, bridge, free)

	credits := 50
	req := simpleRequest("explain and analyze this problem")
	req.Credits = &credits

	resp, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)

	// Selection walked past the unreachable bridge and absent paid key;
	// the bridge adapter was never called.
	require.Equal(t, domain.ProviderCloudFree, resp.Provider)
	require.Equal(t, domain.PersonaCloud, resp.Persona)
	require.Zero(t, resp.CreditCost)
	require.Zero(t, bridge.calls)
	require.Equal(t, 1, free.calls)
	require.Equal(t, []string{"ok"}, fx.observer.statuses)
	require.Empty(t, fx.observer.fallbacks)
}

func TestRouter_PremiumBridgeDownWithPaidKeyUsesCloudPaid(t *testing.T) {
	bridge := &fakeAdapter{name: domain.ProviderBridge, model: "premium", reply: "unused"}
	paid := &fakeAdapter{name: domain.ProviderCloudPaid, model: "kimi-k2", reply: "paid answer", tokensIn: 50, tokensOut: 50}
	free := &fakeAdapter{name: domain.ProviderCloudFree, model: "free-70b", reply: "unused"}
	fx := newRouterFixture(t, &fakeAvailability{bridge: false, cloudPaid: true, cloudFree: true}, bridge, paid, free)

	credits := 50
	req := simpleRequest("explain and analyze this problem")
	req.Credits = &credits

	resp, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, domain.ProviderCloudPaid, resp.Provider)
	require.Equal(t, domain.PersonaPremium, resp.Persona)
	require.Equal(t, 10, resp.CreditCost) // 100 tokens at 5/1k floors at the minimum
	require.Zero(t, bridge.calls)
	require.Zero(t, free.calls)
}

func TestRouter_NilCreditsMeansUnmetered(t *testing.T) {
	bridge := &fakeAdapter{name: domain.ProviderBridge, model: "premium", reply: "ok"}
	fx := newRouterFixture(t, &fakeAvailability{bridge: true}, bridge)

	req := simpleRequest("explain and analyze everything")
	resp, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderBridge, resp.Provider)
}

func TestRouter_AutomationIntentPrefersAutomationGateway(t *testing.T) {
	auto := &fakeAdapter{name: domain.ProviderAutomation, model: "automation-haiku", reply: "scheduled"}
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "nope"}
	fx := newRouterFixture(t, &fakeAvailability{local: true, automation: true}, auto, local)

	resp, err := fx.router.Route(context.Background(), simpleRequest("set up a cron job for the backup"))
	require.NoError(t, err)

	require.Equal(t, domain.IntentAutomation, resp.Intent)
	require.Equal(t, domain.ProviderAutomation, resp.Provider)
	require.Equal(t, domain.PersonaLocal, resp.Persona)
	require.Zero(t, local.calls)
}

func TestRouter_PrimaryRetriesExactlyOnce(t *testing.T) {
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "second try", failUntil: 1}
	fx := newRouterFixture(t, &fakeAvailability{local: true}, local)

	resp, err := fx.router.Route(context.Background(), simpleRequest("hi"))
	require.NoError(t, err)

	require.Equal(t, "second try", resp.Reply)
	require.Equal(t, domain.ProviderLocal, resp.Provider)
	require.Equal(t, 2, local.calls)
	require.Equal(t, []domain.Provider{domain.ProviderLocal}, fx.observer.retries)
	require.Equal(t, []time.Duration{500 * time.Millisecond}, *fx.slept)
	require.Equal(t, []string{"ok"}, fx.observer.statuses)
	require.Empty(t, fx.observer.fallbacks)
}

func TestRouter_FallbackAfterPrimaryExhausted(t *testing.T) {
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", failUntil: 10}
	free := &fakeAdapter{name: domain.ProviderCloudFree, model: "free-70b", reply: "served by free", tokensIn: 5, tokensOut: 7}
	fx := newRouterFixture(t, &fakeAvailability{local: true, cloudFree: true}, local, free)

	resp, err := fx.router.Route(context.Background(), simpleRequest("hi"))
	require.NoError(t, err)

	// Primary gets two attempts, each fallback hop exactly one.
	require.Equal(t, 2, local.calls)
	require.Equal(t, 1, free.calls)

	require.Equal(t, "served by free", resp.Reply)
	require.Equal(t, domain.ProviderCloudFree, resp.Provider)
	require.Equal(t, domain.PersonaCloud, resp.Persona)
	require.Equal(t, "free-70b", resp.Model)
	require.Equal(t, []observedFallback{{from: domain.ProviderLocal, to: domain.ProviderCloudFree}}, fx.observer.fallbacks)
	require.Equal(t, []string{"fallback"}, fx.observer.statuses)
}

func TestRouter_BridgeFailureWalksChainInOrder(t *testing.T) {
	bridge := &fakeAdapter{name: domain.ProviderBridge, model: "premium", failUntil: 10}
	free := &fakeAdapter{name: domain.ProviderCloudFree, model: "free-70b", failUntil: 10}
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "local saves the day"}
	fx := newRouterFixture(t, &fakeAvailability{bridge: true, cloudFree: true, local: true}, bridge, free, local)

	resp, err := fx.router.Route(context.Background(), simpleRequest("explain and analyze this failure"))
	require.NoError(t, err)

	require.Equal(t, 2, bridge.calls)
	require.Equal(t, 1, free.calls)
	require.Equal(t, 1, local.calls)

	require.Equal(t, domain.ProviderLocal, resp.Provider)
	require.Equal(t, domain.PersonaLocal, resp.Persona)
	require.Equal(t, []observedFallback{
		{from: domain.ProviderBridge, to: domain.ProviderCloudFree},
		{from: domain.ProviderBridge, to: domain.ProviderLocal},
	}, fx.observer.fallbacks)
}

func TestRouter_SkipsUnavailableFallbackCandidates(t *testing.T) {
	bridge := &fakeAdapter{name: domain.ProviderBridge, model: "premium", failUntil: 10}
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "direct to local"}
	fx := newRouterFixture(t, &fakeAvailability{bridge: true, local: true}, bridge, local)

	resp, err := fx.router.Route(context.Background(), simpleRequest("explain and analyze this"))
	require.NoError(t, err)

	require.Equal(t, domain.ProviderLocal, resp.Provider)
	require.Equal(t, []observedFallback{{from: domain.ProviderBridge, to: domain.ProviderLocal}}, fx.observer.fallbacks)
}

func TestRouter_ExhaustionReturnsBuiltinApology(t *testing.T) {
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", failUntil: 10}
	free := &fakeAdapter{name: domain.ProviderCloudFree, model: "free-70b", failUntil: 10}
	fx := newRouterFixture(t, &fakeAvailability{local: true, cloudFree: true}, local, free)

	resp, err := fx.router.Route(context.Background(), simpleRequest("hi"))
	require.NoError(t, err)

	require.Equal(t, "Sorry, couldn't process that. Let's try again!", resp.Reply)
	require.Equal(t, domain.ProviderBuiltin, resp.Provider)
	require.Equal(t, "error-fallback", resp.Model)
	require.Equal(t, domain.PersonaLocal, resp.Persona) // builtin keeps the resolved tier
	require.Zero(t, resp.CreditCost)
	require.Zero(t, resp.CostEstimate)
	require.Equal(t, []string{"exhausted"}, fx.observer.statuses)
}

func TestRouter_ForceProviderSkipsSelection(t *testing.T) {
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "forced"}
	bridge := &fakeAdapter{name: domain.ProviderBridge, model: "premium", reply: "unused"}
	fx := newRouterFixture(t, &fakeAvailability{bridge: true, local: true}, local, bridge)

	req := simpleRequest("explain and analyze this deeply")
	req.ForceProvider = domain.ProviderLocal

	resp, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, domain.ProviderLocal, resp.Provider)
	require.Zero(t, bridge.calls)
}

func TestRouter_ForcePersonaOverridesIntent(t *testing.T) {
	bridge := &fakeAdapter{name: domain.ProviderBridge, model: "premium", reply: "vip"}
	fx := newRouterFixture(t, &fakeAvailability{bridge: true}, bridge)

	req := simpleRequest("hi")
	req.ForcePersona = domain.PersonaPremium

	resp, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, domain.IntentSimple, resp.Intent)
	require.Equal(t, domain.PersonaPremium, resp.Persona)
	require.Equal(t, domain.ProviderBridge, resp.Provider)
	require.Equal(t, 4096, bridge.lastMax)
}

func TestRouter_MaxTokensOverride(t *testing.T) {
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "ok"}
	fx := newRouterFixture(t, &fakeAvailability{local: true}, local)

	req := simpleRequest("hi")
	req.MaxTokens = 77

	_, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 77, local.lastMax)
}

func TestRouter_SystemPromptPrepended(t *testing.T) {
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "ok"}
	fx := newRouterFixture(t, &fakeAvailability{local: true}, local)

	req := simpleRequest("hi")
	req.SystemPrompt = "You are helpful."

	_, err := fx.router.Route(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, local.lastMessages, 2)
	require.Equal(t, "system", local.lastMessages[0].Role)
	require.Equal(t, "You are helpful.", local.lastMessages[0].Content)
	require.Equal(t, "hi", local.lastMessages[1].Content)
}

func TestRouter_SanitizesReply(t *testing.T) {
	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", reply: "Generated by ollama for you."}
	fx := newRouterFixture(t, &fakeAvailability{local: true}, local)

	resp, err := fx.router.Route(context.Background(), simpleRequest("hi"))
	require.NoError(t, err)
	require.Equal(t, "Generated by for you.", resp.Reply)
}

func TestRouter_CancelledContextSurfacesError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", failUntil: 10}
	fx := newRouterFixture(t, &fakeAvailability{local: true}, local)
	fx.router.WithSleep(func(time.Duration) { cancel() })

	_, err := fx.router.Route(ctx, simpleRequest("hi"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, fx.observer.statuses) // no accounting for a cancelled call
}

func TestRouter_RoutedLogAttributesServingPersona(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	observability.SetLogger(zap.New(core))
	defer observability.SetLogger(nil)

	local := &fakeAdapter{name: domain.ProviderLocal, model: "local-7b", failUntil: 10}
	free := &fakeAdapter{name: domain.ProviderCloudFree, model: "free-70b", reply: "served free", tokensIn: 5, tokensOut: 7}
	fx := newRouterFixture(t, &fakeAvailability{local: true, cloudFree: true}, local, free)

	resp, err := fx.router.Route(context.Background(), simpleRequest("hi"))
	require.NoError(t, err)
	require.Equal(t, domain.PersonaCloud, resp.Persona)

	entries := logs.FilterMessage("chat routed").All()
	require.Len(t, entries, 1)

	personas := []string{}
	keys := map[string]bool{}
	for _, field := range entries[0].Context {
		keys[field.Key] = true
		if field.Key == "persona" {
			personas = append(personas, field.String)
		}
	}

	// Exactly one persona key, carrying the tier that actually served.
	require.Equal(t, []string{"cloud"}, personas)
	require.True(t, keys["cost_estimate"])
	require.True(t, keys["latency_ms"])
}

func TestRouter_NoAdapterRegisteredFallsThrough(t *testing.T) {
	// Availability says local is up but nothing is registered: the request
	// still resolves to the builtin apology rather than an error.
	fx := newRouterFixture(t, &fakeAvailability{local: true})

	resp, err := fx.router.Route(context.Background(), simpleRequest("hi"))
	require.NoError(t, err)
	require.Equal(t, domain.ProviderBuiltin, resp.Provider)
	require.Equal(t, "error-fallback", resp.Model)
}
