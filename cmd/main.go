package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/geekspace/arbiter/internal/config"
	"github.com/geekspace/arbiter/internal/domain"
	"github.com/geekspace/arbiter/internal/health"
	arbiterhttp "github.com/geekspace/arbiter/internal/http"
	"github.com/geekspace/arbiter/internal/metrics"
	"github.com/geekspace/arbiter/internal/observability"
	"github.com/geekspace/arbiter/internal/provider/automation"
	"github.com/geekspace/arbiter/internal/provider/bridge"
	"github.com/geekspace/arbiter/internal/provider/ollama"
	"github.com/geekspace/arbiter/internal/provider/openrouter"
	"github.com/geekspace/arbiter/internal/provider/registry"
	"github.com/geekspace/arbiter/internal/provider/stub"
	"github.com/geekspace/arbiter/internal/usage"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *arbiterhttp.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

//nolint:funlen // Composition root; one provider per concern.
func buildContainer() *dig.Container {
	container := dig.New()

	provide := func(constructor any) {
		if err := container.Provide(constructor); err != nil {
			log.Fatalf("Failed to provide dependency: %v", err)
		}
	}

	// Configuration
	provide(config.Load)
	provide(config.ParseDependenciesConfig)

	// Observability
	provide(observability.InitLogger)
	if err := container.Invoke(func(*zap.Logger) {}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	provide(metrics.New)
	provide(func(m *metrics.Registry) domain.RouteObserver { return m })

	// Storage
	provide(func(cfg *config.RedisConfig) *redis.Client {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	})
	provide(usage.NewRedisRecorder)
	provide(func(r *usage.RedisRecorder) domain.UsageRecorder { return r })
	provide(func(r *usage.RedisRecorder) arbiterhttp.CreditSource { return r })

	// Provider adapters. Unconfigured optional providers resolve to nil and
	// are skipped at registration; the router treats them as unreachable.
	provide(func(cfg bridge.Config) *bridge.Adapter {
		if cfg.BaseURL == "" {
			return nil
		}
		adapter, err := bridge.NewAdapter(cfg)
		if err != nil {
			log.Printf("bridge adapter disabled: %v", err)
			return nil
		}
		return adapter
	})
	provide(func(cfg openrouter.Config) (paid *openrouter.Adapter, err error) {
		if !cfg.PaidConfigured() {
			return nil, nil
		}
		return openrouter.NewPaidAdapter(cfg)
	})
	provide(newFreeCloudAdapter)
	provide(func(cfg ollama.Config) (*ollama.Adapter, error) {
		return ollama.NewAdapter(cfg)
	})
	provide(func(cfg automation.Config) *automation.Adapter {
		if cfg.BaseURL == "" {
			return nil
		}
		adapter, err := automation.NewAdapter(cfg)
		if err != nil {
			log.Printf("automation adapter disabled: %v", err)
			return nil
		}
		return adapter
	})
	provide(stub.NewAdapter)

	// Registry
	provide(func() domain.AdapterRegistry { return registry.NewRegistry() })
	if err := container.Invoke(registerAdapters); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// Availability
	provide(func(b *bridge.Adapter, o *ollama.Adapter, a *automation.Adapter, cfg openrouter.Config) domain.Availability {
		probes := health.Probers{
			Bridge: func(ctx context.Context) bool {
				return b != nil && b.Probe(ctx)
			},
			Local: func(ctx context.Context) bool {
				return o != nil && o.Probe(ctx)
			},
			Automation: func(ctx context.Context) bool {
				return a != nil && a.Probe(ctx)
			},
		}
		keys := health.Keys{
			CloudPaid: cfg.PaidConfigured(),
			CloudFree: cfg.FreeConfigured(),
		}
		return health.NewChecker(probes, keys)
	})

	// Domain services
	provide(func() *domain.Classifier { return domain.NewClassifier(domain.DefaultClassifierConfig()) })
	provide(domain.DefaultCostTable)
	provide(domain.DefaultSanitizer)
	provide(domain.DefaultRouterConfig)
	provide(domain.NewRouter)

	// HTTP layer
	provide(arbiterhttp.NewHandler)
	provide(arbiterhttp.NewServer)

	return container
}

// FreeCloudAdapter distinguishes the free-tier adapter from the paid one in
// the container, which resolves dependencies by type.
type FreeCloudAdapter struct {
	*openrouter.Adapter
}

func newFreeCloudAdapter(cfg openrouter.Config) (FreeCloudAdapter, error) {
	if !cfg.FreeConfigured() {
		return FreeCloudAdapter{}, nil
	}
	adapter, err := openrouter.NewFreeAdapter(cfg)
	if err != nil {
		return FreeCloudAdapter{}, err
	}
	return FreeCloudAdapter{adapter}, nil
}

func registerAdapters(
	reg domain.AdapterRegistry,
	bridgeAdapter *bridge.Adapter,
	paidAdapter *openrouter.Adapter,
	freeAdapter FreeCloudAdapter,
	ollamaAdapter *ollama.Adapter,
	automationAdapter *automation.Adapter,
	stubAdapter *stub.Adapter,
) error {
	ctx := context.Background()

	register := func(adapter domain.Adapter) error {
		if err := reg.Register(ctx, adapter); err != nil {
			return fmt.Errorf("failed to register %s: %w", adapter.Name(), err)
		}
		return nil
	}

	if bridgeAdapter != nil {
		if err := register(bridgeAdapter); err != nil {
			return err
		}
	}
	if paidAdapter != nil {
		if err := register(paidAdapter); err != nil {
			return err
		}
	}
	if freeAdapter.Adapter != nil {
		if err := register(freeAdapter.Adapter); err != nil {
			return err
		}
	}
	if ollamaAdapter != nil {
		if err := register(ollamaAdapter); err != nil {
			return err
		}
	}
	if automationAdapter != nil {
		if err := register(automationAdapter); err != nil {
			return err
		}
	}
	return register(stubAdapter)
}

