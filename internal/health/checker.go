package health

import (
	"context"
	"time"
)

// Default TTLs per provider. The bridge is probed more eagerly because its
// WebSocket link flaps more often than the local inference server.
const (
	BridgeTTL     = 15 * time.Second
	LocalTTL      = 30 * time.Second
	AutomationTTL = 30 * time.Second
)

// Probers bundles the per-provider probe functions the checker caches.
type Probers struct {
	Bridge     ProbeFunc
	Local      ProbeFunc
	Automation ProbeFunc
}

// Keys reports which cloud API keys are configured. Configuration absence is
// treated exactly like unreachability by the router, so these are plain
// accessors with no network dependency.
type Keys struct {
	CloudPaid bool
	CloudFree bool
}

// Checker implements domain.Availability over TTL-cached probes plus static
// key checks. One instance is shared process-wide.
type Checker struct {
	bridge     *Cache
	local      *Cache
	automation *Cache
	keys       Keys
}

// NewChecker creates a checker with the default TTLs.
func NewChecker(probes Probers, keys Keys) *Checker {
	return &Checker{
		bridge:     NewCache(probes.Bridge, BridgeTTL),
		local:      NewCache(probes.Local, LocalTTL),
		automation: NewCache(probes.Automation, AutomationTTL),
		keys:       keys,
	}
}

// BridgeReachable reports whether the premium bridge answered its health
// probe within the TTL window.
func (c *Checker) BridgeReachable(ctx context.Context) bool {
	return c.bridge.Check(ctx)
}

// LocalReachable reports whether the local inference server is up.
func (c *Checker) LocalReachable(ctx context.Context) bool {
	return c.local.Check(ctx)
}

// AutomationReachable reports whether the automation gateway is up.
func (c *Checker) AutomationReachable(ctx context.Context) bool {
	return c.automation.Check(ctx)
}

// CloudPaidConfigured reports whether a paid cloud key is present.
func (c *Checker) CloudPaidConfigured() bool {
	return c.keys.CloudPaid
}

// CloudFreeConfigured reports whether a free cloud key is present.
func (c *Checker) CloudFreeConfigured() bool {
	return c.keys.CloudFree
}
