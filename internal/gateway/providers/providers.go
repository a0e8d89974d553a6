// Package providers is the static table of adapters this service ships with.
// Adding a gateway means adding its registration here.
package providers

import (
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/gateway/cardgw"
	"payment-orchestrator/internal/gateway/checkoutgw"
	"payment-orchestrator/internal/gateway/ordergw"
)

func Default() []gateway.Registration {
	return []gateway.Registration{
		cardgw.Registration,
		checkoutgw.Registration,
		ordergw.Registration,
	}
}

func NewRegistry(settings gateway.SettingsSource, deps gateway.Deps) (*gateway.Registry, error) {
	return gateway.NewRegistry(settings, deps, Default()...)
}
