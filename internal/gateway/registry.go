package gateway

import (
	"context"
	"fmt"
	"strings"
)

// Registry resolves adapters from a table fixed at startup.
type Registry struct {
	entries  map[string]Registration
	keys     []string
	settings SettingsSource
	deps     Deps
}

func NewRegistry(settings SettingsSource, deps Deps, regs ...Registration) (*Registry, error) {
	r := &Registry{
		entries:  make(map[string]Registration, len(regs)),
		settings: settings,
		deps:     deps,
	}
	for _, reg := range regs {
		if reg.Key == "" || reg.New == nil || reg.Statuses == nil {
			return nil, fmt.Errorf("incomplete registration %q", reg.Key)
		}
		if _, dup := r.entries[reg.Key]; dup {
			return nil, fmt.Errorf("duplicate registration %q", reg.Key)
		}
		r.entries[reg.Key] = reg
		r.keys = append(r.keys, reg.Key)
	}
	return r, nil
}

func (r *Registry) Lookup(key string) (Registration, bool) {
	reg, ok := r.entries[key]
	return reg, ok
}

// Registrations returns entries in registration order.
func (r *Registry) Registrations() []Registration {
	out := make([]Registration, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.entries[k])
	}
	return out
}

// Resolve builds the adapter for key with its current settings.
func (r *Registry) Resolve(ctx context.Context, key string) (Adapter, error) {
	key = strings.TrimSpace(key)
	reg, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, key)
	}

	settings, err := r.settings.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("settings for %q: %w", key, err)
	}

	adapter, err := reg.New(settings, r.deps)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAdapterNotInstantiable, key, err)
	}
	if adapter == nil || adapter.Key() != key {
		return nil, fmt.Errorf("%w: %s: adapter identity mismatch", ErrAdapterNotInstantiable, key)
	}
	return adapter, nil
}
