package gateway

import (
	"context"
	"errors"
	"sync"
)

type CatalogEntry struct {
	Key             string `json:"key"`
	Title           string `json:"title"`
	Kind            Kind   `json:"kind"`
	Configured      bool   `json:"configured"`
	NewStatus       string `json:"new_status"`
	CompletedStatus string `json:"completed_status"`
}

// Catalog caches the list of registered gateways and whether each one can be built
// with its current settings. It is rebuilt lazily after Invalidate.
type Catalog struct {
	registry *Registry

	mu      sync.Mutex
	entries []CatalogEntry
}

func NewCatalog(registry *Registry) *Catalog {
	return &Catalog{registry: registry}
}

func (c *Catalog) List(ctx context.Context) ([]CatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries != nil {
		return c.entries, nil
	}

	entries := make([]CatalogEntry, 0)
	for _, reg := range c.registry.Registrations() {
		_, err := c.registry.Resolve(ctx, reg.Key)
		if err != nil && errors.Is(err, ErrConfigUnavailable) {
			return nil, err
		}
		entries = append(entries, CatalogEntry{
			Key:             reg.Key,
			Title:           reg.Title,
			Kind:            reg.Kind,
			Configured:      err == nil,
			NewStatus:       reg.Statuses.Name(reg.Statuses.New()),
			CompletedStatus: reg.Statuses.Name(reg.Statuses.Completed()),
		})
	}
	c.entries = entries
	return entries, nil
}

func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
