package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"payment-orchestrator/internal/domain"
)

// Settings exposes one gateway's configuration with the "{gateway}_" prefix stripped.
type Settings map[string]string

func (s Settings) Get(name string) string { return s[name] }

func (s Settings) GetOr(name, fallback string) string {
	if v := s[name]; v != "" {
		return v
	}
	return fallback
}

func (s Settings) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if strings.TrimSpace(s[n]) == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

type SettingsSource interface {
	Get(ctx context.Context, gatewayKey string) (Settings, error)
}

type SettingLister interface {
	ListByPrefix(ctx context.Context, prefix string) ([]domain.GatewaySetting, error)
}

// SettingsStore reads a single flat key/value store shared by every adapter.
type SettingsStore struct {
	repo SettingLister
}

func NewSettingsStore(repo SettingLister) *SettingsStore {
	return &SettingsStore{repo: repo}
}

func (s *SettingsStore) Get(ctx context.Context, gatewayKey string) (Settings, error) {
	if strings.TrimSpace(gatewayKey) == "" {
		return nil, fmt.Errorf("%w: empty gateway key", ErrUnknownGateway)
	}
	prefix := gatewayKey + "_"
	rows, err := s.repo.ListByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	out := make(Settings, len(rows))
	for _, r := range rows {
		if !strings.HasPrefix(r.Key, prefix) {
			continue
		}
		out[strings.TrimPrefix(r.Key, prefix)] = r.Value
	}
	return out, nil
}
