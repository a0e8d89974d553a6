package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-orchestrator/internal/domain"
)

type stubAdapter struct {
	key   string
	table *StatusTable
}

func (s *stubAdapter) Key() string { return s.key }
func (s *stubAdapter) Statuses() *StatusTable { return s.table }
func (s *stubAdapter) Charge(context.Context, *domain.PaymentOrder, ChargeInput) (*ChargeResult, error) {
	return &ChargeResult{}, nil
}
func (s *stubAdapter) HandleWebhook(context.Context, []byte, http.Header) (*WebhookResult, error) {
	return &WebhookResult{Type: ResultSuccess}, nil
}

type mapSource struct {
	values map[string]Settings
	err    error
	calls  atomic.Int32
}

func (m *mapSource) Get(_ context.Context, key string) (Settings, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.values[key], nil
}

func stubRegistration(t *testing.T, key string, required ...string) Registration {
	table := testTable(t)
	return Registration{
		Key:      key,
		Title:    "Stub " + key,
		Kind:     KindCard,
		Statuses: table,
		New: func(s Settings, _ Deps) (Adapter, error) {
			if err := s.Require(required...); err != nil {
				return nil, err
			}
			return &stubAdapter{key: key, table: table}, nil
		},
	}
}

func TestResolve(t *testing.T) {
	src := &mapSource{values: map[string]Settings{"alpha": {"token": "x"}}}
	reg, err := NewRegistry(src, Deps{}, stubRegistration(t, "alpha", "token"), stubRegistration(t, "beta", "token"))
	require.NoError(t, err)

	a, err := reg.Resolve(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", a.Key())

	_, err = reg.Resolve(context.Background(), "gamma")
	require.ErrorIs(t, err, ErrUnknownGateway)
	assert.NotErrorIs(t, err, ErrAdapterNotInstantiable)

	_, err = reg.Resolve(context.Background(), "beta")
	require.ErrorIs(t, err, ErrAdapterNotInstantiable)
	assert.ErrorContains(t, err, "missing settings: token")
}

func TestResolveIdentityMismatch(t *testing.T) {
	r := stubRegistration(t, "alpha")
	r.New = func(Settings, Deps) (Adapter, error) { return &stubAdapter{key: "other"}, nil }
	reg, err := NewRegistry(&mapSource{}, Deps{}, r)
	require.NoError(t, err)

	_, err = reg.Resolve(context.Background(), "alpha")
	require.ErrorIs(t, err, ErrAdapterNotInstantiable)
}

func TestResolveConfigUnavailable(t *testing.T) {
	src := &mapSource{err: errors.Join(ErrConfigUnavailable, errors.New("db down"))}
	reg, err := NewRegistry(src, Deps{}, stubRegistration(t, "alpha"))
	require.NoError(t, err)

	_, err = reg.Resolve(context.Background(), "alpha")
	require.ErrorIs(t, err, ErrConfigUnavailable)
	assert.NotErrorIs(t, err, ErrAdapterNotInstantiable)
}

func TestNewRegistryRejectsBadTable(t *testing.T) {
	_, err := NewRegistry(&mapSource{}, Deps{}, stubRegistration(t, "a"), stubRegistration(t, "a"))
	assert.ErrorContains(t, err, "duplicate")

	incomplete := stubRegistration(t, "b")
	incomplete.New = nil
	_, err = NewRegistry(&mapSource{}, Deps{}, incomplete)
	assert.ErrorContains(t, err, "incomplete")
}

func TestRegistrationsKeepOrder(t *testing.T) {
	reg, err := NewRegistry(&mapSource{}, Deps{}, stubRegistration(t, "z"), stubRegistration(t, "a"), stubRegistration(t, "m"))
	require.NoError(t, err)

	var keys []string
	for _, r := range reg.Registrations() {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"z", "a", "m"}, keys)

	_, ok := reg.Lookup("a")
	assert.True(t, ok)
	_, ok = reg.Lookup("q")
	assert.False(t, ok)
}

func TestDepsCallbackURL(t *testing.T) {
	d := Deps{CallbackBaseURL: "https://pay.example.com"}
	assert.Equal(t, "https://pay.example.com/webhooks/cardgw", d.CallbackURL("cardgw"))
}
