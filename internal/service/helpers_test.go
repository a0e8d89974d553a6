package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payment-orchestrator/internal/events"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/gateway/providers"
	"payment-orchestrator/internal/testutil"
)

const cardWebhookSecret = "whsec_test"

type staticSettings struct {
	values map[string]gateway.Settings
	err    error
}

func (s *staticSettings) Get(_ context.Context, key string) (gateway.Settings, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.values[key], nil
}

type countingResolver struct {
	inner AdapterResolver
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, key string) (gateway.Adapter, error) {
	c.calls++
	return c.inner.Resolve(ctx, key)
}

type auditEntry struct {
	kind    string
	gateway string
	message string
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recordingAuditor) add(kind, gw, msg string) {
	r.mu.Lock()
	r.entries = append(r.entries, auditEntry{kind, gw, msg})
	r.mu.Unlock()
}

func (r *recordingAuditor) Request(_ context.Context, gw, _ string, _ any) {
	r.add("request", gw, "")
}

func (r *recordingAuditor) RequestError(_ context.Context, gw string, _ *uuid.UUID, _, msg string, _ any) {
	r.add("request_error", gw, msg)
}

func (r *recordingAuditor) Webhook(_ context.Context, gw string, _ *uuid.UUID, _ []byte) {
	r.add("webhook", gw, "")
}

func (r *recordingAuditor) WebhookError(_ context.Context, gw, msg string, _ []byte) {
	r.add("webhook_error", gw, msg)
}

func (r *recordingAuditor) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	orders    *testutil.MemoryOrders
	settings  *staticSettings
	resolver  *countingResolver
	audit     *recordingAuditor
	publisher *events.Memory
	charges   ChargeService
	webhooks  WebhookService
	now       time.Time
}

func newFixture(t *testing.T, cardAPI string, timeout time.Duration, opts ...ChargeOption) *fixture {
	t.Helper()
	f := &fixture{
		orders: testutil.NewMemoryOrders(),
		settings: &staticSettings{values: map[string]gateway.Settings{
			"cardgw": {
				"secret_key":     "sk_test",
				"public_key":     "pk_test",
				"webhook_secret": cardWebhookSecret,
				"api_url":        cardAPI,
			},
		}},
		audit:     &recordingAuditor{},
		publisher: &events.Memory{},
		now:       time.Now(),
	}
	logger := zap.NewNop().Sugar()
	reg, err := providers.NewRegistry(f.settings, gateway.Deps{
		Orders:          f.orders,
		CallbackBaseURL: "https://pay.example.com",
		Timeout:         timeout,
		Logger:          logger,
		Now:             func() time.Time { return f.now },
	})
	require.NoError(t, err)

	f.resolver = &countingResolver{inner: reg}
	f.charges = NewChargeService(f.resolver, f.orders, f.audit, logger, opts...)
	f.webhooks = NewWebhookService(f.resolver, f.orders, f.audit, f.publisher, logger)
	return f
}
