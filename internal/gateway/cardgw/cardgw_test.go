package cardgw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/testutil"
)

const webhookSecret = "whsec_test"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAdapter(t *testing.T, apiURL string, orders *testutil.MemoryOrders) gateway.Adapter {
	t.Helper()
	a, err := New(gateway.Settings{
		"secret_key":     "sk_test",
		"public_key":     "pk_test",
		"webhook_secret": webhookSecret,
		"api_url":        apiURL,
	}, gateway.Deps{
		Orders:          orders,
		CallbackBaseURL: "https://pay.example.com",
		Timeout:         time.Second,
		Now:             func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return a
}

func newOrder(orders *testutil.MemoryOrders) domain.PaymentOrder {
	o := domain.PaymentOrder{
		ID:        uuid.New(),
		Type:      domain.OrderPayIn,
		Gateway:   Key,
		Amount:    1000,
		Currency:  "USD",
		CheckCode: uuid.NewString(),
		Service:   "shop",
		UserID:    "42",
		CreatedAt: fixedNow,
	}
	orders.Put(o)
	return o
}

func eventBody(t *testing.T, typ, intentID, checkCode string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": typ,
		"data": map[string]any{
			"object": map[string]any{
				"id":       intentID,
				"amount":   1000,
				"currency": "usd",
				"metadata": map[string]string{"check_code": checkCode},
			},
		},
	})
	require.NoError(t, err)
	return b
}

func signed(body []byte) http.Header {
	h := http.Header{}
	h.Set(SignatureHeader, SignatureHeaderValue(webhookSecret, fixedNow, body))
	return h
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New(gateway.Settings{"secret_key": "sk"}, gateway.Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public_key, webhook_secret")
}

func TestChargeCreatesIntent(t *testing.T) {
	var got createIntentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"id":"pi_123","status":"requires_payment_method","client_secret":"pi_123_secret"}`)
	}))
	defer srv.Close()

	orders := testutil.NewMemoryOrders()
	a := newTestAdapter(t, srv.URL, orders)
	order := newOrder(orders)

	res, err := a.Charge(context.Background(), &order, gateway.ChargeInput{})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), got.Amount)
	assert.Equal(t, "usd", got.Currency)
	assert.Equal(t, order.CheckCode, got.Metadata.CheckCode)
	assert.Equal(t, "https://pay.example.com/webhooks/cardgw", got.NotificationURL)
	assert.Equal(t, map[string]any{"clientSecret": "pi_123_secret", "public_key": "pk_test"}, res.Payload())

	stored, err := orders.FindById(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, stored.HasDocument())
	assert.Equal(t, "pi_123", *stored.ServiceDocumentID)
	assert.Equal(t, StatusNew, stored.Status)
}

func TestChargeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"message":"card declined"}}`)
	}))
	defer srv.Close()

	orders := testutil.NewMemoryOrders()
	a := newTestAdapter(t, srv.URL, orders)
	order := newOrder(orders)

	_, err := a.Charge(context.Background(), &order, gateway.ChargeInput{})
	var pe *gateway.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusPaymentRequired, pe.Status)

	stored, _ := orders.FindById(context.Background(), order.ID)
	assert.False(t, stored.HasDocument())
}

func TestWebhookCompletesOnce(t *testing.T) {
	orders := testutil.NewMemoryOrders()
	a := newTestAdapter(t, "http://unused", orders)
	order := newOrder(orders)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "pi_1", StatusNew))

	body := eventBody(t, "payment_intent.succeeded", "pi_1", order.CheckCode)

	res, err := a.HandleWebhook(context.Background(), body, signed(body))
	require.NoError(t, err)
	assert.Equal(t, gateway.ResultSuccess, res.Type)
	assert.True(t, res.PaymentCompleted)
	assert.True(t, res.Changed)
	assert.Equal(t, order.ID, res.PaymentOrderID)
	assert.Equal(t, int64(1000), res.Amount)

	replay, err := a.HandleWebhook(context.Background(), body, signed(body))
	require.NoError(t, err)
	assert.False(t, replay.Changed)
	assert.Equal(t, StatusSucceeded, replay.Status)
}

func TestWebhookIgnoresStaleEvent(t *testing.T) {
	orders := testutil.NewMemoryOrders()
	a := newTestAdapter(t, "http://unused", orders)
	order := newOrder(orders)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "pi_1", StatusNew))

	done := eventBody(t, "payment_intent.succeeded", "pi_1", order.CheckCode)
	_, err := a.HandleWebhook(context.Background(), done, signed(done))
	require.NoError(t, err)

	late := eventBody(t, "payment_intent.processing", "pi_1", order.CheckCode)
	res, err := a.HandleWebhook(context.Background(), late, signed(late))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.False(t, res.PaymentCompleted)
	assert.Equal(t, StatusSucceeded, res.Status)
}

func TestWebhookDoesNotStepBack(t *testing.T) {
	orders := testutil.NewMemoryOrders()
	a := newTestAdapter(t, "http://unused", orders)
	order := newOrder(orders)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "pi_1", StatusNew))

	processing := eventBody(t, "payment_intent.processing", "pi_1", order.CheckCode)
	res, err := a.HandleWebhook(context.Background(), processing, signed(processing))
	require.NoError(t, err)
	require.True(t, res.Changed)

	late := eventBody(t, "payment_intent.requires_action", "pi_1", order.CheckCode)
	res, err = a.HandleWebhook(context.Background(), late, signed(late))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, StatusProcessing, res.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	orders := testutil.NewMemoryOrders()
	a := newTestAdapter(t, "http://unused", orders)
	order := newOrder(orders)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "pi_1", StatusNew))
	body := eventBody(t, "payment_intent.succeeded", "pi_1", order.CheckCode)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"garbage", "nonsense"},
		{"wrong secret", SignatureHeaderValue("other", fixedNow, body)},
		{"too old", SignatureHeaderValue(webhookSecret, fixedNow.Add(-10*time.Minute), body)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set(SignatureHeader, tt.header)
			}
			_, err := a.HandleWebhook(context.Background(), body, h)
			require.ErrorIs(t, err, gateway.ErrSignature)
		})
	}

	stored, _ := orders.FindById(context.Background(), order.ID)
	assert.Equal(t, StatusNew, stored.Status)
}

func TestWebhookCorrelationIsStrict(t *testing.T) {
	orders := testutil.NewMemoryOrders()
	a := newTestAdapter(t, "http://unused", orders)
	order := newOrder(orders)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "pi_1", StatusNew))

	body := eventBody(t, "payment_intent.succeeded", "pi_1", "not-the-check-code")
	_, err := a.HandleWebhook(context.Background(), body, signed(body))
	require.ErrorIs(t, err, gateway.ErrOrderNotFound)

	body = eventBody(t, "payment_intent.succeeded", "pi_other", order.CheckCode)
	_, err = a.HandleWebhook(context.Background(), body, signed(body))
	require.ErrorIs(t, err, gateway.ErrOrderNotFound)

	stored, _ := orders.FindById(context.Background(), order.ID)
	assert.Equal(t, StatusNew, stored.Status)
}

func TestWebhookUnmappedEvent(t *testing.T) {
	orders := testutil.NewMemoryOrders()
	a := newTestAdapter(t, "http://unused", orders)
	order := newOrder(orders)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "pi_1", StatusNew))

	for _, typ := range []string{"charge.refunded", "payment_intent.something_new"} {
		body := eventBody(t, typ, "pi_1", order.CheckCode)
		_, err := a.HandleWebhook(context.Background(), body, signed(body))
		require.ErrorIs(t, err, gateway.ErrUnmappedStatus, typ)
	}
}
