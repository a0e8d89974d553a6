package ordergw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/testutil"
)

func setup(t *testing.T, apiURL string, extra gateway.Settings) (gateway.Adapter, *testutil.MemoryOrders, domain.PaymentOrder) {
	t.Helper()
	settings := gateway.Settings{"client_id": "cid", "client_secret": "csecret", "api_url": apiURL}
	for k, v := range extra {
		settings[k] = v
	}
	orders := testutil.NewMemoryOrders()
	a, err := New(settings, gateway.Deps{Orders: orders, CallbackBaseURL: "https://pay.example.com", Timeout: time.Second})
	require.NoError(t, err)

	o := domain.PaymentOrder{
		ID:        uuid.New(),
		Type:      domain.OrderPayIn,
		Gateway:   Key,
		Amount:    1500,
		Currency:  "USD",
		CheckCode: uuid.NewString(),
		Service:   "shop",
		UserID:    "1",
		CreatedAt: time.Now(),
	}
	orders.Put(o)
	return a, orders, o
}

func orderEvent(t *testing.T, typ, id, checkCode string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":            "WH-1",
		"event_type":    typ,
		"resource_type": "checkout-order",
		"resource": map[string]any{
			"id":             id,
			"purchase_units": []map[string]string{{"custom_id": checkCode}},
		},
	})
	require.NoError(t, err)
	return b
}

func captureEvent(t *testing.T, typ, orderID, checkCode string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":            "WH-2",
		"event_type":    typ,
		"resource_type": "capture",
		"resource": map[string]any{
			"id":                 "CAP-1",
			"custom_id":          checkCode,
			"supplementary_data": map[string]any{"related_ids": map[string]string{"order_id": orderID}},
		},
	})
	require.NoError(t, err)
	return b
}

func fromProvider() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "OrderGW/1.0 (+https://ordergw.example)")
	return h
}

func TestChargeReturnsApprovalLink(t *testing.T) {
	var got createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "csecret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"id":"5O190127","status":"CREATED","links":[
			{"href":"https://api/v2/checkout/orders/5O190127","rel":"self","method":"GET"},
			{"href":"https://ordergw.example/approve?token=5O190127","rel":"approve","method":"GET"}]}`)
	}))
	defer srv.Close()

	a, orders, order := setup(t, srv.URL, nil)
	res, err := a.Charge(context.Background(), &order, gateway.ChargeInput{CancelURL: "https://shop/cancel"})
	require.NoError(t, err)

	require.Len(t, got.PurchaseUnits, 1)
	assert.Equal(t, order.CheckCode, got.PurchaseUnits[0].CustomID)
	assert.Equal(t, "15.00", got.PurchaseUnits[0].Amount.Value)
	assert.Equal(t, "https://pay.example.com/webhooks/ordergw", got.AppContext.NotifyURL)
	assert.Equal(t, "https://ordergw.example/approve?token=5O190127", res.RedirectURL)

	stored, _ := orders.FindById(context.Background(), order.ID)
	assert.Equal(t, "5O190127", *stored.ServiceDocumentID)
}

func TestChargeWithoutApprovalLinkFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"X","links":[]}`)
	}))
	defer srv.Close()

	a, orders, order := setup(t, srv.URL, nil)
	_, err := a.Charge(context.Background(), &order, gateway.ChargeInput{})
	require.Error(t, err)
	stored, _ := orders.FindById(context.Background(), order.ID)
	assert.False(t, stored.HasDocument())
}

func TestApprovalTriggersCapture(t *testing.T) {
	var captured atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders/5O190127/capture", r.URL.Path)
		captured.Add(1)
		fmt.Fprint(w, `{"id":"5O190127","status":"COMPLETED"}`)
	}))
	defer srv.Close()

	a, orders, order := setup(t, srv.URL, nil)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "5O190127", StatusNew))

	body := orderEvent(t, "CHECKOUT.ORDER.APPROVED", "5O190127", order.CheckCode)
	res, err := a.HandleWebhook(context.Background(), body, fromProvider())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
	assert.False(t, res.PaymentCompleted)
	assert.Equal(t, int32(1), captured.Load())

	// replayed approval does not capture twice
	_, err = a.HandleWebhook(context.Background(), body, fromProvider())
	require.NoError(t, err)
	assert.Equal(t, int32(1), captured.Load())

	res, err = a.HandleWebhook(context.Background(), captureEvent(t, "PAYMENT.CAPTURE.COMPLETED", "5O190127", order.CheckCode), fromProvider())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.PaymentCompleted)
}

func TestLateApprovalAfterPendingCapture(t *testing.T) {
	var captured atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Add(1)
		fmt.Fprint(w, `{"id":"5O190127","status":"COMPLETED"}`)
	}))
	defer srv.Close()

	a, orders, order := setup(t, srv.URL, nil)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "5O190127", StatusNew))
	approved := orderEvent(t, "CHECKOUT.ORDER.APPROVED", "5O190127", order.CheckCode)

	_, err := a.HandleWebhook(context.Background(), approved, fromProvider())
	require.NoError(t, err)
	res, err := a.HandleWebhook(context.Background(), captureEvent(t, "PAYMENT.CAPTURE.PENDING", "5O190127", order.CheckCode), fromProvider())
	require.NoError(t, err)
	require.Equal(t, StatusPending, res.Status)

	res, err = a.HandleWebhook(context.Background(), approved, fromProvider())
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, int32(1), captured.Load())

	stored, _ := orders.FindById(context.Background(), order.ID)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestCaptureFailureKeepsApproval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"name":"ORDER_NOT_APPROVED"}`)
	}))
	defer srv.Close()

	a, orders, order := setup(t, srv.URL, nil)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "5O190127", StatusNew))

	res, err := a.HandleWebhook(context.Background(), orderEvent(t, "CHECKOUT.ORDER.APPROVED", "5O190127", order.CheckCode), fromProvider())
	require.NoError(t, err)
	assert.Equal(t, gateway.ResultSuccess, res.Type)
	assert.Contains(t, res.Message, "capture failed")

	stored, _ := orders.FindById(context.Background(), order.ID)
	assert.Equal(t, StatusApproved, stored.Status)
}

func TestWebhookSenderChecks(t *testing.T) {
	a, orders, order := setup(t, "http://unused", gateway.Settings{"webhook_id": "WH-CONF-1"})
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "5O190127", StatusNew))
	body := captureEvent(t, "PAYMENT.CAPTURE.COMPLETED", "5O190127", order.CheckCode)

	h := http.Header{}
	h.Set("User-Agent", "curl/8.0")
	h.Set(WebhookIDHeader, "WH-CONF-1")
	_, err := a.HandleWebhook(context.Background(), body, h)
	require.ErrorIs(t, err, gateway.ErrSignature)

	_, err = a.HandleWebhook(context.Background(), body, fromProvider())
	require.ErrorIs(t, err, gateway.ErrSignature)

	ok := fromProvider()
	ok.Set(WebhookIDHeader, "WH-CONF-1")
	res, err := a.HandleWebhook(context.Background(), body, ok)
	require.NoError(t, err)
	assert.True(t, res.PaymentCompleted)
}

func TestDeniedCannotBeRevived(t *testing.T) {
	a, orders, order := setup(t, "http://unused", nil)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "5O190127", StatusNew))

	res, err := a.HandleWebhook(context.Background(), captureEvent(t, "PAYMENT.CAPTURE.DENIED", "5O190127", order.CheckCode), fromProvider())
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, res.Status)

	res, err = a.HandleWebhook(context.Background(), captureEvent(t, "PAYMENT.CAPTURE.COMPLETED", "5O190127", order.CheckCode), fromProvider())
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, res.Status)
	assert.False(t, res.PaymentCompleted)
}

func TestRefundEventIsUnmapped(t *testing.T) {
	a, orders, order := setup(t, "http://unused", nil)
	require.NoError(t, orders.AttachDocument(context.Background(), order.ID, "5O190127", StatusNew))

	_, err := a.HandleWebhook(context.Background(), captureEvent(t, "PAYMENT.CAPTURE.REFUNDED", "5O190127", order.CheckCode), fromProvider())
	require.ErrorIs(t, err, gateway.ErrUnmappedStatus)
}
