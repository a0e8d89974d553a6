// Package ordergw integrates an order/capture provider: the charge creates an order
// resource the payer approves through a link, an approval triggers the capture, and the
// capture outcome arrives as webhook events.
package ordergw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/gateway"
)

const Key = "ordergw"

const (
	StatusNew = iota + 1
	StatusApproved
	StatusPending
	StatusCompleted
	StatusDenied
	StatusCanceled
)

const (
	WebhookIDHeader   = "Ordergw-Webhook-Id"
	defaultUserAgent  = "OrderGW/"
	defaultAPIURL     = "https://api.ordergw.example"
	eventOrderApprove = "CHECKOUT.ORDER.APPROVED"
)

var Statuses = gateway.MustStatusTable(gateway.StatusTableConfig{
	New:       StatusNew,
	Completed: StatusCompleted,
	Stages: map[int]gateway.Stage{
		StatusNew:       gateway.StageNew,
		StatusApproved:  gateway.StageProgress,
		StatusPending:   gateway.StageProgress,
		StatusCompleted: gateway.StageTerminal,
		StatusDenied:    gateway.StageTerminal,
		StatusCanceled:  gateway.StageTerminal,
	},
	Progress: []int{StatusApproved, StatusPending},
	Names: map[int]string{
		StatusNew:       "new",
		StatusApproved:  "approved",
		StatusPending:   "pending",
		StatusCompleted: "completed",
		StatusDenied:    "denied",
		StatusCanceled:  "canceled",
	},
	Provider: map[string]int{
		eventOrderApprove:           StatusApproved,
		"CHECKOUT.ORDER.COMPLETED":  StatusCompleted,
		"CHECKOUT.ORDER.VOIDED":     StatusCanceled,
		"PAYMENT.CAPTURE.PENDING":   StatusPending,
		"PAYMENT.CAPTURE.COMPLETED": StatusCompleted,
		"PAYMENT.CAPTURE.DENIED":    StatusDenied,
		"PAYMENT.CAPTURE.DECLINED":  StatusDenied,
	},
})

var Registration = gateway.Registration{
	Key:      Key,
	Title:    "Order and capture",
	Kind:     gateway.KindOrder,
	Statuses: Statuses,
	New:      New,
}

type adapter struct {
	apiURL       string
	clientID     string
	clientSecret string
	userAgent    string
	webhookID    string
	deps         gateway.Deps
	client       *gateway.Client
	logger       *zap.SugaredLogger
}

func New(settings gateway.Settings, deps gateway.Deps) (gateway.Adapter, error) {
	if err := settings.Require("client_id", "client_secret"); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &adapter{
		apiURL:       strings.TrimRight(settings.GetOr("api_url", defaultAPIURL), "/"),
		clientID:     settings.Get("client_id"),
		clientSecret: settings.Get("client_secret"),
		userAgent:    settings.GetOr("webhook_user_agent", defaultUserAgent),
		webhookID:    settings.Get("webhook_id"),
		deps:         deps,
		client:       deps.Client(),
		logger:       logger.With("gateway", Key),
	}, nil
}

func (a *adapter) Key() string { return Key }

func (a *adapter) Statuses() *gateway.StatusTable { return Statuses }

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id"`
	CustomID    string `json:"custom_id"`
	Description string `json:"description,omitempty"`
	Amount      amount `json:"amount"`
}

type appContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
	NotifyURL string `json:"notify_url"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
	AppContext    appContext     `json:"application_context"`
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
}

func (r orderResponse) approvalURL() string {
	for _, l := range r.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

func (a *adapter) authHeader() http.Header {
	req := http.Request{Header: http.Header{}}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	return req.Header
}

func (a *adapter) Charge(ctx context.Context, order *domain.PaymentOrder, in gateway.ChargeInput) (*gateway.ChargeResult, error) {
	req := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: order.ID.String(),
			CustomID:    order.CheckCode,
			Description: in.Description,
			Amount: amount{
				CurrencyCode: order.Currency,
				Value:        gateway.MajorUnits(order.Amount, order.Currency),
			},
		}},
		AppContext: appContext{
			ReturnURL: in.RedirectURL,
			CancelURL: in.CancelURL,
			NotifyURL: a.deps.CallbackURL(Key),
		},
	}
	header := a.authHeader()
	header.Set("Ordergw-Request-Id", order.ID.String())

	var resp orderResponse
	if err := a.client.DoJSON(ctx, http.MethodPost, a.apiURL+"/v2/checkout/orders", header, req, &resp); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	approve := resp.approvalURL()
	if resp.ID == "" || approve == "" {
		return nil, fmt.Errorf("create order: response without id or approval link")
	}

	if err := a.deps.Orders.AttachDocument(ctx, order.ID, resp.ID, Statuses.New()); err != nil {
		return nil, fmt.Errorf("attach document: %w", err)
	}
	a.logger.Infow("order created", "order_id", order.ID, "provider_order_id", resp.ID)

	return &gateway.ChargeResult{DocumentID: resp.ID, RedirectURL: approve}, nil
}

type resource struct {
	ID            string `json:"id"`
	CustomID      string `json:"custom_id"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
	} `json:"purchase_units"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type event struct {
	ID           string   `json:"id"`
	EventType    string   `json:"event_type"`
	ResourceType string   `json:"resource_type"`
	Resource     resource `json:"resource"`
}

// correlation reads the provider order id and check code from either an order or a capture resource.
func (e event) correlation() (documentID, checkCode string) {
	if strings.HasPrefix(e.EventType, "PAYMENT.CAPTURE.") {
		return e.Resource.SupplementaryData.RelatedIDs.OrderID, e.Resource.CustomID
	}
	documentID = e.Resource.ID
	if len(e.Resource.PurchaseUnits) > 0 {
		checkCode = e.Resource.PurchaseUnits[0].CustomID
	}
	return documentID, checkCode
}

func (a *adapter) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) (*gateway.WebhookResult, error) {
	if ua := headers.Get("User-Agent"); !strings.HasPrefix(ua, a.userAgent) {
		return nil, fmt.Errorf("%w: unexpected sender %q", gateway.ErrSignature, ua)
	}
	if a.webhookID != "" && headers.Get(WebhookIDHeader) != a.webhookID {
		return nil, fmt.Errorf("%w: webhook id mismatch", gateway.ErrSignature)
	}

	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	documentID, checkCode := ev.correlation()

	res, err := gateway.ApplyWebhook(ctx, a.deps.Orders, Key, Statuses, gateway.Correlation{
		DocumentID:     documentID,
		CheckCode:      checkCode,
		ProviderStatus: ev.EventType,
	})
	if err != nil {
		return nil, err
	}

	if ev.EventType == eventOrderApprove && res.Changed {
		if err := a.capture(ctx, documentID); err != nil {
			a.logger.Warnw("capture after approval failed", "order_id", res.PaymentOrderID, "err", err)
			res.Message += "; capture failed: " + err.Error()
		}
	}
	return res, nil
}

func (a *adapter) capture(ctx context.Context, providerOrderID string) error {
	u := a.apiURL + "/v2/checkout/orders/" + url.PathEscape(providerOrderID) + "/capture"
	var resp orderResponse
	if err := a.client.DoJSON(ctx, http.MethodPost, u, a.authHeader(), map[string]any{}, &resp); err != nil {
		return err
	}
	a.logger.Infow("order captured", "provider_order_id", providerOrderID, "status", resp.Status)
	return nil
}
