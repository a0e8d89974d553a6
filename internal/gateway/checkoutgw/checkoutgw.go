// Package checkoutgw integrates a hosted-checkout provider. A charge creates a hosted
// invoice and returns its URL; status arrives as body-signed webhooks.
package checkoutgw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/gateway"
)

const Key = "checkoutgw"

const (
	StatusNew = iota + 1
	StatusPending
	StatusConfirmed
	StatusFailed
	StatusExpired
	StatusDelayed
	StatusResolved
	StatusCanceled
)

const (
	SignatureHeader = "X-CC-Webhook-Signature"
	apiKeyHeader    = "X-CC-Api-Key"
	apiVersion      = "2018-03-22"
	defaultAPIURL   = "https://api.checkoutgw.example"
)

// A late payment on an expired or failed invoice is reported as delayed and then resolved
// manually on the provider side; those are the only moves out of a terminal status.
var Statuses = gateway.MustStatusTable(gateway.StatusTableConfig{
	New:       StatusNew,
	Completed: StatusConfirmed,
	Stages: map[int]gateway.Stage{
		StatusNew:       gateway.StageNew,
		StatusPending:   gateway.StageProgress,
		StatusConfirmed: gateway.StageTerminal,
		StatusFailed:    gateway.StageTerminal,
		StatusExpired:   gateway.StageTerminal,
		StatusDelayed:   gateway.StageTerminal,
		StatusResolved:  gateway.StageTerminal,
		StatusCanceled:  gateway.StageTerminal,
	},
	Progress: []int{StatusPending},
	Names: map[int]string{
		StatusNew:       "new",
		StatusPending:   "pending",
		StatusConfirmed: "confirmed",
		StatusFailed:    "failed",
		StatusExpired:   "expired",
		StatusDelayed:   "delayed",
		StatusResolved:  "resolved",
		StatusCanceled:  "canceled",
	},
	Provider: map[string]int{
		"created":   StatusNew,
		"pending":   StatusPending,
		"confirmed": StatusConfirmed,
		"failed":    StatusFailed,
		"expired":   StatusExpired,
		"delayed":   StatusDelayed,
		"resolved":  StatusResolved,
		"canceled":  StatusCanceled,
	},
	Resolutions: map[int][]int{
		StatusExpired: {StatusDelayed},
		StatusFailed:  {StatusDelayed},
		StatusDelayed: {StatusResolved},
	},
})

var Registration = gateway.Registration{
	Key:      Key,
	Title:    "Hosted checkout",
	Kind:     gateway.KindCheckout,
	Statuses: Statuses,
	New:      New,
}

type adapter struct {
	apiURL        string
	apiKey        string
	webhookSecret string
	deps          gateway.Deps
	client        *gateway.Client
	logger        *zap.SugaredLogger
}

func New(settings gateway.Settings, deps gateway.Deps) (gateway.Adapter, error) {
	if err := settings.Require("api_key", "webhook_secret"); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &adapter{
		apiURL:        strings.TrimRight(settings.GetOr("api_url", defaultAPIURL), "/"),
		apiKey:        settings.Get("api_key"),
		webhookSecret: settings.Get("webhook_secret"),
		deps:          deps,
		client:        deps.Client(),
		logger:        logger.With("gateway", Key),
	}, nil
}

func (a *adapter) Key() string { return Key }

func (a *adapter) Statuses() *gateway.StatusTable { return Statuses }

type money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type metadata struct {
	OrderID   string `json:"order_id"`
	CheckCode string `json:"check_code"`
	Service   string `json:"service,omitempty"`
}

type createChargeRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PricingType string   `json:"pricing_type"`
	LocalPrice  money    `json:"local_price"`
	Metadata    metadata `json:"metadata"`
	RedirectURL string   `json:"redirect_url,omitempty"`
	CancelURL   string   `json:"cancel_url,omitempty"`
}

type charge struct {
	ID        string   `json:"id"`
	Code      string   `json:"code"`
	HostedURL string   `json:"hosted_url"`
	Metadata  metadata `json:"metadata"`
}

type chargeEnvelope struct {
	Data charge `json:"data"`
}

func (a *adapter) Charge(ctx context.Context, order *domain.PaymentOrder, in gateway.ChargeInput) (*gateway.ChargeResult, error) {
	desc := in.Description
	if desc == "" {
		desc = "Order " + order.ID.String()
	}
	req := createChargeRequest{
		Name:        order.Service,
		Description: desc,
		PricingType: "fixed_price",
		LocalPrice: money{
			Amount:   gateway.MajorUnits(order.Amount, order.Currency),
			Currency: order.Currency,
		},
		Metadata: metadata{
			OrderID:   order.ID.String(),
			CheckCode: order.CheckCode,
			Service:   order.Service,
		},
		RedirectURL: in.RedirectURL,
		CancelURL:   in.CancelURL,
	}
	if req.Name == "" {
		req.Name = "Payment"
	}
	header := http.Header{}
	header.Set(apiKeyHeader, a.apiKey)
	header.Set("X-CC-Version", apiVersion)

	var resp chargeEnvelope
	if err := a.client.DoJSON(ctx, http.MethodPost, a.apiURL+"/charges", header, req, &resp); err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}
	if resp.Data.Code == "" || resp.Data.HostedURL == "" {
		return nil, fmt.Errorf("create charge: incomplete response")
	}

	if err := a.deps.Orders.AttachDocument(ctx, order.ID, resp.Data.Code, Statuses.New()); err != nil {
		return nil, fmt.Errorf("attach document: %w", err)
	}
	a.logger.Infow("charge created", "order_id", order.ID, "code", resp.Data.Code)

	return &gateway.ChargeResult{
		DocumentID:  resp.Data.Code,
		RedirectURL: resp.Data.HostedURL,
	}, nil
}

type notification struct {
	ID    string `json:"id"`
	Event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data charge `json:"data"`
	} `json:"event"`
}

func (a *adapter) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) (*gateway.WebhookResult, error) {
	sig := headers.Get(SignatureHeader)
	if sig == "" {
		return nil, fmt.Errorf("%w: missing %s header", gateway.ErrSignature, SignatureHeader)
	}
	if !gateway.VerifyHex(a.webhookSecret, sig, payload) {
		return nil, fmt.Errorf("%w: body signature mismatch", gateway.ErrSignature)
	}

	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	providerStatus, ok := strings.CutPrefix(n.Event.Type, "charge:")
	if !ok {
		return nil, fmt.Errorf("%w: event type %q", gateway.ErrUnmappedStatus, n.Event.Type)
	}

	return gateway.ApplyWebhook(ctx, a.deps.Orders, Key, Statuses, gateway.Correlation{
		DocumentID:     n.Event.Data.Code,
		CheckCode:      n.Event.Data.Metadata.CheckCode,
		ProviderStatus: providerStatus,
	})
}
