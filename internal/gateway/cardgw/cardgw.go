// Package cardgw integrates an intent-based card processor: the charge creates a
// payment intent whose client secret the client confirms; the outcome arrives as
// signed webhook events.
package cardgw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/gateway"
)

const Key = "cardgw"

const (
	StatusNew = iota + 1
	StatusRequiresAction
	StatusProcessing
	StatusRequiresCapture
	StatusSucceeded
	StatusFailed
	StatusCanceled
)

const (
	SignatureHeader    = "Cardgw-Signature"
	signatureTolerance = 5 * time.Minute
	defaultAPIURL      = "https://api.cardgw.example"
)

var Statuses = gateway.MustStatusTable(gateway.StatusTableConfig{
	New:       StatusNew,
	Completed: StatusSucceeded,
	Stages: map[int]gateway.Stage{
		StatusNew:             gateway.StageNew,
		StatusRequiresAction:  gateway.StageProgress,
		StatusProcessing:      gateway.StageProgress,
		StatusRequiresCapture: gateway.StageProgress,
		StatusSucceeded:       gateway.StageTerminal,
		StatusFailed:          gateway.StageTerminal,
		StatusCanceled:        gateway.StageTerminal,
	},
	Progress: []int{StatusRequiresAction, StatusProcessing, StatusRequiresCapture},
	Names: map[int]string{
		StatusNew:             "new",
		StatusRequiresAction:  "requires_action",
		StatusProcessing:      "processing",
		StatusRequiresCapture: "requires_capture",
		StatusSucceeded:       "succeeded",
		StatusFailed:          "failed",
		StatusCanceled:        "canceled",
	},
	Provider: map[string]int{
		"created":                   StatusNew,
		"requires_action":           StatusRequiresAction,
		"processing":                StatusProcessing,
		"partially_funded":          StatusProcessing,
		"amount_capturable_updated": StatusRequiresCapture,
		"succeeded":                 StatusSucceeded,
		"payment_failed":            StatusFailed,
		"canceled":                  StatusCanceled,
	},
})

var Registration = gateway.Registration{
	Key:      Key,
	Title:    "Card payments",
	Kind:     gateway.KindCard,
	Statuses: Statuses,
	New:      New,
}

type adapter struct {
	apiURL        string
	secretKey     string
	publicKey     string
	webhookSecret string
	deps          gateway.Deps
	client        *gateway.Client
	logger        *zap.SugaredLogger
}

func New(settings gateway.Settings, deps gateway.Deps) (gateway.Adapter, error) {
	if err := settings.Require("secret_key", "public_key", "webhook_secret"); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &adapter{
		apiURL:        strings.TrimRight(settings.GetOr("api_url", defaultAPIURL), "/"),
		secretKey:     settings.Get("secret_key"),
		publicKey:     settings.Get("public_key"),
		webhookSecret: settings.Get("webhook_secret"),
		deps:          deps,
		client:        deps.Client(),
		logger:        logger.With("gateway", Key),
	}, nil
}

func (a *adapter) Key() string { return Key }

func (a *adapter) Statuses() *gateway.StatusTable { return Statuses }

type metadata struct {
	OrderID   string `json:"order_id"`
	CheckCode string `json:"check_code"`
}

type createIntentRequest struct {
	Amount             int64    `json:"amount"`
	Currency           string   `json:"currency"`
	Description        string   `json:"description,omitempty"`
	Metadata           metadata `json:"metadata"`
	NotificationURL    string   `json:"notification_url"`
	ReturnURL          string   `json:"return_url,omitempty"`
	AutomaticPayMethod bool     `json:"automatic_payment_methods"`
}

type intent struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	ClientSecret string   `json:"client_secret"`
	Amount       int64    `json:"amount"`
	Currency     string   `json:"currency"`
	Metadata     metadata `json:"metadata"`
}

func (a *adapter) Charge(ctx context.Context, order *domain.PaymentOrder, in gateway.ChargeInput) (*gateway.ChargeResult, error) {
	req := createIntentRequest{
		Amount:             order.Amount,
		Currency:           strings.ToLower(order.Currency),
		Description:        in.Description,
		Metadata:           metadata{OrderID: order.ID.String(), CheckCode: order.CheckCode},
		NotificationURL:    a.deps.CallbackURL(Key),
		ReturnURL:          in.RedirectURL,
		AutomaticPayMethod: true,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.secretKey)
	header.Set("Idempotency-Key", order.ID.String())

	var resp intent
	if err := a.client.DoJSON(ctx, http.MethodPost, a.apiURL+"/v1/payment_intents", header, req, &resp); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	if resp.ID == "" || resp.ClientSecret == "" {
		return nil, fmt.Errorf("create payment intent: incomplete response")
	}

	if err := a.deps.Orders.AttachDocument(ctx, order.ID, resp.ID, Statuses.New()); err != nil {
		return nil, fmt.Errorf("attach document: %w", err)
	}
	a.logger.Infow("payment intent created", "order_id", order.ID, "intent_id", resp.ID)

	return &gateway.ChargeResult{
		DocumentID:   resp.ID,
		ClientSecret: resp.ClientSecret,
		PublicKey:    a.publicKey,
	}, nil
}

type event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object intent `json:"object"`
	} `json:"data"`
}

func (a *adapter) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) (*gateway.WebhookResult, error) {
	if err := a.verify(payload, headers.Get(SignatureHeader)); err != nil {
		return nil, err
	}

	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	providerStatus, ok := strings.CutPrefix(ev.Type, "payment_intent.")
	if !ok {
		return nil, fmt.Errorf("%w: event type %q", gateway.ErrUnmappedStatus, ev.Type)
	}

	return gateway.ApplyWebhook(ctx, a.deps.Orders, Key, Statuses, gateway.Correlation{
		DocumentID:     ev.Data.Object.ID,
		CheckCode:      ev.Data.Object.Metadata.CheckCode,
		ProviderStatus: providerStatus,
	})
}

// verify checks "t=<unix>,v1=<hex>" where v1 signs "<t>.<body>".
func (a *adapter) verify(payload []byte, header string) error {
	if header == "" {
		return fmt.Errorf("%w: missing %s header", gateway.ErrSignature, SignatureHeader)
	}
	var (
		ts   int64
		sigs []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", gateway.ErrSignature)
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return fmt.Errorf("%w: malformed header", gateway.ErrSignature)
	}

	age := a.deps.Clock().Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", gateway.ErrSignature)
	}

	signed := []byte(strconv.FormatInt(ts, 10) + ".")
	for _, s := range sigs {
		if gateway.VerifyHex(a.webhookSecret, s, signed, payload) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", gateway.ErrSignature)
}

// SignatureHeaderValue builds a valid header for payload; used by tooling and tests.
func SignatureHeaderValue(secret string, ts time.Time, payload []byte) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", t, gateway.SignHex(secret, []byte(t+"."), payload))
}
