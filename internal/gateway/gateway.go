// Package gateway holds the uniform contract every payment provider adapter implements,
// the static registration table that resolves adapters by key, and the helpers the
// adapters share (settings, status tables, provider HTTP calls, money conversion).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"payment-orchestrator/internal/domain"
)

var (
	ErrUnknownGateway         = errors.New("unknown gateway")
	ErrAdapterNotInstantiable = errors.New("gateway adapter not instantiable")
	ErrConfigUnavailable      = errors.New("gateway configuration unavailable")
	ErrSignature              = errors.New("webhook signature verification failed")
	ErrOrderNotFound          = errors.New("webhook order not found")
	ErrUnmappedStatus         = errors.New("webhook status not mapped")
	ErrMalformedPayload       = errors.New("malformed webhook payload")
	ErrTimeout                = errors.New("gateway call timed out")
)

// ProviderError is a non-2xx answer from a provider API.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("provider responded %d: %s", e.Status, body)
}

type Kind string

const (
	KindCard     Kind = "card"
	KindCheckout Kind = "checkout"
	KindOrder    Kind = "order"
)

type ChargeInput struct {
	RedirectURL string
	CancelURL   string
	Description string
}

// ChargeResult carries the provider document id plus the client-facing artifact.
type ChargeResult struct {
	DocumentID   string
	RedirectURL  string
	ClientSecret string
	PublicKey    string
}

// Payload is what the caller of the charge operation receives.
func (r *ChargeResult) Payload() map[string]any {
	out := map[string]any{}
	if r.RedirectURL != "" {
		out["payment_order_url"] = r.RedirectURL
	}
	if r.ClientSecret != "" {
		out["clientSecret"] = r.ClientSecret
		out["public_key"] = r.PublicKey
	}
	return out
}

type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultDanger  ResultType = "danger"
)

type WebhookResult struct {
	Type             ResultType
	Message          string
	PaymentOrderID   uuid.UUID
	Amount           int64
	Currency         string
	Service          string
	UserID           string
	Status           int
	PaymentCompleted bool
	// Changed is false when the delivery did not move the order (replay or stale event).
	Changed bool
}

type Adapter interface {
	Key() string
	Statuses() *StatusTable
	Charge(ctx context.Context, order *domain.PaymentOrder, in ChargeInput) (*ChargeResult, error)
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookResult, error)
}

// OrderStore is the slice of order persistence the adapters need.
type OrderStore interface {
	AttachDocument(ctx context.Context, id uuid.UUID, documentID string, status int) error
	FindForWebhook(ctx context.Context, gateway, documentID, checkCode string) (*domain.PaymentOrder, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, decide func(current int) (int, bool)) (*domain.PaymentOrder, bool, error)
}

// Deps are the collaborators shared by every adapter instance.
type Deps struct {
	Orders          OrderStore
	HTTPClient      *http.Client
	CallbackBaseURL string
	Timeout         time.Duration
	Logger          *zap.SugaredLogger
	Now             func() time.Time
}

func (d Deps) CallbackURL(key string) string {
	return d.CallbackBaseURL + "/webhooks/" + key
}

func (d Deps) Client() *Client {
	hc := d.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{HTTP: hc, Timeout: d.Timeout}
}

func (d Deps) Clock() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

type Factory func(settings Settings, deps Deps) (Adapter, error)

// Registration is one entry of the static adapter table.
type Registration struct {
	Key      string
	Title    string
	Kind     Kind
	Statuses *StatusTable
	New      Factory
}
