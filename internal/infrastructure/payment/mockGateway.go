// Package payment holds a fake card processor used by the local simulator and by
// end-to-end tests. It speaks the cardgw API and sends signed webhooks back.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"payment-orchestrator/internal/gateway/cardgw"
)

type Outcome int

const (
	OutcomeSucceed Outcome = iota
	OutcomeDecline
	// OutcomeLag charges the card but answers after the caller has given up.
	OutcomeLag
)

type Config struct {
	WebhookSecret string
	Lag           time.Duration
	DeliverDelay  time.Duration
	Replay        bool
	Pick          func() Outcome
	HTTPClient    *http.Client
	Logger        *zap.SugaredLogger
}

type intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	CheckCode    string
	NotifyURL    string
	Paid         bool
}

type CardProvider struct {
	cfg Config

	mu      sync.RWMutex
	intents map[string]*intent // by idempotency key

	wg sync.WaitGroup
}

// RandomOutcome succeeds 70% of the time, declines 20% and lags 10%.
func RandomOutcome() Outcome {
	chance := rand.IntN(100)
	switch {
	case chance < 70:
		return OutcomeSucceed
	case chance < 90:
		return OutcomeDecline
	default:
		return OutcomeLag
	}
}

func NewCardProvider(cfg Config) *CardProvider {
	if cfg.Pick == nil {
		cfg.Pick = RandomOutcome
	}
	if cfg.Lag == 0 {
		cfg.Lag = 2 * time.Second
	}
	if cfg.DeliverDelay == 0 {
		cfg.DeliverDelay = 200 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &CardProvider{cfg: cfg, intents: make(map[string]*intent)}
}

func (p *CardProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
		http.NotFound(w, r)
		return
	}
	p.create(w, r)
}

type createRequest struct {
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
	NotificationURL string            `json:"notification_url"`
}

func (p *CardProvider) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": err.Error()}})
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = uuid.NewString()
	}

	// same idempotency key, same answer
	p.mu.RLock()
	if in, ok := p.intents[key]; ok {
		p.mu.RUnlock()
		if !in.Paid {
			writeJSON(w, http.StatusPaymentRequired, declined())
			return
		}
		writeJSON(w, http.StatusOK, in.response())
		return
	}
	p.mu.RUnlock()

	in := &intent{
		ID:        "pi_" + uuid.NewString()[:8],
		Amount:    req.Amount,
		Currency:  req.Currency,
		CheckCode: req.Metadata["check_code"],
		NotifyURL: req.NotificationURL,
	}
	in.ClientSecret = in.ID + "_secret"

	switch p.cfg.Pick() {
	case OutcomeSucceed:
		in.Paid = true
		p.store(key, in)
		writeJSON(w, http.StatusOK, in.response())
		p.deliverLater(in, "payment_intent.succeeded")

	case OutcomeDecline:
		p.store(key, in)
		writeJSON(w, http.StatusPaymentRequired, declined())

	default:
		in.Paid = true
		p.store(key, in)
		p.cfg.Logger.Warnw("charged but answering late", "intent_id", in.ID, "lag", p.cfg.Lag.String())
		p.deliverLater(in, "payment_intent.succeeded")
		select {
		case <-time.After(p.cfg.Lag):
		case <-r.Context().Done():
			return
		}
		writeJSON(w, http.StatusOK, in.response())
	}
}

// Status reports what the processor knows about a charge attempt.
func (p *CardProvider) Status(idempotencyKey string) (paid, known bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	in, ok := p.intents[idempotencyKey]
	if !ok {
		return false, false
	}
	return in.Paid, true
}

// Wait blocks until every scheduled webhook has been sent.
func (p *CardProvider) Wait() {
	p.wg.Wait()
}

func (p *CardProvider) store(key string, in *intent) {
	p.mu.Lock()
	p.intents[key] = in
	p.mu.Unlock()
}

func (p *CardProvider) deliverLater(in *intent, eventType string) {
	if in.NotifyURL == "" {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		time.Sleep(p.cfg.DeliverDelay)
		n := 1
		if p.cfg.Replay {
			n = 2
		}
		for i := 0; i < n; i++ {
			p.deliver(in, eventType)
		}
	}()
}

func (p *CardProvider) deliver(in *intent, eventType string) {
	body, err := json.Marshal(map[string]any{
		"id":   "evt_" + uuid.NewString()[:8],
		"type": eventType,
		"data": map[string]any{"object": map[string]any{
			"id":       in.ID,
			"amount":   in.Amount,
			"currency": in.Currency,
			"metadata": map[string]string{"check_code": in.CheckCode},
		}},
	})
	if err != nil {
		p.cfg.Logger.Errorw("webhook encode failed", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.NotifyURL, bytes.NewReader(body))
	if err != nil {
		p.cfg.Logger.Errorw("webhook request failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(cardgw.SignatureHeader, cardgw.SignatureHeaderValue(p.cfg.WebhookSecret, time.Now(), body))

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		p.cfg.Logger.Warnw("webhook delivery failed", "intent_id", in.ID, "err", err)
		return
	}
	resp.Body.Close()
	p.cfg.Logger.Infow("webhook delivered", "intent_id", in.ID, "type", eventType, "status", resp.StatusCode)
}

func (in *intent) response() map[string]any {
	return map[string]any{
		"id":            in.ID,
		"status":        "requires_payment_method",
		"client_secret": in.ClientSecret,
		"amount":        in.Amount,
		"currency":      in.Currency,
	}
}

func declined() map[string]any {
	return map[string]any{"error": map[string]string{"code": "card_declined", "message": "Card Declined"}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
