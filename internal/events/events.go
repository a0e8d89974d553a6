// Package events delivers PaymentCompleted notifications to the business service that
// requested the charge. Each service has its own channel.
package events

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"payment-orchestrator/internal/domain"
)

const channelPrefix = "payment_completed."

// Postgres truncates identifiers longer than this.
const maxChannelLen = 63

const channelDigestLen = 16

type Publisher interface {
	Publish(ctx context.Context, ev domain.PaymentCompleted) error
}

// Channel is the notification channel for a service.
func Channel(service string) string {
	s := strings.ToLower(strings.TrimSpace(service))
	if s == "" {
		s = "default"
	}
	ch := channelPrefix + s
	if len(ch) <= maxChannelLen {
		return ch
	}
	// Overlong names keep a prefix and end in a digest of the full name, so two services
	// sharing the first 63 bytes still get separate channels.
	sum := sha256.Sum256([]byte(s))
	digest := hex.EncodeToString(sum[:])[:channelDigestLen]
	return ch[:maxChannelLen-channelDigestLen-1] + "_" + digest
}

type pgPublisher struct {
	db *sql.DB
}

// NewPGPublisher publishes with pg_notify on the shared database.
func NewPGPublisher(db *sql.DB) Publisher {
	return &pgPublisher{db: db}
}

func (p *pgPublisher) Publish(ctx context.Context, ev domain.PaymentCompleted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel(ev.Service), string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Memory keeps published events in process; Err makes every Publish fail.
type Memory struct {
	mu     sync.Mutex
	events []domain.PaymentCompleted
	Err    error
}

func (m *Memory) Publish(_ context.Context, ev domain.PaymentCompleted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) Events() []domain.PaymentCompleted {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PaymentCompleted(nil), m.events...)
}

func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}
