package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/repo"
)

// MemoryOrders is an in-memory repo.OrderRepo with the same uniqueness and locking
// guarantees as the Postgres one.
type MemoryOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]domain.PaymentOrder
	codes  map[string]uuid.UUID

	// CreateErr, when set, is returned by CreateOrder instead of storing.
	CreateErr error
}

var _ repo.OrderRepo = (*MemoryOrders)(nil)

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{
		orders: make(map[uuid.UUID]domain.PaymentOrder),
		codes:  make(map[string]uuid.UUID),
	}
}

func (m *MemoryOrders) CreateOrder(_ context.Context, order *domain.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, dup := m.codes[order.CheckCode]; dup {
		return repo.ErrDuplicateCheckCode
	}
	m.orders[order.ID] = *order
	m.codes[order.CheckCode] = order.ID
	return nil
}

func (m *MemoryOrders) FindById(_ context.Context, id uuid.UUID) (*domain.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &o, nil
}

func (m *MemoryOrders) AttachDocument(_ context.Context, id uuid.UUID, documentID string, status int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	if o.HasDocument() {
		return repo.ErrDocumentAlreadySet
	}
	o.ServiceDocumentID = &documentID
	o.Status = status
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return nil
}

func (m *MemoryOrders) FindForWebhook(_ context.Context, gateway, documentID, checkCode string) (*domain.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.codes[checkCode]
	if !ok {
		return nil, repo.ErrNotFound
	}
	o := m.orders[id]
	if o.Gateway != gateway || !o.HasDocument() || *o.ServiceDocumentID != documentID {
		return nil, repo.ErrNotFound
	}
	return &o, nil
}

func (m *MemoryOrders) TransitionStatus(
	_ context.Context,
	id uuid.UUID,
	decide func(current int) (int, bool),
) (*domain.PaymentOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false, repo.ErrNotFound
	}
	next, apply := decide(o.Status)
	if !apply || next == o.Status {
		return &o, false, nil
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return &o, true, nil
}

func (m *MemoryOrders) ClaimCompletion(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	if o.CompletionPublishedAt != nil {
		return false, nil
	}
	now := time.Now()
	o.CompletionPublishedAt = &now
	m.orders[id] = o
	return true, nil
}

func (m *MemoryOrders) ReleaseCompletion(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.CompletionPublishedAt = nil
	m.orders[id] = o
	return nil
}

func (m *MemoryOrders) FindLostOrders(
	_ context.Context,
	gateway string,
	status int,
	createdBefore time.Time,
	limit int,
) ([]domain.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PaymentOrder
	for _, o := range m.orders {
		if o.Gateway == gateway && o.Status == status && o.CreatedAt.Before(createdBefore) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores an order as-is, bypassing uniqueness checks; for fixtures.
func (m *MemoryOrders) Put(o domain.PaymentOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	m.codes[o.CheckCode] = o.ID
}

func (m *MemoryOrders) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}
