package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"payment-orchestrator/internal/apperr"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/repo"
)

const (
	LostOrderGrace    = time.Hour
	lostOrdersPerGate = 500
)

type GatewayTable interface {
	Registrations() []gateway.Registration
	Lookup(key string) (gateway.Registration, bool)
}

type LostOrder struct {
	ID                uuid.UUID `json:"id"`
	Gateway           string    `json:"gateway"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CheckCode         string    `json:"check_code"`
	ServiceDocumentID string    `json:"service_document_id"`
	Service           string    `json:"service"`
	UserID            string    `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
}

type LostOrderService interface {
	// List returns orders still in their adapter's new status after the grace window.
	// An empty gatewayKey covers every registered gateway.
	List(ctx context.Context, gatewayKey string) ([]LostOrder, error)
}

type lostOrderService struct {
	table  GatewayTable
	orders repo.OrderRepo
	now    func() time.Time
}

func NewLostOrderService(table GatewayTable, orders repo.OrderRepo, now func() time.Time) LostOrderService {
	if now == nil {
		now = time.Now
	}
	return &lostOrderService{table: table, orders: orders, now: now}
}

func (s *lostOrderService) List(ctx context.Context, gatewayKey string) ([]LostOrder, error) {
	regs := s.table.Registrations()
	if key := strings.TrimSpace(gatewayKey); key != "" {
		reg, ok := s.table.Lookup(key)
		if !ok {
			return nil, apperr.GatewayErr(fmt.Sprintf("unknown gateway %q", key), gateway.ErrUnknownGateway)
		}
		regs = []gateway.Registration{reg}
	}

	cutoff := s.now().Add(-LostOrderGrace)
	out := make([]LostOrder, 0)
	for _, reg := range regs {
		orders, err := s.orders.FindLostOrders(ctx, reg.Key, reg.Statuses.New(), cutoff, lostOrdersPerGate)
		if err != nil {
			return nil, apperr.Wrap(fmt.Errorf("lost orders %s: %w", reg.Key, err))
		}
		for _, o := range orders {
			lo := LostOrder{
				ID:        o.ID,
				Gateway:   o.Gateway,
				Amount:    o.Amount,
				Currency:  o.Currency,
				Status:    reg.Statuses.Name(o.Status),
				CheckCode: o.CheckCode,
				Service:   o.Service,
				UserID:    o.UserID,
				CreatedAt: o.CreatedAt,
			}
			if o.HasDocument() {
				lo.ServiceDocumentID = *o.ServiceDocumentID
			}
			out = append(out, lo)
		}
	}
	return out, nil
}
