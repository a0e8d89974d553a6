package gateway

import (
	"context"
	"errors"
	"fmt"

	"payment-orchestrator/internal/repo"
)

// Correlation is what an adapter extracted from a verified webhook.
type Correlation struct {
	DocumentID     string
	CheckCode      string
	ProviderStatus string
}

// ApplyWebhook maps the provider status, finds the order by (gateway, document id,
// check code) and moves it forward if the table allows it. A replayed or stale event
// is a successful no-op.
func ApplyWebhook(ctx context.Context, store OrderStore, key string, table *StatusTable, c Correlation) (*WebhookResult, error) {
	if c.DocumentID == "" || c.CheckCode == "" {
		return nil, fmt.Errorf("%w: missing document id or check code", ErrOrderNotFound)
	}

	mapped, err := table.Map(c.ProviderStatus)
	if err != nil {
		return nil, err
	}

	order, err := store.FindForWebhook(ctx, key, c.DocumentID, c.CheckCode)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: document %s", ErrOrderNotFound, c.DocumentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}

	updated, changed, err := store.TransitionStatus(ctx, order.ID, func(current int) (int, bool) {
		return mapped, table.CanTransition(current, mapped)
	})
	if err != nil {
		return nil, fmt.Errorf("transition order %s: %w", order.ID, err)
	}

	msg := fmt.Sprintf("order moved to %s", table.Name(updated.Status))
	if !changed {
		msg = fmt.Sprintf("order stays %s (event %s)", table.Name(updated.Status), table.Name(mapped))
	}
	return &WebhookResult{
		Type:             ResultSuccess,
		Message:          msg,
		PaymentOrderID:   updated.ID,
		Amount:           updated.Amount,
		Currency:         updated.Currency,
		Service:          updated.Service,
		UserID:           updated.UserID,
		Status:           updated.Status,
		PaymentCompleted: mapped == table.Completed() && updated.Status == table.Completed(),
		Changed:          changed,
	}, nil
}
