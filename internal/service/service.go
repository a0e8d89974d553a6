// Package service holds the charge orchestration, webhook reconciliation and lost-order
// reporting flows. HTTP concerns stay in the server package.
package service

import (
	"context"

	"github.com/google/uuid"

	"payment-orchestrator/internal/gateway"
)

type AdapterResolver interface {
	Resolve(ctx context.Context, key string) (gateway.Adapter, error)
}

// Auditor writes audit records without ever failing the caller.
type Auditor interface {
	Request(ctx context.Context, gateway, requestID string, payload any)
	RequestError(ctx context.Context, gateway string, orderID *uuid.UUID, requestID, message string, payload any)
	Webhook(ctx context.Context, gateway string, orderID *uuid.UUID, body []byte)
	WebhookError(ctx context.Context, gateway, message string, body []byte)
}
