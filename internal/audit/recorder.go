// Package audit appends charge and webhook records to the audit tables. Writes never fail
// the caller: errors are demoted to a warning in the operational log.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/repo"
)

type Recorder struct {
	repo   repo.AuditRepo
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewRecorder(r repo.AuditRepo, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{repo: r, logger: logger, now: time.Now}
}

func (r *Recorder) Request(ctx context.Context, gateway, requestID string, payload any) {
	r.write(ctx, "log_requests", gateway, func() error {
		return r.repo.CreateRequestLog(ctx, &domain.LogRequest{
			Gateway:   gateway,
			RequestID: requestID,
			Payload:   r.jsonOf(payload),
			CreatedAt: r.now(),
		})
	})
}

func (r *Recorder) RequestError(ctx context.Context, gateway string, orderID *uuid.UUID, requestID, message string, payload any) {
	r.write(ctx, "log_request_errors", gateway, func() error {
		return r.repo.CreateRequestErrorLog(ctx, &domain.LogRequestError{
			Gateway:   gateway,
			OrderID:   idString(orderID),
			RequestID: requestID,
			Message:   message,
			Payload:   r.jsonOf(payload),
			CreatedAt: r.now(),
		})
	})
}

// Webhook records an accepted delivery; body must be JSON.
func (r *Recorder) Webhook(ctx context.Context, gateway string, orderID *uuid.UUID, body []byte) {
	r.write(ctx, "log_webhooks", gateway, func() error {
		return r.repo.CreateWebhookLog(ctx, &domain.LogWebhook{
			Gateway:   gateway,
			OrderID:   idString(orderID),
			Payload:   datatypes.JSON(body),
			CreatedAt: r.now(),
		})
	})
}

func (r *Recorder) WebhookError(ctx context.Context, gateway, message string, body []byte) {
	r.write(ctx, "log_webhook_errors", gateway, func() error {
		return r.repo.CreateWebhookErrorLog(ctx, &domain.LogWebhookError{
			Gateway:   gateway,
			Message:   message,
			Payload:   string(body),
			CreatedAt: r.now(),
		})
	})
}

func (r *Recorder) write(ctx context.Context, table, gateway string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorw("audit write panicked", "table", table, "gateway", gateway, "panic", p)
		}
	}()
	if err := fn(); err != nil {
		r.logger.Warnw("audit write failed", "table", table, "gateway", gateway, "err", err)
	}
}

func (r *Recorder) jsonOf(v any) datatypes.JSON {
	if raw, ok := v.(json.RawMessage); ok && json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		r.logger.Warnw("audit payload not serializable", "err", err)
		return datatypes.JSON(`{}`)
	}
	return datatypes.JSON(b)
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
