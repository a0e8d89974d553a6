package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"payment-orchestrator/internal/apperr"
	"payment-orchestrator/internal/domain"
	"payment-orchestrator/internal/events"
	"payment-orchestrator/internal/gateway"
	applog "payment-orchestrator/internal/log"
	"payment-orchestrator/internal/repo"
)

type WebhookService interface {
	Handle(ctx context.Context, gatewayKey string, body []byte, headers http.Header) (*gateway.WebhookResult, error)
}

type webhookService struct {
	resolver  AdapterResolver
	orders    repo.OrderRepo
	audit     Auditor
	publisher events.Publisher
	logger    *zap.SugaredLogger
}

func NewWebhookService(
	resolver AdapterResolver,
	orders repo.OrderRepo,
	audit Auditor,
	publisher events.Publisher,
	logger *zap.SugaredLogger,
) WebhookService {
	return &webhookService{
		resolver:  resolver,
		orders:    orders,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle returns a Gateway-kind error for anything the provider should see as 400 and an
// Internal one when it should redeliver later.
func (s *webhookService) Handle(ctx context.Context, gatewayKey string, body []byte, headers http.Header) (*gateway.WebhookResult, error) {
	logger := s.logger.With("gateway", gatewayKey)

	if !isJSONDocument(body) {
		s.audit.WebhookError(ctx, gatewayKey, "payload is not a JSON object or array", body)
		logger.Warnw("webhook rejected: payload is not a JSON object or array", "content_type", headers.Get("Content-Type"))
		return nil, apperr.GatewayErr("Payload must be JSON.", nil)
	}

	adapter, err := s.resolver.Resolve(ctx, gatewayKey)
	if err != nil {
		s.audit.WebhookError(ctx, gatewayKey, err.Error(), body)
		logger.Warnw("webhook rejected: adapter unavailable", "err", err)
		if errors.Is(err, gateway.ErrConfigUnavailable) {
			return nil, apperr.Wrap(err)
		}
		return nil, apperr.GatewayErr(err.Error(), err)
	}

	res, err := adapter.HandleWebhook(ctx, body, headers)
	if err != nil {
		s.audit.WebhookError(ctx, gatewayKey, err.Error(), body)
		if isWebhookRejection(err) {
			logger.Warnw("webhook rejected", "err", err)
			return nil, apperr.GatewayErr(err.Error(), err)
		}
		logger.Errorw("webhook processing failed", "err", err)
		return nil, apperr.Wrap(err)
	}
	if res.Type == gateway.ResultDanger {
		s.audit.WebhookError(ctx, gatewayKey, res.Message, body)
		logger.Warnw("webhook rejected by adapter", "message", res.Message)
		return nil, apperr.GatewayErr(res.Message, nil)
	}

	s.audit.Webhook(ctx, gatewayKey, &res.PaymentOrderID, body)
	logger = logger.With(applog.OrderID(res.PaymentOrderID))
	logger.Infow("webhook applied", "status", res.Status, "changed", res.Changed, "message", res.Message)

	if res.PaymentCompleted {
		if err := s.publishCompletion(ctx, gatewayKey, res, logger); err != nil {
			return nil, apperr.Wrap(err)
		}
	}
	return res, nil
}

func (s *webhookService) publishCompletion(ctx context.Context, gatewayKey string, res *gateway.WebhookResult, logger *zap.SugaredLogger) error {
	claimed, err := s.orders.ClaimCompletion(ctx, res.PaymentOrderID)
	if err != nil {
		return fmt.Errorf("claim completion: %w", err)
	}
	if !claimed {
		logger.Infow("completion already published")
		return nil
	}

	ev := domain.PaymentCompleted{
		Gateway:        gatewayKey,
		PaymentOrderID: res.PaymentOrderID,
		Amount:         res.Amount,
		Currency:       res.Currency,
		Service:        res.Service,
		UserID:         res.UserID,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		if rerr := s.orders.ReleaseCompletion(context.WithoutCancel(ctx), res.PaymentOrderID); rerr != nil {
			logger.Errorw("release completion claim failed", "err", rerr)
		}
		return fmt.Errorf("publish completion: %w", err)
	}
	logger.Infow("completion published", "channel", events.Channel(res.Service))
	return nil
}

func isWebhookRejection(err error) bool {
	for _, target := range []error{
		gateway.ErrSignature,
		gateway.ErrOrderNotFound,
		gateway.ErrUnmappedStatus,
		gateway.ErrMalformedPayload,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// isJSONDocument accepts a JSON object or array. Bare scalars such as 123 or "ping" are
// valid JSON but never a provider event.
func isJSONDocument(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(trimmed)
}
