package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"payment-orchestrator/internal/domain"
)

type Handler func(ctx context.Context, ev domain.PaymentCompleted) error

// Listen subscribes to a service's channel on a dedicated connection and calls h for
// every event until ctx is done.
func Listen(ctx context.Context, dsn, service string, logger *zap.SugaredLogger, h Handler) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx.Connect: %w", err)
	}
	defer conn.Close(context.Background())

	channel := Channel(service)
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	logger.Infow("listening for completion events", "channel", channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("WaitForNotification: %w", err)
		}

		var ev domain.PaymentCompleted
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			logger.Warnw("undecodable completion event", "channel", n.Channel, "err", err)
			continue
		}
		if err := h(ctx, ev); err != nil {
			logger.Errorw("completion handler failed", "order_id", ev.PaymentOrderID, "err", err)
		}
	}
}
