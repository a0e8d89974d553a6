package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"payment-orchestrator/internal/service"
)

// LostOrderReporter periodically logs how many orders are stuck in their adapter's new
// status. It never changes an order.
type LostOrderReporter struct {
	lostOrders service.LostOrderService
	logger     *zap.SugaredLogger
	interval   time.Duration
}

func NewLostOrderReporter(
	lostOrders service.LostOrderService,
	logger *zap.SugaredLogger,
	interval time.Duration,
) *LostOrderReporter {
	return &LostOrderReporter{
		lostOrders: lostOrders,
		logger:     logger,
		interval:   interval,
	}
}

func (rw *LostOrderReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Infow("lost-order reporter started", "interval", rw.interval.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rw.process(ctx); err != nil {
				rw.logger.Errorw("lost-order report failed", "err", err)
			}
		}
	}
}

// process returns the per-gateway counts it logged.
func (rw *LostOrderReporter) process(ctx context.Context) (map[string]int, error) {
	lost, err := rw.lostOrders.List(ctx, "")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, o := range lost {
		counts[o.Gateway]++
	}
	if len(counts) == 0 {
		return counts, nil
	}

	for gw, n := range counts {
		rw.logger.Warnw("lost orders found", "gateway", gw, "count", n)
	}
	return counts, nil
}
