package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"payment-orchestrator/internal/service"
)

type fakeLost struct {
	orders []service.LostOrder
	err    error
	calls  chan struct{}
}

func (f *fakeLost) List(context.Context, string) ([]service.LostOrder, error) {
	if f.calls != nil {
		select {
		case f.calls <- struct{}{}:
		default:
		}
	}
	return f.orders, f.err
}

func TestProcessCountsPerGateway(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	src := &fakeLost{orders: []service.LostOrder{
		{ID: uuid.New(), Gateway: "cardgw"},
		{ID: uuid.New(), Gateway: "cardgw"},
		{ID: uuid.New(), Gateway: "ordergw"},
	}}
	rw := NewLostOrderReporter(src, zap.New(core).Sugar(), time.Minute)

	counts, err := rw.process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cardgw": 2, "ordergw": 1}, counts)
	assert.Equal(t, 2, logs.FilterMessage("lost orders found").Len())
}

func TestProcessError(t *testing.T) {
	rw := NewLostOrderReporter(&fakeLost{err: errors.New("db down")}, zap.NewNop().Sugar(), time.Minute)
	_, err := rw.process(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeLost{calls: make(chan struct{}, 1)}
	rw := NewLostOrderReporter(src, zap.NewNop().Sugar(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rw.Run(ctx)
		close(done)
	}()

	select {
	case <-src.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("reporter never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop")
	}
}
