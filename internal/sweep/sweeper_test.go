package sweep

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSettler struct {
	calls atomic.Int64
	limit int
}

func (c *countingSettler) SettleExpired(_ context.Context, limit int) (int, error) {
	c.calls.Add(1)
	c.limit = limit
	return 1, nil
}

func TestSweeperRunsImmediatelyAndOnTicks(t *testing.T) {
	settler := &countingSettler{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSweeper(settler, nil, Config{Interval: 10 * time.Millisecond, BatchSize: 25}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.NoError(t, err)

	// One immediate sweep plus at least one tick.
	assert.GreaterOrEqual(t, settler.calls.Load(), int64(2))
	assert.Equal(t, 25, settler.limit)
}

func TestSweeperStopsOnCancel(t *testing.T) {
	settler := &countingSettler{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSweeper(settler, nil, Config{Interval: time.Hour, BatchSize: 10}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
