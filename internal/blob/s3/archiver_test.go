package s3blob

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auricex/auricex/internal/domain"
)

type fakeBlobWriter struct {
	paths    []string
	payloads []string
	err      error
}

func (f *fakeBlobWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if f.err != nil {
		return f.err
	}
	body, _ := io.ReadAll(data)
	f.paths = append(f.paths, path)
	f.payloads = append(f.payloads, string(body))
	return nil
}

func (f *fakeBlobWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(context.Background(), path, data, "")
}

// archiveTradeStore stubs only what the archiver touches.
type archiveTradeStore struct {
	domain.TradeStore
	settled []domain.Trade
	deleted int64
}

func (f *archiveTradeStore) ListSettledBefore(_ context.Context, _ time.Time) ([]domain.Trade, error) {
	return f.settled, nil
}

func (f *archiveTradeStore) DeleteSettledBefore(_ context.Context, _ time.Time) (int64, error) {
	f.deleted = int64(len(f.settled))
	return f.deleted, nil
}

type archiveAuditStore struct {
	events []string
}

func (f *archiveAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *archiveAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func settledTrade(id string) domain.Trade {
	payout := decimal.NewFromInt(180)
	closing := decimal.NewFromInt(50300)
	return domain.Trade{
		ID:           id,
		UserID:       "u1",
		Stake:        decimal.NewFromInt(100),
		Status:       domain.TradeStatusCompleted,
		Outcome:      domain.OutcomeWin,
		Payout:       &payout,
		ClosingPrice: &closing,
	}
}

func TestArchiveSettledTrades(t *testing.T) {
	writer := &fakeBlobWriter{}
	trades := &archiveTradeStore{settled: []domain.Trade{settledTrade("t1"), settledTrade("t2")}}
	audit := &archiveAuditStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := NewArchiver(writer, trades, audit, logger)

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	n, err := a.ArchiveSettledTrades(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, writer.paths, 1)
	assert.Equal(t, "archive/trades/2026-08.jsonl", writer.paths[0])

	// One JSON document per line.
	lines := strings.Split(strings.TrimSpace(writer.payloads[0]), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"t1"`)

	assert.Contains(t, audit.events, "archive.trades")
	assert.Equal(t, int64(2), trades.deleted)
}

func TestArchiveNothingToDo(t *testing.T) {
	writer := &fakeBlobWriter{}
	trades := &archiveTradeStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := NewArchiver(writer, trades, &archiveAuditStore{}, logger)

	n, err := a.ArchiveSettledTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.paths)
}

func TestArchiveUploadFailureKeepsRows(t *testing.T) {
	writer := &fakeBlobWriter{err: assert.AnError}
	trades := &archiveTradeStore{settled: []domain.Trade{settledTrade("t1")}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := NewArchiver(writer, trades, &archiveAuditStore{}, logger)

	_, err := a.ArchiveSettledTrades(context.Background(), time.Now())
	require.Error(t, err)
	assert.Zero(t, trades.deleted)
}
