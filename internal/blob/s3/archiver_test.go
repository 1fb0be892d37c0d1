package s3blob

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	w.objects[path] = b
	return nil
}

type stubOrderStore struct {
	orders []domain.MonitoredOrder
}

func (s *stubOrderStore) ListTerminalBefore(context.Context, time.Time) ([]domain.MonitoredOrder, error) {
	return s.orders, nil
}

type stubTxStore struct {
	txs []domain.Transaction
}

func (s *stubTxStore) ListBefore(context.Context, time.Time) ([]domain.Transaction, error) {
	return s.txs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveOrdersWritesMonthlyJSONL(t *testing.T) {
	writer := &memWriter{}
	orders := &stubOrderStore{orders: []domain.MonitoredOrder{
		{ID: "o1", TokenID: "tok-1", Status: domain.OrderStatusTriggered},
		{ID: "o2", TokenID: "tok-2", Status: domain.OrderStatusCancelled},
	}}
	arch := NewArchiver(writer, orders, &stubTxStore{}, testLogger())

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	n, err := arch.ArchiveOrders(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	body, ok := writer.objects["archive/orders/2026-08.jsonl"]
	require.True(t, ok)
	lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
	require.Len(t, lines, 2)
	require.True(t, strings.Contains(string(lines[0]), `"o1"`))
}

func TestArchiveOrdersEmptyIsNoUpload(t *testing.T) {
	writer := &memWriter{}
	arch := NewArchiver(writer, &stubOrderStore{}, &stubTxStore{}, testLogger())

	n, err := arch.ArchiveOrders(context.Background(), time.Now())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, writer.objects)
}

func TestArchiveTransactions(t *testing.T) {
	writer := &memWriter{}
	txs := &stubTxStore{txs: []domain.Transaction{
		{ID: "t1", OrderID: "o1", Side: "sell", Quantity: 100, Price: 0.74},
	}}
	arch := NewArchiver(writer, &stubOrderStore{}, txs, testLogger())

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	n, err := arch.ArchiveTransactions(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Contains(t, writer.objects, "archive/transactions/2026-08.jsonl")
}
