package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// OrderArchiveStore is the read side the archiver needs from the order
// store: terminal orders whose terminal timestamp predates the cutoff.
type OrderArchiveStore interface {
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.MonitoredOrder, error)
}

// TransactionArchiveStore is the read side the archiver needs from the
// transaction store.
type TransactionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error)
}

// ArchiveImpl implements domain.Archiver: aged terminal orders and their
// liquidation transactions are serialized to JSONL and uploaded, partitioned
// by the cutoff month. Rows are never deleted from the primary store; the
// upload is a cold copy, not a migration.
type ArchiveImpl struct {
	writer domain.BlobWriter
	orders OrderArchiveStore
	txs    TransactionArchiveStore
	logger *slog.Logger
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, orders OrderArchiveStore, txs TransactionArchiveStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		orders: orders,
		txs:    txs,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOrders uploads every terminal order older than the cutoff to
// archive/orders/YYYY-MM.jsonl and returns the record count.
func (a *ArchiveImpl) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(orders)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath("orders", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	a.logger.InfoContext(ctx, "orders archived",
		slog.String("path", path),
		slog.Int("count", len(orders)),
	)
	return int64(len(orders)), nil
}

// ArchiveTransactions uploads every transaction older than the cutoff to
// archive/transactions/YYYY-MM.jsonl and returns the record count.
func (a *ArchiveImpl) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	txs, err := a.txs.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(txs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions marshal: %w", err)
	}

	path := archivePath("transactions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions upload: %w", err)
	}

	a.logger.InfoContext(ctx, "transactions archived",
		slog.String("path", path),
		slog.Int("count", len(txs)),
	)
	return int64(len(txs)), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// archivePath builds the object key, partitioned by the cutoff's year-month.
//
//	archive/orders/2026-08.jsonl
//	archive/transactions/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
