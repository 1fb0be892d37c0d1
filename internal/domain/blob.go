package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver copies aged terminal records from the database to cold storage.
// Archival is additive: rows are never deleted from the primary store.
type Archiver interface {
	ArchiveOrders(ctx context.Context, before time.Time) (int64, error)
	ArchiveTransactions(ctx context.Context, before time.Time) (int64, error)
}
