package pricing

import (
	"context"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// priceTableReader is the shared read contract of the replica and snapshot
// stores.
type priceTableReader interface {
	GetFresh(ctx context.Context, tokenIDs []string, since time.Time) (map[string]domain.TokenPrice, error)
}

// StoreTier resolves prices from a database price table in one batched
// read, accepting only rows updated within the freshness window.
type StoreTier struct {
	name      string
	source    domain.PriceSource
	store     priceTableReader
	freshness time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// NewReplicaTier creates the tier-1 resolver over the real-time replica.
// The freshness window is a few seconds: replica rows older than that mean
// the ingester has fallen behind and the next tier should decide.
func NewReplicaTier(store domain.ReplicaPriceStore, freshness, timeout time.Duration) *StoreTier {
	return &StoreTier{
		name:      "replica",
		source:    domain.PriceSourceReplica,
		store:     store,
		freshness: freshness,
		timeout:   timeout,
		now:       time.Now,
	}
}

// NewSnapshotTier creates the tier-2 resolver over the periodic snapshot
// table, with a freshness window on the order of the snapshot interval.
func NewSnapshotTier(store domain.SnapshotPriceStore, freshness, timeout time.Duration) *StoreTier {
	return &StoreTier{
		name:      "snapshot",
		source:    domain.PriceSourceSnapshot,
		store:     store,
		freshness: freshness,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Name returns the tier identifier.
func (t *StoreTier) Name() string { return t.name }

// TryResolve performs one batched freshness-filtered read.
func (t *StoreTier) TryResolve(ctx context.Context, tokenIDs []string) (map[string]domain.PriceQuote, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	since := t.now().Add(-t.freshness)
	rows, err := t.store.GetFresh(ctx, tokenIDs, since)
	if err != nil {
		return nil, err
	}

	quotes := make(map[string]domain.PriceQuote, len(rows))
	for id, row := range rows {
		quotes[id] = domain.PriceQuote{
			TokenID:   id,
			Price:     row.Price,
			Source:    t.source,
			FetchedAt: row.UpdatedAt,
		}
	}
	return quotes, nil
}

// Compile-time interface check.
var _ Resolver = (*StoreTier)(nil)
