package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// memOrderStore is an in-memory domain.OrderStore implementing the same
// conditional-transition contract as the Postgres store.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]domain.MonitoredOrder
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]domain.MonitoredOrder)}
}

func (s *memOrderStore) Create(_ context.Context, o domain.MonitoredOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.orders {
		if existing.Status == domain.OrderStatusActive && existing.UserID == o.UserID && existing.TokenID == o.TokenID {
			return domain.ErrAlreadyExists
		}
	}
	s.orders[o.ID] = o
	return nil
}

func (s *memOrderStore) GetByID(_ context.Context, id string) (domain.MonitoredOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.MonitoredOrder{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *memOrderStore) GetActiveByUserToken(_ context.Context, userID int64, tokenID string) (domain.MonitoredOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusActive && o.UserID == userID && o.TokenID == tokenID {
			return o, nil
		}
	}
	return domain.MonitoredOrder{}, domain.ErrNotFound
}

func (s *memOrderStore) ListActive(_ context.Context) ([]domain.MonitoredOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MonitoredOrder
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrderStore) ListTerminalBefore(_ context.Context, before time.Time) ([]domain.MonitoredOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MonitoredOrder
	for _, o := range s.orders {
		if !o.Terminal() {
			continue
		}
		switch {
		case o.TriggeredAt != nil && o.TriggeredAt.Before(before):
			out = append(out, o)
		case o.CancelledAt != nil && o.CancelledAt.Before(before):
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrderStore) UpdateEconomics(_ context.Context, id string, entry float64, takeProfit, stopLoss *float64, quantity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusActive {
		return domain.ErrOrderNotActive
	}
	o.EntryPrice = entry
	o.TakeProfitPrice = takeProfit
	o.StopLossPrice = stopLoss
	o.MonitoredQuantity = quantity
	s.orders[id] = o
	return nil
}

func (s *memOrderStore) UpdateQuantity(_ context.Context, id string, quantity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusActive {
		return domain.ErrOrderNotActive
	}
	o.MonitoredQuantity = quantity
	s.orders[id] = o
	return nil
}

func (s *memOrderStore) TouchPriceCheck(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.LastPriceCheckAt = &at
	s.orders[id] = o
	return nil
}

func (s *memOrderStore) MarkTriggered(_ context.Context, id string, trigger domain.TriggerType, executionPrice float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusActive {
		return domain.ErrOrderNotActive
	}
	now := time.Now().UTC()
	o.Status = domain.OrderStatusTriggered
	o.TriggeredType = &trigger
	o.ExecutionPrice = &executionPrice
	o.TriggeredAt = &now
	s.orders[id] = o
	return nil
}

func (s *memOrderStore) MarkCancelled(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != domain.OrderStatusActive {
		return domain.ErrOrderNotActive
	}
	now := time.Now().UTC()
	o.Status = domain.OrderStatusCancelled
	o.CancelledReason = &reason
	o.CancelledAt = &now
	s.orders[id] = o
	return nil
}

func (s *memOrderStore) get(id string) domain.MonitoredOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

var _ domain.OrderStore = (*memOrderStore)(nil)

// deadlineOrderStore refuses writes once the context is done, the way the
// Postgres store would.
type deadlineOrderStore struct {
	*memOrderStore
}

func (s *deadlineOrderStore) MarkTriggered(ctx context.Context, id string, trigger domain.TriggerType, executionPrice float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memOrderStore.MarkTriggered(ctx, id, trigger, executionPrice)
}

func (s *deadlineOrderStore) MarkCancelled(ctx context.Context, id string, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memOrderStore.MarkCancelled(ctx, id, reason)
}

// memTxStore collects inserted transactions.
type memTxStore struct {
	mu  sync.Mutex
	txs []domain.Transaction
}

func (s *memTxStore) Insert(_ context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return nil
}

func (s *memTxStore) ListByOrder(_ context.Context, orderID string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range s.txs {
		if tx.OrderID == orderID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *memTxStore) ListBefore(_ context.Context, before time.Time) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range s.txs {
		if tx.CreatedAt.Before(before) {
			out = append(out, tx)
		}
	}
	return out, nil
}

var _ domain.TransactionStore = (*memTxStore)(nil)

// deadlineTxStore refuses inserts once the context is done.
type deadlineTxStore struct {
	*memTxStore
}

func (s *deadlineTxStore) Insert(ctx context.Context, tx domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memTxStore.Insert(ctx, tx)
}

// fakePositions serves balances per wallet/token key.
type fakePositions struct {
	mu       sync.Mutex
	balances map[string]float64
	err      error
}

func newFakePositions() *fakePositions {
	return &fakePositions{balances: make(map[string]float64)}
}

func (f *fakePositions) set(wallet, tokenID string, balance float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[wallet+"|"+tokenID] = balance
}

func (f *fakePositions) GetBalance(_ context.Context, wallet, tokenID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.balances[wallet+"|"+tokenID], nil
}

// fakeMarketStatus serves a status per market id, defaulting to active.
type fakeMarketStatus struct {
	mu       sync.Mutex
	statuses map[string]domain.MarketStatus
	err      error
}

func newFakeMarketStatus() *fakeMarketStatus {
	return &fakeMarketStatus{statuses: make(map[string]domain.MarketStatus)}
}

func (f *fakeMarketStatus) set(marketID string, status domain.MarketStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[marketID] = status
}

func (f *fakeMarketStatus) GetStatus(_ context.Context, marketID string) (domain.MarketStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if s, ok := f.statuses[marketID]; ok {
		return s, nil
	}
	return domain.MarketStatusActive, nil
}

// fakeSeller records sells and returns a configured fill. onSell, when set,
// runs after the call is recorded and before the fill is returned.
type fakeSeller struct {
	mu     sync.Mutex
	fill   domain.Fill
	err    error
	onSell func()
	calls  []sellCall
}

type sellCall struct {
	wallet   string
	tokenID  string
	quantity float64
}

func (f *fakeSeller) Sell(_ context.Context, wallet, tokenID string, quantity float64) (domain.Fill, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sellCall{wallet: wallet, tokenID: tokenID, quantity: quantity})
	fill, err := f.fill, f.err
	hook := f.onSell
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return domain.Fill{}, err
	}
	return fill, nil
}

func (f *fakeSeller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// memNotifier records sent messages per user.
type memNotifier struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func newMemNotifier() *memNotifier {
	return &memNotifier{messages: make(map[int64][]string)}
}

func (n *memNotifier) Send(_ context.Context, userID int64, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[userID] = append(n.messages[userID], message)
	return nil
}

func (n *memNotifier) count(userID int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages[userID])
}

func (n *memNotifier) last(userID int64) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := n.messages[userID]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// memCache is a minimal in-memory domain.Cache without TTL expiry.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (c *memCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *memCache) BatchGet(_ context.Context, keys []string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := c.data[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (c *memCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *memCache) DeletePattern(context.Context, string) {}

func (c *memCache) Stats() domain.CacheStats { return domain.CacheStats{} }

var _ domain.Cache = (*memCache)(nil)

// memMarketStore serves markets for the token-mapper fallback.
type memMarketStore struct {
	markets []domain.Market
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	for _, m := range s.markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *memMarketStore) GetByTokenIDs(_ context.Context, tokenIDs []string) ([]domain.Market, error) {
	want := make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		want[id] = struct{}{}
	}
	var out []domain.Market
	for _, m := range s.markets {
		for _, tok := range m.TokenIDs {
			if _, ok := want[tok]; ok {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

var _ domain.MarketStore = (*memMarketStore)(nil)

// staticResolver returns a fixed price map regardless of input.
type staticResolver struct {
	prices map[string]domain.PriceQuote
}

func (r *staticResolver) ResolvePrices(_ context.Context, _ []string) map[string]domain.PriceQuote {
	return r.prices
}

func fptr(f float64) *float64 { return &f }

func quoteFor(tokenID string, price float64) domain.PriceQuote {
	return domain.PriceQuote{
		TokenID:   tokenID,
		Price:     price,
		Source:    domain.PriceSourceReplica,
		FetchedAt: time.Now().UTC(),
	}
}

var idSeq int

func nextTestID() string {
	idSeq++
	return fmt.Sprintf("order-%d", idSeq)
}
