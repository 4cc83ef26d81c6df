// Package memory is an in-process backend for tests and single-process
// development. Transactions are serialised by a store-wide lock and rolled
// back from an undo log. Calls made outside a transaction wait for the
// running one to finish, so they never observe writes that may still be undone.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
)

type txKey struct{}

type txState struct {
	undo []func()
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products  map[string]models.Product
	inventory map[string]models.Inventory
	moves     []models.StockMove
	carts     map[string]models.Cart
	discounts map[string]models.Discount
	usages    []models.DiscountUsage
	orders    map[string]models.Order
	payments  map[string]models.Payment
	shipments map[string]models.Shipment

	now func() time.Time
}

func New() *Store {
	return &Store{
		products:  make(map[string]models.Product),
		inventory: make(map[string]models.Inventory),
		carts:     make(map[string]models.Cart),
		discounts: make(map[string]models.Discount),
		orders:    make(map[string]models.Order),
		payments:  make(map[string]models.Payment),
		shipments: make(map[string]models.Shipment),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes the store through the repository contracts.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tx:             s,
		Products:       &productRepo{s},
		Inventory:      &inventoryRepo{s},
		Movements:      &movementRepo{s},
		Carts:          &cartRepo{s},
		Discounts:      &discountRepo{s},
		DiscountUsages: &usageRepo{s},
		Orders:         &orderRepo{s},
		Payments:       &paymentRepo{s},
		Shipments:      &shipmentRepo{s},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txState{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// lock guards one repository call. Outside a transaction the call also takes
// txMu and behaves like a single-statement transaction.
func (s *Store) lock(ctx context.Context) func() {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// record registers an undo step for the transaction in ctx, if any. Callers
// hold s.mu.
func record(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok {
		tx.undo = append(tx.undo, undo)
	}
}

// restore captures the current value of m[k] and returns a func putting it back.
func restore[K comparable, V any](m map[K]V, k K) func() {
	prev, existed := m[k]
	return func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	}
}

func removeByID[T any](items []T, id string, idOf func(T) string) []T {
	for i := range items {
		if idOf(items[i]) == id {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}

func paginate[T any](items []T, page, limit int) []T {
	page, limit = repository.NormalizePage(page, limit, 20, 100)
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}

// Guard is an in-process checkout lock and idempotency store, used when
// Redis is not configured.
type Guard struct {
	mu    sync.Mutex
	locks map[string]time.Time
	keys  map[string]string
}

func NewGuard() *Guard {
	return &Guard{locks: make(map[string]time.Time), keys: make(map[string]string)}
}

func (g *Guard) Acquire(ctx context.Context, userID string, ttl time.Duration) (func(context.Context), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.locks[userID]; ok && time.Now().Before(exp) {
		return nil, repository.ErrLockHeld
	}
	g.locks[userID] = time.Now().Add(ttl)
	return func(context.Context) {
		g.mu.Lock()
		delete(g.locks, userID)
		g.mu.Unlock()
	}, nil
}

func (g *Guard) Lookup(ctx context.Context, userID, key string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keys[userID+":"+key], nil
}

func (g *Guard) Remember(ctx context.Context, userID, key, orderID string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[userID+":"+key] = orderID
	return nil
}
