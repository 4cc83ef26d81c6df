// Package repository defines the storage contracts shared by the mongo,
// postgres and in-memory backends.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yashrajoria/giftshop-backend/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrConditionFailed = errors.New("update condition not met")
	ErrDuplicate       = errors.New("duplicate record")
	ErrLockHeld        = errors.New("lock already held")
)

// TxManager runs fn inside one atomic unit of work. The transaction travels in
// the ctx passed to fn; repository calls made with that ctx join it. Calling
// WithinTx with a ctx that already carries a transaction joins it.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InventoryDelta is one guarded counter change. The store applies it only if
// the result keeps 0 <= reserved <= stock. IfStock additionally requires the
// current stock to equal the given value.
type InventoryDelta struct {
	Stock    int
	Reserved int
	IfStock  *int
}

// InventoryFilter narrows inventory lists and summaries.
type InventoryFilter struct {
	Query   string
	LowOnly bool
	Page    int
	Limit   int
}

type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
}

type InventoryRepository interface {
	// Ensure upserts a zeroed record and returns the current one.
	Ensure(ctx context.Context, productID string) (*models.Inventory, error)
	Get(ctx context.Context, productID string) (*models.Inventory, error)
	GetMany(ctx context.Context, productIDs []string) (map[string]models.Inventory, error)
	// ApplyDelta returns ErrConditionFailed when the guard does not hold.
	ApplyDelta(ctx context.Context, productID string, d InventoryDelta) (*models.Inventory, error)
	SetThreshold(ctx context.Context, productID string, threshold int) (*models.Inventory, error)
	// List joins products with their inventory; products without a record
	// appear with zero counters.
	List(ctx context.Context, f InventoryFilter) ([]models.InventoryView, int64, error)
	Summary(ctx context.Context, f InventoryFilter) (*models.InventorySummary, error)
}

type MovementRepository interface {
	Append(ctx context.Context, m *models.StockMove) error
	// ListByProduct returns the newest movements first.
	ListByProduct(ctx context.Context, productID string, limit int) ([]models.StockMove, error)
}

type CartRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Cart, error)
	// GetForUpdate loads the cart and claims it for the surrounding
	// transaction, so two checkouts of the same cart cannot both commit.
	GetForUpdate(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
}

type DiscountRepository interface {
	Create(ctx context.Context, d *models.Discount) error
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
	ListPublicActive(ctx context.Context) ([]models.Discount, error)
	List(ctx context.Context, page, limit int) ([]models.Discount, int64, error)
	// IncrementUsed bumps usedCount by one unless the usage limit is reached,
	// in which case it returns ErrConditionFailed.
	IncrementUsed(ctx context.Context, id string) error
	Deactivate(ctx context.Context, code string) error
}

type DiscountUsageRepository interface {
	Create(ctx context.Context, u *models.DiscountUsage) error
	CountByUser(ctx context.Context, code, userID string) (int64, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	// UpdateStatus moves the order from one status to another and returns
	// ErrConditionFailed if it is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	FindByUserID(ctx context.Context, userID string) ([]models.Order, error)
	FindAll(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) ([]models.Payment, error)
	// UpdateStatus persists p's status fields if the stored status is still from.
	UpdateStatus(ctx context.Context, p *models.Payment, from models.PaymentStatus) error
}

type ShipmentRepository interface {
	// Create returns ErrDuplicate if the order already has a shipment.
	Create(ctx context.Context, s *models.Shipment) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Shipment, error)
}

// CheckoutLocker serialises checkouts of one user across instances.
type CheckoutLocker interface {
	// Acquire returns ErrLockHeld when another checkout holds the lock.
	Acquire(ctx context.Context, userID string, ttl time.Duration) (release func(context.Context), err error)
}

// IdempotencyStore remembers the order created for a client supplied key.
type IdempotencyStore interface {
	// Lookup returns "" when the key is unknown.
	Lookup(ctx context.Context, userID, key string) (string, error)
	Remember(ctx context.Context, userID, key, orderID string, ttl time.Duration) error
}

// Store bundles one backend's repositories.
type Store struct {
	Tx             TxManager
	Products       ProductRepository
	Inventory      InventoryRepository
	Movements      MovementRepository
	Carts          CartRepository
	Discounts      DiscountRepository
	DiscountUsages DiscountUsageRepository
	Orders         OrderRepository
	Payments       PaymentRepository
	Shipments      ShipmentRepository
}

// NormalizePage clamps page to >= 1 and limit to [1, maxLimit], using def when limit is unset.
func NormalizePage(page, limit, def, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
