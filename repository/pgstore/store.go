// Package pgstore is the PostgreSQL backend built on GORM. Guards that the
// document store expresses as $expr filters are plain WHERE clauses here.
package pgstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yashrajoria/giftshop-backend/repository"
	"gorm.io/gorm"
)

type txKey struct{}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
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

// conn returns the transaction carried by ctx, or the pool.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// mapErr turns GORM sentinels into repository ones. Duplicate keys are only
// recognised when the connection was opened with TranslateError.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repository.ErrDuplicate
	}
	return err
}

// missOrConflict explains a guarded write that touched no row.
func missOrConflict(db *gorm.DB, model any, query string, args ...any) error {
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConditionFailed
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contains builds an ILIKE pattern matching q anywhere.
func contains(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

func offset(page, limit int) (int, int) {
	page, limit = repository.NormalizePage(page, limit, 20, 100)
	return (page - 1) * limit, limit
}
