// Package mongostore is the MongoDB backend. Multi-document transactions run
// in a session, so the server must be a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashrajoria/giftshop-backend/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	ProductsCollection       = "products"
	InventoriesCollection    = "inventories"
	StockMovesCollection     = "stockmoves"
	CartsCollection          = "carts"
	DiscountsCollection      = "discounts"
	DiscountUsagesCollection = "discountusages"
	OrdersCollection         = "orders"
	PaymentsCollection       = "payments"
	ShipmentsCollection      = "shipments"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client: client,
		db:     db,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Repositories exposes the store through the repository contracts.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tx:             s,
		Products:       &productRepo{s: s, c: s.coll(ProductsCollection)},
		Inventory:      &inventoryRepo{s: s, c: s.coll(InventoriesCollection)},
		Movements:      s.Movements(),
		Carts:          &cartRepo{s: s, c: s.coll(CartsCollection)},
		Discounts:      &discountRepo{s: s, c: s.coll(DiscountsCollection)},
		DiscountUsages: &usageRepo{s: s, c: s.coll(DiscountUsagesCollection)},
		Orders:         &orderRepo{s: s, c: s.coll(OrdersCollection)},
		Payments:       &paymentRepo{s: s, c: s.coll(PaymentsCollection)},
		Shipments:      &shipmentRepo{s: s, c: s.coll(ShipmentsCollection)},
	}
}

// Movements is also used on its own by the archive tool.
func (s *Store) Movements() *MovementRepo {
	return &MovementRepo{s: s, c: s.coll(StockMovesCollection)}
}

// WithinTx runs fn in a session transaction. The session context is what fn
// receives, so every collection call made with it joins the transaction. The
// driver retries fn on transient errors, so fn must be safe to re-run.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the indexes the repositories rely on. The unique ones
// back ErrDuplicate.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		ProductsCollection: {
			{Keys: bson.D{{Key: "ten", Value: 1}}},
		},
		InventoriesCollection: {
			{Keys: bson.D{{Key: "productId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		},
		StockMovesCollection: {
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "createdAt", Value: 1}}},
		},
		CartsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: unique},
		},
		DiscountsCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "isPublic", Value: 1}}},
		},
		DiscountUsagesCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}, {Key: "userId", Value: 1}}},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		PaymentsCollection: {
			{Keys: bson.D{{Key: "orderId", Value: 1}}},
		},
		ShipmentsCollection: {
			{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: unique},
		},
	}
	for name, idx := range indexes {
		if _, err := s.coll(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// findOne decodes the first document matching filter, mapping "no documents"
// to repository.ErrNotFound.
func findOne[T any](ctx context.Context, c *mongo.Collection, filter any, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	err := c.FindOne(ctx, filter, opts...).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// missOrConflict explains a guarded write that matched nothing: the document
// is either absent or no longer satisfies the guard.
func missOrConflict(ctx context.Context, c *mongo.Collection, filter any) error {
	n, err := c.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConditionFailed
}

func insert(ctx context.Context, c *mongo.Collection, doc any) error {
	_, err := c.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func pageOptions(page, limit int) *options.FindOptions {
	page, limit = repository.NormalizePage(page, limit, 20, 100)
	return options.Find().SetSkip(int64((page - 1) * limit)).SetLimit(int64(limit))
}
