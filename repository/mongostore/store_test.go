package mongostore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/yashrajoria/giftshop-backend/database"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
	"github.com/yashrajoria/giftshop-backend/repository/mongostore"
	"go.uber.org/zap"
)

// setupStore starts a single-node replica set; transactions need one.
func setupStore(t *testing.T) (*mongostore.Store, *repository.Store) {
	t.Helper()
	if os.Getenv("RUN_MONGO_INTEGRATION") != "true" {
		t.Skip("set RUN_MONGO_INTEGRATION=true to run the MongoDB integration tests")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, db, err := database.ConnectMongo(uri, "giftshop_test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.DisconnectMongo(client, zap.NewNop()) })

	store := mongostore.New(client, db)
	require.NoError(t, store.EnsureIndexes(ctx))
	return store, store.Repositories()
}

func seedProduct(t *testing.T, repos *repository.Store, name string) *models.Product {
	t.Helper()
	p := &models.Product{ID: uuid.NewString(), Name: name, Price: 50000, Images: []string{}, Active: true}
	require.NoError(t, repos.Products.Create(context.Background(), p))
	return p
}

func TestMongoStore(t *testing.T) {
	store, repos := setupStore(t)
	ctx := context.Background()

	t.Run("guarded delta", func(t *testing.T) {
		p := seedProduct(t, repos, "Hộp nhạc")
		_, err := repos.Inventory.Ensure(ctx, p.ID)
		require.NoError(t, err)

		inv, err := repos.Inventory.ApplyDelta(ctx, p.ID, repository.InventoryDelta{Stock: 5})
		require.NoError(t, err)
		assert.Equal(t, 5, inv.Stock)

		inv, err = repos.Inventory.ApplyDelta(ctx, p.ID, repository.InventoryDelta{Reserved: 5})
		require.NoError(t, err)
		assert.Equal(t, 0, inv.Available())

		_, err = repos.Inventory.ApplyDelta(ctx, p.ID, repository.InventoryDelta{Reserved: 1})
		assert.ErrorIs(t, err, repository.ErrConditionFailed)
		_, err = repos.Inventory.ApplyDelta(ctx, p.ID, repository.InventoryDelta{Stock: -1})
		assert.ErrorIs(t, err, repository.ErrConditionFailed)

		stale := 4
		_, err = repos.Inventory.ApplyDelta(ctx, p.ID, repository.InventoryDelta{Stock: 3, IfStock: &stale})
		assert.ErrorIs(t, err, repository.ErrConditionFailed)

		_, err = repos.Inventory.ApplyDelta(ctx, uuid.NewString(), repository.InventoryDelta{Stock: 1})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("transaction rolls back", func(t *testing.T) {
		p := seedProduct(t, repos, "Thiệp")
		boom := errors.New("boom")

		err := store.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := repos.Inventory.Ensure(ctx, p.ID); err != nil {
				return err
			}
			if _, err := repos.Inventory.ApplyDelta(ctx, p.ID, repository.InventoryDelta{Stock: 9}); err != nil {
				return err
			}
			if err := repos.Movements.Append(ctx, &models.StockMove{ID: uuid.NewString(), ProductID: p.ID, Type: models.MoveReceive, Qty: 9, DeltaStock: 9}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = repos.Inventory.Get(ctx, p.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		moves, err := repos.Movements.ListByProduct(ctx, p.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, moves)
	})

	t.Run("inventory list and summary", func(t *testing.T) {
		p := seedProduct(t, repos, "Ruy băng đỏ")
		_, err := repos.Inventory.SetThreshold(ctx, p.ID, 3)
		require.NoError(t, err)

		items, total, err := repos.Inventory.List(ctx, repository.InventoryFilter{Query: "RUY", LowOnly: true})
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		assert.Equal(t, p.ID, items[0].ProductID)
		assert.Equal(t, "Ruy băng đỏ", items[0].Name)
		assert.Equal(t, 3, items[0].LowStockThreshold)

		sum, err := repos.Inventory.Summary(ctx, repository.InventoryFilter{Query: "ruy băng"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, sum.TotalSku)
		assert.EqualValues(t, 1, sum.LowCount)
	})

	t.Run("cart round trip", func(t *testing.T) {
		cart, err := repos.Carts.GetForUpdate(ctx, "u-mongo")
		require.NoError(t, err)
		assert.Empty(t, cart.Items)

		cart.Items = append(cart.Items, models.CartItem{ProductID: "p1", Qty: 2}, models.CartItem{ProductID: "p2", Qty: 1})
		require.NoError(t, repos.Carts.Save(ctx, cart))

		again, err := repos.Carts.GetOrCreate(ctx, "u-mongo")
		require.NoError(t, err)
		require.Len(t, again.Items, 2)
		assert.Equal(t, "p1", again.Items[0].ProductID)
	})

	t.Run("voucher usage limit", func(t *testing.T) {
		d := &models.Discount{ID: uuid.NewString(), Code: "ONCE", Type: models.DiscountFixed, Value: 1000, UsageLimit: 1, Target: models.TargetOrder, Active: true}
		require.NoError(t, repos.Discounts.Create(ctx, d))
		assert.ErrorIs(t, repos.Discounts.Create(ctx, &models.Discount{ID: uuid.NewString(), Code: "ONCE"}), repository.ErrDuplicate)

		require.NoError(t, repos.Discounts.IncrementUsed(ctx, d.ID))
		assert.ErrorIs(t, repos.Discounts.IncrementUsed(ctx, d.ID), repository.ErrConditionFailed)
		assert.ErrorIs(t, repos.Discounts.IncrementUsed(ctx, "missing"), repository.ErrNotFound)
	})

	t.Run("order status and shipment", func(t *testing.T) {
		o := &models.Order{
			ID:       uuid.NewString(),
			UserID:   "u-mongo",
			Items:    []models.OrderItem{{ProductID: "p1", Name: "Hộp", Price: 1000, Qty: 1}},
			Subtotal: 1000,
			ShipInfo: models.ShipInfo{Name: "Trần Thị B", Phone: "0911222333", Address: "Huế"},
			Status:   models.OrderPending,
		}
		require.NoError(t, repos.Orders.Create(ctx, o))

		require.NoError(t, repos.Orders.UpdateStatus(ctx, o.ID, models.OrderPending, models.OrderConfirmed))
		assert.ErrorIs(t, repos.Orders.UpdateStatus(ctx, o.ID, models.OrderPending, models.OrderCancelled), repository.ErrConditionFailed)

		found, total, err := repos.Orders.FindAll(ctx, models.OrderFilter{Query: "trần thị"})
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		assert.Equal(t, models.OrderConfirmed, found[0].Status)

		sh := &models.Shipment{ID: uuid.NewString(), OrderID: o.ID, Carrier: models.CarrierInHouse, Code: "SHP1", Status: models.ShipmentStatusCreated}
		require.NoError(t, repos.Shipments.Create(ctx, sh))
		dup := &models.Shipment{ID: uuid.NewString(), OrderID: o.ID, Carrier: models.CarrierInHouse, Code: "SHP2"}
		assert.ErrorIs(t, repos.Shipments.Create(ctx, dup), repository.ErrDuplicate)
	})

	t.Run("movement scan", func(t *testing.T) {
		since := time.Now().UTC().Add(-time.Second)
		p := seedProduct(t, repos, "Nến")
		for i := 0; i < 3; i++ {
			require.NoError(t, repos.Movements.Append(ctx, &models.StockMove{ID: uuid.NewString(), ProductID: p.ID, Type: models.MoveReceive, Qty: 1, DeltaStock: 1}))
		}

		var seen int
		err := store.Movements().ScanSince(ctx, since, func(m models.StockMove) error {
			if m.ProductID == p.ID {
				seen++
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, seen)
	})

	t.Run("movement history breaks createdAt ties by id", func(t *testing.T) {
		p := seedProduct(t, repos, "Thiệp")
		at := time.Now().UTC().Truncate(time.Millisecond)
		for _, typ := range []models.MovementType{models.MoveRelease, models.MoveIssue} {
			id, err := uuid.NewV7()
			require.NoError(t, err)
			require.NoError(t, repos.Movements.Append(ctx, &models.StockMove{ID: id.String(), ProductID: p.ID, Type: typ, Qty: 1, CreatedAt: at}))
		}

		moves, err := repos.Movements.ListByProduct(ctx, p.ID, 10)
		require.NoError(t, err)
		require.Len(t, moves, 2)
		assert.Equal(t, models.MoveIssue, moves[0].Type)
		assert.Equal(t, models.MoveRelease, moves[1].Type)
	})
}
