package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/giftshop-backend/models"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"github.com/yashrajoria/giftshop-backend/repository"
	"github.com/yashrajoria/giftshop-backend/repository/memory"
	"github.com/yashrajoria/giftshop-backend/services"
	"go.uber.org/zap"
)

type published struct {
	Topic     string
	EventType string
	Body      []byte
}

// recordingSNS captures every event instead of sending it.
type recordingSNS struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingSNS) Publish(_ context.Context, topic string, message []byte, attrs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{Topic: topic, EventType: attrs["event_type"], Body: message})
	return nil
}

func (r *recordingSNS) ofType(eventType string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	ctx       context.Context
	store     *repository.Store
	guard     *memory.Guard
	sns       *recordingSNS
	inventory *services.InventoryService
	discounts *services.DiscountService
	carts     *services.CartService
	orders    *services.OrderService
	payments  *services.PaymentService
	products  *services.ProductService
	checkout  *services.CheckoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, zap.NewNop())
}

func newTestEnvWithLogger(t *testing.T, logger *zap.Logger) *testEnv {
	t.Helper()
	metrics := awspkg.NopMetrics{}
	store := memory.New().Repositories()
	guard := memory.NewGuard()
	sns := &recordingSNS{}
	events := services.NewEventPublisher(sns, "orders-topic", "inventory-topic", logger)

	inventory := services.NewInventoryService(store, events, metrics, logger)
	discounts := services.NewDiscountService(store, metrics, logger)
	carts := services.NewCartService(store, logger)
	orders := services.NewOrderService(services.OrderServiceDeps{
		Store:       store,
		Inventory:   inventory,
		Discounts:   discounts,
		Locker:      guard,
		Idempotency: guard,
		Events:      events,
		Metrics:     metrics,
		Logger:      logger,
	})

	return &testEnv{
		ctx:       context.Background(),
		store:     store,
		guard:     guard,
		sns:       sns,
		inventory: inventory,
		discounts: discounts,
		carts:     carts,
		orders:    orders,
		payments:  services.NewPaymentService(store, orders, metrics, logger),
		products:  services.NewProductService(store, logger),
		checkout:  services.NewCheckoutService(carts, discounts, services.InHouseEstimator{}),
	}
}

// product creates an active product with stock units received.
func (e *testEnv) product(t *testing.T, name string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{ID: uuid.NewString(), Name: name, Price: price, Active: true, Images: []string{name + ".jpg"}}
	require.NoError(t, e.store.Products.Create(e.ctx, p))
	if stock > 0 {
		_, err := e.inventory.Move(e.ctx, services.MoveInput{ProductID: p.ID, Type: models.MoveReceive, Qty: stock, ActorID: "admin"})
		require.NoError(t, err)
	}
	return p
}

func (e *testEnv) voucher(t *testing.T, req models.CreateDiscountRequest) *models.Discount {
	t.Helper()
	d, err := e.discounts.Create(e.ctx, &req)
	require.NoError(t, err)
	return d
}

func (e *testEnv) stock(t *testing.T, productID string) models.Inventory {
	t.Helper()
	inv, err := e.inventory.Get(e.ctx, productID)
	require.NoError(t, err)
	return *inv
}

func (e *testEnv) addToCart(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := e.carts.AddItem(e.ctx, userID, productID, qty)
	require.NoError(t, err)
}

func orderRequest(method string) *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		PaymentMethod: method,
		ShippingFee:   30000,
		ShipInfo: &models.AddressInput{
			Receiver:    "Nguyễn Văn A",
			Phone:       "0901234567",
			AddressLine: "12 Lý Thường Kiệt",
			District:    "Hoàn Kiếm",
			Province:    "Hà Nội",
		},
	}
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool { return &v }
