package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/controllers"
	"github.com/yashrajoria/giftshop-backend/models"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"github.com/yashrajoria/giftshop-backend/repository/memory"
	"github.com/yashrajoria/giftshop-backend/routes"
	"github.com/yashrajoria/giftshop-backend/services"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Helpers ---

type app struct {
	router *gin.Engine
}

func setupApp(t *testing.T) *app {
	t.Helper()
	logger := zap.NewNop()
	metrics := awspkg.NopMetrics{}
	store := memory.New().Repositories()
	guard := memory.NewGuard()

	events := services.NewEventPublisher(nil, "", "", logger)
	inventory := services.NewInventoryService(store, events, metrics, logger)
	discounts := services.NewDiscountService(store, metrics, logger)
	carts := services.NewCartService(store, logger)
	orders := services.NewOrderService(services.OrderServiceDeps{
		Store: store, Inventory: inventory, Discounts: discounts,
		Locker: guard, Idempotency: guard, Events: events, Metrics: metrics, Logger: logger,
	})

	r := gin.New()
	r.Use(apperrors.ErrorMiddleware(logger))
	routes.RegisterRoutes(r, routes.Controllers{
		Products:  controllers.NewProductController(services.NewProductService(store, logger)),
		Carts:     controllers.NewCartController(carts),
		Shipping:  controllers.NewShippingController(services.InHouseEstimator{}, services.NewCheckoutService(carts, discounts, services.InHouseEstimator{})),
		Discounts: controllers.NewDiscountController(discounts),
		Orders:    controllers.NewOrderController(orders),
		Payments:  controllers.NewPaymentController(services.NewPaymentService(store, orders, metrics, logger)),
		Inventory: controllers.NewInventoryController(inventory),
	}, nil)
	return &app{router: r}
}

func (a *app) do(t *testing.T, method, path, user, role string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *app) admin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, method, path, "admin-1", "admin", body)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) apperrors.Kind {
	t.Helper()
	return decodeBody[apperrors.Error](t, w).Kind
}

// seedProduct creates a product through the admin API and receives stock for it.
func (a *app) seedProduct(t *testing.T, name string, price int64, stock int) string {
	t.Helper()
	w := a.admin(t, http.MethodPost, "/api/admin/products", gin.H{"ten": name, "gia": price, "hinhAnh": []string{"a.jpg"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeBody[models.Product](t, w).ID
	if stock > 0 {
		w = a.admin(t, http.MethodPost, "/api/admin/inventory/"+id+"/receive", gin.H{"qty": stock, "note": "initial"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	return id
}

var shipInfo = gin.H{
	"receiver":     "Lê Văn C",
	"phone":        "0987654321",
	"address_line": "1 Trần Hưng Đạo",
	"province":     "Hồ Chí Minh",
}

// --- Tests ---

func TestAuth_Required(t *testing.T) {
	a := setupApp(t)

	w := a.do(t, http.MethodGet, "/api/cart", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodGet, "/api/admin/orders", "u1", "customer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProducts(t *testing.T) {
	a := setupApp(t)
	id := a.seedProduct(t, "Hộp quà", 120000, 0)

	w := a.do(t, http.MethodGet, "/api/products/"+id, "u1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hộp quà", decodeBody[models.Product](t, w).Name)

	w = a.admin(t, http.MethodPut, "/api/admin/products/"+id, gin.H{"ten": "Hộp quà", "gia": 120000, "active": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/products/"+id, "u1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.KindNotFound, errorKind(t, w))

	w = a.admin(t, http.MethodPost, "/api/admin/products", gin.H{"gia": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_Endpoints(t *testing.T) {
	a := setupApp(t)
	id := a.seedProduct(t, "Thiệp", 15000, 3)

	w := a.do(t, http.MethodPost, "/api/cart/items", "u1", "", gin.H{"productId": id})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPut, "/api/cart/items/"+id, "u1", "", gin.H{"qty": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodPut, "/api/cart/items/"+id, "u1", "", gin.H{"qty": 4})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.KindInsufficientAvailable, errorKind(t, w))

	w = a.do(t, http.MethodPut, "/api/cart/items/"+id, "u1", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/api/cart", "u1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeBody[models.CartView](t, w)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Qty)
	assert.Equal(t, int64(45000), view.Subtotal)

	w = a.do(t, http.MethodDelete, "/api/cart/items/"+id, "u1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodDelete, "/api/cart", "u1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShippingEstimate(t *testing.T) {
	a := setupApp(t)
	w := a.do(t, http.MethodPost, "/api/shipping/estimate", "u1", "", gin.H{
		"address": gin.H{"province": "TP.HCM"},
		"items":   []gin.H{{"qty": 1, "weightKg": 1.2}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	q := decodeBody[models.ShippingQuote](t, w)
	assert.Equal(t, int64(25000), q.Fee)
	assert.Equal(t, models.CarrierInHouse, q.Carrier)
}

func TestCheckoutFlow_COD(t *testing.T) {
	a := setupApp(t)
	id := a.seedProduct(t, "Gấu bông", 200000, 5)

	w := a.admin(t, http.MethodPost, "/api/admin/discounts", gin.H{
		"code": "giam10", "type": "percent", "value": 10, "maxDiscount": 15000, "isPublic": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/cart/items", "u1", "", gin.H{"productId": id, "qty": 2})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodPost, "/api/checkout/preview", "u1", "", gin.H{"address": gin.H{"province": "Hà Nội"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decodeBody[models.CheckoutPreview](t, w)
	assert.Equal(t, int64(400000), preview.Subtotal)
	assert.Equal(t, int64(15000), preview.OrderDiscount)
	assert.Equal(t, int64(405000), preview.Total)

	w = a.do(t, http.MethodPost, "/api/orders", "u1", "", gin.H{
		"discountCode": "GIAM10", "shippingFee": preview.Shipping.Fee, "thongTinNhanHang": shipInfo,
	}, controllers.IdempotencyHeader, "abc")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[map[string]any](t, w)
	orderID := created["_id"].(string)
	assert.Equal(t, float64(405000), created["payable"])
	assert.Equal(t, "pending", created["status"])

	// the same key returns the same order
	w = a.do(t, http.MethodPost, "/api/orders", "u1", "", gin.H{"thongTinNhanHang": shipInfo}, controllers.IdempotencyHeader, "abc")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, orderID, decodeBody[map[string]any](t, w)["_id"])

	w = a.do(t, http.MethodGet, "/api/orders/my", "u1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, w), 1)

	w = a.do(t, http.MethodGet, "/api/orders/"+orderID, "u2", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.admin(t, http.MethodPost, "/api/admin/orders/"+orderID+"/fulfill", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "shipping", decodeBody[map[string]any](t, w)["status"])

	w = a.admin(t, http.MethodPost, "/api/admin/orders/"+orderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.KindInvalidTransition, errorKind(t, w))

	w = a.admin(t, http.MethodPost, "/api/admin/orders/"+orderID+"/deliver", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.admin(t, http.MethodGet, "/api/admin/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decodeBody[models.OrderDetail](t, w)
	assert.Equal(t, models.OrderDelivered, detail.Status)
	require.NotNil(t, detail.Shipment)
	assert.Equal(t, "Lê Văn C", detail.ShippingTo.Name)

	w = a.admin(t, http.MethodGet, "/api/admin/inventory/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	moves := decodeBody[[]models.StockMove](t, w)
	require.Len(t, moves, 4)
	assert.Equal(t, models.MoveIssue, moves[0].Type)

	w = a.admin(t, http.MethodGet, "/api/admin/inventory/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decodeBody[models.InventorySummary](t, w)
	assert.Equal(t, int64(3), sum.TotalStock)
	assert.Equal(t, int64(0), sum.TotalReserved)
}

func TestCheckoutFlow_OnlinePayment(t *testing.T) {
	a := setupApp(t)
	id := a.seedProduct(t, "Nến thơm", 90000, 5)

	w := a.do(t, http.MethodPost, "/api/cart/items", "u1", "", gin.H{"productId": id})
	require.Equal(t, http.StatusCreated, w.Code)
	w = a.do(t, http.MethodPost, "/api/orders", "u1", "", gin.H{
		"paymentMethod": "MOMO", "shippingFee": 20000, "address": gin.H{"ten": "A", "sdt": "1", "diaChi": "X"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := decodeBody[map[string]any](t, w)["_id"].(string)

	w = a.admin(t, http.MethodGet, "/api/admin/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decodeBody[models.OrderDetail](t, w)
	require.Len(t, detail.Payments, 1)
	assert.Nil(t, detail.Shipment)
	paymentID := detail.Payments[0].ID

	w = a.do(t, http.MethodPost, "/api/payments/"+paymentID+"/capture", "u2", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/api/payments/"+paymentID+"/capture", "u1", "", gin.H{"transId": "MOMO-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[struct {
		OK      bool           `json:"ok"`
		Payment models.Payment `json:"payment"`
	}](t, w)
	assert.True(t, resp.OK)
	assert.Equal(t, models.PaymentCaptured, resp.Payment.Status)
	assert.Equal(t, "MOMO-1", resp.Payment.TransID)

	w = a.do(t, http.MethodGet, "/api/orders/"+orderID, "u1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed", decodeBody[map[string]any](t, w)["status"])
}

func TestCreateOrder_Errors(t *testing.T) {
	a := setupApp(t)

	w := a.do(t, http.MethodPost, "/api/orders", "u1", "", gin.H{"thongTinNhanHang": shipInfo})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.KindEmptyCart, errorKind(t, w))

	id := a.seedProduct(t, "Gấu bông", 200000, 1)
	w = a.do(t, http.MethodPost, "/api/cart/items", "u1", "", gin.H{"productId": id})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodPost, "/api/orders", "u1", "", gin.H{"discountCode": "NOPE", "thongTinNhanHang": shipInfo})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.KindNotFound, errorKind(t, w))

	w = a.do(t, http.MethodPost, "/api/orders", "u1", "", gin.H{"shippingFee": -5, "thongTinNhanHang": shipInfo})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscountEndpoints(t *testing.T) {
	a := setupApp(t)

	w := a.admin(t, http.MethodPost, "/api/admin/discounts", gin.H{
		"code": "FREESHIP", "type": "fixed", "value": 30000, "target": "shipping", "isPublic": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = a.admin(t, http.MethodPost, "/api/admin/discounts", gin.H{"code": "FREESHIP", "type": "fixed", "value": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodPost, "/api/discounts/validate", "u1", "", gin.H{"code": "freeship", "kind": "shipping", "amount": 20000})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeBody[models.DiscountResult](t, w)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(20000), res.Discount)

	w = a.do(t, http.MethodPost, "/api/discounts/validate", "u1", "", gin.H{"code": "freeship", "amount": 20000})
	require.Equal(t, http.StatusOK, w.Code)
	res = decodeBody[models.DiscountResult](t, w)
	assert.False(t, res.Valid)
	assert.Equal(t, string(apperrors.KindTargetMismatch), res.Reason)

	w = a.do(t, http.MethodGet, "/api/discounts/available?orderAmount=100000&shippingAmount=35000", "u1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	avail := decodeBody[struct {
		Vouchers []models.VoucherSuggestion `json:"vouchers"`
	}](t, w)
	require.Len(t, avail.Vouchers, 1)
	assert.Equal(t, "Miễn phí vận chuyển tới 30.000đ", avail.Vouchers[0].Label)
	assert.Equal(t, int64(30000), avail.Vouchers[0].Preview)

	w = a.do(t, http.MethodPost, "/api/discounts/quote", "u1", "", gin.H{"subtotal": 100000, "shippingFee": 35000, "freeShipCode": "FREESHIP"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(105000), decodeBody[models.Quote](t, w).Total)

	w = a.admin(t, http.MethodGet, "/api/admin/discounts?page=1&limit=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[struct {
		Discounts []models.Discount `json:"discounts"`
		Meta      models.PageMeta   `json:"meta"`
	}](t, w)
	assert.Len(t, list.Discounts, 1)
	assert.Equal(t, 100, list.Meta.Limit)

	w = a.admin(t, http.MethodDelete, "/api/admin/discounts/freeship", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/api/discounts/validate", "u1", "", gin.H{"code": "FREESHIP", "kind": "shipping", "shippingAmount": 1000})
	assert.Equal(t, string(apperrors.KindInactive), decodeBody[models.DiscountResult](t, w).Reason)
}

func TestInventoryAdmin(t *testing.T) {
	a := setupApp(t)
	boxID := a.seedProduct(t, "Hộp quà", 100000, 10)
	a.seedProduct(t, "Ruy băng", 5000, 0)

	w := a.admin(t, http.MethodPost, "/api/admin/inventory/"+boxID+"/adjust", gin.H{"qty": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.KindInvalidMode, errorKind(t, w))

	w = a.admin(t, http.MethodPost, "/api/admin/inventory/"+boxID+"/adjust", gin.H{"qty": 2, "mode": "decrease"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 8, decodeBody[models.InventoryView](t, w).Available)

	w = a.admin(t, http.MethodPost, "/api/admin/inventory/"+boxID+"/reserve", gin.H{"qty": 3})
	require.Equal(t, http.StatusCreated, w.Code)
	w = a.admin(t, http.MethodPost, "/api/admin/inventory/"+boxID+"/stocktake", gin.H{"qty": 2})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = a.admin(t, http.MethodPost, "/api/admin/inventory/"+boxID+"/release", gin.H{"qty": 4})
	assert.Equal(t, apperrors.KindExcessRelease, errorKind(t, w))
	w = a.admin(t, http.MethodPost, "/api/admin/inventory/"+boxID+"/issue", gin.H{"qty": 9})
	assert.Equal(t, apperrors.KindNegativeStock, errorKind(t, w))
	w = a.admin(t, http.MethodPost, "/api/admin/inventory/"+boxID+"/issue", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.admin(t, http.MethodPost, "/api/admin/inventory/ghost/receive", gin.H{"qty": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.admin(t, http.MethodPatch, "/api/admin/inventory/"+boxID+"/threshold", gin.H{"lowStockThreshold": 20})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.admin(t, http.MethodGet, "/api/admin/inventory?low=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[struct {
		Items []models.InventoryView `json:"items"`
		Meta  models.PageMeta        `json:"meta"`
	}](t, w)
	require.Len(t, list.Items, 1)
	assert.Equal(t, boxID, list.Items[0].ProductID)
	assert.Equal(t, 5, list.Items[0].Available)
	assert.Equal(t, "Hộp quà", list.Items[0].Name)

	w = a.admin(t, http.MethodGet, "/api/admin/inventory?q=RUY", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decodeBody[struct {
		Items []models.InventoryView `json:"items"`
		Meta  models.PageMeta        `json:"meta"`
	}](t, w)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 0, list.Items[0].Stock)

	w = a.admin(t, http.MethodGet, "/api/admin/inventory/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decodeBody[models.InventorySummary](t, w)
	assert.Equal(t, int64(2), sum.TotalSku)
	assert.Equal(t, int64(8), sum.TotalStock)
	assert.Equal(t, int64(3), sum.TotalReserved)
	assert.Equal(t, int64(1), sum.LowCount)
}
