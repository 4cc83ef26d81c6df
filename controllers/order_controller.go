package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/giftshop-backend/common/middleware"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/services"
)

// IdempotencyHeader lets a client retry a checkout without creating a second order.
const IdempotencyHeader = "Idempotency-Key"

// OrderManager is the order service as seen by the HTTP layer.
type OrderManager interface {
	CreateOrder(ctx context.Context, userID string, req *models.CreateOrderRequest, idempotencyKey string) (*models.Order, error)
	ListMine(ctx context.Context, userID string) ([]models.OrderView, error)
	GetForUser(ctx context.Context, orderID, userID string, isAdmin bool) (*models.OrderView, error)
	AdminList(ctx context.Context, f models.OrderFilter) ([]models.OrderSummary, models.PageMeta, error)
	AdminDetail(ctx context.Context, orderID string) (*models.OrderDetail, error)
	Transition(ctx context.Context, orderID string, action services.OrderAction, actorID string) (*models.Order, error)
}

type OrderController struct {
	orders OrderManager
}

func NewOrderController(orders OrderManager) *OrderController {
	return &OrderController{orders: orders}
}

// CreateOrder handles POST /api/orders.
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	var req models.CreateOrderRequest
	if !bindJSON(ctx, &req) {
		return
	}

	order, err := oc.orders.CreateOrder(ctx.Request.Context(), userID(ctx), &req, ctx.GetHeader(IdempotencyHeader))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusCreated, models.NewOrderView(order))
}

// ListMyOrders handles GET /api/orders/my.
func (oc *OrderController) ListMyOrders(ctx *gin.Context) {
	orders, err := oc.orders.ListMine(ctx.Request.Context(), userID(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/:id.
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	view, err := oc.orders.GetForUser(ctx.Request.Context(), ctx.Param("id"), userID(ctx), middleware.IsAdmin(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// AdminListOrders handles GET /api/admin/orders?q=&status=&page=&limit=.
func (oc *OrderController) AdminListOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx, 20)
	items, meta, err := oc.orders.AdminList(ctx.Request.Context(), models.OrderFilter{
		Query:  ctx.Query("q"),
		Status: models.OrderStatus(ctx.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": items, "meta": meta})
}

// AdminGetOrder handles GET /api/admin/orders/:id.
func (oc *OrderController) AdminGetOrder(ctx *gin.Context) {
	detail, err := oc.orders.AdminDetail(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, detail)
}

// Transition returns the handler of POST /api/admin/orders/:id/<action>.
func (oc *OrderController) Transition(action services.OrderAction) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		order, err := oc.orders.Transition(ctx.Request.Context(), ctx.Param("id"), action, userID(ctx))
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		ctx.JSON(http.StatusOK, models.NewOrderView(order))
	}
}
