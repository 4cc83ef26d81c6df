package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/giftshop-backend/models"
)

// CartStore is the cart service as seen by the HTTP layer.
type CartStore interface {
	Get(ctx context.Context, userID string) (*models.CartView, error)
	AddItem(ctx context.Context, userID, productID string, qty int) (*models.CartView, error)
	UpdateItem(ctx context.Context, userID, productID string, qty int) (*models.CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (*models.CartView, error)
	Clear(ctx context.Context, userID string) (*models.CartView, error)
}

type CartController struct {
	carts CartStore
}

func NewCartController(carts CartStore) *CartController {
	return &CartController{carts: carts}
}

// GetCart handles GET /api/cart.
func (cc *CartController) GetCart(ctx *gin.Context) {
	view, err := cc.carts.Get(ctx.Request.Context(), userID(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// AddItem handles POST /api/cart/items. qty defaults to 1.
func (cc *CartController) AddItem(ctx *gin.Context) {
	var req models.AddCartItemRequest
	if !bindJSON(ctx, &req) {
		return
	}
	qty := 1
	if req.Qty != nil {
		qty = *req.Qty
	}

	view, err := cc.carts.AddItem(ctx.Request.Context(), userID(ctx), req.ProductID, qty)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"ok": true, "cart": view})
}

// UpdateItem handles PUT /api/cart/items/:productId.
func (cc *CartController) UpdateItem(ctx *gin.Context) {
	var req models.UpdateCartItemRequest
	if !bindJSON(ctx, &req) {
		return
	}

	view, err := cc.carts.UpdateItem(ctx.Request.Context(), userID(ctx), ctx.Param("productId"), *req.Qty)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ok": true, "cart": view})
}

// RemoveItem handles DELETE /api/cart/items/:productId.
func (cc *CartController) RemoveItem(ctx *gin.Context) {
	view, err := cc.carts.RemoveItem(ctx.Request.Context(), userID(ctx), ctx.Param("productId"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ok": true, "cart": view})
}

// ClearCart handles DELETE /api/cart.
func (cc *CartController) ClearCart(ctx *gin.Context) {
	view, err := cc.carts.Clear(ctx.Request.Context(), userID(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ok": true, "cart": view})
}
