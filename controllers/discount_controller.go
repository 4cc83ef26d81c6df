package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/services"
)

// DiscountEvaluator is the voucher service as seen by the HTTP layer.
type DiscountEvaluator interface {
	ValidateAndCalc(ctx context.Context, in services.ValidateInput) (*models.DiscountResult, error)
	AvailableForUser(ctx context.Context, userID string, orderAmount, shippingAmount int64) ([]models.VoucherSuggestion, error)
	Quote(ctx context.Context, userID string, req models.QuoteRequest) (*models.Quote, error)
	Create(ctx context.Context, req *models.CreateDiscountRequest) (*models.Discount, error)
	List(ctx context.Context, page, limit int) ([]models.Discount, models.PageMeta, error)
	Deactivate(ctx context.Context, code string) error
}

type DiscountController struct {
	discounts DiscountEvaluator
}

func NewDiscountController(discounts DiscountEvaluator) *DiscountController {
	return &DiscountController{discounts: discounts}
}

// Validate handles POST /api/discounts/validate. A rejected code is still a
// 200 with valid=false and the reason.
func (dc *DiscountController) Validate(ctx *gin.Context) {
	var req models.ValidateDiscountRequest
	if !bindJSON(ctx, &req) {
		return
	}

	in := services.ValidateInput{
		Code:           req.Code,
		Kind:           req.Kind,
		OrderAmount:    req.OrderAmount,
		ShippingAmount: req.ShippingAmount,
		UserID:         userID(ctx),
	}
	// "amount" is the single figure older clients send for either target.
	if in.OrderAmount == 0 {
		in.OrderAmount = req.Amount
	}
	if in.ShippingAmount == 0 && req.Kind == models.TargetShipping {
		in.ShippingAmount = req.Amount
	}

	res, err := dc.discounts.ValidateAndCalc(ctx.Request.Context(), in)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

// Available handles GET /api/discounts/available?orderAmount=&shippingAmount=.
func (dc *DiscountController) Available(ctx *gin.Context) {
	list, err := dc.discounts.AvailableForUser(ctx.Request.Context(), userID(ctx),
		queryInt64(ctx, "orderAmount"), queryInt64(ctx, "shippingAmount"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"vouchers": list})
}

// Quote handles POST /api/discounts/quote.
func (dc *DiscountController) Quote(ctx *gin.Context) {
	var req models.QuoteRequest
	if !bindJSON(ctx, &req) {
		return
	}
	q, err := dc.discounts.Quote(ctx.Request.Context(), userID(ctx), req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, q)
}

// CreateDiscount handles POST /api/admin/discounts.
func (dc *DiscountController) CreateDiscount(ctx *gin.Context) {
	var req models.CreateDiscountRequest
	if !bindJSON(ctx, &req) {
		return
	}
	d, err := dc.discounts.Create(ctx.Request.Context(), &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"discount": d})
}

// ListDiscounts handles GET /api/admin/discounts.
func (dc *DiscountController) ListDiscounts(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx, 10)
	items, meta, err := dc.discounts.List(ctx.Request.Context(), page, limit)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"discounts": items, "meta": meta})
}

// DeactivateDiscount handles DELETE /api/admin/discounts/:code.
func (dc *DiscountController) DeactivateDiscount(ctx *gin.Context) {
	if err := dc.discounts.Deactivate(ctx.Request.Context(), ctx.Param("code")); err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Discount deactivated"})
}
