package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/services"
)

// CheckoutPreviewer prices the caller's cart without writing anything.
type CheckoutPreviewer interface {
	Preview(ctx context.Context, userID string, req models.PreviewRequest) (*models.CheckoutPreview, error)
}

// ShippingController serves the fee estimate and the checkout preview.
type ShippingController struct {
	estimator services.FeeEstimator
	checkout  CheckoutPreviewer
}

func NewShippingController(estimator services.FeeEstimator, checkout CheckoutPreviewer) *ShippingController {
	return &ShippingController{estimator: estimator, checkout: checkout}
}

// Estimate handles POST /api/shipping/estimate.
func (sc *ShippingController) Estimate(ctx *gin.Context) {
	var req models.ShippingEstimateRequest
	if !bindJSON(ctx, &req) {
		return
	}
	ctx.JSON(http.StatusOK, sc.estimator.EstimateFee(req.Address, req.Items))
}

// Preview handles POST /api/checkout/preview.
func (sc *ShippingController) Preview(ctx *gin.Context) {
	var req models.PreviewRequest
	if ctx.Request.ContentLength != 0 && !bindJSON(ctx, &req) {
		return
	}
	preview, err := sc.checkout.Preview(ctx.Request.Context(), userID(ctx), req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, preview)
}
