package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/giftshop-backend/common/middleware"
	"github.com/yashrajoria/giftshop-backend/models"
)

// PaymentCapturer settles mock payments.
type PaymentCapturer interface {
	Capture(ctx context.Context, paymentID, transID, userID string, isAdmin bool) (*models.Payment, error)
}

type PaymentController struct {
	payments PaymentCapturer
}

func NewPaymentController(payments PaymentCapturer) *PaymentController {
	return &PaymentController{payments: payments}
}

type captureRequest struct {
	TransID string `json:"transId" binding:"max=128"`
}

// Capture handles POST /api/payments/:id/capture. The body is optional.
func (pc *PaymentController) Capture(ctx *gin.Context) {
	var req captureRequest
	if ctx.Request.ContentLength != 0 && !bindJSON(ctx, &req) {
		return
	}

	payment, err := pc.payments.Capture(ctx.Request.Context(), ctx.Param("id"), req.TransID, userID(ctx), middleware.IsAdmin(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ok": true, "payment": payment})
}
