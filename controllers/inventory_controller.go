package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/repository"
	"github.com/yashrajoria/giftshop-backend/services"
)

// StockLedger is the inventory service as seen by the admin HTTP layer.
type StockLedger interface {
	Move(ctx context.Context, in services.MoveInput) (*models.Inventory, error)
	List(ctx context.Context, f repository.InventoryFilter) ([]models.InventoryView, models.PageMeta, error)
	Summary(ctx context.Context, f repository.InventoryFilter) (*models.InventorySummary, error)
	History(ctx context.Context, productID string) ([]models.StockMove, error)
	UpdateThreshold(ctx context.Context, productID string, threshold int) (*models.Inventory, error)
}

type InventoryController struct {
	ledger StockLedger
}

func NewInventoryController(ledger StockLedger) *InventoryController {
	return &InventoryController{ledger: ledger}
}

func inventoryFilter(ctx *gin.Context) repository.InventoryFilter {
	page, limit := parsePaginationParams(ctx, 20)
	low := ctx.Query("low")
	return repository.InventoryFilter{
		Query:   ctx.Query("q"),
		LowOnly: low == "1" || low == "true",
		Page:    page,
		Limit:   limit,
	}
}

// ListInventory handles GET /api/admin/inventory?q=&low=1&page=&limit=.
func (ic *InventoryController) ListInventory(ctx *gin.Context) {
	items, meta, err := ic.ledger.List(ctx.Request.Context(), inventoryFilter(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": items, "meta": meta})
}

// Summary handles GET /api/admin/inventory/summary. It honours the list filters.
func (ic *InventoryController) Summary(ctx *gin.Context) {
	sum, err := ic.ledger.Summary(ctx.Request.Context(), inventoryFilter(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, sum)
}

// History handles GET /api/admin/inventory/:productId/history.
func (ic *InventoryController) History(ctx *gin.Context) {
	moves, err := ic.ledger.History(ctx.Request.Context(), ctx.Param("productId"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, moves)
}

// UpdateThreshold handles PATCH /api/admin/inventory/:productId/threshold.
func (ic *InventoryController) UpdateThreshold(ctx *gin.Context) {
	var req models.ThresholdRequest
	if !bindJSON(ctx, &req) {
		return
	}
	inv, err := ic.ledger.UpdateThreshold(ctx.Request.Context(), ctx.Param("productId"), req.LowStockThreshold)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, models.NewInventoryView(*inv))
}

// Move returns the handler of POST /api/admin/inventory/:productId/<type>.
func (ic *InventoryController) Move(t models.MovementType) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req models.StockMoveRequest
		if !bindJSON(ctx, &req) {
			return
		}
		inv, err := ic.ledger.Move(ctx.Request.Context(), services.MoveInput{
			ProductID: ctx.Param("productId"),
			Type:      t,
			Qty:       *req.Qty,
			Mode:      models.AdjustMode(req.Mode),
			Note:      req.Note,
			ActorID:   userID(ctx),
		})
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		ctx.JSON(http.StatusCreated, models.NewInventoryView(*inv))
	}
}
