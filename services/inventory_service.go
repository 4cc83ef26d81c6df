package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/common/logger"
	"github.com/yashrajoria/giftshop-backend/models"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"github.com/yashrajoria/giftshop-backend/repository"
	"go.uber.org/zap"
)

// HistoryLimit bounds the movement history returned for one product.
const HistoryLimit = 200

// MoveInput describes one ledger movement.
type MoveInput struct {
	ProductID string
	Type      models.MovementType
	Qty       int // counted stock for a stocktake
	Mode      models.AdjustMode
	Note      string
	ActorID   string
	Ref       models.MoveRef
}

// InventoryService is the stock ledger. Every counter change goes through
// ApplyMove, which writes the guarded delta and its movement record together.
type InventoryService struct {
	store   *repository.Store
	events  *EventPublisher
	metrics awspkg.Metrics
	logger  *zap.Logger
}

func NewInventoryService(store *repository.Store, events *EventPublisher, metrics awspkg.Metrics, logger *zap.Logger) *InventoryService {
	return &InventoryService{store: store, events: events, metrics: metrics, logger: logger}
}

// planMove computes the counter delta of in against the current record, or
// the business rejection that forbids it.
func planMove(in MoveInput, cur *models.Inventory) (repository.InventoryDelta, error) {
	var d repository.InventoryDelta

	if !in.Type.Valid() {
		return d, apperrors.Newf(apperrors.KindUnknownMovementType, "Unknown movement type %q", in.Type)
	}
	if in.Type == models.MoveStocktake {
		if in.Qty < 0 {
			return d, apperrors.InvalidInput("Counted quantity must not be negative")
		}
	} else if in.Qty <= 0 {
		return d, apperrors.InvalidInput("Quantity must be greater than 0")
	}

	decrease := func(qty int) error {
		if cur.Stock-qty < 0 {
			return apperrors.Newf(apperrors.KindNegativeStock,
				"Stock of product %s would go negative (stock %d, requested %d)", in.ProductID, cur.Stock, qty)
		}
		if cur.Stock-qty < cur.Reserved {
			return apperrors.Newf(apperrors.KindInsufficientAvailable,
				"Not enough available stock for product %s (available %d, requested %d)", in.ProductID, cur.Available(), qty)
		}
		return nil
	}

	switch in.Type {
	case models.MoveReceive:
		d.Stock = in.Qty
	case models.MoveIssue:
		if err := decrease(in.Qty); err != nil {
			return d, err
		}
		d.Stock = -in.Qty
	case models.MoveAdjust:
		switch in.Mode {
		case models.AdjustIncrease:
			d.Stock = in.Qty
		case models.AdjustDecrease:
			if err := decrease(in.Qty); err != nil {
				return d, err
			}
			d.Stock = -in.Qty
		default:
			return d, apperrors.Newf(apperrors.KindInvalidMode, "Adjust requires mode increase or decrease")
		}
	case models.MoveStocktake:
		if in.Qty < cur.Reserved {
			return d, apperrors.Newf(apperrors.KindInsufficientAvailable,
				"Counted stock %d of product %s is below the reserved quantity %d", in.Qty, in.ProductID, cur.Reserved)
		}
		counted := cur.Stock
		d.Stock = in.Qty - cur.Stock
		d.IfStock = &counted
	case models.MoveReserve:
		if cur.Available() < in.Qty {
			return d, apperrors.Newf(apperrors.KindInsufficientAvailable,
				"Not enough available stock for product %s (available %d, requested %d)", in.ProductID, cur.Available(), in.Qty)
		}
		d.Reserved = in.Qty
	case models.MoveRelease:
		if cur.Reserved < in.Qty {
			return d, apperrors.Newf(apperrors.KindExcessRelease,
				"Release of %d exceeds the %d held for product %s", in.Qty, cur.Reserved, in.ProductID)
		}
		d.Reserved = -in.Qty
	}
	return d, nil
}

// ApplyMove applies one movement inside the transaction carried by ctx (or a
// new one) and returns the updated record.
func (s *InventoryService) ApplyMove(ctx context.Context, in MoveInput) (*models.Inventory, error) {
	var out *models.Inventory
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.Inventory.Ensure(ctx, in.ProductID)
		if err != nil {
			return fmt.Errorf("ensure inventory %s: %w", in.ProductID, err)
		}

		delta, err := planMove(in, cur)
		if err != nil {
			return err
		}

		inv, err := s.store.Inventory.ApplyDelta(ctx, in.ProductID, delta)
		if errors.Is(err, repository.ErrConditionFailed) {
			return s.explainConflict(ctx, in)
		}
		if err != nil {
			return fmt.Errorf("apply inventory delta %s: %w", in.ProductID, err)
		}

		// v7 ids grow with creation time, so they break createdAt ties
		// when one transaction writes several moves in the same tick.
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("stock move id: %w", err)
		}
		move := &models.StockMove{
			ID:            id.String(),
			ProductID:     in.ProductID,
			Type:          in.Type,
			Qty:           in.Qty,
			DeltaStock:    delta.Stock,
			DeltaReserved: delta.Reserved,
			Ref:           in.Ref,
			Note:          in.Note,
			By:            in.ActorID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.store.Movements.Append(ctx, move); err != nil {
			return fmt.Errorf("append stock move %s: %w", in.ProductID, err)
		}

		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// explainConflict re-reads a record whose guarded update lost a race and
// reports the rule that now rejects the move.
func (s *InventoryService) explainConflict(ctx context.Context, in MoveInput) error {
	fresh, err := s.store.Inventory.Get(ctx, in.ProductID)
	if err != nil {
		return fmt.Errorf("reload inventory %s: %w", in.ProductID, err)
	}
	if _, err := planMove(in, fresh); err != nil {
		return err
	}
	return apperrors.Conflict("Inventory of product %s changed concurrently, please retry", in.ProductID)
}

// Move is the admin entry point: one movement in its own transaction.
func (s *InventoryService) Move(ctx context.Context, in MoveInput) (*models.Inventory, error) {
	if _, err := s.store.Products.FindByID(ctx, in.ProductID); err != nil {
		return nil, notFound(err, "Product", in.ProductID)
	}
	if in.Ref.Kind == "" {
		in.Ref = models.MoveRef{Kind: models.RefKindManual}
	}

	inv, err := s.ApplyMove(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock moved",
		logger.RequestIDField(ctx),
		zap.String("product_id", in.ProductID),
		zap.String("type", string(in.Type)),
		zap.Int("qty", in.Qty),
		zap.Int("stock", inv.Stock),
		zap.Int("reserved", inv.Reserved),
		zap.String("by", in.ActorID),
	)
	s.Committed(ctx, in.Type, in.Qty, inv)
	return inv, nil
}

// Committed runs the post-commit side effects of a movement: metrics and
// the low stock notification.
func (s *InventoryService) Committed(ctx context.Context, t models.MovementType, qty int, inv *models.Inventory) {
	dims := map[string]string{"Service": "giftshop"}
	switch t {
	case models.MoveReserve:
		recordValue(s.metrics, awspkg.MetricInventoryReserved, float64(qty), dims)
	case models.MoveRelease:
		recordValue(s.metrics, awspkg.MetricInventoryReleased, float64(qty), dims)
	case models.MoveIssue:
		recordValue(s.metrics, awspkg.MetricInventoryIssued, float64(qty), dims)
	}

	if inv != nil && inv.IsLow() {
		s.logger.Warn("Stock below threshold",
			logger.RequestIDField(ctx),
			zap.String("product_id", inv.ProductID),
			zap.Int("stock", inv.Stock),
			zap.Int("threshold", inv.LowStockThreshold),
		)
		recordCount(s.metrics, awspkg.MetricInventoryLow, dims)
		s.events.LowStock(ctx, inv)
	}
}

// Get returns the record of one product with zero counters if none exists yet.
func (s *InventoryService) Get(ctx context.Context, productID string) (*models.Inventory, error) {
	inv, err := s.store.Inventory.Get(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.Inventory{ProductID: productID}, nil
	}
	return inv, err
}

func (s *InventoryService) List(ctx context.Context, f repository.InventoryFilter) ([]models.InventoryView, models.PageMeta, error) {
	f.Page, f.Limit = repository.NormalizePage(f.Page, f.Limit, 20, 100)
	items, total, err := s.store.Inventory.List(ctx, f)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("list inventory: %w", err)
	}
	return items, models.NewPageMeta(f.Page, f.Limit, total), nil
}

func (s *InventoryService) Summary(ctx context.Context, f repository.InventoryFilter) (*models.InventorySummary, error) {
	sum, err := s.store.Inventory.Summary(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("inventory summary: %w", err)
	}
	return sum, nil
}

// History returns the latest movements of a product, newest first.
func (s *InventoryService) History(ctx context.Context, productID string) ([]models.StockMove, error) {
	moves, err := s.store.Movements.ListByProduct(ctx, productID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("movement history %s: %w", productID, err)
	}
	return moves, nil
}

// UpdateThreshold sets the low stock threshold, clamped at zero.
func (s *InventoryService) UpdateThreshold(ctx context.Context, productID string, threshold int) (*models.Inventory, error) {
	if _, err := s.store.Products.FindByID(ctx, productID); err != nil {
		return nil, notFound(err, "Product", productID)
	}
	inv, err := s.store.Inventory.SetThreshold(ctx, productID, max(0, threshold))
	if err != nil {
		return nil, fmt.Errorf("set threshold %s: %w", productID, err)
	}
	return inv, nil
}
