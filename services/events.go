package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yashrajoria/giftshop-backend/common/logger"
	"github.com/yashrajoria/giftshop-backend/models"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"go.uber.org/zap"
)

// EventPublisher fans domain events out to SNS after the owning transaction
// committed. Publishing is best effort: failures are logged, never returned.
type EventPublisher struct {
	sns            awspkg.SNSPublisher
	orderTopic     string
	inventoryTopic string
	logger         *zap.Logger
}

func NewEventPublisher(sns awspkg.SNSPublisher, orderTopic, inventoryTopic string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		sns:            sns,
		orderTopic:     orderTopic,
		inventoryTopic: inventoryTopic,
		logger:         logger,
	}
}

func (p *EventPublisher) publish(ctx context.Context, topic, eventType string, payload any) {
	if p == nil || p.sns == nil || topic == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to marshal event", logger.RequestIDField(ctx), zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := p.sns.Publish(ctx, topic, body, map[string]string{"event_type": eventType}); err != nil {
		p.logger.Error("Failed to publish event", logger.RequestIDField(ctx), zap.String("event_type", eventType), zap.Error(err))
		return
	}
	p.logger.Debug("Published event", zap.String("event_type", eventType))
}

func (p *EventPublisher) OrderCreated(ctx context.Context, o *models.Order) {
	if p == nil {
		return
	}
	p.publish(ctx, p.orderTopic, models.EventOrderCreated, models.OrderEvent{
		EventType: models.EventOrderCreated,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Payable:   o.Payable(),
		Items:     o.Items,
		Timestamp: time.Now().UTC(),
	})
}

func (p *EventPublisher) OrderStatusChanged(ctx context.Context, o *models.Order, from models.OrderStatus) {
	if p == nil {
		return
	}
	p.publish(ctx, p.orderTopic, models.EventOrderStatusChanged, models.OrderEvent{
		EventType: models.EventOrderStatusChanged,
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      from,
		Status:    o.Status,
		Payable:   o.Payable(),
		Timestamp: time.Now().UTC(),
	})
}

func (p *EventPublisher) DiscountApplied(ctx context.Context, o *models.Order, code string, target models.DiscountTarget, amount int64) {
	if p == nil {
		return
	}
	p.publish(ctx, p.orderTopic, models.EventDiscountApplied, models.DiscountAppliedEvent{
		EventType: models.EventDiscountApplied,
		Code:      code,
		Target:    target,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
}

func (p *EventPublisher) LowStock(ctx context.Context, inv *models.Inventory) {
	if p == nil {
		return
	}
	p.publish(ctx, p.inventoryTopic, models.EventInventoryLowStock, models.LowStockEvent{
		EventType:         models.EventInventoryLowStock,
		ProductID:         inv.ProductID,
		Stock:             inv.Stock,
		Reserved:          inv.Reserved,
		LowStockThreshold: inv.LowStockThreshold,
		Timestamp:         time.Now().UTC(),
	})
}
