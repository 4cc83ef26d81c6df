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

// PaymentService settles mock payments and bridges a capture into the order
// state machine.
type PaymentService struct {
	store   *repository.Store
	orders  *OrderService
	metrics awspkg.Metrics
	logger  *zap.Logger
}

func NewPaymentService(store *repository.Store, orders *OrderService, metrics awspkg.Metrics, logger *zap.Logger) *PaymentService {
	return &PaymentService{store: store, orders: orders, metrics: metrics, logger: logger}
}

// Capture marks a pending payment captured. A pending order advances to
// confirmed and gets its shipment. Capturing twice returns the payment unchanged.
func (s *PaymentService) Capture(ctx context.Context, paymentID, transID, userID string, isAdmin bool) (*models.Payment, error) {
	var (
		payment  *models.Payment
		order    *models.Order
		advanced bool
	)
	fx := &afterCommit{}

	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		*fx, advanced = afterCommit{}, false

		p, err := s.store.Payments.FindByID(ctx, paymentID)
		if err != nil {
			return notFound(err, "Payment", paymentID)
		}
		o, err := s.store.Orders.FindByID(ctx, p.OrderID)
		if err != nil {
			return notFound(err, "Order", p.OrderID)
		}
		if !isAdmin && o.UserID != userID {
			return apperrors.Forbidden("You do not have access to this payment")
		}
		payment, order = p, o

		if p.Status == models.PaymentCaptured {
			return nil
		}
		if p.Status != models.PaymentPending {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Cannot capture a payment in status %s", p.Status)
		}
		if o.Status == models.OrderCancelled {
			return apperrors.Newf(apperrors.KindInvalidTransition, "Cannot capture a payment of a cancelled order")
		}

		now := time.Now().UTC()
		p.Status = models.PaymentCaptured
		p.CapturedAt = &now
		p.TransID = transID
		if p.TransID == "" {
			p.TransID = "MOCK-" + uuid.NewString()
		}
		err = s.store.Payments.UpdateStatus(ctx, p, models.PaymentPending)
		if errors.Is(err, repository.ErrConditionFailed) {
			return apperrors.Conflict("Payment %s changed concurrently, please retry", p.ID)
		}
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		switch o.Status {
		case models.OrderPending:
			advanced = true
			return s.orders.advance(ctx, o, ActionCapture, userID, fx)
		case models.OrderConfirmed:
			_, err := s.orders.ensureShipment(ctx, o)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment captured",
		logger.RequestIDField(ctx),
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.Int64("amount", payment.Amount),
	)
	recordCount(s.metrics, awspkg.MetricPaymentCaptured, nil)
	if advanced {
		s.orders.events.OrderStatusChanged(ctx, order, models.OrderPending)
	}
	return payment, nil
}

// Fail marks a pending payment failed. The order is left for the admin to cancel.
func (s *PaymentService) Fail(ctx context.Context, paymentID, transID string) (*models.Payment, error) {
	var payment *models.Payment
	err := s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.store.Payments.FindByID(ctx, paymentID)
		if err != nil {
			return notFound(err, "Payment", paymentID)
		}
		payment = p

		switch p.Status {
		case models.PaymentFailed:
			return nil
		case models.PaymentPending:
		default:
			return apperrors.Newf(apperrors.KindInvalidTransition, "Cannot fail a payment in status %s", p.Status)
		}

		now := time.Now().UTC()
		p.Status = models.PaymentFailed
		p.FailedAt = &now
		p.TransID = transID
		err = s.store.Payments.UpdateStatus(ctx, p, models.PaymentPending)
		if errors.Is(err, repository.ErrConditionFailed) {
			return apperrors.Conflict("Payment %s changed concurrently, please retry", p.ID)
		}
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Payment failed", logger.RequestIDField(ctx), zap.String("payment_id", payment.ID), zap.String("order_id", payment.OrderID))
	recordCount(s.metrics, awspkg.MetricPaymentFailed, nil)
	return payment, nil
}
