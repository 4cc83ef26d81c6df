package consumers

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/models"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"go.uber.org/zap"
)

// PaymentSettler is the part of the payment service driven by provider events.
type PaymentSettler interface {
	Capture(ctx context.Context, paymentID, transID, userID string, isAdmin bool) (*models.Payment, error)
	Fail(ctx context.Context, paymentID, transID string) (*models.Payment, error)
}

// PaymentEventConsumer settles payments from the provider callback queue.
type PaymentEventConsumer struct {
	sqsConsumer *awspkg.SQSConsumer
	payments    PaymentSettler
	metrics     awspkg.Metrics
	logger      *zap.Logger
}

func NewPaymentEventConsumer(sqsConsumer *awspkg.SQSConsumer, payments PaymentSettler, metrics awspkg.Metrics, logger *zap.Logger) *PaymentEventConsumer {
	return &PaymentEventConsumer{sqsConsumer: sqsConsumer, payments: payments, metrics: metrics, logger: logger}
}

// Start polls until ctx is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting payment events consumer")

	err := c.sqsConsumer.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Payment events polling stopped", zap.Error(err))
	}
}

// HandleMessage settles one payment. Malformed messages and rule rejections
// are acknowledged; only infrastructure faults and lost races are retried.
func (c *PaymentEventConsumer) HandleMessage(ctx context.Context, body string) error {
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var evt models.PaymentEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		c.logger.Warn("Dropping malformed payment event", zap.Error(err), zap.String("payload", body))
		return nil
	}
	if evt.PaymentID == "" || evt.EventType == "" {
		c.logger.Warn("Dropping incomplete payment event",
			zap.String("payment_id", evt.PaymentID),
			zap.String("event_type", evt.EventType),
		)
		return nil
	}

	var err error
	switch evt.EventType {
	case models.PaymentEventCaptured:
		_, err = c.payments.Capture(ctx, evt.PaymentID, evt.TransID, "system", true)
	case models.PaymentEventFailed:
		_, err = c.payments.Fail(ctx, evt.PaymentID, evt.TransID)
	default:
		c.logger.Warn("Unknown payment event type", zap.String("event_type", evt.EventType))
		return nil
	}

	if err == nil {
		_ = c.metrics.RecordCount(ctx, awspkg.MetricSQSMessages, map[string]string{"EventType": evt.EventType})
		c.logger.Info("Payment event applied",
			zap.String("payment_id", evt.PaymentID),
			zap.String("event_type", evt.EventType),
		)
		return nil
	}
	if apperrors.IsBusiness(err) && !apperrors.Is(err, apperrors.KindConflict) {
		c.logger.Warn("Payment event rejected",
			zap.String("payment_id", evt.PaymentID),
			zap.String("event_type", evt.EventType),
			zap.Error(err),
		)
		return nil
	}
	return err
}
