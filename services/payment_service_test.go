package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/models"
)

func placeOnlineOrder(t *testing.T, e *testEnv, userID string) (*models.Order, *models.Payment) {
	t.Helper()
	p := e.product(t, "Gift Box", 120000, 10)
	e.addToCart(t, userID, p.ID, 1)
	order, err := e.orders.CreateOrder(e.ctx, userID, orderRequest("BANK"), "")
	require.NoError(t, err)
	payments, err := e.store.Payments.FindByOrderID(e.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	return order, &payments[0]
}

func TestCreateOrder_OnlinePaymentIsPending(t *testing.T) {
	e := newTestEnv(t)
	order, payment := placeOnlineOrder(t, e, "u1")

	assert.Equal(t, "bank", order.PaymentMethod)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, models.ProviderMock, payment.Provider)
	assert.Equal(t, order.Payable(), payment.Amount)

	_, err := e.store.Shipments.FindByOrderID(e.ctx, order.ID)
	assert.Error(t, err)
}

func TestCapture_ConfirmsOrderAndCreatesShipment(t *testing.T) {
	e := newTestEnv(t)
	order, payment := placeOnlineOrder(t, e, "u1")

	_, err := e.payments.Capture(e.ctx, payment.ID, "", "u2", false)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	captured, err := e.payments.Capture(e.ctx, payment.ID, "", "u1", false)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCaptured, captured.Status)
	assert.NotNil(t, captured.CapturedAt)
	assert.Contains(t, captured.TransID, "MOCK-")

	o, err := e.store.Orders.FindByID(e.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, o.Status)

	sh, err := e.store.Shipments.FindByOrderID(e.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ShipmentStatusCreated, sh.Status)

	again, err := e.payments.Capture(e.ctx, payment.ID, "OTHER", "u1", false)
	require.NoError(t, err)
	assert.Equal(t, captured.TransID, again.TransID)

	changed := e.sns.ofType(models.EventOrderStatusChanged)
	require.Len(t, changed, 1)
	evt := decode[models.OrderEvent](t, changed[0].Body)
	assert.Equal(t, models.OrderConfirmed, evt.Status)
}

func TestCapture_ConfirmedOrderGetsShipment(t *testing.T) {
	e := newTestEnv(t)
	order, payment := placeOnlineOrder(t, e, "u1")

	_, err := e.orders.Confirm(e.ctx, order.ID, "admin")
	require.NoError(t, err)

	_, err = e.payments.Capture(e.ctx, payment.ID, "TX-1", "admin", true)
	require.NoError(t, err)

	o, err := e.store.Orders.FindByID(e.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, o.Status)
	_, err = e.store.Shipments.FindByOrderID(e.ctx, order.ID)
	assert.NoError(t, err)
}

func TestCapture_CancelledOrder(t *testing.T) {
	e := newTestEnv(t)
	order, payment := placeOnlineOrder(t, e, "u1")

	_, err := e.orders.Cancel(e.ctx, order.ID, "admin")
	require.NoError(t, err)

	_, err = e.payments.Capture(e.ctx, payment.ID, "", "u1", false)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))

	p, err := e.store.Payments.FindByID(e.ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.Status)
}

func TestFailPayment(t *testing.T) {
	e := newTestEnv(t)
	order, payment := placeOnlineOrder(t, e, "u1")

	failed, err := e.payments.Fail(e.ctx, payment.ID, "TX-9")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.Status)
	assert.NotNil(t, failed.FailedAt)

	_, err = e.payments.Fail(e.ctx, payment.ID, "TX-9")
	assert.NoError(t, err)

	_, err = e.payments.Capture(e.ctx, payment.ID, "", "u1", false)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))

	o, err := e.store.Orders.FindByID(e.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, o.Status)

	_, err = e.payments.Fail(e.ctx, "missing", "")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
