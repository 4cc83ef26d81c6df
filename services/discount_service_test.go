package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/models"
	"github.com/yashrajoria/giftshop-backend/services"
)

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name    string
		voucher models.Discount
		base    int64
		want    int64
	}{
		{"percent", models.Discount{Type: models.DiscountPercent, Value: 10}, 250000, 25000},
		{"percent floors", models.Discount{Type: models.DiscountPercent, Value: 15}, 99999, 14999},
		{"fractional percent", models.Discount{Type: models.DiscountPercent, Value: 12.5}, 10001, 1250},
		{"percent capped", models.Discount{Type: models.DiscountPercent, Value: 50, MaxDiscount: int64Ptr(30000)}, 200000, 30000},
		{"fixed", models.Discount{Type: models.DiscountFixed, Value: 20000}, 150000, 20000},
		{"fixed clamped to base", models.Discount{Type: models.DiscountFixed, Value: 50000}, 30000, 30000},
		{"zero base", models.Discount{Type: models.DiscountFixed, Value: 50000}, 0, 0},
		{"negative value", models.Discount{Type: models.DiscountFixed, Value: -5}, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.ComputeDiscount(&tt.voucher, tt.base))
		})
	}
}

func TestValidateAndCalc_Reasons(t *testing.T) {
	e := newTestEnv(t)
	past := time.Now().Add(-48 * time.Hour)
	yesterday := time.Now().Add(-24 * time.Hour)
	tomorrow := time.Now().Add(24 * time.Hour)

	e.voucher(t, models.CreateDiscountRequest{Code: "ORDER10", Type: models.DiscountPercent, Value: 10, MinOrder: 100000})
	e.voucher(t, models.CreateDiscountRequest{Code: "SHIP", Type: models.DiscountFixed, Value: 15000, Target: models.TargetShipping})
	e.voucher(t, models.CreateDiscountRequest{Code: "EXPIRED", Type: models.DiscountFixed, Value: 1000, StartAt: &past, EndAt: &yesterday})
	e.voucher(t, models.CreateDiscountRequest{Code: "SOON", Type: models.DiscountFixed, Value: 1000, StartAt: &tomorrow})
	e.voucher(t, models.CreateDiscountRequest{Code: "OFF", Type: models.DiscountFixed, Value: 1000})
	require.NoError(t, e.discounts.Deactivate(e.ctx, "off"))

	tests := []struct {
		name   string
		in     services.ValidateInput
		reason apperrors.Kind
	}{
		{"empty code", services.ValidateInput{Code: "  ", OrderAmount: 1000}, apperrors.KindInvalidInput},
		{"unknown code", services.ValidateInput{Code: "NOPE", OrderAmount: 1000}, apperrors.KindNotFound},
		{"expired", services.ValidateInput{Code: "EXPIRED", OrderAmount: 1000}, apperrors.KindInactive},
		{"not started", services.ValidateInput{Code: "SOON", OrderAmount: 1000}, apperrors.KindInactive},
		{"deactivated", services.ValidateInput{Code: "OFF", OrderAmount: 1000}, apperrors.KindInactive},
		{"shipping code on order", services.ValidateInput{Code: "SHIP", Kind: models.TargetOrder, OrderAmount: 1000}, apperrors.KindTargetMismatch},
		{"order code defaults to order kind", services.ValidateInput{Code: "ORDER10", OrderAmount: 99999}, apperrors.KindBelowMinimum},
		{"order code on shipping", services.ValidateInput{Code: "ORDER10", Kind: models.TargetShipping, ShippingAmount: 1000}, apperrors.KindTargetMismatch},
		{"nothing to discount", services.ValidateInput{Code: "SHIP", Kind: models.TargetShipping, OrderAmount: 500000}, apperrors.KindInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.discounts.ValidateAndCalc(e.ctx, tt.in)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Equal(t, string(tt.reason), res.Reason)
			assert.NotEmpty(t, res.Message)
			assert.Zero(t, res.Discount)
			assert.Equal(t, tt.reason, apperrors.KindOf(services.Rejection(res)))
		})
	}
}

func TestValidateAndCalc_Valid(t *testing.T) {
	e := newTestEnv(t)
	e.voucher(t, models.CreateDiscountRequest{Code: "ship15", Type: models.DiscountFixed, Value: 15000, Target: models.TargetShipping})

	// the minimum order only applies to order vouchers
	res, err := e.discounts.ValidateAndCalc(e.ctx, services.ValidateInput{
		Code: "Ship15", Kind: models.TargetShipping, ShippingAmount: 35000,
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "SHIP15", res.Code)
	assert.Equal(t, int64(15000), res.Discount)
	assert.Equal(t, models.TargetShipping, res.Target)
	assert.NoError(t, services.Rejection(res))

	v, err := e.store.Discounts.FindByCode(e.ctx, "SHIP15")
	require.NoError(t, err)
	assert.Equal(t, 0, v.UsedCount)
}

func TestValidateAndCalc_GuardOrder(t *testing.T) {
	e := newTestEnv(t)
	yesterday := time.Now().Add(-24 * time.Hour)
	// expired, wrong target and below minimum at once: inactive is reported
	e.voucher(t, models.CreateDiscountRequest{
		Code: "MULTI", Type: models.DiscountFixed, Value: 1000, MinOrder: 1000000, EndAt: &yesterday,
	})

	res, err := e.discounts.ValidateAndCalc(e.ctx, services.ValidateInput{Code: "MULTI", Kind: models.TargetShipping, ShippingAmount: 0})
	require.NoError(t, err)
	assert.Equal(t, string(apperrors.KindInactive), res.Reason)
}

func TestValidateAndCalc_UsageLimitReached(t *testing.T) {
	e := newTestEnv(t)
	p := e.product(t, "Gift Box", 100000, 10)
	e.voucher(t, models.CreateDiscountRequest{Code: "FIRST1", Type: models.DiscountFixed, Value: 10000, UsageLimit: 1})

	req := orderRequest("cod")
	req.DiscountCode = "FIRST1"
	e.addToCart(t, "u1", p.ID, 1)
	_, err := e.orders.CreateOrder(e.ctx, "u1", req, "")
	require.NoError(t, err)

	res, err := e.discounts.ValidateAndCalc(e.ctx, services.ValidateInput{Code: "FIRST1", OrderAmount: 100000, UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, string(apperrors.KindInactive), res.Reason)
}

func TestCommit_UsageLimitRace(t *testing.T) {
	e := newTestEnv(t)
	e.voucher(t, models.CreateDiscountRequest{Code: "LAST", Type: models.DiscountFixed, Value: 10000, UsageLimit: 1})

	first, err := e.discounts.ValidateAndCalc(e.ctx, services.ValidateInput{Code: "LAST", OrderAmount: 100000, UserID: "u1"})
	require.NoError(t, err)
	second, err := e.discounts.ValidateAndCalc(e.ctx, services.ValidateInput{Code: "LAST", OrderAmount: 100000, UserID: "u2"})
	require.NoError(t, err)
	require.True(t, first.Valid)
	require.True(t, second.Valid)

	require.NoError(t, e.discounts.Commit(e.ctx, first, "u1", "o1"))
	err = e.discounts.Commit(e.ctx, second, "u2", "o2")
	assert.Equal(t, apperrors.KindUsageLimitExceeded, apperrors.KindOf(err))
}

func TestAvailableForUser(t *testing.T) {
	e := newTestEnv(t)
	yesterday := time.Now().Add(-24 * time.Hour)

	e.voucher(t, models.CreateDiscountRequest{Code: "PCT10", Type: models.DiscountPercent, Value: 10, IsPublic: true})
	e.voucher(t, models.CreateDiscountRequest{Code: "FIX50", Type: models.DiscountFixed, Value: 50000, MinOrder: 500000, IsPublic: true})
	e.voucher(t, models.CreateDiscountRequest{Code: "FREESHIP", Type: models.DiscountFixed, Value: 30000, Target: models.TargetShipping, IsPublic: true})
	e.voucher(t, models.CreateDiscountRequest{Code: "ALSO10", Type: models.DiscountFixed, Value: 20000, IsPublic: true})
	e.voucher(t, models.CreateDiscountRequest{Code: "PRIVATE", Type: models.DiscountFixed, Value: 90000})
	e.voucher(t, models.CreateDiscountRequest{Code: "OLD", Type: models.DiscountFixed, Value: 90000, IsPublic: true, EndAt: &yesterday})
	e.voucher(t, models.CreateDiscountRequest{Code: "USED", Type: models.DiscountFixed, Value: 90000, IsPublic: true, PerUserLimit: 1})

	used, err := e.discounts.ValidateAndCalc(e.ctx, services.ValidateInput{Code: "USED", OrderAmount: 200000, UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, e.discounts.Commit(e.ctx, used, "u1", "o1"))

	list, err := e.discounts.AvailableForUser(e.ctx, "u1", 200000, 35000)
	require.NoError(t, err)

	codes := make([]string, len(list))
	for i, s := range list {
		codes[i] = s.Code
	}
	assert.Equal(t, []string{"FREESHIP", "ALSO10", "PCT10", "FIX50"}, codes)
	assert.Equal(t, int64(30000), list[0].Preview)
	assert.Equal(t, int64(20000), list[1].Preview)
	assert.Equal(t, int64(20000), list[2].Preview)
	assert.Equal(t, int64(0), list[3].Preview)
	assert.Equal(t, int64(300000), list[3].Missing)
	assert.Equal(t, "Giảm 50.000đ cho đơn từ 500.000đ", list[3].Label)

	// another user still sees the per-user limited voucher
	list, err = e.discounts.AvailableForUser(e.ctx, "u2", 200000, 35000)
	require.NoError(t, err)
	assert.Equal(t, "USED", list[0].Code)
}

func TestQuote(t *testing.T) {
	e := newTestEnv(t)
	e.voucher(t, models.CreateDiscountRequest{Code: "SALE", Type: models.DiscountFixed, Value: 50000})
	e.voucher(t, models.CreateDiscountRequest{Code: "SHIP", Type: models.DiscountFixed, Value: 50000, Target: models.TargetShipping})

	q, err := e.discounts.Quote(e.ctx, "u1", models.QuoteRequest{
		Subtotal: 200000, ShippingFee: 30000, DiscountCode: "sale", FreeShipCode: "ship",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), q.OrderDiscount)
	assert.Equal(t, int64(30000), q.ShipDiscount)
	assert.Equal(t, int64(150000), q.Total)

	q, err = e.discounts.Quote(e.ctx, "u1", models.QuoteRequest{Subtotal: 200000, ShippingFee: 30000, DiscountCode: "NOPE"})
	require.NoError(t, err)
	assert.NotEmpty(t, q.OrderError)
	assert.Equal(t, int64(230000), q.Total)
}

func TestCreateDiscount(t *testing.T) {
	e := newTestEnv(t)
	start := time.Now()
	before := start.Add(-time.Hour)

	d, err := e.discounts.Create(e.ctx, &models.CreateDiscountRequest{Code: " welcome ", Type: models.DiscountPercent, Value: 5})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", d.Code)
	assert.Equal(t, models.TargetOrder, d.Target)
	assert.True(t, d.Active)

	_, err = e.discounts.Create(e.ctx, &models.CreateDiscountRequest{Code: "WELCOME", Type: models.DiscountFixed, Value: 5})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = e.discounts.Create(e.ctx, &models.CreateDiscountRequest{Code: "TOOMUCH", Type: models.DiscountPercent, Value: 120})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	_, err = e.discounts.Create(e.ctx, &models.CreateDiscountRequest{Code: "BACKWARDS", Type: models.DiscountFixed, Value: 1, StartAt: &start, EndAt: &before})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	_, err = e.discounts.Create(e.ctx, &models.CreateDiscountRequest{Code: "BADTYPE", Type: "bogo", Value: 1})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	items, meta, err := e.discounts.List(e.ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 10, meta.Limit)

	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(e.discounts.Deactivate(e.ctx, "missing")))
}

func TestVoucherLabel(t *testing.T) {
	tests := []struct {
		voucher models.Discount
		want    string
	}{
		{models.Discount{Type: models.DiscountPercent, Value: 10, Target: models.TargetOrder}, "Giảm 10%"},
		{models.Discount{Type: models.DiscountPercent, Value: 12.5, MaxDiscount: int64Ptr(50000), Target: models.TargetOrder}, "Giảm 12.5% tối đa 50.000đ"},
		{models.Discount{Type: models.DiscountFixed, Value: 30000, MinOrder: 200000, Target: models.TargetOrder}, "Giảm 30.000đ cho đơn từ 200.000đ"},
		{models.Discount{Type: models.DiscountFixed, Value: 30000, Target: models.TargetShipping}, "Miễn phí vận chuyển tới 30.000đ"},
		{models.Discount{Type: models.DiscountPercent, Value: 50, Target: models.TargetShipping}, "Giảm 50% phí vận chuyển"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, services.VoucherLabel(&tt.voucher))
	}
}

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "0đ", services.FormatVND(0))
	assert.Equal(t, "999đ", services.FormatVND(999))
	assert.Equal(t, "30.000đ", services.FormatVND(30000))
	assert.Equal(t, "1.250.000đ", services.FormatVND(1250000))
	assert.Equal(t, "-5.000đ", services.FormatVND(-5000))
}
